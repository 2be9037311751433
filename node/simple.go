// Copyright 2021 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

// SimpleCode returns the CBOR simple-value code carried by an undefined
// node produced from an unrecognised simple value (§3.1, §9 open question:
// unknown simples are preserved rather than rejected).
func (n *Node) SimpleCode() (uint64, bool) {
	if n.simple == nil {
		return 0, false
	}
	return *n.simple, true
}

// SetSimpleCode attaches a CBOR simple-value code to an undefined node.
func (n *Node) SetSimpleCode(code uint64) {
	c := code
	n.simple = &c
}
