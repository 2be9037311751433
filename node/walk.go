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

// VisitFunc is called for every node reached by Walk. Returning false stops
// the traversal early.
type VisitFunc func(n *Node) bool

// Walk performs a pre-order depth-first traversal of n and its descendants.
// It is exposed for callers; Find walks up parent links instead, and the
// C2PA layer does not call it.
func (n *Node) Walk(fn VisitFunc) {
	if !fn(n) {
		return
	}
	switch n.kind {
	case KindList:
		for _, c := range n.list {
			c.Walk(fn)
		}
	case KindMap:
		n.m.each(func(_ string, v *Node) {
			v.Walk(fn)
		})
	}
}
