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

package jsonio

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/node"
)

// Diagnose renders n as CBOR extended diagnostic notation (RFC 8949 §8), the
// same textual form the cborDiag option embeds inline in JSON for simple
// values and byte strings (that option drops tags; Diagnose renders them).
// It round-trips n through the minimal CBOR
// encoding and hands the bytes to fxamacker/cbor, which implements the
// notation; jsonio has no reason to duplicate that renderer.
func Diagnose(n *node.Node) (string, error) {
	b, err := cborio.Marshal(n, cborio.WriterOptions{})
	if err != nil {
		return "", err
	}
	return cbor.Diagnose(b)
}
