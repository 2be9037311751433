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

package c2pa

import (
	"strings"

	"github.com/faceless2/json/box"
)

// resolveJUMBFURI walks root (a manifest or store box) following the
// labelled path of a hashed URI (§4.9 step 4, §6.3 claimSignature
// resolution). This package's URIs are a simplified "self#jumbf=/a/b/c"
// form addressing JUMBF labels relative to root, rather than full
// ISO/IEC 19566-5 absolute paths with URN instance matching.
func resolveJUMBFURI(root *box.Box, uri string) (*box.Box, error) {
	trimmed := strings.TrimPrefix(uri, "self#jumbf=")
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return root, nil
	}
	cur := root
	for i, seg := range strings.Split(trimmed, "/") {
		if i == 0 && (seg == cur.Subtype || seg == cur.Type) {
			continue
		}
		next := childByLabelOrType(cur, seg)
		if next == nil {
			return nil, newError(ErrStructural, "jumbf uri %q: no box matching segment %q", uri, seg)
		}
		cur = next
	}
	return cur, nil
}

func childByLabelOrType(b *box.Box, seg string) *box.Box {
	for _, c := range b.Children {
		if c.Type == "jumd" {
			continue
		}
		if c.Subtype == seg || c.Type == seg {
			return c
		}
	}
	return nil
}
