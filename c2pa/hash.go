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
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"
	"sort"

	"github.com/faceless2/json/box"
	"github.com/faceless2/json/cborio"
)

func newHasher(alg string) (hash.Hash, error) {
	switch alg {
	case "sha256", "":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, newError(ErrStructural, "unsupported hash algorithm %q", alg)
	}
}

// hashJUMBFContents digests the encoded bytes of b's children (not b's own
// length/type header), per §4.9 step 4's hashed-URI rule.
func hashJUMBFContents(b *box.Box, alg string) ([]byte, error) {
	h, err := newHasher(alg)
	if err != nil {
		return nil, err
	}
	for _, c := range b.Children {
		if err := box.WriteBox(h, c); err != nil {
			return nil, wrapError(ErrIO, err, "hashing jumbf contents of %q", b.Subtype)
		}
	}
	return h.Sum(nil), nil
}

// hashAsset digests asset[0:assetLen), skipping the byte ranges named by
// exclusions, per §4.9 step 5's hard-binding rule for c2pa.hash.data.
func hashAsset(asset io.ReaderAt, assetLen int64, exclusions []ExclusionRange, alg string) ([]byte, error) {
	h, err := newHasher(alg)
	if err != nil {
		return nil, err
	}
	ranges := append([]ExclusionRange(nil), exclusions...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	var pos int64
	for _, ex := range ranges {
		if ex.Start > pos {
			if err := copyRange(h, asset, pos, ex.Start-pos); err != nil {
				return nil, err
			}
		}
		end := ex.Start + ex.Length
		if end > pos {
			pos = end
		}
	}
	if pos < assetLen {
		if err := copyRange(h, asset, pos, assetLen-pos); err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

func copyRange(w io.Writer, r io.ReaderAt, off, length int64) error {
	if length <= 0 {
		return nil
	}
	sec := io.NewSectionReader(r, off, length)
	_, err := io.Copy(w, sec)
	return err
}

// cborBoxBytes re-encodes a cbor content box's parsed tree back to its raw
// CBOR bytes, used to recover the exact bytes a signature box's COSE
// Sign1 payload was built from.
func cborBoxBytes(b *box.Box) ([]byte, error) {
	if b.Tree == nil {
		return nil, newError(ErrStructural, "box %q has no decoded cbor tree", b.Type)
	}
	return cborio.Marshal(b.Tree, cborio.WriterOptions{})
}

// claimCanonicalBytes renders a claim to the exact bytes used as the
// COSE_Sign1 detached payload, both when signing and when reconstructing
// it for verification (§4.9 steps 6 and 4 of verification).
func claimCanonicalBytes(c *Claim) ([]byte, error) {
	return cborio.Marshal(c.ToNode(), cborio.WriterOptions{})
}
