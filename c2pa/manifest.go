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
	"github.com/faceless2/json/box"
)

// JUMBF labels for the fixed C2PA box shape (§3.4).
const (
	LabelStore          = "c2pa"
	LabelManifest        = "c2ma"
	LabelAssertionStore = "c2as"
	LabelClaim          = "c2cl"
	LabelSignature      = "c2cs"
)

// Store is a parsed C2PA store box (jumb/c2pa): one or more manifests, the
// last of which (in insertion order) is active (§3.4).
type Store struct {
	Box       *box.Box
	Manifests []*Manifest
}

// Manifest is one jumb/c2ma box: exactly one assertion store, one claim,
// one signature.
type Manifest struct {
	Box            *box.Box
	AssertionStore []*Assertion
	Claim          *Claim
	SignatureBytes []byte // raw COSE_Sign1 bytes held by the jumb/c2cs box
}

// ActiveManifest returns the last manifest in insertion order, or nil if
// the store has none.
func (s *Store) ActiveManifest() *Manifest {
	if len(s.Manifests) == 0 {
		return nil
	}
	return s.Manifests[len(s.Manifests)-1]
}

// OpenStore parses a jumb/c2pa store box into its manifest graph.
func OpenStore(storeBox *box.Box) (*Store, error) {
	if storeBox.Type != "jumb" || storeBox.Subtype != LabelStore {
		return nil, newError(ErrStructural, "not a c2pa store box (type=%q subtype=%q)", storeBox.Type, storeBox.Subtype)
	}
	s := &Store{Box: storeBox}
	for _, child := range storeBox.Children {
		if child.Type != "jumb" || child.Subtype != LabelManifest {
			continue
		}
		m, err := openManifest(child)
		if err != nil {
			return nil, err
		}
		s.Manifests = append(s.Manifests, m)
	}
	return s, nil
}

func openManifest(b *box.Box) (*Manifest, error) {
	m := &Manifest{Box: b}
	for _, child := range b.Children {
		switch {
		case child.Type == "jumb" && child.Subtype == LabelAssertionStore:
			for _, a := range child.Children {
				if a.Type != "jumb" {
					continue
				}
				asrt, err := openAssertion(a)
				if err != nil {
					return nil, err
				}
				m.AssertionStore = append(m.AssertionStore, asrt)
			}
		case child.Type == "jumb" && child.Subtype == LabelClaim:
			content := firstNonDescriptionChild(child)
			if content == nil || content.Tree == nil {
				return nil, newError(ErrStructural, "c2cl box has no cbor content")
			}
			claim, err := ClaimFromNode(content.Tree)
			if err != nil {
				return nil, err
			}
			m.Claim = claim
		case child.Type == "jumb" && child.Subtype == LabelSignature:
			content := firstNonDescriptionChild(child)
			if content == nil || content.Tree == nil {
				return nil, newError(ErrStructural, "c2cs box has no cbor content")
			}
			raw, err := cborBoxBytes(content)
			if err != nil {
				return nil, err
			}
			m.SignatureBytes = raw
		}
	}
	return m, nil
}

func openAssertion(b *box.Box) (*Assertion, error) {
	label := b.Subtype
	content := firstNonDescriptionChild(b)
	if content == nil {
		return nil, newError(ErrStructural, "assertion %q has no content box", label)
	}
	a := &Assertion{Label: label, Kind: kindForLabel(label), Box: b, Payload: content.Tree}
	return a, nil
}

func firstNonDescriptionChild(b *box.Box) *box.Box {
	for _, c := range b.Children {
		if c.Type != "jumd" {
			return c
		}
	}
	return nil
}
