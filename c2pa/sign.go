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
	"bytes"
	"io"

	"github.com/google/uuid"

	"github.com/faceless2/json/box"
	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/cose"
)

// ErrorKind values specific to signing preconditions (§4.9).
const (
	ErrAssertionMissing             ErrorKind = "assertion_missing"
	ErrAssertionMultipleHardBindings ErrorKind = "assertion_multipleHardBindings"
	ErrClaimHardBindingsMissing      ErrorKind = "claim_hardBindings_missing"
)

// SigningRequest gathers everything Sign needs to build and sign a new
// manifest (§4.9 preconditions 1-7).
type SigningRequest struct {
	Format     string // claim dc:format, e.g. "image/jpeg"
	InstanceID string // defaults to a fresh uuid.NewString() when empty
	Generator  string // defaults to DefaultGenerator when empty
	Alg        string // defaults to DefaultAlg when empty

	Assertions []*Assertion // the manifest's full assertion list

	Asset      io.ReaderAt // the target asset, for the hard-binding hash
	AssetLen   int64
	Exclusions []ExclusionRange // byte ranges to exclude from the data hash

	KeyAlg    string // JOSE alg name, e.g. "ES256"
	Key       interface{}
	CertChain [][]byte
}

// Sign builds a complete jumb/c2pa store box containing a single manifest
// signed per §4.9, and returns both the box tree and its encoded bytes.
func Sign(req *SigningRequest) (*Store, []byte, error) {
	claim := &Claim{
		Format:     req.Format,
		InstanceID: req.InstanceID,
		Generator:  req.Generator,
		Alg:        req.Alg,
	}
	if claim.InstanceID == "" {
		claim.InstanceID = uuid.NewString()
	}
	if claim.Generator == "" {
		claim.Generator = DefaultGenerator
	}
	if claim.Alg == "" {
		claim.Alg = DefaultAlg
	}
	claim.SignatureURI = "self#jumbf=/" + LabelSignature

	hardBindings := 0
	var hardBinding *Assertion
	for _, a := range req.Assertions {
		switch a.Kind {
		case KindHashData, KindHashBMFF, KindHashBMFFv2:
			hardBindings++
			hardBinding = a
		}
	}
	if hardBindings > 1 {
		return nil, nil, newError(ErrAssertionMultipleHardBindings, "more than one hard-binding assertion supplied")
	}
	if hardBindings == 0 {
		return nil, nil, newError(ErrClaimHardBindingsMissing, "no hard-binding assertion supplied")
	}

	// Precondition 2: populate the claim's assertion list from the
	// manifest's assertion list, each entry a hashed URI.
	assertionBoxes := make([]*box.Box, 0, len(req.Assertions))
	for _, a := range req.Assertions {
		ab, err := buildAssertionBox(a)
		if err != nil {
			return nil, nil, err
		}
		assertionBoxes = append(assertionBoxes, ab)
		claim.Assertions = append(claim.Assertions, HashedURI{
			URL: "self#jumbf=/" + LabelAssertionStore + "/" + a.Label,
			Alg: claim.Alg,
		})
	}

	// Precondition 5: compute the hard-binding digest over the asset. This
	// runs before precondition 4's hashed-URI pass so the hard binding's
	// own assertion box already carries its final digest by the time the
	// claim hashes it (otherwise the claim's stored hashed-URI digest
	// would go stale the moment the hard binding's value is filled in).
	if hardBinding.Kind == KindHashData {
		payload, err := HashDataPayloadFromNode(hardBinding.Payload)
		if err != nil {
			return nil, nil, err
		}
		payload.Alg = claim.Alg
		payload.Exclusions = req.Exclusions
		digest, err := hashAsset(req.Asset, req.AssetLen, req.Exclusions, claim.Alg)
		if err != nil {
			return nil, nil, err
		}
		payload.Hash = digest
		hardBinding.Payload = payload.ToNode()
		idx := indexOfAssertion(req.Assertions, hardBinding)
		content := firstNonDescriptionChild(assertionBoxes[idx])
		content.Tree = hardBinding.Payload
	}

	assertionStoreBox := containerBox("jumb", LabelAssertionStore, assertionBoxes)

	// Precondition 4: hash each referenced assertion's contents.
	for i := range req.Assertions {
		digest, err := hashJUMBFContents(assertionBoxes[i], claim.Assertions[i].Alg)
		if err != nil {
			return nil, nil, err
		}
		claim.Assertions[i].Hash = digest
	}

	claimBytes, err := claimCanonicalBytes(claim)
	if err != nil {
		return nil, nil, err
	}

	// Precondition 7: sign the claim bytes, detached.
	sig, err := cose.SignCOSE1(req.KeyAlg, req.Key, claimBytes, nil, nil, true, req.CertChain)
	if err != nil {
		return nil, nil, err
	}
	sigTree, err := cborio.Unmarshal(sig.Bytes, cborio.ReaderOptions{})
	if err != nil {
		return nil, nil, err
	}

	claimBox := containerBox("jumb", LabelClaim, []*box.Box{
		{Type: "cbor", Kind: box.ContentCBOR, Tree: claim.ToNode()},
	})
	signatureBox := containerBox("jumb", LabelSignature, []*box.Box{
		{Type: "cbor", Kind: box.ContentCBOR, Tree: sigTree},
	})

	manifestBox := containerBox("jumb", LabelManifest, []*box.Box{assertionStoreBox, claimBox, signatureBox})
	storeBox := containerBox("jumb", LabelStore, []*box.Box{manifestBox})

	store, err := OpenStore(storeBox)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := box.WriteBox(&buf, storeBox); err != nil {
		return nil, nil, err
	}
	return store, buf.Bytes(), nil
}

func indexOfAssertion(assertions []*Assertion, target *Assertion) int {
	for i, a := range assertions {
		if a == target {
			return i
		}
	}
	return -1
}

// buildAssertionBox wraps a.Payload in a jumb super-box with a jumd
// description child labelled a.Label.
func buildAssertionBox(a *Assertion) (*box.Box, error) {
	content := &box.Box{Type: "cbor", Kind: box.ContentCBOR, Tree: a.Payload}
	return containerBox("jumb", a.Label, []*box.Box{content}), nil
}

// containerBox builds a jumb super-box of the given label wrapping
// children, with its jumd description box as the first child.
func containerBox(typ, label string, children []*box.Box) *box.Box {
	jumd := &box.Box{Type: "jumd", Kind: box.ContentData, Description: &box.Description{Label: label}}
	b := &box.Box{Type: typ, Kind: box.ContentContainer, Subtype: label}
	b.AppendChild(jumd)
	for _, c := range children {
		b.AppendChild(c)
	}
	return b
}
