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

package cose

import (
	"crypto/x509"
	"strconv"

	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/node"
)

// Sign1Tag is the CBOR tag for COSE_Sign1 (RFC 8152 §2).
const Sign1Tag = 18

// labelAlg is the integer map key for "alg" in a COSE header (RFC 8152 Table 2).
const labelAlg = 1

// labelX5Chain is the CBOR map key used for embedded certificate chains
// (matching the widely deployed "x5chain" COSE header label 33).
const labelX5Chain = 33

// Sign1Result holds the pieces of a produced COSE_Sign1 message.
type Sign1Result struct {
	Bytes     []byte
	Protected *node.Node
}

// SignCOSE1 builds and signs a COSE_Sign1 structure (RFC 8152 §4.2) over
// payload. If detached is true the payload slot in the wire form is null
// and the caller must supply the same payload bytes again on verify.
func SignCOSE1(algName string, key interface{}, payload []byte, unprotected *node.Node, externalAAD []byte, detached bool, x5chain [][]byte) (*Sign1Result, error) {
	info, err := LookupAlg(algName)
	if err != nil {
		return nil, err
	}
	protected := node.NewMap()
	protected.Put(numKey(labelAlg), node.NewInt(int32(info.COSEID)))
	if len(x5chain) > 0 {
		chain := node.NewList()
		for _, c := range x5chain {
			chain.AppendChild(node.NewBuffer(c))
		}
		protected.Put(numKey(labelX5Chain), chain)
	}
	protectedBytes, err := cborio.Marshal(protected, cborio.WriterOptions{})
	if err != nil {
		return nil, err
	}

	sigStructure := node.NewList()
	sigStructure.AppendChild(node.NewString("Signature1"))
	sigStructure.AppendChild(node.NewBuffer(protectedBytes))
	sigStructure.AppendChild(node.NewBuffer(externalAAD))
	sigStructure.AppendChild(node.NewBuffer(payload))
	toBeSigned, err := cborio.Marshal(sigStructure, cborio.WriterOptions{})
	if err != nil {
		return nil, err
	}

	sig, err := signJWS(info, key, toBeSigned)
	if err != nil {
		return nil, err
	}

	if unprotected == nil {
		unprotected = node.NewMap()
	}
	msg := node.NewList()
	msg.AppendChild(node.NewBuffer(protectedBytes))
	msg.AppendChild(unprotected)
	if detached {
		msg.AppendChild(node.NewNull())
	} else {
		msg.AppendChild(node.NewBuffer(payload))
	}
	msg.AppendChild(node.NewBuffer(sig))
	msg.SetTag(Sign1Tag)

	out, err := cborio.Marshal(msg, cborio.WriterOptions{})
	if err != nil {
		return nil, err
	}
	return &Sign1Result{Bytes: out, Protected: protected}, nil
}

// VerifyCOSE1 verifies a COSE_Sign1 message, returning its protected header
// and payload. detachedPayload must be supplied when the wire payload slot
// is null.
func VerifyCOSE1(data []byte, key interface{}, externalAAD []byte, detachedPayload []byte) (protected *node.Node, payload []byte, err error) {
	msg, err := cborio.Unmarshal(data, cborio.ReaderOptions{})
	if err != nil {
		return nil, nil, err
	}
	if msg.Kind() != node.KindList || msg.Len() != 4 {
		return nil, nil, node.NewError(node.ErrBadSyntax, "cose: malformed Sign1 message")
	}
	protectedBufN, _ := msg.Index(0)
	unprotectedN, _ := msg.Index(1)
	payloadN, _ := msg.Index(2)
	sigN, _ := msg.Index(3)
	_ = unprotectedN

	protectedBytes, err := protectedBufN.BufferValue()
	if err != nil {
		return nil, nil, err
	}
	protected, err = cborio.Unmarshal(protectedBytes, cborio.ReaderOptions{})
	if err != nil {
		return nil, nil, err
	}

	if payloadN.Kind() == node.KindNull {
		if detachedPayload == nil {
			return nil, nil, node.NewError(node.ErrBadSyntax, "cose: detached payload required")
		}
		payload = detachedPayload
	} else {
		payload, err = payloadN.BufferValue()
		if err != nil {
			return nil, nil, err
		}
	}

	algN, err := protected.Get(numKey(labelAlg))
	if err != nil || algN == nil {
		return nil, nil, node.NewError(node.ErrBadSyntax, "cose: missing alg in protected header")
	}
	algID, err := algN.LongValue()
	if err != nil {
		return nil, nil, err
	}
	info, err := LookupCOSEAlg(algID)
	if err != nil {
		return nil, nil, err
	}

	if key == nil {
		key, err = leafPublicKeyFromX5Chain(protected)
		if err != nil {
			return nil, nil, err
		}
	}

	sigStructure := node.NewList()
	sigStructure.AppendChild(node.NewString("Signature1"))
	sigStructure.AppendChild(node.NewBuffer(protectedBytes))
	sigStructure.AppendChild(node.NewBuffer(externalAAD))
	sigStructure.AppendChild(node.NewBuffer(payload))
	toBeSigned, err := cborio.Marshal(sigStructure, cborio.WriterOptions{})
	if err != nil {
		return nil, nil, err
	}

	sig, err := sigN.BufferValue()
	if err != nil {
		return nil, nil, err
	}
	if err := verifyJWS(info, key, toBeSigned, sig); err != nil {
		return nil, nil, err
	}
	return protected, payload, nil
}

// leafPublicKeyFromX5Chain extracts the leaf certificate's public key from a
// decoded protected header's x5chain entry (label 33), for verifiers that
// supply no key of their own and rely on the embedded chain instead.
func leafPublicKeyFromX5Chain(protected *node.Node) (interface{}, error) {
	chain, err := protected.Get(numKey(labelX5Chain))
	if err != nil || chain == nil || chain.Kind() != node.KindList || chain.Len() == 0 {
		return nil, node.NewError(node.ErrBadSyntax, "cose: no key supplied and no x5chain in protected header")
	}
	leafN, ok := chain.Index(0)
	if !ok {
		return nil, node.NewError(node.ErrBadSyntax, "cose: empty x5chain")
	}
	der, err := leafN.BufferValue()
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, node.WrapError(node.ErrBadSyntax, err, "cose: parsing x5chain leaf certificate")
	}
	return cert.PublicKey, nil
}

// numKey renders an integer COSE map label as the string key our value
// tree's map variant uses: the tree only supports string keys, so integer
// COSE header labels round-trip through their canonical decimal text
// rather than through the non-string-key path cborio's KeyCoercer exists
// for (see DESIGN.md).
func numKey(label int) string { return strconv.Itoa(label) }
