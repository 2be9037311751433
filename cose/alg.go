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

// Package cose implements JWK/JWS (RFC 7515, 7517, 7518) and COSE_Sign1
// (RFC 8152) signing and verification over a fixed algorithm table, plus
// x5chain certificate embedding. No JOSE/COSE library appears anywhere in
// the retrieved example pack, so this is built directly on crypto/* the
// way the pack builds its own crypto-adjacent pieces (DTLS handshakes,
// token verification) on stdlib primitives (see DESIGN.md).
package cose

import (
	"crypto"
	"crypto/elliptic"

	"github.com/faceless2/json/node"
)

// KeyType is the JWK "kty" value.
type KeyType string

const (
	KeyTypeEC  KeyType = "EC"
	KeyTypeRSA KeyType = "RSA"
	KeyTypeOct KeyType = "oct"
	KeyTypeOKP KeyType = "OKP"
)

// Padding distinguishes PKCS#1 v1.5 from PSS for RSA algorithms.
type Padding int

const (
	PaddingNone Padding = iota
	PaddingPKCS1v15
	PaddingPSS
)

// AlgInfo is one row of the algorithm table: the exact (key type, curve,
// hash, padding) triple an alg identifier requires (§ algorithm mismatch
// handling).
type AlgInfo struct {
	JOSEName string
	COSEID   int64
	KeyType  KeyType
	Curve    elliptic.Curve // EC only
	CurveOKP string         // OKP only: "Ed25519"
	Hash     crypto.Hash
	Padding  Padding
}

var algTable = map[string]AlgInfo{
	"ES256": {JOSEName: "ES256", COSEID: -7, KeyType: KeyTypeEC, Curve: elliptic.P256(), Hash: crypto.SHA256},
	"ES384": {JOSEName: "ES384", COSEID: -35, KeyType: KeyTypeEC, Curve: elliptic.P384(), Hash: crypto.SHA384},
	"ES512": {JOSEName: "ES512", COSEID: -36, KeyType: KeyTypeEC, Curve: elliptic.P521(), Hash: crypto.SHA512},

	"PS256": {JOSEName: "PS256", COSEID: -37, KeyType: KeyTypeRSA, Hash: crypto.SHA256, Padding: PaddingPSS},
	"PS384": {JOSEName: "PS384", COSEID: -38, KeyType: KeyTypeRSA, Hash: crypto.SHA384, Padding: PaddingPSS},
	"PS512": {JOSEName: "PS512", COSEID: -39, KeyType: KeyTypeRSA, Hash: crypto.SHA512, Padding: PaddingPSS},

	"RS256": {JOSEName: "RS256", COSEID: -257, KeyType: KeyTypeRSA, Hash: crypto.SHA256, Padding: PaddingPKCS1v15},
	"RS384": {JOSEName: "RS384", COSEID: -258, KeyType: KeyTypeRSA, Hash: crypto.SHA384, Padding: PaddingPKCS1v15},
	"RS512": {JOSEName: "RS512", COSEID: -259, KeyType: KeyTypeRSA, Hash: crypto.SHA512, Padding: PaddingPKCS1v15},

	"EdDSA": {JOSEName: "EdDSA", COSEID: -8, KeyType: KeyTypeOKP, CurveOKP: "Ed25519"},

	"HS256": {JOSEName: "HS256", COSEID: 5, KeyType: KeyTypeOct, Hash: crypto.SHA256},
	"HS384": {JOSEName: "HS384", COSEID: 6, KeyType: KeyTypeOct, Hash: crypto.SHA384},
	"HS512": {JOSEName: "HS512", COSEID: 7, KeyType: KeyTypeOct, Hash: crypto.SHA512},
}

// LookupAlg returns the fixed triple for a JOSE algorithm name.
func LookupAlg(name string) (AlgInfo, error) {
	info, ok := algTable[name]
	if !ok {
		return AlgInfo{}, node.NewError(node.ErrBadSyntax, "unknown algorithm %q", name)
	}
	return info, nil
}

// LookupCOSEAlg returns the fixed triple for a COSE algorithm identifier.
func LookupCOSEAlg(id int64) (AlgInfo, error) {
	for _, info := range algTable {
		if info.COSEID == id {
			return info, nil
		}
	}
	return AlgInfo{}, node.NewError(node.ErrBadSyntax, "unknown COSE algorithm %d", id)
}

// checkKeyMatch reports sig_algorithm_mismatch when a key's type/curve
// doesn't match what alg requires.
func checkKeyMatch(alg AlgInfo, kty KeyType, curve elliptic.Curve, okpCurve string) error {
	if alg.KeyType != kty {
		return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s requires kty=%s, got %s", alg.JOSEName, alg.KeyType, kty)
	}
	if alg.KeyType == KeyTypeEC && alg.Curve != curve {
		return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s requires a different curve", alg.JOSEName)
	}
	if alg.KeyType == KeyTypeOKP && alg.CurveOKP != okpCurve {
		return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s requires curve %s, got %s", alg.JOSEName, alg.CurveOKP, okpCurve)
	}
	return nil
}
