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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"math/big"
	"sort"

	"github.com/faceless2/json/node"
)

// JWK is a JSON Web Key (RFC 7517). Fields use base64url without padding,
// the §6 encoding all JOSE base64 fields use.
type JWK struct {
	Kty KeyType
	Use string
	Kid string
	Alg string

	// EC / OKP
	Crv string
	X   []byte
	Y   []byte // EC only

	// RSA
	N []byte
	E []byte

	// RSA/EC/OKP private component
	D []byte

	// oct
	K []byte

	// x5c: DER-encoded certificate chain, leaf first (§ x5chain embedding)
	X5c [][]byte
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, node.WrapError(node.ErrBadSyntax, err, "bad base64url field")
	}
	return b, nil
}

// ToNode renders the JWK as a value-tree map, suitable for jsonio/cborio
// serialization.
func (k *JWK) ToNode() *node.Node {
	m := node.NewMap()
	m.Put("kty", node.NewString(string(k.Kty)))
	if k.Use != "" {
		m.Put("use", node.NewString(k.Use))
	}
	if k.Kid != "" {
		m.Put("kid", node.NewString(k.Kid))
	}
	if k.Alg != "" {
		m.Put("alg", node.NewString(k.Alg))
	}
	switch k.Kty {
	case KeyTypeEC:
		m.Put("crv", node.NewString(k.Crv))
		m.Put("x", node.NewString(b64(k.X)))
		m.Put("y", node.NewString(b64(k.Y)))
		if k.D != nil {
			m.Put("d", node.NewString(b64(k.D)))
		}
	case KeyTypeOKP:
		m.Put("crv", node.NewString(k.Crv))
		m.Put("x", node.NewString(b64(k.X)))
		if k.D != nil {
			m.Put("d", node.NewString(b64(k.D)))
		}
	case KeyTypeRSA:
		m.Put("n", node.NewString(b64(k.N)))
		m.Put("e", node.NewString(b64(k.E)))
		if k.D != nil {
			m.Put("d", node.NewString(b64(k.D)))
		}
	case KeyTypeOct:
		m.Put("k", node.NewString(b64(k.K)))
	}
	if len(k.X5c) > 0 {
		chain := node.NewList()
		for _, cert := range k.X5c {
			chain.AppendChild(node.NewString(base64.StdEncoding.EncodeToString(cert)))
		}
		m.Put("x5c", chain)
	}
	return m
}

// JWKFromNode parses a value-tree map as a JWK.
func JWKFromNode(n *node.Node) (*JWK, error) {
	ktyN, err := n.Get("kty")
	if err != nil || ktyN == nil {
		return nil, node.NewError(node.ErrBadSyntax, "jwk: missing kty")
	}
	ktyStr, _ := ktyN.StringValue()
	k := &JWK{Kty: KeyType(ktyStr)}
	if use, _ := n.Get("use"); use != nil {
		k.Use, _ = use.StringValue()
	}
	if kid, _ := n.Get("kid"); kid != nil {
		k.Kid, _ = kid.StringValue()
	}
	if alg, _ := n.Get("alg"); alg != nil {
		k.Alg, _ = alg.StringValue()
	}
	getb64 := func(name string) ([]byte, error) {
		f, _ := n.Get(name)
		if f == nil {
			return nil, nil
		}
		s, _ := f.StringValue()
		return unb64(s)
	}
	switch k.Kty {
	case KeyTypeEC:
		k.Crv, _ = mustStr(n, "crv")
		if k.X, err = getb64("x"); err != nil {
			return nil, err
		}
		if k.Y, err = getb64("y"); err != nil {
			return nil, err
		}
		if k.D, err = getb64("d"); err != nil {
			return nil, err
		}
	case KeyTypeOKP:
		k.Crv, _ = mustStr(n, "crv")
		if k.X, err = getb64("x"); err != nil {
			return nil, err
		}
		if k.D, err = getb64("d"); err != nil {
			return nil, err
		}
	case KeyTypeRSA:
		if k.N, err = getb64("n"); err != nil {
			return nil, err
		}
		if k.E, err = getb64("e"); err != nil {
			return nil, err
		}
		if k.D, err = getb64("d"); err != nil {
			return nil, err
		}
	case KeyTypeOct:
		if k.K, err = getb64("k"); err != nil {
			return nil, err
		}
	default:
		return nil, node.NewError(node.ErrBadSyntax, "jwk: unknown kty %q", ktyStr)
	}
	if x5c, _ := n.Get("x5c"); x5c != nil && x5c.Kind() == node.KindList {
		for i := 0; i < x5c.Len(); i++ {
			c, _ := x5c.Index(i)
			s, _ := c.StringValue()
			der, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, node.WrapError(node.ErrBadSyntax, err, "jwk: bad x5c entry")
			}
			k.X5c = append(k.X5c, der)
		}
	}
	return k, nil
}

func mustStr(n *node.Node, name string) (string, error) {
	f, err := n.Get(name)
	if err != nil || f == nil {
		return "", node.NewError(node.ErrBadSyntax, "jwk: missing %s", name)
	}
	return f.StringValue()
}

// FromECPrivateKey builds a JWK from an ECDSA private key.
func FromECPrivateKey(priv *ecdsa.PrivateKey) *JWK {
	size := curveByteSize(priv.Curve)
	return &JWK{
		Kty: KeyTypeEC,
		Crv: curveName(priv.Curve),
		X:   priv.X.FillBytes(make([]byte, size)),
		Y:   priv.Y.FillBytes(make([]byte, size)),
		D:   priv.D.FillBytes(make([]byte, size)),
	}
}

// FromECPublicKey builds a JWK from an ECDSA public key.
func FromECPublicKey(pub *ecdsa.PublicKey) *JWK {
	size := curveByteSize(pub.Curve)
	return &JWK{
		Kty: KeyTypeEC,
		Crv: curveName(pub.Curve),
		X:   pub.X.FillBytes(make([]byte, size)),
		Y:   pub.Y.FillBytes(make([]byte, size)),
	}
}

func curveByteSize(c elliptic.Curve) int { return (c.Params().BitSize + 7) / 8 }

func curveName(c elliptic.Curve) string {
	switch c {
	case elliptic.P256():
		return "P-256"
	case elliptic.P384():
		return "P-384"
	case elliptic.P521():
		return "P-521"
	}
	return ""
}

func curveByName(name string) elliptic.Curve {
	switch name {
	case "P-256":
		return elliptic.P256()
	case "P-384":
		return elliptic.P384()
	case "P-521":
		return elliptic.P521()
	}
	return nil
}

// ECPrivateKey reconstructs an *ecdsa.PrivateKey from the JWK.
func (k *JWK) ECPrivateKey() (*ecdsa.PrivateKey, error) {
	curve := curveByName(k.Crv)
	if curve == nil {
		return nil, node.NewError(node.ErrBadSyntax, "jwk: unknown curve %q", k.Crv)
	}
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(k.X), Y: new(big.Int).SetBytes(k.Y)},
		D:         new(big.Int).SetBytes(k.D),
	}
	return priv, nil
}

// ECPublicKey reconstructs an *ecdsa.PublicKey from the JWK.
func (k *JWK) ECPublicKey() (*ecdsa.PublicKey, error) {
	curve := curveByName(k.Crv)
	if curve == nil {
		return nil, node.NewError(node.ErrBadSyntax, "jwk: unknown curve %q", k.Crv)
	}
	return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(k.X), Y: new(big.Int).SetBytes(k.Y)}, nil
}

// FromRSAPrivateKey builds a JWK from an RSA private key.
func FromRSAPrivateKey(priv *rsa.PrivateKey) *JWK {
	return &JWK{
		Kty: KeyTypeRSA,
		N:   priv.N.Bytes(),
		E:   big.NewInt(int64(priv.E)).Bytes(),
		D:   priv.D.Bytes(),
	}
}

// FromRSAPublicKey builds a JWK from an RSA public key.
func FromRSAPublicKey(pub *rsa.PublicKey) *JWK {
	return &JWK{
		Kty: KeyTypeRSA,
		N:   pub.N.Bytes(),
		E:   big.NewInt(int64(pub.E)).Bytes(),
	}
}

// RSAPublicKey reconstructs an *rsa.PublicKey from the JWK.
func (k *JWK) RSAPublicKey() *rsa.PublicKey {
	return &rsa.PublicKey{N: new(big.Int).SetBytes(k.N), E: int(new(big.Int).SetBytes(k.E).Int64())}
}

// RSAPrivateKey reconstructs an *rsa.PrivateKey from the JWK.
func (k *JWK) RSAPrivateKey() (*rsa.PrivateKey, error) {
	priv := &rsa.PrivateKey{
		PublicKey: *k.RSAPublicKey(),
		D:         new(big.Int).SetBytes(k.D),
	}
	priv.Precompute()
	return priv, nil
}

// FromEd25519PrivateKey builds a JWK from an Ed25519 private key.
func FromEd25519PrivateKey(priv ed25519.PrivateKey) *JWK {
	pub := priv.Public().(ed25519.PublicKey)
	return &JWK{Kty: KeyTypeOKP, Crv: "Ed25519", X: []byte(pub), D: []byte(priv.Seed())}
}

// FromEd25519PublicKey builds a JWK from an Ed25519 public key.
func FromEd25519PublicKey(pub ed25519.PublicKey) *JWK {
	return &JWK{Kty: KeyTypeOKP, Crv: "Ed25519", X: []byte(pub)}
}

// Ed25519PrivateKey reconstructs an ed25519.PrivateKey from the JWK's seed.
func (k *JWK) Ed25519PrivateKey() ed25519.PrivateKey { return ed25519.NewKeyFromSeed(k.D) }

// Ed25519PublicKey reconstructs an ed25519.PublicKey from the JWK.
func (k *JWK) Ed25519PublicKey() ed25519.PublicKey { return ed25519.PublicKey(k.X) }

// FromSecret builds an oct JWK from a symmetric secret.
func FromSecret(secret []byte) *JWK { return &JWK{Kty: KeyTypeOct, K: secret} }

// Certificate returns the leaf x509 certificate embedded via x5chain.
func (k *JWK) Certificate() (*x509.Certificate, error) {
	if len(k.X5c) == 0 {
		return nil, node.NewError(node.ErrBadSyntax, "jwk: no x5c entries")
	}
	return x509.ParseCertificate(k.X5c[0])
}

// Thumbprint computes the RFC 7638 JWK thumbprint: SHA-256 over the
// lexicographically key-sorted, whitespace-free JSON of the key's required
// members only.
func (k *JWK) Thumbprint() ([]byte, error) {
	var members map[string]string
	switch k.Kty {
	case KeyTypeEC:
		members = map[string]string{"crv": k.Crv, "kty": string(k.Kty), "x": b64(k.X), "y": b64(k.Y)}
	case KeyTypeOKP:
		members = map[string]string{"crv": k.Crv, "kty": string(k.Kty), "x": b64(k.X)}
	case KeyTypeRSA:
		members = map[string]string{"e": b64(k.E), "kty": string(k.Kty), "n": b64(k.N)}
	case KeyTypeOct:
		members = map[string]string{"k": b64(k.K), "kty": string(k.Kty)}
	default:
		return nil, node.NewError(node.ErrBadSyntax, "jwk: unknown kty %q", k.Kty)
	}
	keys := make([]string, 0, len(members))
	for name := range members {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	var buf []byte
	buf = append(buf, '{')
	for i, name := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '"')
		buf = append(buf, name...)
		buf = append(buf, '"', ':', '"')
		buf = append(buf, members[name]...)
		buf = append(buf, '"')
	}
	buf = append(buf, '}')
	sum := sha256.Sum256(buf)
	return sum[:], nil
}
