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
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strings"

	"github.com/faceless2/json/jsonio"
	"github.com/faceless2/json/node"
)

// JWS is a parsed compact JWS (RFC 7515 §3.1): BASE64URL(header) "."
// BASE64URL(payload) "." BASE64URL(signature).
type JWS struct {
	Header    *node.Node
	Payload   []byte
	Signature []byte

	rawHeader string
	rawPayload string
}

// SignJWS produces the compact serialization of payload signed under alg
// with key, embedding extra header members (e.g. "kid") from header.
func SignJWS(alg string, key interface{}, payload []byte, header *node.Node) (string, error) {
	info, err := LookupAlg(alg)
	if err != nil {
		return "", err
	}
	if header == nil {
		header = node.NewMap()
	}
	header.Put("alg", node.NewString(alg))

	var hbuf bytes.Buffer
	if err := jsonio.WriteNode(&hbuf, header, jsonio.WriterOptions{}); err != nil {
		return "", err
	}
	rawHeader := base64.RawURLEncoding.EncodeToString(hbuf.Bytes())
	rawPayload := base64.RawURLEncoding.EncodeToString(payload)
	signingInput := []byte(rawHeader + "." + rawPayload)

	sig, err := signJWS(info, key, signingInput)
	if err != nil {
		return "", err
	}
	return rawHeader + "." + rawPayload + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyJWS parses and verifies a compact JWS, returning the decoded
// payload on success.
func VerifyJWS(compact string, key interface{}) (*JWS, error) {
	parts := strings.Split(compact, ".")
	if len(parts) != 3 {
		return nil, node.NewError(node.ErrBadSyntax, "jws: expected 3 dot-separated parts")
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, node.WrapError(node.ErrBadSyntax, err, "jws: bad header encoding")
	}
	header, err := jsonio.ReadNode(bytes.NewReader(headerBytes), jsonio.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	algN, err := header.Get("alg")
	if err != nil || algN == nil {
		return nil, node.NewError(node.ErrBadSyntax, "jws: missing alg header")
	}
	algName, _ := algN.StringValue()
	info, err := LookupAlg(algName)
	if err != nil {
		return nil, err
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, node.WrapError(node.ErrBadSyntax, err, "jws: bad payload encoding")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, node.WrapError(node.ErrBadSyntax, err, "jws: bad signature encoding")
	}
	signingInput := []byte(parts[0] + "." + parts[1])
	if err := verifyJWS(info, key, signingInput, sig); err != nil {
		return nil, err
	}
	return &JWS{Header: header, Payload: payload, Signature: sig, rawHeader: parts[0], rawPayload: parts[1]}, nil
}

func signJWS(info AlgInfo, key interface{}, signingInput []byte) ([]byte, error) {
	switch info.KeyType {
	case KeyTypeEC:
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs an ECDSA private key", info.JOSEName)
		}
		if err := checkKeyMatch(info, KeyTypeEC, priv.Curve, ""); err != nil {
			return nil, err
		}
		h := info.Hash.New()
		h.Write(signingInput)
		digest := h.Sum(nil)
		r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
		if err != nil {
			return nil, err
		}
		size := curveByteSize(priv.Curve)
		out := make([]byte, 2*size)
		r.FillBytes(out[:size])
		s.FillBytes(out[size:])
		return out, nil
	case KeyTypeRSA:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs an RSA private key", info.JOSEName)
		}
		h := info.Hash.New()
		h.Write(signingInput)
		digest := h.Sum(nil)
		if info.Padding == PaddingPSS {
			return rsa.SignPSS(rand.Reader, priv, info.Hash, digest, &rsa.PSSOptions{SaltLength: info.Hash.Size()})
		}
		return rsa.SignPKCS1v15(rand.Reader, priv, info.Hash, digest)
	case KeyTypeOKP:
		priv, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: EdDSA needs an Ed25519 private key")
		}
		return ed25519.Sign(priv, signingInput), nil
	case KeyTypeOct:
		secret, ok := key.([]byte)
		if !ok {
			return nil, node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs a raw secret", info.JOSEName)
		}
		mac := hmac.New(info.Hash.New, secret)
		mac.Write(signingInput)
		return mac.Sum(nil), nil
	}
	return nil, node.NewError(node.ErrBadSyntax, "unsupported key type %s", info.KeyType)
}

func verifyJWS(info AlgInfo, key interface{}, signingInput, sig []byte) error {
	switch info.KeyType {
	case KeyTypeEC:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs an ECDSA public key", info.JOSEName)
		}
		if err := checkKeyMatch(info, KeyTypeEC, pub.Curve, ""); err != nil {
			return err
		}
		size := curveByteSize(pub.Curve)
		if len(sig) != 2*size {
			return node.NewError(node.ErrBadSyntax, "jws: bad EC signature length")
		}
		r := new(big.Int).SetBytes(sig[:size])
		s := new(big.Int).SetBytes(sig[size:])
		h := info.Hash.New()
		h.Write(signingInput)
		digest := h.Sum(nil)
		if !ecdsa.Verify(pub, digest, r, s) {
			return node.NewError(node.ErrBadCoercion, "jws: signature verification failed")
		}
		return nil
	case KeyTypeRSA:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs an RSA public key", info.JOSEName)
		}
		h := info.Hash.New()
		h.Write(signingInput)
		digest := h.Sum(nil)
		if info.Padding == PaddingPSS {
			return rsa.VerifyPSS(pub, info.Hash, digest, sig, &rsa.PSSOptions{SaltLength: info.Hash.Size()})
		}
		return rsa.VerifyPKCS1v15(pub, info.Hash, digest, sig)
	case KeyTypeOKP:
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: EdDSA needs an Ed25519 public key")
		}
		if !ed25519.Verify(pub, signingInput, sig) {
			return node.NewError(node.ErrBadCoercion, "jws: signature verification failed")
		}
		return nil
	case KeyTypeOct:
		secret, ok := key.([]byte)
		if !ok {
			return node.NewError(node.ErrBadCoercion, "sig_algorithm_mismatch: %s needs a raw secret", info.JOSEName)
		}
		mac := hmac.New(info.Hash.New, secret)
		mac.Write(signingInput)
		expected := mac.Sum(nil)
		if subtle.ConstantTimeCompare(expected, sig) != 1 {
			return node.NewError(node.ErrBadCoercion, "jws: signature verification failed")
		}
		return nil
	}
	return node.NewError(node.ErrBadSyntax, "unsupported key type %s", info.KeyType)
}
