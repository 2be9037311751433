package cose

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/faceless2/json/node"
)

func TestJWSRoundTripES256(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	compact, err := SignJWS("ES256", priv, []byte("hello"), nil)
	if err != nil {
		t.Fatal(err)
	}
	jws, err := VerifyJWS(compact, &priv.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if string(jws.Payload) != "hello" {
		t.Fatalf("payload = %q", jws.Payload)
	}
}

func TestJWSWrongKeyRejected(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	other, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	compact, err := SignJWS("ES256", priv, []byte("hello"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyJWS(compact, &other.PublicKey); err == nil {
		t.Fatal("expected verification failure")
	}
}

func TestJWKThumbprint(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	k := FromECPublicKey(&priv.PublicKey)
	tp1, err := k.Thumbprint()
	if err != nil {
		t.Fatal(err)
	}
	tp2, _ := k.Thumbprint()
	if string(tp1) != string(tp2) {
		t.Fatal("thumbprint not deterministic")
	}
	if len(tp1) != 32 {
		t.Fatalf("len = %d", len(tp1))
	}
}

func TestCOSESign1RoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("manifest bytes")
	res, err := SignCOSE1("ES256", priv, payload, nil, nil, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, got, err := VerifyCOSE1(res.Bytes, &priv.PublicKey, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q", got)
	}
}

func TestCOSESign1Detached(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	payload := []byte("hashed bytes")
	res, err := SignCOSE1("ES256", priv, payload, nil, nil, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := VerifyCOSE1(res.Bytes, &priv.PublicKey, nil, nil); err == nil {
		t.Fatal("expected error without detached payload")
	}
	_, got, err := VerifyCOSE1(res.Bytes, &priv.PublicKey, nil, payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q", got)
	}
}

func TestCOSESign1X5ChainVerification(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test leaf"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).AddDate(10, 0, 0),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte("manifest bytes")
	res, err := SignCOSE1("ES256", priv, payload, nil, nil, false, [][]byte{der})
	if err != nil {
		t.Fatal(err)
	}
	_, got, err := VerifyCOSE1(res.Bytes, nil, nil, nil)
	if err != nil {
		t.Fatalf("verify with embedded x5chain: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %q", got)
	}
}

func TestJWKRoundTripViaNode(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	k := FromECPrivateKey(priv)
	n := k.ToNode()
	k2, err := JWKFromNode(n)
	if err != nil {
		t.Fatal(err)
	}
	if k2.Crv != k.Crv || string(k2.X) != string(k.X) {
		t.Fatal("round trip mismatch")
	}
	_ = node.KindMap
}
