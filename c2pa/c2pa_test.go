package c2pa

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/faceless2/json/box"
)

func signTestManifest(t *testing.T, asset []byte) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	ingredient := &Assertion{
		Label: LabelIngredient,
		Kind:  KindIngredient,
		Payload: (&IngredientPayload{
			Title:        "parent.jpg",
			Format:       "image/jpeg",
			InstanceID:   "urn:uuid:aaaaaaaa-0000-0000-0000-000000000000",
			Relationship: "parentOf",
		}).ToNode(),
	}
	actions := &Assertion{
		Label: LabelActions,
		Kind:  KindActions,
		Payload: (&ActionsPayload{
			Actions: []Action{
				{Action: "c2pa.created", Ingredient: "self#jumbf=/c2as/" + LabelIngredient},
			},
		}).ToNode(),
	}
	hardBinding := &Assertion{
		Label:   LabelHashData,
		Kind:    KindHashData,
		Payload: (&HashDataPayload{Alg: DefaultAlg}).ToNode(),
	}

	req := &SigningRequest{
		Format:     "image/jpeg",
		Assertions: []*Assertion{ingredient, actions, hardBinding},
		Asset:      bytes.NewReader(asset),
		AssetLen:   int64(len(asset)),
		KeyAlg:     "ES256",
		Key:        priv,
	}
	_, out, err := Sign(req)
	if err != nil {
		t.Fatal(err)
	}
	return out, priv
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	asset := bytes.Repeat([]byte("jpegbytes"), 100)
	out, priv := signTestManifest(t, asset)

	boxes, err := box.ParseAll(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(boxes) != 1 {
		t.Fatalf("got %d top level boxes", len(boxes))
	}
	store, err := OpenStore(boxes[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := store.ActiveManifest().Claim.Format; got != "image/jpeg" {
		t.Fatalf("claim dc:format = %q, want %q", got, "image/jpeg")
	}
	results, err := Verify(store, VerifyOptions{
		Asset:    bytes.NewReader(asset),
		AssetLen: int64(len(asset)),
		Key:      &priv.PublicKey,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !AllOK(results) {
		for _, r := range results {
			if !r.OK {
				t.Errorf("status %s at %s: %s", r.Code, r.Locus, r.Message)
			}
		}
	}
}

func TestVerifyDetectsTamperedAsset(t *testing.T) {
	asset := bytes.Repeat([]byte("jpegbytes"), 100)
	out, priv := signTestManifest(t, asset)

	boxes, _ := box.ParseAll(out)
	store, err := OpenStore(boxes[0])
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), asset...)
	tampered[0] ^= 0xFF

	results, err := Verify(store, VerifyOptions{
		Asset:    bytes.NewReader(tampered),
		AssetLen: int64(len(tampered)),
		Key:      &priv.PublicKey,
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range results {
		if r.Code == StatusAssertionDataHashMismatch {
			found = true
		}
	}
	if !found {
		t.Fatal("expected assertion.dataHash.mismatch status")
	}
}

func TestSignRejectsMultipleHardBindings(t *testing.T) {
	priv, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	a := &Assertion{Label: LabelHashData, Kind: KindHashData, Payload: (&HashDataPayload{Alg: DefaultAlg}).ToNode()}
	b := &Assertion{Label: LabelHashBMFF, Kind: KindHashBMFF, Payload: (&BMFFHashPayload{Alg: DefaultAlg}).ToNode()}
	req := &SigningRequest{
		Format:     "image/jpeg",
		Assertions: []*Assertion{a, b},
		Asset:      bytes.NewReader(nil),
		KeyAlg:     "ES256",
		Key:        priv,
	}
	if _, _, err := Sign(req); err == nil {
		t.Fatal("expected assertion_multipleHardBindings error")
	}
}
