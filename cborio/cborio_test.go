package cborio

import (
	"errors"
	"math/big"
	"testing"

	"github.com/faceless2/json/node"
)

func TestRoundTripMapAndArray(t *testing.T) {
	root := node.NewMap()
	root.Put("a", node.NewInt(1))
	l := node.NewList()
	root.Put("b", l)
	l.AppendChild(node.NewString("x"))
	l.AppendChild(node.NewBool(true))

	b, err := Marshal(root, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.Get("a")
	i, _ := v.IntValue()
	if i != 1 {
		t.Fatalf("a = %d", i)
	}
	v2, _ := got.Get("b[0]")
	s, _ := v2.StringValue()
	if s != "x" {
		t.Fatalf("b[0] = %q", s)
	}
}

func TestBignumPromotion(t *testing.T) {
	m := node.NewMap()
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	if !ok {
		t.Fatal("parse failed")
	}
	m.Put("n", node.NewBigInt(huge))
	b, err := Marshal(m, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	v, _ := got.Get("n")
	if k, _ := v.NumberKind(); k != node.NumberBigInt {
		t.Fatalf("kind = %v", k)
	}
	s, _ := v.StringValue()
	if s != "123456789012345678901234567890" {
		t.Fatalf("s = %q", s)
	}
}

func TestHalfFloatDecode(t *testing.T) {
	// 0x3c00 == 1.0 in IEEE 754 half precision
	n := node.NewDouble(halfToFloat64(0x3c00))
	v, _ := n.DoubleValue()
	if v != 1.0 {
		t.Fatalf("v = %v", v)
	}
}

func TestDuplicateMapKeyRejected(t *testing.T) {
	// map(2){"a": 1, "a": 2}
	raw := []byte{0xa2, 0x61, 'a', 0x01, 0x61, 'a', 0x02}
	_, err := Unmarshal(raw, ReaderOptions{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ne *node.Error
	if !errors.As(err, &ne) || ne.Kind != node.ErrDuplicateKey {
		t.Fatalf("expected cbor_duplicate_key error, got %v", err)
	}
}

func TestSimpleValuePreserved(t *testing.T) {
	// CBOR simple(255) is reserved but still round-trips through our codec
	// since we don't interpret simple codes beyond true/false/null/undefined.
	u := node.NewUndefined()
	u.SetSimpleCode(255)
	b, err := Marshal(u, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	code, ok := got.SimpleCode()
	if !ok || code != 255 {
		t.Fatalf("code = %v, %v", code, ok)
	}
}
