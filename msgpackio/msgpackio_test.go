package msgpackio

import (
	"testing"

	"github.com/faceless2/json/node"
)

func TestRoundTripMapAndArray(t *testing.T) {
	root := node.NewMap()
	root.Put("a", node.NewInt(1))
	l := node.NewList()
	root.Put("b", l)
	l.AppendChild(node.NewString("x"))
	l.AppendChild(node.NewDouble(1.5))

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
	v2, _ := got.Get("b[1]")
	f, _ := v2.DoubleValue()
	if f != 1.5 {
		t.Fatalf("b[1] = %v", f)
	}
}

func TestExtTypeRoundTrip(t *testing.T) {
	buf := node.NewBuffer([]byte{1, 2, 3, 4})
	ext := int8(-1) // timestamp ext type
	buf.SetTag(uint64(int64(ext)))
	b, err := Marshal(buf, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	tag, ok := got.Tag()
	if !ok || int8(int64(tag)) != -1 {
		t.Fatalf("tag = %v, %v", tag, ok)
	}
	data, _ := got.BufferValue()
	if len(data) != 4 {
		t.Fatalf("data = %v", data)
	}
}

func TestNilAndBool(t *testing.T) {
	l := node.NewList()
	l.AppendChild(node.NewNull())
	l.AppendChild(node.NewBool(true))
	l.AppendChild(node.NewBool(false))
	b, err := Marshal(l, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(b, ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 3 {
		t.Fatalf("len = %d", got.Len())
	}
	v0, _ := got.Index(0)
	if v0.Kind() != node.KindNull {
		t.Fatalf("v0 kind = %v", v0.Kind())
	}
}
