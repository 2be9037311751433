package box

import (
	"bytes"
	"testing"

	"github.com/faceless2/json/node"
)

func TestRoundTripDataBox(t *testing.T) {
	b := &Box{Type: "bfdb", Kind: ContentData, Data: []byte("hello world")}
	var buf bytes.Buffer
	if err := WriteBox(&buf, b); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseAll(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d boxes", len(parsed))
	}
	if parsed[0].Type != "bfdb" || string(parsed[0].Data) != "hello world" {
		t.Fatalf("mismatch: %+v", parsed[0])
	}
}

func TestRoundTripCBORBox(t *testing.T) {
	tree := node.NewMap()
	tree.Put("a", node.NewInt(1))
	b := &Box{Type: "cbor", Kind: ContentCBOR, Tree: tree}
	var buf bytes.Buffer
	if err := WriteBox(&buf, b); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseAll(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	got, err := parsed[0].Tree.Get("a")
	if err != nil || got == nil {
		t.Fatal("missing key a")
	}
	v, _ := got.IntValue()
	if v != 1 {
		t.Fatalf("a = %d", v)
	}
}

func TestJUMBFSubtypeFromDescription(t *testing.T) {
	d := &Description{Label: "c2pa.claim"}
	jumd := &Box{Type: "jumd", Kind: ContentData, Description: d}
	container := &Box{Type: "jumb", Kind: ContentContainer}
	container.AppendChild(jumd)
	leaf := &Box{Type: "cbor", Kind: ContentCBOR, Tree: node.NewMap()}
	container.AppendChild(leaf)

	var buf bytes.Buffer
	if err := WriteBox(&buf, container); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseAll(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if parsed[0].Subtype != "c2pa.claim" {
		t.Fatalf("subtype = %q", parsed[0].Subtype)
	}
	if parsed[0].ChildByLabel("c2pa.claim") != nil {
		t.Fatal("ChildByLabel looks for jumb grandchildren, not self")
	}
}

func TestJPEGSegmentReassembly(t *testing.T) {
	payload := bytes.Repeat([]byte("c2paJUMBFbytes-"), 5000) // forces multiple segments
	segs, err := WriteJPEGSegments(payload, "jumb", 7, 2048)
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	typ, got, err := ReadJPEGSegments(segs)
	if err != nil {
		t.Fatal(err)
	}
	if typ != "jumb" {
		t.Fatalf("type = %q", typ)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestJPEGSegmentFirstInstanceActive(t *testing.T) {
	a, _ := WriteJPEGSegments([]byte("AAA"), "jumb", 1, 65000)
	c, _ := WriteJPEGSegments([]byte("CCC"), "jumb", 2, 65000)
	typ, got, err := ReadJPEGSegments(append(a, c...))
	if err != nil {
		t.Fatal(err)
	}
	if typ != "jumb" || string(got) != "AAA" {
		t.Fatalf("got %q", got)
	}
}
