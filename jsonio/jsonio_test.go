package jsonio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

func parse(t *testing.T, s string, opts ReaderOptions) *node.Node {
	t.Helper()
	rd, err := NewReader(strings.NewReader(s), opts)
	if err != nil {
		t.Fatal(err)
	}
	b := event.NewBuilder()
	for {
		ok, err := rd.HasNext()
		if err != nil {
			t.Fatalf("parse %q: %v", s, err)
		}
		if !ok {
			break
		}
		ev, err := rd.Next()
		if err != nil {
			t.Fatal(err)
		}
		if err := b.Feed(ev); err != nil {
			t.Fatal(err)
		}
	}
	if !b.Complete() {
		t.Fatalf("parse %q: incomplete", s)
	}
	return b.Root()
}

func TestReaderBasicObject(t *testing.T) {
	root := parse(t, `{"a":1,"b":[true,false,null],"c":"x"}`, ReaderOptions{})
	v, _ := root.Get("a")
	i, _ := v.IntValue()
	if i != 1 {
		t.Fatalf("a = %d", i)
	}
	l, _ := root.Get("b")
	if l.Len() != 3 {
		t.Fatalf("b len = %d", l.Len())
	}
}

func TestReaderComments(t *testing.T) {
	root := parse(t, "{\n// a comment\n\"a\":1 /* inline */}", ReaderOptions{}.WithComments(true))
	v, _ := root.Get("a")
	i, _ := v.IntValue()
	if i != 1 {
		t.Fatalf("a = %d", i)
	}
}

func TestReaderUnquotedKeyAndTrailingComma(t *testing.T) {
	root := parse(t, `{a:1, b:2,}`, ReaderOptions{}.WithUnquotedKey(true).WithTrailingComma(true))
	v, _ := root.Get("b")
	i, _ := v.IntValue()
	if i != 2 {
		t.Fatalf("b = %d", i)
	}
}

func TestReaderSurrogatePair(t *testing.T) {
	root := parse(t, `"😀"`, ReaderOptions{})
	s, _ := root.StringValue()
	if s != "\U0001F600" {
		t.Fatalf("s = %q", s)
	}
}

func TestReaderLoneSurrogateRejected(t *testing.T) {
	rd, err := NewReader(strings.NewReader(`"\ud83d"`), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b := event.NewBuilder()
	var lastErr error
	for {
		ok, err := rd.HasNext()
		if err != nil {
			lastErr = err
			break
		}
		if !ok {
			break
		}
		ev, _ := rd.Next()
		b.Feed(ev)
	}
	if lastErr == nil {
		t.Fatal("expected error for lone surrogate")
	}
}

func TestReaderNumberNarrowing(t *testing.T) {
	root := parse(t, `[1, 3000000000, 1.5, 123456789012345678901234567890]`, ReaderOptions{})
	v0, _ := root.Index(0)
	if k, _ := v0.NumberKind(); k != node.NumberInt {
		t.Fatalf("0 kind = %v", k)
	}
	v1, _ := root.Index(1)
	if k, _ := v1.NumberKind(); k != node.NumberLong {
		t.Fatalf("1 kind = %v", k)
	}
	v2, _ := root.Index(2)
	if k, _ := v2.NumberKind(); k != node.NumberDouble {
		t.Fatalf("2 kind = %v", k)
	}
	v3, _ := root.Index(3)
	if k, _ := v3.NumberKind(); k != node.NumberBigInt {
		t.Fatalf("3 kind = %v", k)
	}
}

func TestReaderPartialResume(t *testing.T) {
	rd := NewPartialReader(ReaderOptions{})
	b := event.NewBuilder()
	rd.SetInput([]byte(`{"a":`))
	for {
		ok, err := rd.HasNext()
		if err != nil {
			t.Fatalf("expected suspension, got err=%v", err)
		}
		if !ok {
			break
		}
		ev, _ := rd.Next()
		if err := b.Feed(ev); err != nil {
			t.Fatal(err)
		}
	}
	if b.Complete() || rd.Done() {
		t.Fatal("expected suspension before the root closes")
	}
	rd.SetInput([]byte(`1}`))
	rd.SetEOF()
	for {
		ok, err := rd.HasNext()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		ev, _ := rd.Next()
		if err := b.Feed(ev); err != nil {
			t.Fatal(err)
		}
	}
	if !b.Complete() {
		t.Fatal("expected complete after resume")
	}
	v, _ := b.Root().Get("a")
	i, _ := v.IntValue()
	if i != 1 {
		t.Fatalf("a = %d", i)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	root := node.NewMap()
	root.Put("b", node.NewInt(2))
	root.Put("a", node.NewInt(1))

	var buf bytes.Buffer
	if err := WriteNode(&buf, root, WriterOptions{}); err != nil {
		t.Fatal(err)
	}
	got := parse(t, buf.String(), ReaderOptions{})
	if got.Keys()[0] != "b" {
		t.Fatalf("expected insertion order preserved, got %v", got.Keys())
	}
}

func TestWriterSorted(t *testing.T) {
	root := node.NewMap()
	root.Put("b", node.NewInt(2))
	root.Put("a", node.NewInt(1))

	var buf bytes.Buffer
	if err := WriteNode(&buf, root, WriterOptions{}.WithSorted(true)); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), `{"a"`) {
		t.Fatalf("expected sorted keys, got %s", buf.String())
	}
}

func TestWriterPretty(t *testing.T) {
	root := node.NewMap()
	root.Put("a", node.NewInt(1))
	var buf bytes.Buffer
	if err := WriteNode(&buf, root, WriterOptions{}.WithPretty(true)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n") {
		t.Fatalf("expected pretty-printed newlines, got %q", buf.String())
	}
}

func TestWriterMaxStringLengthFails(t *testing.T) {
	root := node.NewMap()
	root.Put("a", node.NewString("hello"))

	var buf bytes.Buffer
	err := WriteNode(&buf, root, WriterOptions{}.WithMaxStringLength(3))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var ne *node.Error
	if !errors.As(err, &ne) || ne.Kind != node.ErrResourceLimit {
		t.Fatalf("expected resource_limit error, got %v", err)
	}
}

func TestCBORDiagLiterals(t *testing.T) {
	root := parse(t, `h'48656c6c6f'`, ReaderOptions{}.WithCBORDiag(true))
	if root.Kind() != node.KindBuffer {
		t.Fatalf("kind = %v", root.Kind())
	}
	buf, _ := root.BufferValue()
	if string(buf) != "Hello" {
		t.Fatalf("buf = %q", buf)
	}
}
