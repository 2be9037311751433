package event

import (
	"testing"

	"github.com/faceless2/json/node"
)

func TestBuilderAssemblesMap(t *testing.T) {
	b := NewBuilder()
	events := []Event{
		{Type: StartMap},
		{Type: Key, Key: "a"},
		{Type: StartList},
		{Type: Primitive, Value: node.NewInt(1)},
		{Type: Primitive, Value: node.NewNull()},
		{Type: Primitive, Value: node.NewInt(2)},
		{Type: EndList},
		{Type: EndMap},
	}
	for _, ev := range events {
		if err := b.Feed(ev); err != nil {
			t.Fatalf("Feed(%v): %v", ev.Type, err)
		}
	}
	if !b.Complete() {
		t.Fatal("expected complete")
	}
	root := b.Root()
	a, err := root.Get("a")
	if err != nil || a == nil {
		t.Fatalf("a missing: %v %v", a, err)
	}
	if a.Len() != 3 {
		t.Fatalf("len = %d", a.Len())
	}
}

func TestBuilderPrimitiveAtDepthZero(t *testing.T) {
	b := NewBuilder()
	if err := b.Feed(Event{Type: Primitive, Value: node.NewInt(42)}); err != nil {
		t.Fatal(err)
	}
	if !b.Complete() {
		t.Fatal("single primitive should complete immediately")
	}
	v, _ := b.Root().IntValue()
	if v != 42 {
		t.Fatalf("root = %d", v)
	}
}

func TestBuilderTagAppliesToNextValue(t *testing.T) {
	b := NewBuilder()
	if err := b.Feed(Event{Type: Tag, Tag: 7}); err != nil {
		t.Fatal(err)
	}
	if err := b.Feed(Event{Type: Primitive, Value: node.NewString("x")}); err != nil {
		t.Fatal(err)
	}
	tag, ok := b.Root().Tag()
	if !ok || tag != 7 {
		t.Fatalf("tag = %v, %v", tag, ok)
	}
}

func TestEmitRoundTrip(t *testing.T) {
	root := node.NewMap()
	root.Put("a", node.NewInt(1))
	l := node.NewList()
	root.Put("b", l)
	l.AppendChild(node.NewString("x"))

	var events []Event
	rec := writerFunc(func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	e := &Emitter{}
	if err := e.Emit(root, rec); err != nil {
		t.Fatal(err)
	}
	b := NewBuilder()
	for _, ev := range events {
		if err := b.Feed(ev); err != nil {
			t.Fatal(err)
		}
	}
	if !b.Complete() {
		t.Fatal("expected complete")
	}
	v, _ := b.Root().Get("b[0]")
	s, _ := v.StringValue()
	if s != "x" {
		t.Fatalf("b[0] = %q", s)
	}
}

type writerFunc func(Event) error

func (f writerFunc) Write(ev Event) error { return f(ev) }
func (f writerFunc) Close() error         { return nil }
