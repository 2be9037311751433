package node

import (
	"math"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustPut(t *testing.T, n *Node, path string, v *Node) *Node {
	t.Helper()
	prev, err := n.Put(path, v)
	if err != nil {
		t.Fatalf("Put(%q) failed: %v", path, err)
	}
	return prev
}

func mustGet(t *testing.T, n *Node, path string) *Node {
	t.Helper()
	v, err := n.Get(path)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", path, err)
	}
	return v
}

// S2: put("a.b.c.d", 1) on {} yields {"a":{"b":{"c":{"d":1}}}}.
func TestPutAutoVivifyMaps(t *testing.T) {
	root := NewMap()
	mustPut(t, root, "a.b.c.d", NewInt(1))
	v := mustGet(t, root, "a.b.c.d")
	if v == nil {
		t.Fatal("missing a.b.c.d")
	}
	i, err := v.IntValue()
	if err != nil || i != 1 {
		t.Fatalf("a.b.c.d = %v, %v", i, err)
	}
	if mustGet(t, root, "a").Type() != "map" || mustGet(t, root, "a.b").Type() != "map" {
		t.Fatal("intermediate containers should be maps")
	}
}

// S3: put("e[0]", false) then put("e[\"a\"]", true) converts e from list to
// map and yields {"0":false,"a":true}.
func TestPutListToMapConversion(t *testing.T) {
	root := NewMap()
	mustPut(t, root, "e[0]", NewBool(false))
	e := mustGet(t, root, "e")
	if e.Type() != "list" || e.Len() != 1 {
		t.Fatalf("expected e to be a 1-elem list, got %s len %d", e.Type(), e.Len())
	}
	mustPut(t, root, "e[\"a\"]", NewBool(true))
	e = mustGet(t, root, "e")
	if e.Type() != "map" {
		t.Fatalf("expected e to become a map, got %s", e.Type())
	}
	if got := e.Keys(); !cmp.Equal(got, []string{"0", "a"}) {
		t.Fatalf("keys = %v", got)
	}
	zero, _ := e.Child("0")
	b, _ := zero.BooleanValue()
	if b != false {
		t.Fatalf("e[\"0\"] = %v", b)
	}
	a, _ := e.Child("a")
	b, _ = a.BooleanValue()
	if b != true {
		t.Fatalf("e.a = %v", b)
	}
}

// S1: parse {"a":{"b":[0,null,2]}}: get("a.b[0]").intValue() == 0,
// get("a.b").type() == "list", size == 3.
func TestGetListIndexing(t *testing.T) {
	root := NewMap()
	b := NewList()
	mustPut(t, root, "a", NewMap())
	mustPut(t, root, "a.b", b)
	if err := b.AppendChild(NewInt(0)); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendChild(NewNull()); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendChild(NewInt(2)); err != nil {
		t.Fatal(err)
	}
	v := mustGet(t, root, "a.b[0]")
	i, _ := v.IntValue()
	if i != 0 {
		t.Fatalf("a.b[0] = %d", i)
	}
	if mustGet(t, root, "a.b").Type() != "list" {
		t.Fatal("a.b should be a list")
	}
	if mustGet(t, root, "a.b").Len() != 3 {
		t.Fatalf("size = %d", mustGet(t, root, "a.b").Len())
	}
}

func TestGetMiss(t *testing.T) {
	root := NewMap()
	v, err := root.Get("no.such.path")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Fatalf("expected miss, got %v", v)
	}
}

func TestBadPath(t *testing.T) {
	root := NewMap()
	if _, err := root.Get("a["); err == nil {
		t.Fatal("expected bad_path error")
	}
	if _, err := root.Get("1bad"); err == nil {
		t.Fatal("expected bad_path error")
	}
}

// I2/I3: cycle and shared-parent detection.
func TestCycleOrShared(t *testing.T) {
	root := NewMap()
	child := NewMap()
	mustPut(t, root, "a", child)

	other := NewMap()
	if _, err := other.Put("x", child); err == nil {
		t.Fatal("expected cycle_or_shared for already-parented node")
	}

	if _, err := child.Put("loop", root); err == nil {
		t.Fatal("expected cycle_or_shared for inserting an ancestor")
	}
}

func TestRemove(t *testing.T) {
	root := NewMap()
	mustPut(t, root, "a", NewInt(1))
	prev, ok := root.Remove("a")
	if !ok || prev == nil {
		t.Fatal("expected removal")
	}
	if prev.Parent() != nil {
		t.Fatal("removed node should have no parent")
	}
	if v, _ := root.Get("a"); v != nil {
		t.Fatal("a should be gone")
	}
}

func TestFind(t *testing.T) {
	root := NewMap()
	list := NewList()
	mustPut(t, root, "a.b", list)
	leaf := NewInt(7)
	if err := list.AppendChild(leaf); err != nil {
		t.Fatal(err)
	}
	path, ok := root.Find(leaf)
	if !ok || path != "a.b[0]" {
		t.Fatalf("Find = %q, %v", path, ok)
	}
	path, ok = root.Find(root)
	if !ok || path != "" {
		t.Fatalf("Find(self) = %q, %v", path, ok)
	}
	unrelated := NewMap()
	if _, ok := root.Find(unrelated); ok {
		t.Fatal("expected absent for unrelated node")
	}
}

func TestDuplicate(t *testing.T) {
	root := NewMap()
	mustPut(t, root, "a", NewInt(5))
	list := NewList()
	mustPut(t, root, "b", list)
	if err := list.AppendChild(NewString("x")); err != nil {
		t.Fatal(err)
	}
	clone := root.Duplicate()
	if clone == root {
		t.Fatal("clone should be distinct")
	}
	if clone.Parent() != nil {
		t.Fatal("clone should be rootless")
	}
	cv := mustGet(t, clone, "b[0]")
	sv, _ := cv.StringValue()
	if sv != "x" {
		t.Fatalf("clone b[0] = %q", sv)
	}
	// mutating the clone must not affect the original
	mustPut(t, clone, "a", NewInt(99))
	orig := mustGet(t, root, "a")
	oi, _ := orig.IntValue()
	if oi != 5 {
		t.Fatalf("original mutated: a = %d", oi)
	}
}

func TestIntegerWideningSaturation(t *testing.T) {
	big64 := NewLong(math.MaxInt64)
	i, err := big64.IntValue()
	if err != nil || i != math.MaxInt32 {
		t.Fatalf("IntValue() = %d, %v", i, err)
	}
	neg := NewLong(math.MinInt64)
	i, err = neg.IntValue()
	if err != nil || i != math.MinInt32 {
		t.Fatalf("IntValue() = %d, %v", i, err)
	}

	huge := new(big.Int)
	huge.SetString("99999999999999999999999999999", 10)
	hn := NewBigInt(huge)
	l, err := hn.LongValue()
	if err != nil || l != math.MaxInt64 {
		t.Fatalf("LongValue() = %d, %v", l, err)
	}
}

func TestStringCoercion(t *testing.T) {
	n := NewString("42")
	i, err := n.IntValue()
	if err != nil || i != 42 {
		t.Fatalf("IntValue() = %d, %v", i, err)
	}
	bad := NewString("not a number")
	if _, err := bad.IntValue(); err == nil {
		t.Fatal("expected bad_coercion")
	}
	if _, err := bad.DoubleValue(); err == nil {
		t.Fatal("expected bad_coercion for non-numeric string in doubleValue")
	}
	ok := NewString("3.5")
	f, err := ok.DoubleValue()
	if err != nil || f != 3.5 {
		t.Fatalf("DoubleValue() = %v, %v", f, err)
	}
}

func TestBufferStringValueBase64(t *testing.T) {
	n := NewBuffer([]byte{0, 1, 2})
	s, err := n.StringValue()
	if err != nil {
		t.Fatal(err)
	}
	if s != "AAEC" {
		t.Fatalf("base64 = %q", s)
	}
}

func TestCoercionFailsOnContainers(t *testing.T) {
	m := NewMap()
	if _, err := m.IntValue(); err == nil {
		t.Fatal("expected bad_coercion on map")
	}
	l := NewList()
	if _, err := l.BooleanValue(); err == nil {
		t.Fatal("expected bad_coercion on list")
	}
	u := NewUndefined()
	if _, err := u.DoubleValue(); err == nil {
		t.Fatal("expected bad_coercion on undefined")
	}
}

func TestListenerDeliveryParentFirst(t *testing.T) {
	var order []string
	root := NewMap()
	root.AddListener(ListenerFunc(func(source *Node, ev Event) {
		order = append(order, "root:"+ev.Type.String())
	}))
	child := NewMap()
	mustPut(t, root, "a", child)
	order = nil
	child.AddListener(ListenerFunc(func(source *Node, ev Event) {
		order = append(order, "child:"+ev.Type.String())
	}))
	mustPut(t, child, "b", NewInt(1))
	if len(order) != 2 || order[0] != "child:add" || order[1] != "root:add" {
		t.Fatalf("delivery order = %v", order)
	}
}

func TestZeroLengthBuffer(t *testing.T) {
	n := NewBuffer(nil)
	s, err := n.StringValue()
	if err != nil || s != "" {
		t.Fatalf("empty buffer base64 = %q, %v", s, err)
	}
}

func TestBigDecimalRoundTrip(t *testing.T) {
	d, ok := ParseBigDecimal("123.456")
	if !ok {
		t.Fatal("parse failed")
	}
	if d.String() != "123.456" {
		t.Fatalf("String() = %q", d.String())
	}
	n := NewBigDecimal(d)
	s, _ := n.StringValue()
	if s != "123.456" {
		t.Fatalf("StringValue() = %q", s)
	}
}
