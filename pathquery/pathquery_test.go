package pathquery

import (
	"testing"

	"github.com/faceless2/json/node"
)

func buildTree(t *testing.T) *node.Node {
	t.Helper()
	root := node.NewMap()
	root.Put("name", node.NewString("widget"))
	user := node.NewMap()
	user.Put("id", node.NewInt(42))
	root.Put("user", user)
	return root
}

func TestGet(t *testing.T) {
	root := buildTree(t)
	n, err := Get(root, "user.id")
	if err != nil {
		t.Fatal(err)
	}
	if n == nil {
		t.Fatal("expected a match")
	}
	v, err := n.LongValue()
	if err != nil || v != 42 {
		t.Fatalf("got %v, %v", v, err)
	}
}

func TestGetMissing(t *testing.T) {
	root := buildTree(t)
	n, err := Get(root, "user.missing")
	if err != nil {
		t.Fatal(err)
	}
	if n != nil {
		t.Fatal("expected no match")
	}
}

func TestSet(t *testing.T) {
	root := buildTree(t)
	out, err := Set(root, "user.id", 99)
	if err != nil {
		t.Fatal(err)
	}
	n, err := Get(out, "user.id")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := n.LongValue()
	if v != 99 {
		t.Fatalf("got %v", v)
	}
	// original tree untouched
	orig, _ := Get(root, "user.id")
	v2, _ := orig.LongValue()
	if v2 != 42 {
		t.Fatalf("original mutated: got %v", v2)
	}
}

func TestDelete(t *testing.T) {
	root := buildTree(t)
	out, err := Delete(root, "user.id")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := Exists(out, "user.id")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected user.id to be gone")
	}
}

func TestExists(t *testing.T) {
	root := buildTree(t)
	ok, err := Exists(root, "name")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected name to exist")
	}
}
