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

// Package node implements the polymorphic value tree shared by the JSON,
// CBOR and MsgPack codecs: a tagged union over null/boolean/number/string/
// buffer/list/map/undefined with path addressing, coercions and a
// listener-based event model.
package node

import (
	"math"
	"math/big"
)

// Kind is the top-level variant discriminator (§3.1, invariant I1).
type Kind int

const (
	KindNull Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindBuffer
	KindList
	KindMap
	KindUndefined
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBuffer:
		return "buffer"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// NumberKind further discriminates KindNumber nodes (§3.1).
type NumberKind int

const (
	NumberInt NumberKind = iota
	NumberLong
	NumberBigInt
	NumberDouble
	NumberBigDecimal
)

// Node is a single value in the tree. The zero value is not usable; use one
// of the New* constructors.
type Node struct {
	kind    Kind
	numKind NumberKind

	b      bool
	i      int32
	i64    int64
	big    *big.Int
	f      float64
	bigdec *BigDecimal
	s      string
	buf    []byte
	list   []*Node
	m      *orderedMap

	tag    *uint64
	simple *uint64

	parent    *Node
	parentKey interface{} // string for map parent, int for list parent

	listeners []Listener
}

// NewNull returns a new root null node.
func NewNull() *Node { return &Node{kind: KindNull} }

// NewUndefined returns a new root undefined node (CBOR/MsgPack only, §3.1).
func NewUndefined() *Node { return &Node{kind: KindUndefined} }

// NewBool returns a new root boolean node.
func NewBool(v bool) *Node { return &Node{kind: KindBoolean, b: v} }

// NewInt returns a new root number node holding a value that fits signed 32.
func NewInt(v int32) *Node { return &Node{kind: KindNumber, numKind: NumberInt, i: v, i64: int64(v)} }

// NewLong returns a new root number node holding a value that fits signed 64.
func NewLong(v int64) *Node { return &Node{kind: KindNumber, numKind: NumberLong, i64: v} }

// NewBigInt returns a new root number node holding an arbitrary-precision integer.
func NewBigInt(v *big.Int) *Node {
	return &Node{kind: KindNumber, numKind: NumberBigInt, big: new(big.Int).Set(v)}
}

// NewDouble returns a new root number node holding a double-precision float.
func NewDouble(v float64) *Node { return &Node{kind: KindNumber, numKind: NumberDouble, f: v} }

// NewBigDecimal returns a new root number node holding an arbitrary-precision decimal.
func NewBigDecimal(v *BigDecimal) *Node { return &Node{kind: KindNumber, numKind: NumberBigDecimal, bigdec: v} }

// NewString returns a new root string node.
func NewString(v string) *Node { return &Node{kind: KindString, s: v} }

// NewBuffer returns a new root buffer node. The byte slice is not copied.
func NewBuffer(v []byte) *Node { return &Node{kind: KindBuffer, buf: v} }

// NewList returns a new empty root list node.
func NewList() *Node { return &Node{kind: KindList} }

// NewMap returns a new empty root map node.
func NewMap() *Node { return &Node{kind: KindMap, m: newOrderedMap()} }

// NewIntFromValue chooses the narrowest variant (int/long/big-integer) that
// preserves v, as codec readers are required to do on read (§3.1).
func NewIntFromValue(v *big.Int) *Node {
	if v.IsInt64() {
		i64 := v.Int64()
		if i64 >= math.MinInt32 && i64 <= math.MaxInt32 {
			return NewInt(int32(i64))
		}
		return NewLong(i64)
	}
	return NewBigInt(v)
}

// Type returns the stable lower-case variant tag (§4.1).
func (n *Node) Type() string { return n.kind.String() }

// Kind returns the variant discriminator.
func (n *Node) Kind() Kind { return n.kind }

// NumberKind returns the numeric sub-variant; ok is false if n is not a number.
func (n *Node) NumberKind() (k NumberKind, ok bool) {
	if n.kind != KindNumber {
		return 0, false
	}
	return n.numKind, true
}

// Tag returns the optional 63-bit semantic tag attached by CBOR/MsgPack (§3.1).
func (n *Node) Tag() (uint64, bool) {
	if n.tag == nil {
		return 0, false
	}
	return *n.tag, true
}

// SetTag attaches a semantic tag to the node. JSON writers drop it on output.
func (n *Node) SetTag(tag uint64) {
	t := tag
	n.tag = &t
}

// ClearTag removes any tag previously set.
func (n *Node) ClearTag() { n.tag = nil }

// Parent returns the back-reference to the containing node, or nil if n is a root.
func (n *Node) Parent() *Node { return n.parent }

// IsRoot reports whether n currently has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Len returns the number of children for list/map nodes, 0 otherwise (I5).
func (n *Node) Len() int {
	switch n.kind {
	case KindList:
		return len(n.list)
	case KindMap:
		return n.m.len()
	default:
		return 0
	}
}

// Index returns the i'th child of a list node. ok is false if n is not a
// list or i is out of [0, Len()) (I5).
func (n *Node) Index(i int) (child *Node, ok bool) {
	if n.kind != KindList || i < 0 || i >= len(n.list) {
		return nil, false
	}
	return n.list[i], true
}

// Keys returns the map's keys in insertion order, or nil if n is not a map.
func (n *Node) Keys() []string {
	if n.kind != KindMap {
		return nil
	}
	out := make([]string, len(n.m.keys))
	copy(out, n.m.keys)
	return out
}

// Child returns the named child of a map node.
func (n *Node) Child(key string) (child *Node, ok bool) {
	if n.kind != KindMap {
		return nil, false
	}
	return n.m.get(key)
}

func isAncestor(candidate, of *Node) bool {
	for p := of.parent; p != nil; p = p.parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// AppendChild adds v as the last element of a list node. It fails with
// cycle_or_shared if v already has a parent or is an ancestor of n (I2/I3).
func (n *Node) AppendChild(v *Node) error {
	if n.kind != KindList {
		return newError(ErrBadCoercion, "AppendChild: not a list")
	}
	if err := checkAttach(n, v); err != nil {
		return err
	}
	idx := len(n.list)
	v.parent = n
	v.parentKey = idx
	n.list = append(n.list, v)
	n.fireEvent(Event{Type: EventAdd, Key: idx, Child: v})
	return nil
}

// SetChild sets key to v on a map node, returning the previous child (or nil).
// Fails with cycle_or_shared if v already has a parent or is an ancestor of n.
func (n *Node) SetChild(key string, v *Node) (prev *Node, err error) {
	if n.kind != KindMap {
		return nil, newError(ErrBadCoercion, "SetChild: not a map")
	}
	if err := checkAttach(n, v); err != nil {
		return nil, err
	}
	prev, _ = n.m.get(key)
	if prev != nil {
		prev.parent = nil
		prev.parentKey = nil
	}
	v.parent = n
	v.parentKey = key
	n.m.set(key, v)
	if prev != nil {
		n.fireEvent(Event{Type: EventReplace, Key: key, Child: v, Prev: prev})
	} else {
		n.fireEvent(Event{Type: EventAdd, Key: key, Child: v})
	}
	return prev, nil
}

func checkAttach(n, v *Node) error {
	if v.parent != nil {
		return newError(ErrCycleOrShare, "value already has a parent")
	}
	if v == n || isAncestor(v, n) {
		return newError(ErrCycleOrShare, "value is an ancestor of the target")
	}
	return nil
}

// RemoveChild removes and detaches the named child of a map node.
func (n *Node) RemoveChild(key string) (prev *Node, ok bool) {
	if n.kind != KindMap {
		return nil, false
	}
	prev = n.m.delete(key)
	if prev == nil {
		return nil, false
	}
	prev.parent = nil
	prev.parentKey = nil
	n.fireEvent(Event{Type: EventRemove, Key: key, Prev: prev})
	return prev, true
}

// RemoveAt removes and detaches the i'th child of a list node, shifting
// subsequent elements down (their reported index changes accordingly).
func (n *Node) RemoveAt(i int) (prev *Node, ok bool) {
	if n.kind != KindList || i < 0 || i >= len(n.list) {
		return nil, false
	}
	prev = n.list[i]
	n.list = append(n.list[:i], n.list[i+1:]...)
	prev.parent = nil
	prev.parentKey = nil
	for j := i; j < len(n.list); j++ {
		n.list[j].parentKey = j
	}
	n.fireEvent(Event{Type: EventRemove, Key: i, Prev: prev})
	return prev, true
}

// Remove detaches a child identified by a map key or, if it parses as a
// non-negative integer and n is a list, a list index (§4.1).
func (n *Node) Remove(key string) (prev *Node, ok bool) {
	switch n.kind {
	case KindMap:
		return n.RemoveChild(key)
	case KindList:
		idx, err := parseIndex(key)
		if err != nil {
			return nil, false
		}
		return n.RemoveAt(idx)
	default:
		return nil, false
	}
}

// Duplicate returns a deep clone of n with no parent and no listeners (§4.1).
func (n *Node) Duplicate() *Node {
	c := &Node{kind: n.kind, numKind: n.numKind, b: n.b, i: n.i, i64: n.i64, f: n.f, s: n.s}
	if n.big != nil {
		c.big = new(big.Int).Set(n.big)
	}
	if n.bigdec != nil {
		c.bigdec = &BigDecimal{Unscaled: new(big.Int).Set(n.bigdec.Unscaled), Scale: n.bigdec.Scale}
	}
	if n.buf != nil {
		c.buf = append([]byte(nil), n.buf...)
	}
	if n.tag != nil {
		t := *n.tag
		c.tag = &t
	}
	if n.simple != nil {
		s := *n.simple
		c.simple = &s
	}
	switch n.kind {
	case KindList:
		c.list = make([]*Node, len(n.list))
		for i, ch := range n.list {
			cc := ch.Duplicate()
			cc.parent = c
			cc.parentKey = i
			c.list[i] = cc
		}
	case KindMap:
		c.m = newOrderedMap()
		n.m.each(func(k string, v *Node) {
			cc := v.Duplicate()
			cc.parent = c
			cc.parentKey = k
			c.m.set(k, cc)
		})
	}
	return c
}

// Find returns the path from n to other, or ("", false) if other is not a
// descendant of n. The empty string denotes other == n (§4.1).
func (n *Node) Find(other *Node) (string, bool) {
	if other == n {
		return "", true
	}
	var steps []string
	cur := other
	for cur != nil && cur.parent != nil {
		switch k := cur.parentKey.(type) {
		case int:
			steps = append(steps, formatIndexStep(k))
		case string:
			steps = append(steps, formatKeyStep(k))
		}
		if cur.parent == n {
			path := ""
			for i := len(steps) - 1; i >= 0; i-- {
				path = joinStep(path, steps[i])
			}
			return path, true
		}
		cur = cur.parent
	}
	return "", false
}
