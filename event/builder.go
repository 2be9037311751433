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

package event

import "github.com/faceless2/json/node"

// Builder consumes a pivot event stream into a node.Node tree (§4.2). When
// the outermost container closes, or on the first primitive event received
// at depth 0, the builder is Complete and Root returns the assembled value.
type Builder struct {
	stack      []*node.Node
	pendingKey []string // parallel to stack: pending map key for the top-of-stack container
	pendingTag *uint64
	root       *node.Node
	complete   bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Complete reports whether the root value has been fully assembled.
func (b *Builder) Complete() bool { return b.complete }

// Root returns the assembled value. Valid only once Complete returns true.
func (b *Builder) Root() *node.Node { return b.root }

func (b *Builder) top() *node.Node {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1]
}

// applyTag attaches any pending tag (from a preceding TAG event) to v.
func (b *Builder) applyTag(v *node.Node) {
	if b.pendingTag != nil {
		v.SetTag(*b.pendingTag)
		b.pendingTag = nil
	}
}

// attach places v as a child of the current container (using the pending
// key if the container is a map), or makes it the root if the stack is
// empty.
func (b *Builder) attach(v *node.Node) error {
	parent := b.top()
	if parent == nil {
		b.applyTag(v)
		b.root = v
		b.complete = true
		return nil
	}
	b.applyTag(v)
	if parent.Kind() == node.KindMap {
		key := b.pendingKey[len(b.pendingKey)-1]
		b.pendingKey[len(b.pendingKey)-1] = ""
		_, err := parent.SetChild(key, v)
		return err
	}
	return parent.AppendChild(v)
}

// Feed processes one event. It returns an error if the stream is malformed
// (e.g. a KEY event outside a map, or events after completion).
func (b *Builder) Feed(ev Event) error {
	if b.complete && ev.Type != Tag {
		return node.NewStreamError("builder already complete, unexpected %s", ev.Type)
	}
	switch ev.Type {
	case StartMap:
		m := node.NewMap()
		b.applyTag(m)
		b.stack = append(b.stack, m)
		b.pendingKey = append(b.pendingKey, "")
		if len(b.stack) == 1 {
			b.root = m
		} else {
			parent := b.stack[len(b.stack)-2]
			if parent.Kind() == node.KindMap {
				key := b.pendingKey[len(b.pendingKey)-2]
				b.pendingKey[len(b.pendingKey)-2] = ""
				if _, err := parent.SetChild(key, m); err != nil {
					return err
				}
			} else if err := parent.AppendChild(m); err != nil {
				return err
			}
		}
		return nil
	case StartList:
		l := node.NewList()
		b.applyTag(l)
		b.stack = append(b.stack, l)
		b.pendingKey = append(b.pendingKey, "")
		if len(b.stack) == 1 {
			b.root = l
		} else {
			parent := b.stack[len(b.stack)-2]
			if parent.Kind() == node.KindMap {
				key := b.pendingKey[len(b.pendingKey)-2]
				b.pendingKey[len(b.pendingKey)-2] = ""
				if _, err := parent.SetChild(key, l); err != nil {
					return err
				}
			} else if err := parent.AppendChild(l); err != nil {
				return err
			}
		}
		return nil
	case EndMap, EndList:
		if len(b.stack) == 0 {
			return node.NewStreamError("unmatched %s", ev.Type)
		}
		b.stack = b.stack[:len(b.stack)-1]
		b.pendingKey = b.pendingKey[:len(b.pendingKey)-1]
		if len(b.stack) == 0 {
			b.complete = true
		}
		return nil
	case Key:
		if len(b.stack) == 0 || b.top().Kind() != node.KindMap {
			return node.NewStreamError("KEY event outside a map")
		}
		b.pendingKey[len(b.pendingKey)-1] = ev.Key
		return nil
	case Primitive:
		return b.attach(ev.Value)
	case Tag:
		t := ev.Tag
		b.pendingTag = &t
		return nil
	case Simple:
		u := node.NewUndefined()
		u.SetSimpleCode(ev.Code)
		return b.attach(u)
	}
	return node.NewStreamError("unknown event type %v", ev.Type)
}

// Reset clears the builder so it can assemble a new independent value,
// supporting a reader that yields multiple top-level values in sequence.
func (b *Builder) Reset() {
	b.stack = nil
	b.pendingKey = nil
	b.pendingTag = nil
	b.root = nil
	b.complete = false
}
