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

// Sorter, if set on an Emitter, controls map key order (the "sorted" writer
// option, §4.3); nil preserves insertion order (§8 P6).
type Sorter func(keys []string)

// Emitter walks a value tree and pushes the equivalent pivot events to a
// Writer, the shared serialization half of the pivot (§4.2). All three
// codec writers drive their byte-level output from this same walk so that
// container/tag/order handling is implemented exactly once.
type Emitter struct {
	Sort Sorter
}

// Emit walks n and writes its event-stream equivalent to w.
func (e *Emitter) Emit(n *node.Node, w Writer) error {
	if tag, ok := n.Tag(); ok {
		if err := w.Write(Event{Type: Tag, Tag: tag}); err != nil {
			return err
		}
	}
	switch n.Kind() {
	case node.KindMap:
		keys := n.Keys()
		if e.Sort != nil {
			e.Sort(keys)
		}
		if err := w.Write(Event{Type: StartMap, Count: len(keys)}); err != nil {
			return err
		}
		for _, k := range keys {
			child, _ := n.Child(k)
			if err := w.Write(Event{Type: Key, Key: k}); err != nil {
				return err
			}
			if err := e.Emit(child, w); err != nil {
				return err
			}
		}
		return w.Write(Event{Type: EndMap})
	case node.KindList:
		if err := w.Write(Event{Type: StartList, Count: n.Len()}); err != nil {
			return err
		}
		for i := 0; i < n.Len(); i++ {
			child, _ := n.Index(i)
			if err := e.Emit(child, w); err != nil {
				return err
			}
		}
		return w.Write(Event{Type: EndList})
	case node.KindUndefined:
		if code, ok := n.SimpleCode(); ok {
			return w.Write(Event{Type: Simple, Code: code})
		}
		return w.Write(Event{Type: Primitive, Value: n.Duplicate()})
	default:
		return w.Write(Event{Type: Primitive, Value: n.Duplicate()})
	}
}
