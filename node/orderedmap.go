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

package node

// orderedMap is an insertion-ordered string-keyed map, used internally by
// Node for the "map" variant (§3.1 I4: keys are unique, order preserved).
type orderedMap struct {
	keys   []string
	values map[string]*Node
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]*Node)}
}

func (m *orderedMap) get(key string) (*Node, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap) set(key string, v *Node) (prev *Node) {
	if old, ok := m.values[key]; ok {
		prev = old
	} else {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
	return prev
}

func (m *orderedMap) delete(key string) (prev *Node) {
	old, ok := m.values[key]
	if !ok {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return old
}

func (m *orderedMap) len() int { return len(m.keys) }

// each calls fn for every key in insertion order. fn must not mutate the map.
func (m *orderedMap) each(fn func(key string, v *Node)) {
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

func (m *orderedMap) clone() *orderedMap {
	n := newOrderedMap()
	n.keys = append([]string(nil), m.keys...)
	for k, v := range m.values {
		n.values[k] = v
	}
	return n
}
