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

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// StepKind discriminates the three path step shapes in §3.2.
type StepKind int

const (
	StepBareword StepKind = iota
	StepQuoted
	StepIndex
)

// Step is one parsed path component.
type Step struct {
	Kind  StepKind
	Name  string // set for StepBareword / StepQuoted
	Index int    // set for StepIndex
}

func isBarewordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isBarewordRune(c byte) bool {
	return isBarewordStart(c) || (c >= '0' && c <= '9')
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParsePath parses a dotted/bracketed path per §3.2. An empty string parses
// to zero steps (denotes the node itself, as in Find's self case).
func ParsePath(path string) ([]Step, error) {
	var steps []Step
	i := 0
	n := len(path)
	for i < n {
		switch path[i] {
		case '.':
			i++
			if i >= n {
				return nil, newError(ErrBadPath, "trailing '.' in path %q", path)
			}
			continue
		case '[':
			close := strings.IndexByte(path[i:], ']')
			if close < 0 {
				return nil, newError(ErrBadPath, "unterminated '[' in path %q", path)
			}
			close += i
			content := path[i+1 : close]
			if strings.HasPrefix(content, "\"") {
				if !strings.HasSuffix(content, "\"") || len(content) < 2 {
					return nil, newError(ErrBadPath, "unterminated quoted step in path %q", path)
				}
				s, err := unquoteStep(content[1 : len(content)-1])
				if err != nil {
					return nil, wrapError(ErrBadPath, err, "bad quoted step in path %q", path)
				}
				steps = append(steps, Step{Kind: StepQuoted, Name: s})
			} else {
				if !allDigits(content) {
					return nil, newError(ErrBadPath, "bad bracket index %q in path %q", content, path)
				}
				idx, err := strconv.Atoi(content)
				if err != nil || idx < 0 {
					return nil, newError(ErrBadPath, "bad bracket index %q in path %q", content, path)
				}
				steps = append(steps, Step{Kind: StepIndex, Index: idx})
			}
			i = close + 1
		default:
			start := i
			for i < n && path[i] != '.' && path[i] != '[' {
				i++
			}
			word := path[start:i]
			if word == "" || !isBarewordStart(word[0]) && !allDigits(word) {
				return nil, newError(ErrBadPath, "bad step %q in path %q", word, path)
			}
			if !allDigits(word) {
				for j := 0; j < len(word); j++ {
					if !isBarewordRune(word[j]) {
						return nil, newError(ErrBadPath, "bad step %q in path %q", word, path)
					}
				}
			}
			steps = append(steps, Step{Kind: StepBareword, Name: word})
		}
	}
	return steps, nil
}

// unquoteStep decodes the JSON escape set inside a quoted bracket step.
func unquoteStep(s string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(s) {
			return "", newError(ErrBadPath, "dangling escape")
		}
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 >= len(s) {
				return "", newError(ErrBadPath, "short unicode escape")
			}
			r1, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", newError(ErrBadPath, "bad unicode escape")
			}
			i += 4
			r := rune(r1)
			if utf16.IsSurrogate(r) && i+6 < len(s) && s[i+1] == '\\' && s[i+2] == 'u' {
				r2, err := strconv.ParseUint(s[i+3:i+7], 16, 32)
				if err == nil {
					dec := utf16.DecodeRune(r, rune(r2))
					if dec != 0xFFFD {
						b.WriteRune(dec)
						i += 6
						i++
						continue
					}
				}
			}
			b.WriteRune(r)
		default:
			return "", newError(ErrBadPath, "unknown escape \\%c", s[i])
		}
		i++
	}
	return b.String(), nil
}

func isListStep(cur *Node, st Step) bool {
	if st.Kind == StepIndex {
		return true
	}
	if st.Kind == StepBareword && allDigits(st.Name) && cur != nil && cur.kind == KindList {
		return true
	}
	return false
}

func stepIndexValue(st Step) int {
	if st.Kind == StepIndex {
		return st.Index
	}
	idx, _ := strconv.Atoi(st.Name)
	return idx
}

func parseIndex(key string) (int, error) {
	if !allDigits(key) {
		return 0, newError(ErrBadPath, "not a valid index: %q", key)
	}
	idx, err := strconv.Atoi(key)
	if err != nil {
		return 0, newError(ErrBadPath, "not a valid index: %q", key)
	}
	return idx, nil
}

func formatIndexStep(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

func formatKeyStep(key string) string {
	if key != "" && isBarewordStart(key[0]) {
		ok := true
		for j := 1; j < len(key); j++ {
			if !isBarewordRune(key[j]) {
				ok = false
				break
			}
		}
		if ok {
			return key
		}
	}
	return "[\"" + strings.ReplaceAll(strings.ReplaceAll(key, "\\", "\\\\"), "\"", "\\\"") + "\"]"
}

func joinStep(prefix, step string) string {
	if prefix == "" {
		return step
	}
	if strings.HasPrefix(step, "[") {
		return prefix + step
	}
	return prefix + "." + step
}

// Get returns the node reachable by path, or (nil, nil) on a null-miss (§4.1).
func (n *Node) Get(path string) (*Node, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	cur := n
	for _, st := range steps {
		if cur == nil {
			return nil, nil
		}
		if isListStep(cur, st) {
			if cur.kind != KindList {
				return nil, nil
			}
			child, ok := cur.Index(stepIndexValue(st))
			if !ok {
				return nil, nil
			}
			cur = child
			continue
		}
		if cur.kind != KindMap {
			return nil, nil
		}
		child, ok := cur.Child(st.Name)
		if !ok {
			return nil, nil
		}
		cur = child
	}
	return cur, nil
}

// Put sets the value at path, auto-vivifying intermediate containers per
// §3.2, and returns the node previously there (or nil).
func (n *Node) Put(path string, v *Node) (*Node, error) {
	steps, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, newError(ErrBadPath, "path %q has no steps", path)
	}
	if v == nil {
		return nil, newError(ErrBadPath, "value must not be nil")
	}
	cur := n
	for i := 0; i < len(steps)-1; i++ {
		cur, err = cur.vivifyStep(steps[i])
		if err != nil {
			return nil, err
		}
	}
	return cur.putStep(steps[len(steps)-1], v)
}

func (cur *Node) vivifyStep(st Step) (*Node, error) {
	if isListStep(cur, st) {
		if cur.kind != KindList {
			cur.convertToList()
		}
		child := cur.ensureIndex(stepIndexValue(st))
		return child, nil
	}
	if cur.kind == KindList {
		cur.convertListToMapStringified()
	} else if cur.kind != KindMap {
		cur.convertToMap()
	}
	child, ok := cur.Child(st.Name)
	if !ok {
		child = NewMap()
		if _, err := cur.SetChild(st.Name, child); err != nil {
			return nil, err
		}
	}
	return child, nil
}

func (cur *Node) putStep(st Step, v *Node) (*Node, error) {
	if isListStep(cur, st) {
		if cur.kind != KindList {
			cur.convertToList()
		}
		return cur.setAt(stepIndexValue(st), v)
	}
	if cur.kind == KindList {
		cur.convertListToMapStringified()
	} else if cur.kind != KindMap {
		cur.convertToMap()
	}
	return cur.SetChild(st.Name, v)
}

// ensureIndex grows the list with null placeholders so index idx exists,
// and returns the (possibly freshly-created) child there.
func (n *Node) ensureIndex(idx int) *Node {
	for len(n.list) <= idx {
		null := NewNull()
		null.parent = n
		null.parentKey = len(n.list)
		n.list = append(n.list, null)
	}
	return n.list[idx]
}

// setAt replaces the element at idx (padding with nulls as needed) and
// returns the node that was previously there.
func (n *Node) setAt(idx int, v *Node) (*Node, error) {
	if n.kind != KindList {
		return nil, newError(ErrBadCoercion, "setAt: not a list")
	}
	n.ensureIndex(idx)
	if err := checkAttach(n, v); err != nil {
		return nil, err
	}
	prev := n.list[idx]
	prev.parent = nil
	prev.parentKey = nil
	v.parent = n
	v.parentKey = idx
	n.list[idx] = v
	n.fireEvent(Event{Type: EventReplace, Key: idx, Child: v, Prev: prev})
	return prev, nil
}

func (n *Node) resetScalarAndChildren() {
	if n.kind == KindMap && n.m != nil {
		n.m.each(func(_ string, v *Node) {
			v.parent = nil
			v.parentKey = nil
		})
	}
	if n.kind == KindList {
		for _, c := range n.list {
			c.parent = nil
			c.parentKey = nil
		}
	}
	n.b, n.i, n.i64, n.big, n.f, n.bigdec, n.s, n.buf, n.list, n.m = false, 0, 0, nil, 0, nil, "", nil, nil, nil
}

// convertToMap replaces n's contents in place with an empty map, discarding
// any previous scalar value or children ("bareword steps on a non-container
// replace it with a map", §3.2).
func (n *Node) convertToMap() {
	n.resetScalarAndChildren()
	n.kind = KindMap
	n.m = newOrderedMap()
	n.fireEvent(Event{Type: EventConvert})
}

// convertToList replaces n's contents in place with an empty list ("bracketed
// integer steps on a non-list replace it with a list", §3.2).
func (n *Node) convertToList() {
	n.resetScalarAndChildren()
	n.kind = KindList
	n.list = nil
	n.fireEvent(Event{Type: EventConvert})
}

// convertListToMapStringified converts a list node into a map whose keys are
// the stringified original indices, preserving every element ("putting with
// a string key onto a list converts the list into a map", §3.2).
func (n *Node) convertListToMapStringified() {
	old := n.list
	n.list = nil
	n.kind = KindMap
	n.m = newOrderedMap()
	for i, child := range old {
		key := strconv.Itoa(i)
		child.parentKey = key
		n.m.set(key, child)
	}
	n.fireEvent(Event{Type: EventConvert})
}
