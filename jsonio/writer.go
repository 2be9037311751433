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

package jsonio

import (
	"bufio"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

// Writer is a push serializer implementing event.Writer, producing JSON text
// (§4.3). It tracks container/key state itself rather than relying on the
// caller to interleave events correctly with separators.
type Writer struct {
	opts WriterOptions
	out  *bufio.Writer

	stack      []frame
	needsComma bool
	depth      int
	err        error
}

type frame struct {
	isMap bool
	n     int // children written so far
}

// NewWriter returns a Writer that serializes to w.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	return &Writer{opts: opts, out: bufio.NewWriter(w)}
}

func (w *Writer) Write(ev event.Event) error {
	if w.err != nil {
		return w.err
	}
	if err := w.write(ev); err != nil {
		w.err = err
	}
	return w.err
}

func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}

func (w *Writer) write(ev event.Event) error {
	switch ev.Type {
	case event.Tag:
		return nil // JSON drops tags (§4.1)
	case event.StartMap:
		if err := w.beforeValue(); err != nil {
			return err
		}
		w.out.WriteByte('{')
		w.depth++
		if w.opts.MaxRecursion > 0 && w.depth > w.opts.MaxRecursion {
			return node.NewError(node.ErrResourceLimit, "max recursion exceeded")
		}
		w.stack = append(w.stack, frame{isMap: true})
		return nil
	case event.EndMap:
		w.depth--
		top := w.pop()
		if top.n > 0 && w.opts.Pretty {
			w.out.WriteByte('\n')
			w.writeIndent(w.depth)
		}
		w.out.WriteByte('}')
		w.afterValue()
		return nil
	case event.StartList:
		if err := w.beforeValue(); err != nil {
			return err
		}
		w.out.WriteByte('[')
		w.depth++
		if w.opts.MaxRecursion > 0 && w.depth > w.opts.MaxRecursion {
			return node.NewError(node.ErrResourceLimit, "max recursion exceeded")
		}
		w.stack = append(w.stack, frame{isMap: false})
		return nil
	case event.EndList:
		w.depth--
		top := w.pop()
		if top.n > 0 && w.opts.Pretty {
			w.out.WriteByte('\n')
			w.writeIndent(w.depth)
		}
		w.out.WriteByte(']')
		w.afterValue()
		return nil
	case event.Key:
		return w.writeKey(ev.Key)
	case event.Primitive:
		if err := w.beforeValue(); err != nil {
			return err
		}
		if err := w.writeScalar(ev.Value); err != nil {
			return err
		}
		w.afterValue()
		return nil
	case event.Simple:
		if err := w.beforeValue(); err != nil {
			return err
		}
		if w.opts.CBORDiag {
			w.out.WriteString("simple(")
			w.out.WriteString(strconv.FormatUint(ev.Code, 10))
			w.out.WriteByte(')')
		} else {
			w.out.WriteString("null")
		}
		w.afterValue()
		return nil
	}
	return nil
}

func (w *Writer) pop() frame {
	top := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return top
}

// writeKey writes a map key (with its separator and indent) as soon as it
// arrives; it does not buffer keys. Since the pivot stream interleaves KEY
// and value events there is no lookahead buffer here: when Sorted is set,
// sorting instead happens at the Emitter (event/emit.go),
// which is handed a Sorter and reorders node.Keys() before walking. This
// writer just renders keys in the order it receives them.
func (w *Writer) writeKey(key string) error {
	top := &w.stack[len(w.stack)-1]
	if top.n > 0 {
		w.out.WriteByte(',')
	}
	if w.opts.Pretty {
		w.out.WriteByte('\n')
		w.writeIndent(w.depth)
	}
	if err := writeJSONString(w.out, key, w.opts.MaxStringLength); err != nil {
		return err
	}
	w.out.WriteByte(':')
	if w.opts.Pretty {
		w.out.WriteByte(' ')
	}
	top.n++
	return nil
}

func (w *Writer) beforeValue() error {
	if len(w.stack) == 0 {
		return nil
	}
	top := &w.stack[len(w.stack)-1]
	if top.isMap {
		return nil // comma/indent already written by writeKey
	}
	if top.n > 0 {
		w.out.WriteByte(',')
	}
	if w.opts.Pretty {
		w.out.WriteByte('\n')
		w.writeIndent(w.depth)
	}
	top.n++
	return nil
}

func (w *Writer) afterValue() {}

func (w *Writer) writeIndent(depth int) {
	ind := w.opts.indent()
	for i := 0; i < depth; i++ {
		w.out.WriteString(ind)
	}
}

func (w *Writer) writeScalar(n *node.Node) error {
	switch n.Kind() {
	case node.KindNull:
		w.out.WriteString("null")
	case node.KindUndefined:
		w.out.WriteString("undefined")
	case node.KindBoolean:
		b, _ := n.BooleanValue()
		if b {
			w.out.WriteString("true")
		} else {
			w.out.WriteString("false")
		}
	case node.KindString:
		s, _ := n.StringValue()
		if err := writeJSONString(w.out, s, w.opts.MaxStringLength); err != nil {
			return err
		}
	case node.KindBuffer:
		buf, _ := n.BufferValue()
		if w.opts.CBORDiag {
			w.out.WriteString("h'")
			const hex = "0123456789abcdef"
			for _, b := range buf {
				w.out.WriteByte(hex[b>>4])
				w.out.WriteByte(hex[b&0xf])
			}
			w.out.WriteByte('\'')
		} else {
			s, _ := n.StringValue()
			if err := writeJSONString(w.out, s, w.opts.MaxStringLength); err != nil {
				return err
			}
		}
	case node.KindNumber:
		return w.writeNumber(n)
	default:
		return node.NewError(node.ErrBadCoercion, "cannot serialize %s as JSON scalar", n.Type())
	}
	return nil
}

func (w *Writer) writeNumber(n *node.Node) error {
	kind, _ := n.NumberKind()
	switch kind {
	case node.NumberDouble:
		f, _ := n.DoubleValue()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if w.opts.CBORDiag {
				switch {
				case math.IsNaN(f):
					w.out.WriteString("NaN")
				case f > 0:
					w.out.WriteString("Infinity")
				default:
					w.out.WriteString("-Infinity")
				}
				return nil
			}
			if w.opts.AllowNaN {
				w.out.WriteString("null")
				return nil
			}
			return node.NewError(node.ErrBadCoercion, "cannot serialize non-finite number as JSON")
		}
		w.out.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	default:
		s, _ := n.StringValue()
		w.out.WriteString(s)
	}
	return nil
}

func writeJSONString(out *bufio.Writer, s string, maxLen int) error {
	if maxLen > 0 && len(s) > maxLen {
		return node.NewError(node.ErrResourceLimit, "string of length %d exceeds maxStringLength %d", len(s), maxLen)
	}
	out.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			out.WriteString(`\"`)
		case '\\':
			out.WriteString(`\\`)
		case '\n':
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		case '\r':
			out.WriteString(`\r`)
		case '\b':
			out.WriteString(`\b`)
		case '\f':
			out.WriteString(`\f`)
		default:
			if r < 0x20 {
				out.WriteString(`\u`)
				hex := strconv.FormatInt(int64(r), 16)
				out.WriteString(strings.Repeat("0", 4-len(hex)))
				out.WriteString(hex)
			} else {
				out.WriteRune(r)
			}
		}
	}
	out.WriteByte('"')
	return nil
}

// SortKeysCodepoint is a Sorter (event.Sorter) ordering map keys by Unicode
// code point, used when WriterOptions.Sorted is set (§4.3 "sorted" option,
// §8 canonicalization).
func SortKeysCodepoint(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

// WriteNode serializes n to w per opts, driving the shared Emitter.
func WriteNode(w io.Writer, n *node.Node, opts WriterOptions) error {
	jw := NewWriter(w, opts)
	e := &event.Emitter{}
	if opts.Sorted {
		e.Sort = SortKeysCodepoint
	}
	if err := e.Emit(n, jw); err != nil {
		return err
	}
	return jw.Close()
}

// ReadNode parses a single JSON text from r into a value-tree node, driving
// the shared Builder.
func ReadNode(r io.Reader, opts ReaderOptions) (*node.Node, error) {
	rd, err := NewReader(r, opts)
	if err != nil {
		return nil, err
	}
	return drainToNode(rd)
}

func drainToNode(rd *Reader) (*node.Node, error) {
	b := event.NewBuilder()
	for {
		ok, err := rd.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		ev, err := rd.Next()
		if err != nil {
			return nil, err
		}
		if err := b.Feed(ev); err != nil {
			return nil, err
		}
	}
	return b.Root(), nil
}
