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

package msgpackio

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"math/big"
	"sort"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

// Writer is a push serializer implementing event.Writer, producing
// MessagePack bytes (§4.5).
type Writer struct {
	opts WriterOptions
	out  *bufio.Writer
	err  error
}

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
		return nil // carried on the following buffer's SetTag, not standalone
	case event.StartMap:
		w.writeMapHead(ev.Count)
		return nil
	case event.StartList:
		w.writeArrayHead(ev.Count)
		return nil
	case event.EndMap, event.EndList:
		return nil
	case event.Key:
		return w.writeString(ev.Key)
	case event.Primitive:
		return w.writeScalar(ev.Value)
	case event.Simple:
		return node.NewError(node.ErrBadCoercion, "MessagePack has no simple-value type")
	}
	return nil
}

func (w *Writer) writeMapHead(n int) {
	switch {
	case n <= 0x0f:
		w.out.WriteByte(0x80 | byte(n))
	case n <= 0xffff:
		w.out.WriteByte(0xde)
		w.out.WriteByte(byte(n >> 8))
		w.out.WriteByte(byte(n))
	default:
		w.out.WriteByte(0xdf)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
}

func (w *Writer) writeArrayHead(n int) {
	switch {
	case n <= 0x0f:
		w.out.WriteByte(0x90 | byte(n))
	case n <= 0xffff:
		w.out.WriteByte(0xdc)
		w.out.WriteByte(byte(n >> 8))
		w.out.WriteByte(byte(n))
	default:
		w.out.WriteByte(0xdd)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
}

func (w *Writer) writeString(s string) error {
	n := len(s)
	switch {
	case n <= 31:
		w.out.WriteByte(0xa0 | byte(n))
	case n <= 0xff:
		w.out.WriteByte(0xd9)
		w.out.WriteByte(byte(n))
	case n <= 0xffff:
		w.out.WriteByte(0xda)
		w.out.WriteByte(byte(n >> 8))
		w.out.WriteByte(byte(n))
	default:
		w.out.WriteByte(0xdb)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
	w.out.WriteString(s)
	return nil
}

func (w *Writer) writeBin(b []byte) error {
	n := len(b)
	switch {
	case n <= 0xff:
		w.out.WriteByte(0xc4)
		w.out.WriteByte(byte(n))
	case n <= 0xffff:
		w.out.WriteByte(0xc5)
		w.out.WriteByte(byte(n >> 8))
		w.out.WriteByte(byte(n))
	default:
		w.out.WriteByte(0xc6)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(n >> (8 * uint(i))))
		}
	}
	w.out.Write(b)
	return nil
}

func (w *Writer) writeExt(extType int8, b []byte) error {
	n := len(b)
	switch n {
	case 1, 2, 4, 8, 16:
		w.out.WriteByte(0xd4 + byte(log2Pow(n)))
		w.out.WriteByte(byte(extType))
	default:
		switch {
		case n <= 0xff:
			w.out.WriteByte(0xc7)
			w.out.WriteByte(byte(n))
		case n <= 0xffff:
			w.out.WriteByte(0xc8)
			w.out.WriteByte(byte(n >> 8))
			w.out.WriteByte(byte(n))
		default:
			w.out.WriteByte(0xc9)
			for i := 3; i >= 0; i-- {
				w.out.WriteByte(byte(n >> (8 * uint(i))))
			}
		}
		w.out.WriteByte(byte(extType))
	}
	w.out.Write(b)
	return nil
}

func log2Pow(n int) int {
	switch n {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		return 4
	}
}

func (w *Writer) writeScalar(n *node.Node) error {
	switch n.Kind() {
	case node.KindNull, node.KindUndefined:
		w.out.WriteByte(0xc0)
	case node.KindBoolean:
		b, _ := n.BooleanValue()
		if b {
			w.out.WriteByte(0xc3)
		} else {
			w.out.WriteByte(0xc2)
		}
	case node.KindString:
		s, _ := n.StringValue()
		return w.writeString(s)
	case node.KindBuffer:
		b, _ := n.BufferValue()
		if tag, ok := n.Tag(); ok {
			return w.writeExt(int8(int64(tag)), b)
		}
		return w.writeBin(b)
	case node.KindNumber:
		return w.writeNumber(n)
	default:
		return node.NewError(node.ErrBadCoercion, "cannot serialize %s as MessagePack scalar", n.Type())
	}
	return nil
}

func (w *Writer) writeNumber(n *node.Node) error {
	kind, _ := n.NumberKind()
	if kind == node.NumberDouble {
		f, _ := n.DoubleValue()
		bits := math.Float64bits(f)
		w.out.WriteByte(0xcb)
		for i := 7; i >= 0; i-- {
			w.out.WriteByte(byte(bits >> (8 * uint(i))))
		}
		return nil
	}
	if kind == node.NumberBigDecimal {
		s, _ := n.StringValue()
		return w.writeString(s)
	}
	if kind == node.NumberBigInt {
		s, _ := n.StringValue()
		if b, ok := new(big.Int).SetString(s, 10); ok && !b.IsInt64() {
			// Out-of-int64-range big integer: MessagePack has no bignum type;
			// fall back to its decimal text the same way bigdecimal does.
			return w.writeString(s)
		}
	}
	v, _ := n.LongValue()
	return w.writeInt(v)
}

func (w *Writer) writeInt(v int64) error {
	switch {
	case v >= 0 && v <= 0x7f:
		w.out.WriteByte(byte(v))
	case v < 0 && v >= -32:
		w.out.WriteByte(byte(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.out.WriteByte(0xd0)
		w.out.WriteByte(byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.out.WriteByte(0xd1)
		w.out.WriteByte(byte(v >> 8))
		w.out.WriteByte(byte(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.out.WriteByte(0xd2)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(v >> (8 * uint(i))))
		}
	default:
		w.out.WriteByte(0xd3)
		for i := 7; i >= 0; i-- {
			w.out.WriteByte(byte(v >> (8 * uint(i))))
		}
	}
	return nil
}

// SortKeysCodepoint orders map keys by Unicode code point.
func SortKeysCodepoint(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

// Marshal encodes n as MessagePack bytes.
func Marshal(n *node.Node, opts WriterOptions) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	e := &event.Emitter{}
	if opts.Sorted {
		e.Sort = SortKeysCodepoint
	}
	if err := e.Emit(n, w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single MessagePack item into a value tree node.
func Unmarshal(data []byte, opts ReaderOptions) (*node.Node, error) {
	rd, err := NewReader(bytes.NewReader(data), opts)
	if err != nil {
		return nil, err
	}
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
