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

package cborio

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

// Writer is a push serializer implementing event.Writer, producing CBOR
// bytes (§4.4). Containers are always written definite-length: the Emitter
// walks a complete tree so the child count is always known up front.
type Writer struct {
	opts WriterOptions
	out  *bufio.Writer
	err  error
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
		w.writeHead(6, ev.Tag)
		return nil
	case event.StartMap:
		w.writeHead(5, uint64(ev.Count))
		return nil
	case event.StartList:
		w.writeHead(4, uint64(ev.Count))
		return nil
	case event.EndMap, event.EndList:
		return nil // definite-length containers carry no terminator
	case event.Key:
		return w.writeString(ev.Key)
	case event.Primitive:
		return w.writeScalar(ev.Value)
	case event.Simple:
		return w.writeSimple(ev.Code)
	}
	return nil
}

func (w *Writer) writeHead(major byte, arg uint64) {
	switch {
	case arg < 24:
		w.out.WriteByte(major<<5 | byte(arg))
	case arg <= 0xff:
		w.out.WriteByte(major<<5 | 24)
		w.out.WriteByte(byte(arg))
	case arg <= 0xffff:
		w.out.WriteByte(major<<5 | 25)
		w.out.WriteByte(byte(arg >> 8))
		w.out.WriteByte(byte(arg))
	case arg <= 0xffffffff:
		w.out.WriteByte(major<<5 | 26)
		for i := 3; i >= 0; i-- {
			w.out.WriteByte(byte(arg >> (8 * uint(i))))
		}
	default:
		w.out.WriteByte(major<<5 | 27)
		for i := 7; i >= 0; i-- {
			w.out.WriteByte(byte(arg >> (8 * uint(i))))
		}
	}
}

func (w *Writer) writeString(s string) error {
	w.writeHead(3, uint64(len(s)))
	w.out.WriteString(s)
	return nil
}

func (w *Writer) writeBytes(b []byte) error {
	w.writeHead(2, uint64(len(b)))
	w.out.Write(b)
	return nil
}

func (w *Writer) writeSimple(code uint64) error {
	if code < 24 {
		w.out.WriteByte(7<<5 | byte(code))
		return nil
	}
	w.out.WriteByte(7<<5 | 24)
	w.out.WriteByte(byte(code))
	return nil
}

func (w *Writer) writeScalar(n *node.Node) error {
	switch n.Kind() {
	case node.KindNull:
		w.out.WriteByte(7<<5 | 22)
	case node.KindUndefined:
		w.out.WriteByte(7<<5 | 23)
	case node.KindBoolean:
		b, _ := n.BooleanValue()
		if b {
			w.out.WriteByte(7<<5 | 21)
		} else {
			w.out.WriteByte(7<<5 | 20)
		}
	case node.KindString:
		s, _ := n.StringValue()
		return w.writeString(s)
	case node.KindBuffer:
		b, _ := n.BufferValue()
		return w.writeBytes(b)
	case node.KindNumber:
		return w.writeNumber(n)
	default:
		return node.NewError(node.ErrBadCoercion, "cannot serialize %s as CBOR scalar", n.Type())
	}
	return nil
}

func (w *Writer) writeNumber(n *node.Node) error {
	kind, _ := n.NumberKind()
	switch kind {
	case node.NumberDouble:
		f, _ := n.DoubleValue()
		bits := math.Float64bits(f)
		w.out.WriteByte(7<<5 | 27)
		for i := 7; i >= 0; i-- {
			w.out.WriteByte(byte(bits >> (8 * uint(i))))
		}
		return nil
	case node.NumberBigDecimal:
		// No native bigdecimal tag in RFC 7049; round-trip through text.
		s, _ := n.StringValue()
		return w.writeString(s)
	default:
		if kind != node.NumberBigInt {
			if v, err := n.LongValue(); err == nil {
				return w.writeInt(v)
			}
		}
		i, _ := bigIntValue(n)
		return w.writeBigInt(i)
	}
}

func bigIntValue(n *node.Node) (*big.Int, error) {
	s, err := n.StringValue()
	if err != nil {
		return nil, err
	}
	i := new(big.Int)
	i.SetString(s, 10)
	return i, nil
}

func (w *Writer) writeInt(v int64) error {
	if v >= 0 {
		w.writeHead(0, uint64(v))
		return nil
	}
	w.writeHead(1, uint64(-(v + 1)))
	return nil
}

func (w *Writer) writeBigInt(i *big.Int) error {
	if i.IsInt64() {
		return w.writeInt(i.Int64())
	}
	tag := uint64(2)
	mag := new(big.Int).Set(i)
	if i.Sign() < 0 {
		tag = 3
		mag.Add(mag, big.NewInt(1))
		mag.Neg(mag)
	}
	w.writeHead(6, tag)
	return w.writeBytes(mag.Bytes())
}

// CanonicalKeySort orders map keys the way RFC 7049 §3.9 requires: by
// length of their encoded byte string, then lexicographically.
func CanonicalKeySort(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
}

// Marshal encodes n as CBOR bytes using the shared Emitter so the map/array
// framing always carries a correct definite length, which this package's
// Write(event.Event) cannot infer on its own from StartMap/StartList alone.
func Marshal(n *node.Node, opts WriterOptions) ([]byte, error) {
	var buf bytes.Buffer
	cw := NewWriter(&buf, opts)
	e := &event.Emitter{}
	if opts.Sorted || opts.Canonical {
		e.Sort = CanonicalKeySort
	}
	if err := e.Emit(n, cw); err != nil {
		return nil, err
	}
	if err := cw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a single CBOR item into a value tree node.
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
