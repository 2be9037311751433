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
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

var errNeedMore = fmt.Errorf("msgpackio: need more input")

// Reader is a pull parser emitting the shared pivot event stream from
// MessagePack bytes (§4.5).
type Reader struct {
	opts     ReaderOptions
	buf      []byte
	pos      int
	depth    int
	sawEOF   bool
	queue    []event.Event
	qpos     int
	done     bool
	parseErr error
}

// NewReader reads all of r in one shot.
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rd := &Reader{opts: opts}
	rd.SetInput(data)
	if !opts.AllowTrailingEOF {
		rd.sawEOF = true
		rd.reparse()
	}
	return rd, nil
}

// NewPartialReader returns a Reader with no input yet.
func NewPartialReader(opts ReaderOptions) *Reader {
	opts.AllowTrailingEOF = true
	return &Reader{opts: opts}
}

func (rd *Reader) SetInput(data []byte) {
	rd.buf = append(rd.buf, data...)
	rd.reparse()
}

func (rd *Reader) SetEOF() {
	rd.sawEOF = true
	rd.reparse()
}

func (rd *Reader) reparse() {
	rd.pos = 0
	rd.depth = 0
	rd.queue = rd.queue[:0]
	prevQpos := rd.qpos
	rd.qpos = 0
	rd.done = false
	err := rd.parseItem()
	if err == errNeedMore {
		if rd.sawEOF {
			rd.parseErr = node.NewError(node.ErrBadSyntax, "unexpected end of MessagePack input")
		}
	} else if err != nil {
		rd.parseErr = err
	} else {
		rd.done = true
	}
	if prevQpos <= len(rd.queue) {
		rd.qpos = prevQpos
	}
}

func (rd *Reader) HasNext() (bool, error) {
	if rd.parseErr != nil {
		return false, rd.parseErr
	}
	return rd.qpos < len(rd.queue), nil
}

func (rd *Reader) Next() (event.Event, error) {
	if rd.parseErr != nil {
		return event.Event{}, rd.parseErr
	}
	if rd.qpos >= len(rd.queue) {
		return event.Event{}, io.EOF
	}
	ev := rd.queue[rd.qpos]
	rd.qpos++
	return ev, nil
}

func (rd *Reader) Done() bool { return rd.done && rd.qpos >= len(rd.queue) }

func (rd *Reader) emit(ev event.Event) { rd.queue = append(rd.queue, ev) }
func (rd *Reader) need(n int) bool     { return rd.pos+n > len(rd.buf) }

func (rd *Reader) u8(off int) uint8   { return rd.buf[rd.pos+off] }
func (rd *Reader) beU16(off int) uint16 {
	return uint16(rd.buf[rd.pos+off])<<8 | uint16(rd.buf[rd.pos+off+1])
}
func (rd *Reader) beU32(off int) uint32 {
	v := uint32(0)
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(rd.buf[rd.pos+off+i])
	}
	return v
}
func (rd *Reader) beU64(off int) uint64 {
	v := uint64(0)
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(rd.buf[rd.pos+off+i])
	}
	return v
}

func (rd *Reader) parseItem() error {
	if rd.opts.MaxRecursion > 0 && rd.depth > rd.opts.MaxRecursion {
		return node.NewError(node.ErrResourceLimit, "max recursion exceeded")
	}
	if rd.need(1) {
		return errNeedMore
	}
	head := rd.u8(0)
	switch {
	case head <= 0x7f:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(head))})
		return nil
	case head >= 0xe0:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(int8(head)))})
		return nil
	case head >= 0x80 && head <= 0x8f:
		return rd.parseMap(int(head & 0x0f))
	case head >= 0x90 && head <= 0x9f:
		return rd.parseArray(int(head & 0x0f))
	case head >= 0xa0 && head <= 0xbf:
		return rd.parseFixStr(int(head & 0x1f))
	}
	switch head {
	case 0xc0:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewNull()})
		return nil
	case 0xc1:
		return node.NewError(node.ErrBadSyntax, "reserved opcode 0xc1")
	case 0xc2:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBool(false)})
		return nil
	case 0xc3:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBool(true)})
		return nil
	case 0xc4:
		return rd.parseBin(1)
	case 0xc5:
		return rd.parseBin(2)
	case 0xc6:
		return rd.parseBin(4)
	case 0xc7:
		return rd.parseExt(1)
	case 0xc8:
		return rd.parseExt(2)
	case 0xc9:
		return rd.parseExt(4)
	case 0xca:
		if rd.need(5) {
			return errNeedMore
		}
		bits := rd.beU32(1)
		rd.pos += 5
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(float64(math.Float32frombits(bits)))})
		return nil
	case 0xcb:
		if rd.need(9) {
			return errNeedMore
		}
		bits := rd.beU64(1)
		rd.pos += 9
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(math.Float64frombits(bits))})
		return nil
	case 0xcc:
		if rd.need(2) {
			return errNeedMore
		}
		v := rd.u8(1)
		rd.pos += 2
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(v))})
		return nil
	case 0xcd:
		if rd.need(3) {
			return errNeedMore
		}
		v := rd.beU16(1)
		rd.pos += 3
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(v))})
		return nil
	case 0xce:
		if rd.need(5) {
			return errNeedMore
		}
		v := rd.beU32(1)
		rd.pos += 5
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(new(big.Int).SetUint64(uint64(v)))})
		return nil
	case 0xcf:
		if rd.need(9) {
			return errNeedMore
		}
		v := rd.beU64(1)
		rd.pos += 9
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(new(big.Int).SetUint64(v))})
		return nil
	case 0xd0:
		if rd.need(2) {
			return errNeedMore
		}
		v := int8(rd.u8(1))
		rd.pos += 2
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(v))})
		return nil
	case 0xd1:
		if rd.need(3) {
			return errNeedMore
		}
		v := int16(rd.beU16(1))
		rd.pos += 3
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(int32(v))})
		return nil
	case 0xd2:
		if rd.need(5) {
			return errNeedMore
		}
		v := int32(rd.beU32(1))
		rd.pos += 5
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewInt(v)})
		return nil
	case 0xd3:
		if rd.need(9) {
			return errNeedMore
		}
		v := int64(rd.beU64(1))
		rd.pos += 9
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(big.NewInt(v))})
		return nil
	case 0xd4, 0xd5, 0xd6, 0xd7, 0xd8:
		n := 1 << uint(head-0xd4)
		return rd.parseFixExt(n)
	case 0xd9:
		return rd.parseStr(1)
	case 0xda:
		return rd.parseStr(2)
	case 0xdb:
		return rd.parseStr(4)
	case 0xdc:
		if rd.need(3) {
			return errNeedMore
		}
		n := int(rd.beU16(1))
		rd.pos += 3
		return rd.parseArrayBody(n)
	case 0xdd:
		if rd.need(5) {
			return errNeedMore
		}
		n := int(rd.beU32(1))
		rd.pos += 5
		return rd.parseArrayBody(n)
	case 0xde:
		if rd.need(3) {
			return errNeedMore
		}
		n := int(rd.beU16(1))
		rd.pos += 3
		return rd.parseMapBody(n)
	case 0xdf:
		if rd.need(5) {
			return errNeedMore
		}
		n := int(rd.beU32(1))
		rd.pos += 5
		return rd.parseMapBody(n)
	}
	return node.NewError(node.ErrBadSyntax, "unknown opcode 0x%02x", head)
}

func (rd *Reader) parseFixStr(n int) error {
	if rd.need(1 + n) {
		return errNeedMore
	}
	s := string(rd.buf[rd.pos+1 : rd.pos+1+n])
	rd.pos += 1 + n
	rd.emit(event.Event{Type: event.Primitive, Value: node.NewString(s)})
	return nil
}

func (rd *Reader) parseStr(lenBytes int) error {
	if rd.need(1 + lenBytes) {
		return errNeedMore
	}
	n := rd.lenField(1, lenBytes)
	total := 1 + lenBytes + n
	if rd.need(total) {
		return errNeedMore
	}
	s := string(rd.buf[rd.pos+1+lenBytes : rd.pos+total])
	rd.pos += total
	rd.emit(event.Event{Type: event.Primitive, Value: node.NewString(s)})
	return nil
}

func (rd *Reader) parseBin(lenBytes int) error {
	if rd.need(1 + lenBytes) {
		return errNeedMore
	}
	n := rd.lenField(1, lenBytes)
	total := 1 + lenBytes + n
	if rd.need(total) {
		return errNeedMore
	}
	b := append([]byte(nil), rd.buf[rd.pos+1+lenBytes:rd.pos+total]...)
	rd.pos += total
	rd.emit(event.Event{Type: event.Primitive, Value: node.NewBuffer(b)})
	return nil
}

func (rd *Reader) lenField(off, nbytes int) int {
	switch nbytes {
	case 1:
		return int(rd.u8(off))
	case 2:
		return int(rd.beU16(off))
	default:
		return int(rd.beU32(off))
	}
}

func (rd *Reader) parseExt(lenBytes int) error {
	if rd.need(1 + lenBytes + 1) {
		return errNeedMore
	}
	n := rd.lenField(1, lenBytes)
	extType := int8(rd.u8(1 + lenBytes))
	total := 1 + lenBytes + 1 + n
	if rd.need(total) {
		return errNeedMore
	}
	b := append([]byte(nil), rd.buf[rd.pos+2+lenBytes:rd.pos+total]...)
	rd.pos += total
	v := node.NewBuffer(b)
	v.SetTag(uint64(int64(extType)))
	rd.emit(event.Event{Type: event.Primitive, Value: v})
	return nil
}

func (rd *Reader) parseFixExt(n int) error {
	if rd.need(2 + n) {
		return errNeedMore
	}
	extType := int8(rd.u8(1))
	b := append([]byte(nil), rd.buf[rd.pos+2:rd.pos+2+n]...)
	rd.pos += 2 + n
	v := node.NewBuffer(b)
	v.SetTag(uint64(int64(extType)))
	rd.emit(event.Event{Type: event.Primitive, Value: v})
	return nil
}

func (rd *Reader) parseArray(n int) error {
	rd.pos++
	return rd.parseArrayBody(n)
}

func (rd *Reader) parseArrayBody(n int) error {
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartList, Count: n})
	for i := 0; i < n; i++ {
		if err := rd.parseItem(); err != nil {
			return err
		}
	}
	rd.emit(event.Event{Type: event.EndList})
	return nil
}

func (rd *Reader) parseMap(n int) error {
	rd.pos++
	return rd.parseMapBody(n)
}

func (rd *Reader) parseMapBody(n int) error {
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartMap, Count: n})
	for i := 0; i < n; i++ {
		startKey := len(rd.queue)
		if err := rd.parseItem(); err != nil {
			return err
		}
		keyEvents := rd.queue[startKey:]
		rd.queue = rd.queue[:startKey]
		b := event.NewBuilder()
		for _, ev := range keyEvents {
			if err := b.Feed(ev); err != nil {
				return err
			}
		}
		keyStr, err := rd.opts.coercer()(b.Root())
		if err != nil {
			return node.WrapError(node.ErrBadCoercion, err, "non-string MessagePack map key")
		}
		rd.emit(event.Event{Type: event.Key, Key: keyStr})
		if err := rd.parseItem(); err != nil {
			return err
		}
	}
	rd.emit(event.Event{Type: event.EndMap})
	return nil
}
