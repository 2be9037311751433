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
	"fmt"
	"io"
	"math"
	"math/big"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

var errNeedMore = fmt.Errorf("cborio: need more input")

// Reader is a pull parser emitting the shared pivot event stream from CBOR
// bytes (§4.4). Like jsonio.Reader it re-parses the accumulated buffer from
// the start on every SetInput call; correctness over incremental speed.
type Reader struct {
	opts ReaderOptions

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

// SetInput appends bytes and resumes parsing.
func (rd *Reader) SetInput(data []byte) {
	rd.buf = append(rd.buf, data...)
	rd.reparse()
}

// SetEOF marks that no further bytes will arrive.
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
			rd.parseErr = node.NewError(node.ErrBadSyntax, "unexpected end of CBOR input")
		}
	} else if err != nil {
		rd.parseErr = err
	} else {
		rd.done = true
	}
	if prevQpos < len(rd.queue) {
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

func (rd *Reader) need(n int) bool { return rd.pos+n > len(rd.buf) }

func (rd *Reader) parseItem() error {
	if rd.opts.MaxRecursion > 0 && rd.depth > rd.opts.MaxRecursion {
		return node.NewError(node.ErrResourceLimit, "max recursion exceeded")
	}
	if rd.need(1) {
		return errNeedMore
	}
	head := rd.buf[rd.pos]
	major := head >> 5
	info := head & 0x1f

	switch major {
	case 0:
		v, err := rd.readArg(info)
		if err != nil {
			return err
		}
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(new(big.Int).SetUint64(v))})
		return nil
	case 1:
		v, err := rd.readArg(info)
		if err != nil {
			return err
		}
		i := new(big.Int).SetUint64(v)
		i.Add(i, big.NewInt(1))
		i.Neg(i)
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(i)})
		return nil
	case 2:
		return rd.parseBytesOrText(info, false)
	case 3:
		return rd.parseBytesOrText(info, true)
	case 4:
		return rd.parseArray(info)
	case 5:
		return rd.parseMap(info)
	case 6:
		return rd.parseTag(info)
	case 7:
		return rd.parseSimpleOrFloat(info)
	}
	return node.NewError(node.ErrBadSyntax, "unreachable major type %d", major)
}

// readArg reads the "argument" that follows a head byte for info in
// [0,27], consuming the head byte itself.
func (rd *Reader) readArg(info byte) (uint64, error) {
	rd.pos++
	switch {
	case info < 24:
		return uint64(info), nil
	case info == 24:
		if rd.need(1) {
			return 0, errNeedMore
		}
		v := uint64(rd.buf[rd.pos])
		rd.pos++
		return v, nil
	case info == 25:
		if rd.need(2) {
			return 0, errNeedMore
		}
		v := uint64(rd.buf[rd.pos])<<8 | uint64(rd.buf[rd.pos+1])
		rd.pos += 2
		return v, nil
	case info == 26:
		if rd.need(4) {
			return 0, errNeedMore
		}
		v := uint64(0)
		for i := 0; i < 4; i++ {
			v = v<<8 | uint64(rd.buf[rd.pos+i])
		}
		rd.pos += 4
		return v, nil
	case info == 27:
		if rd.need(8) {
			return 0, errNeedMore
		}
		v := uint64(0)
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(rd.buf[rd.pos+i])
		}
		rd.pos += 8
		return v, nil
	}
	return 0, node.NewError(node.ErrBadSyntax, "bad argument encoding %d", info)
}

func (rd *Reader) parseBytesOrText(info byte, text bool) error {
	if info == 31 {
		return rd.parseIndefiniteBytesOrText(text)
	}
	n, err := rd.readArg(info)
	if err != nil {
		return err
	}
	if rd.need(int(n)) {
		return errNeedMore
	}
	b := append([]byte(nil), rd.buf[rd.pos:rd.pos+int(n)]...)
	rd.pos += int(n)
	if text {
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewString(string(b))})
	} else {
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBuffer(b)})
	}
	return nil
}

// parseIndefiniteBytesOrText concatenates a stream of definite-length chunks
// terminated by a break byte (0xff), RFC 7049 §2.2.2.
func (rd *Reader) parseIndefiniteBytesOrText(text bool) error {
	rd.pos++ // head byte
	var out []byte
	for {
		if rd.need(1) {
			return errNeedMore
		}
		if rd.buf[rd.pos] == 0xff {
			rd.pos++
			break
		}
		head := rd.buf[rd.pos]
		info := head & 0x1f
		n, err := rd.readArg(info)
		if err != nil {
			return err
		}
		if rd.need(int(n)) {
			return errNeedMore
		}
		out = append(out, rd.buf[rd.pos:rd.pos+int(n)]...)
		rd.pos += int(n)
	}
	if text {
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewString(string(out))})
	} else {
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBuffer(out)})
	}
	return nil
}

func (rd *Reader) parseArray(info byte) error {
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartList})
	if info == 31 {
		rd.pos++
		for {
			if rd.need(1) {
				return errNeedMore
			}
			if rd.buf[rd.pos] == 0xff {
				rd.pos++
				break
			}
			if err := rd.parseItem(); err != nil {
				return err
			}
		}
		rd.emit(event.Event{Type: event.EndList})
		return nil
	}
	n, err := rd.readArg(info)
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		if err := rd.parseItem(); err != nil {
			return err
		}
	}
	rd.emit(event.Event{Type: event.EndList})
	return nil
}

func (rd *Reader) parseMap(info byte) error {
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartMap})
	indefinite := info == 31
	var n uint64
	if indefinite {
		rd.pos++
	} else {
		var err error
		n, err = rd.readArg(info)
		if err != nil {
			return err
		}
	}
	var seen map[string]bool
	for i := uint64(0); indefinite || i < n; i++ {
		if indefinite {
			if rd.need(1) {
				return errNeedMore
			}
			if rd.buf[rd.pos] == 0xff {
				rd.pos++
				break
			}
		}
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
			return node.WrapError(node.ErrBadCoercion, err, "non-string CBOR map key")
		}
		if seen == nil {
			seen = make(map[string]bool)
		}
		if seen[keyStr] {
			return node.NewError(node.ErrDuplicateKey, "duplicate CBOR map key %q", keyStr)
		}
		seen[keyStr] = true
		rd.emit(event.Event{Type: event.Key, Key: keyStr})
		if err := rd.parseItem(); err != nil {
			return err
		}
	}
	rd.emit(event.Event{Type: event.EndMap})
	return nil
}

func (rd *Reader) parseTag(info byte) error {
	tag, err := rd.readArg(info)
	if err != nil {
		return err
	}
	if tag == 2 || tag == 3 {
		return rd.parseBignum(tag == 3)
	}
	rd.emit(event.Event{Type: event.Tag, Tag: tag})
	return rd.parseItem()
}

// parseBignum promotes tag 2/3 (positive/negative bignum) to a plain number
// node instead of a tagged byte string (§4.4).
func (rd *Reader) parseBignum(negative bool) error {
	if rd.need(1) {
		return errNeedMore
	}
	head := rd.buf[rd.pos]
	major := head >> 5
	info := head & 0x1f
	if major != 2 {
		return node.NewError(node.ErrBadSyntax, "bignum tag not followed by byte string")
	}
	n, err := rd.readArg(info)
	if err != nil {
		return err
	}
	if rd.need(int(n)) {
		return errNeedMore
	}
	b := rd.buf[rd.pos : rd.pos+int(n)]
	rd.pos += int(n)
	i := new(big.Int).SetBytes(b)
	if negative {
		i.Add(i, big.NewInt(1))
		i.Neg(i)
	}
	rd.emit(event.Event{Type: event.Primitive, Value: node.NewIntFromValue(i)})
	return nil
}

func (rd *Reader) parseSimpleOrFloat(info byte) error {
	switch info {
	case 20:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBool(false)})
		return nil
	case 21:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewBool(true)})
		return nil
	case 22:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewNull()})
		return nil
	case 23:
		rd.pos++
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewUndefined()})
		return nil
	case 24:
		if rd.need(2) {
			return errNeedMore
		}
		code := rd.buf[rd.pos+1]
		rd.pos += 2
		rd.emit(event.Event{Type: event.Simple, Code: uint64(code)})
		return nil
	case 25:
		if rd.need(3) {
			return errNeedMore
		}
		bits := uint16(rd.buf[rd.pos+1])<<8 | uint16(rd.buf[rd.pos+2])
		rd.pos += 3
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(halfToFloat64(bits))})
		return nil
	case 26:
		if rd.need(5) {
			return errNeedMore
		}
		bits := uint32(0)
		for i := 0; i < 4; i++ {
			bits = bits<<8 | uint32(rd.buf[rd.pos+1+i])
		}
		rd.pos += 5
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(float64(math.Float32frombits(bits)))})
		return nil
	case 27:
		if rd.need(9) {
			return errNeedMore
		}
		bits := uint64(0)
		for i := 0; i < 8; i++ {
			bits = bits<<8 | uint64(rd.buf[rd.pos+1+i])
		}
		rd.pos += 9
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(math.Float64frombits(bits))})
		return nil
	}
	if info < 20 {
		rd.pos++
		rd.emit(event.Event{Type: event.Simple, Code: uint64(info)})
		return nil
	}
	return node.NewError(node.ErrBadSyntax, "reserved simple/float info %d", info)
}

func halfToFloat64(bits uint16) float64 {
	sign := uint32(bits>>15) & 0x1
	exp := uint32(bits>>10) & 0x1f
	frac := uint32(bits) & 0x3ff
	var f32bits uint32
	switch exp {
	case 0:
		if frac == 0 {
			f32bits = sign << 31
		} else {
			// subnormal half -> normalize into single precision
			e := 0
			for frac&0x400 == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3ff
			f32bits = sign<<31 | uint32(127-15+e+1)<<23 | frac<<13
		}
	case 0x1f:
		f32bits = sign<<31 | 0xff<<23 | frac<<13
	default:
		f32bits = sign<<31 | (exp-15+127)<<23 | frac<<13
	}
	return float64(math.Float32frombits(f32bits))
}
