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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/faceless2/json/event"
	"github.com/faceless2/json/node"
)

// errNeedMore signals that the decoded buffer ran out mid-token; only
// meaningful when ReaderOptions.AllowTrailingEOF is set (§5 suspension
// points). It never escapes the package.
var errNeedMore = fmt.Errorf("jsonio: need more input")

// Reader is a pull parser emitting the shared pivot event stream from JSON
// text (§4.3). It detects UTF-8/16/32 by BOM or the RFC 4627 four-byte
// heuristic.
type Reader struct {
	opts ReaderOptions

	raw      []byte
	decoded  []rune
	haveEnc  bool
	pos      int
	depth    int
	queue    []event.Event
	qpos     int
	done     bool
	sawEOF   bool
	parseErr error
}

// NewReader reads all of r (a single shot; use SetInput for partial mode
// where the caller supplies bytes incrementally instead).
func NewReader(r io.Reader, opts ReaderOptions) (*Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	rd := &Reader{opts: opts}
	if !opts.AllowTrailingEOF {
		rd.sawEOF = true
	}
	rd.SetInput(data)
	return rd, nil
}

// NewPartialReader returns a Reader with no input yet, for callers that will
// push bytes via SetInput as they arrive.
func NewPartialReader(opts ReaderOptions) *Reader {
	opts.AllowTrailingEOF = true
	return &Reader{opts: opts}
}

// SetInput appends more bytes to the input and resumes parsing (§5).
func (rd *Reader) SetInput(data []byte) {
	rd.raw = append(rd.raw, data...)
	rd.haveEnc = false // re-decode; cheap relative to parsing correctness
	rd.reparse()
}

// SetEOF marks that no further input will arrive; a subsequent parse failure
// due to exhausted input is then a genuine bad_syntax error rather than a
// suspension point.
func (rd *Reader) SetEOF() {
	rd.sawEOF = true
	rd.reparse()
}

func (rd *Reader) decode() {
	rd.decoded = decodeBOMOrHeuristic(rd.raw)
	rd.haveEnc = true
}

func (rd *Reader) reparse() {
	if !rd.haveEnc {
		rd.decode()
	}
	rd.pos = 0
	rd.depth = 0
	rd.queue = rd.queue[:0]
	prevQpos := rd.qpos
	rd.qpos = 0
	rd.done = false
	err := rd.parseValue()
	if err == errNeedMore {
		if rd.sawEOF {
			rd.queue = append(rd.queue, event.Event{}) // placeholder to force error on Next
			rd.parseErr = rd.syntaxErrorAt(rd.pos, "unexpected end of input")
		}
		// else: leave as a suspension point, queue holds what we parsed so far
	} else if err != nil {
		rd.parseErr = err
	} else {
		rd.done = true
	}
	if prevQpos <= len(rd.queue) {
		rd.qpos = prevQpos
	}
}

func decodeBOMOrHeuristic(raw []byte) []rune {
	b := raw
	switch {
	case len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF:
		return []rune(string(b[3:]))
	case len(b) >= 4 && b[0] == 0xFF && b[1] == 0xFE && b[2] == 0 && b[3] == 0:
		return decodeUTF32(b[4:], binary.LittleEndian)
	case len(b) >= 4 && b[0] == 0 && b[1] == 0 && b[2] == 0xFE && b[3] == 0xFF:
		return decodeUTF32(b[4:], binary.BigEndian)
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xFE:
		return decodeUTF16(b[2:], binary.LittleEndian)
	case len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF:
		return decodeUTF16(b[2:], binary.BigEndian)
	}
	if len(b) >= 4 {
		switch {
		case b[0] == 0 && b[1] == 0 && b[2] == 0:
			return decodeUTF32(b, binary.BigEndian)
		case b[1] == 0 && b[2] == 0 && b[3] == 0:
			return decodeUTF32(b, binary.LittleEndian)
		case b[0] == 0 && b[2] == 0:
			return decodeUTF16(b, binary.BigEndian)
		case b[1] == 0 && b[3] == 0:
			return decodeUTF16(b, binary.LittleEndian)
		}
	}
	return []rune(string(b))
}

func decodeUTF16(b []byte, order binary.ByteOrder) []rune {
	n := len(b) / 2
	u := make([]uint16, n)
	for i := 0; i < n; i++ {
		u[i] = order.Uint16(b[i*2:])
	}
	return utf16.Decode(u)
}

func decodeUTF32(b []byte, order binary.ByteOrder) []rune {
	n := len(b) / 4
	r := make([]rune, n)
	for i := 0; i < n; i++ {
		r[i] = rune(order.Uint32(b[i*4:]))
	}
	return r
}

// HasNext reports whether another event can be produced without blocking.
func (rd *Reader) HasNext() (bool, error) {
	if rd.parseErr != nil {
		return false, rd.parseErr
	}
	return rd.qpos < len(rd.queue), nil
}

// Next consumes and returns the next event.
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

// Done reports whether the root value has been fully read.
func (rd *Reader) Done() bool { return rd.done && rd.qpos >= len(rd.queue) }

func (rd *Reader) emit(ev event.Event) { rd.queue = append(rd.queue, ev) }

func (rd *Reader) peek() (rune, bool) {
	if rd.pos >= len(rd.decoded) {
		return 0, false
	}
	return rd.decoded[rd.pos], true
}

func (rd *Reader) skipWS() error {
	for {
		c, ok := rd.peek()
		if !ok {
			return errNeedMore
		}
		switch c {
		case ' ', '\t', '\n', '\r':
			rd.pos++
			continue
		case '/':
			if !rd.opts.AllowComments {
				return nil
			}
			if rd.pos+1 >= len(rd.decoded) {
				return errNeedMore
			}
			switch rd.decoded[rd.pos+1] {
			case '/':
				rd.pos += 2
				for {
					c, ok := rd.peek()
					if !ok {
						return errNeedMore
					}
					rd.pos++
					if c == '\n' {
						break
					}
				}
				continue
			case '*':
				rd.pos += 2
				for {
					if rd.pos+1 >= len(rd.decoded) {
						return errNeedMore
					}
					if rd.decoded[rd.pos] == '*' && rd.decoded[rd.pos+1] == '/' {
						rd.pos += 2
						break
					}
					rd.pos++
				}
				continue
			default:
				return nil
			}
		default:
			return nil
		}
	}
}

func (rd *Reader) syntaxErrorAt(pos int, format string, args ...interface{}) *node.Error {
	line, col := 1, 1
	for i := 0; i < pos && i < len(rd.decoded); i++ {
		if rd.decoded[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	msg := fmt.Sprintf(format, args...)
	return node.NewError(node.ErrBadSyntax, "line %d column %d: %s", line, col, msg)
}

// parseValue parses one JSON text at the top level (possibly preceded by
// whitespace/comments) and queues its event stream.
func (rd *Reader) parseValue() error {
	if err := rd.skipWS(); err != nil {
		return err
	}
	if err := rd.parseAny(); err != nil {
		return err
	}
	save := rd.pos
	if err := rd.skipWS(); err != nil {
		rd.pos = save
		return nil // trailing whitespace/comment may be incomplete; fine
	}
	if _, ok := rd.peek(); ok {
		return rd.syntaxErrorAt(rd.pos, "unexpected trailing data")
	}
	return nil
}

func (rd *Reader) parseAny() error {
	if rd.opts.MaxRecursion > 0 && rd.depth > rd.opts.MaxRecursion {
		return node.NewError(node.ErrResourceLimit, "max recursion exceeded")
	}
	c, ok := rd.peek()
	if !ok {
		return errNeedMore
	}
	switch {
	case c == '{':
		return rd.parseObject()
	case c == '[':
		return rd.parseArray()
	case c == '"':
		s, err := rd.parseString()
		if err != nil {
			return err
		}
		rd.emit(event.Event{Type: event.Primitive, Value: node.NewString(s)})
		return nil
	case c == 't':
		return rd.parseLiteral("true", node.NewBool(true))
	case c == 'f':
		return rd.parseLiteral("false", node.NewBool(false))
	case c == 'n':
		return rd.parseLiteral("null", node.NewNull())
	case c == 'u':
		return rd.parseLiteral("undefined", node.NewUndefined())
	case c == '-' || (c >= '0' && c <= '9'):
		return rd.parseNumberOrDiag()
	case c == 'N' && rd.opts.CBORDiag:
		return rd.parseLiteral("NaN", node.NewDouble(math.NaN()))
	case c == 'I' && rd.opts.CBORDiag:
		return rd.parseLiteral("Infinity", node.NewDouble(math.Inf(1)))
	case c == 'h' && rd.opts.CBORDiag:
		return rd.parseHexBuffer()
	case c == 's' && rd.opts.CBORDiag:
		return rd.parseSimple()
	}
	return rd.syntaxErrorAt(rd.pos, "unexpected character %q", string(c))
}

func (rd *Reader) parseLiteral(lit string, v *node.Node) error {
	for i := 0; i < len(lit); i++ {
		if rd.pos+i >= len(rd.decoded) {
			return errNeedMore
		}
		if rd.decoded[rd.pos+i] != rune(lit[i]) {
			return rd.syntaxErrorAt(rd.pos, "expected %q", lit)
		}
	}
	rd.pos += len(lit)
	rd.emit(event.Event{Type: event.Primitive, Value: v})
	return nil
}

func (rd *Reader) parseNumberOrDiag() error {
	if rd.opts.CBORDiag {
		if rd.matchAhead("-Infinity") {
			rd.pos += len("-Infinity")
			rd.emit(event.Event{Type: event.Primitive, Value: node.NewDouble(math.Inf(-1))})
			return nil
		}
	}
	start := rd.pos
	p := rd.pos
	if p < len(rd.decoded) && rd.decoded[p] == '-' {
		p++
	}
	if p >= len(rd.decoded) {
		return errNeedMore
	}
	for p < len(rd.decoded) && isDigit(rd.decoded[p]) {
		p++
	}
	isFloat := false
	if p < len(rd.decoded) && rd.decoded[p] == '.' {
		isFloat = true
		p++
		for p < len(rd.decoded) && isDigit(rd.decoded[p]) {
			p++
		}
	}
	if p < len(rd.decoded) && (rd.decoded[p] == 'e' || rd.decoded[p] == 'E') {
		isFloat = true
		p++
		if p < len(rd.decoded) && (rd.decoded[p] == '+' || rd.decoded[p] == '-') {
			p++
		}
		for p < len(rd.decoded) && isDigit(rd.decoded[p]) {
			p++
		}
	}
	// Need to know we're not mid-stream: if buffer ends right at a digit run
	// and more input could extend the number, signal need-more unless sawEOF.
	if p >= len(rd.decoded) && !rd.sawEOF {
		return errNeedMore
	}
	text := string(rd.decoded[start:p])
	rd.pos = p
	n, err := parseNumberText(text, isFloat)
	if err != nil {
		return rd.syntaxErrorAt(start, "bad number %q", text)
	}
	rd.emit(event.Event{Type: event.Primitive, Value: n})
	return nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (rd *Reader) matchAhead(s string) bool {
	if rd.pos+len(s) > len(rd.decoded) {
		return false
	}
	for i := 0; i < len(s); i++ {
		if rd.decoded[rd.pos+i] != rune(s[i]) {
			return false
		}
	}
	return true
}

// parseNumberText chooses the narrowest variant that preserves the textual
// value (§4.3): exponent/decimal notation always yields floating.
func parseNumberText(text string, isFloat bool) (*node.Node, error) {
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, err
		}
		return node.NewDouble(f), nil
	}
	i := new(big.Int)
	if _, ok := i.SetString(text, 10); !ok {
		return nil, fmt.Errorf("bad integer %q", text)
	}
	return node.NewIntFromValue(i), nil
}

func (rd *Reader) parseHexBuffer() error {
	if !rd.matchAhead("h'") {
		return rd.syntaxErrorAt(rd.pos, "expected h'...'")
	}
	start := rd.pos
	p := rd.pos + 2
	for {
		if p >= len(rd.decoded) {
			return errNeedMore
		}
		if rd.decoded[p] == '\'' {
			break
		}
		p++
	}
	hexText := string(rd.decoded[start+2 : p])
	hexText = strings.ReplaceAll(hexText, " ", "")
	buf := make([]byte, len(hexText)/2)
	for i := range buf {
		v, err := strconv.ParseUint(hexText[i*2:i*2+2], 16, 8)
		if err != nil {
			return rd.syntaxErrorAt(start, "bad hex byte literal")
		}
		buf[i] = byte(v)
	}
	rd.pos = p + 1
	rd.emit(event.Event{Type: event.Primitive, Value: node.NewBuffer(buf)})
	return nil
}

func (rd *Reader) parseSimple() error {
	if !rd.matchAhead("simple(") {
		return rd.syntaxErrorAt(rd.pos, "expected simple(n)")
	}
	p := rd.pos + len("simple(")
	start := p
	for p < len(rd.decoded) && isDigit(rd.decoded[p]) {
		p++
	}
	if p >= len(rd.decoded) {
		return errNeedMore
	}
	if p == start || rd.decoded[p] != ')' {
		return rd.syntaxErrorAt(rd.pos, "bad simple(n) literal")
	}
	code, _ := strconv.ParseUint(string(rd.decoded[start:p]), 10, 64)
	rd.pos = p + 1
	rd.emit(event.Event{Type: event.Simple, Code: code})
	return nil
}

func (rd *Reader) parseString() (string, error) {
	if c, _ := rd.peek(); c != '"' {
		return "", rd.syntaxErrorAt(rd.pos, "expected '\"'")
	}
	rd.pos++
	var b strings.Builder
	for {
		if rd.pos >= len(rd.decoded) {
			return "", errNeedMore
		}
		c := rd.decoded[rd.pos]
		if c == '"' {
			rd.pos++
			break
		}
		if c == '\\' {
			rd.pos++
			if rd.pos >= len(rd.decoded) {
				return "", errNeedMore
			}
			esc := rd.decoded[rd.pos]
			switch esc {
			case '"', '\\', '/':
				b.WriteRune(esc)
				rd.pos++
			case 'n':
				b.WriteByte('\n')
				rd.pos++
			case 't':
				b.WriteByte('\t')
				rd.pos++
			case 'r':
				b.WriteByte('\r')
				rd.pos++
			case 'b':
				b.WriteByte('\b')
				rd.pos++
			case 'f':
				b.WriteByte('\f')
				rd.pos++
			case 'u':
				r, err := rd.parseUnicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
			default:
				return "", rd.syntaxErrorAt(rd.pos, "bad escape \\%c", esc)
			}
			continue
		}
		if c < 0x20 {
			return "", rd.syntaxErrorAt(rd.pos, "control character in string")
		}
		b.WriteRune(c)
		rd.pos++
		if rd.opts.MaxStringLength > 0 && b.Len() > rd.opts.MaxStringLength {
			return "", node.NewError(node.ErrResourceLimit, "string exceeds max length")
		}
	}
	return b.String(), nil
}

// parseUnicodeEscape consumes \uXXXX (already past the 'u') and combines a
// surrogate pair if present; lone surrogates are rejected (§3.1).
func (rd *Reader) parseUnicodeEscape() (rune, error) {
	rd.pos++ // past 'u'
	if rd.pos+4 > len(rd.decoded) {
		return 0, errNeedMore
	}
	hex := string(rd.decoded[rd.pos : rd.pos+4])
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, rd.syntaxErrorAt(rd.pos, "bad unicode escape")
	}
	rd.pos += 4
	r := rune(v)
	if utf16.IsSurrogate(r) {
		if rd.pos+6 > len(rd.decoded) {
			if !rd.sawEOF {
				return 0, errNeedMore
			}
			return 0, rd.syntaxErrorAt(rd.pos, "lone surrogate %U", r)
		}
		if rd.decoded[rd.pos] != '\\' || rd.decoded[rd.pos+1] != 'u' {
			return 0, rd.syntaxErrorAt(rd.pos, "lone surrogate %U", r)
		}
		hex2 := string(rd.decoded[rd.pos+2 : rd.pos+6])
		v2, err := strconv.ParseUint(hex2, 16, 32)
		if err != nil {
			return 0, rd.syntaxErrorAt(rd.pos, "bad unicode escape")
		}
		dec := utf16.DecodeRune(r, rune(v2))
		if dec == utf8.RuneError {
			return 0, rd.syntaxErrorAt(rd.pos, "lone surrogate %U", r)
		}
		rd.pos += 6
		return dec, nil
	}
	return r, nil
}

func (rd *Reader) parseObject() error {
	rd.pos++ // '{'
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartMap})
	first := true
	for {
		if err := rd.skipWS(); err != nil {
			return err
		}
		c, ok := rd.peek()
		if !ok {
			return errNeedMore
		}
		if c == '}' {
			if first || rd.opts.AllowTrailingComma {
				rd.pos++
				rd.emit(event.Event{Type: event.EndMap})
				return nil
			}
			return rd.syntaxErrorAt(rd.pos, "unexpected '}'")
		}
		if !first {
			if c != ',' {
				return rd.syntaxErrorAt(rd.pos, "expected ',' or '}'")
			}
			rd.pos++
			if err := rd.skipWS(); err != nil {
				return err
			}
			if c2, ok := rd.peek(); ok && c2 == '}' && rd.opts.AllowTrailingComma {
				rd.pos++
				rd.emit(event.Event{Type: event.EndMap})
				return nil
			}
		}
		first = false
		key, err := rd.parseKey()
		if err != nil {
			return err
		}
		if err := rd.skipWS(); err != nil {
			return err
		}
		c, ok = rd.peek()
		if !ok {
			return errNeedMore
		}
		if c != ':' {
			return rd.syntaxErrorAt(rd.pos, "expected ':'")
		}
		rd.pos++
		if err := rd.skipWS(); err != nil {
			return err
		}
		rd.emit(event.Event{Type: event.Key, Key: key})
		if err := rd.parseAny(); err != nil {
			return err
		}
	}
}

func (rd *Reader) parseKey() (string, error) {
	c, ok := rd.peek()
	if !ok {
		return "", errNeedMore
	}
	if c == '"' {
		return rd.parseString()
	}
	if rd.opts.AllowUnquotedKey && (isBarewordStart(c)) {
		start := rd.pos
		for {
			c, ok := rd.peek()
			if !ok {
				return "", errNeedMore
			}
			if !isBarewordRune(c) {
				break
			}
			rd.pos++
		}
		return string(rd.decoded[start:rd.pos]), nil
	}
	return "", rd.syntaxErrorAt(rd.pos, "expected string key")
}

func isBarewordStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isBarewordRune(c rune) bool { return isBarewordStart(c) || isDigit(c) }

func (rd *Reader) parseArray() error {
	rd.pos++ // '['
	rd.depth++
	defer func() { rd.depth-- }()
	rd.emit(event.Event{Type: event.StartList})
	first := true
	for {
		if err := rd.skipWS(); err != nil {
			return err
		}
		c, ok := rd.peek()
		if !ok {
			return errNeedMore
		}
		if c == ']' {
			if first || rd.opts.AllowTrailingComma {
				rd.pos++
				rd.emit(event.Event{Type: event.EndList})
				return nil
			}
			return rd.syntaxErrorAt(rd.pos, "unexpected ']'")
		}
		if !first {
			if c != ',' {
				return rd.syntaxErrorAt(rd.pos, "expected ',' or ']'")
			}
			rd.pos++
			if err := rd.skipWS(); err != nil {
				return err
			}
			if c2, ok := rd.peek(); ok && c2 == ']' && rd.opts.AllowTrailingComma {
				rd.pos++
				rd.emit(event.Event{Type: event.EndList})
				return nil
			}
		}
		first = false
		if err := rd.parseAny(); err != nil {
			return err
		}
	}
}

