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

package box

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/jsonio"
)

// ReadAll parses every top-level box in r (§4.8) and returns them in
// document order. The whole stream is buffered in memory: the encoding is
// not designed for streaming decode of an unbounded asset, and C2PA
// payloads are small compared to the media they're embedded in.
func ReadAll(r io.Reader) ([]*Box, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, wrapError(ErrBadSyntax, err, "box: reading input")
	}
	return ParseAll(data)
}

// ParseAll parses every top-level box out of data.
func ParseAll(data []byte) ([]*Box, error) {
	var boxes []*Box
	for len(data) > 0 {
		b, n, err := parseOne(data)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
		data = data[n:]
	}
	return boxes, nil
}

// parseOne parses a single box starting at data[0] and returns it along
// with the number of bytes it consumed.
func parseOne(data []byte) (*Box, int, error) {
	if len(data) < 8 {
		return nil, 0, newError(ErrBadSyntax, "box: truncated header (%d bytes)", len(data))
	}
	length := uint64(binary.BigEndian.Uint32(data[0:4]))
	typ := string(data[4:8])
	header := 8
	switch length {
	case 0:
		length = uint64(len(data))
	case 1:
		if len(data) < 16 {
			return nil, 0, newError(ErrBadSyntax, "box: truncated extended length for %q", typ)
		}
		length = binary.BigEndian.Uint64(data[8:16])
		header = 16
	}
	if length < uint64(header) || length > uint64(len(data)) {
		return nil, 0, newError(ErrBadSyntax, "box: bad length %d for %q (have %d bytes)", length, typ, len(data))
	}
	payload := data[header:length]
	b := &Box{Type: typ}
	if err := parsePayload(b, payload); err != nil {
		return nil, 0, err
	}
	return b, int(length), nil
}

func parsePayload(b *Box, payload []byte) error {
	switch {
	case b.Type == "jumd":
		d, err := ParseDescription(payload)
		if err != nil {
			return err
		}
		b.Kind = ContentData
		b.Description = d
		b.Data = payload
		return nil
	case IsContainerType(b.Type):
		b.Kind = ContentContainer
		consumed := 0
		for consumed < len(payload) {
			if len(payload)-consumed < 8 {
				// Too short to be another box header: alignment padding.
				b.Padding = append([]byte(nil), payload[consumed:]...)
				break
			}
			child, n, err := parseOne(payload[consumed:])
			if err != nil {
				return err
			}
			b.AppendChild(child)
			consumed += n
		}
		if b.Type == "jumb" {
			if first := b.FirstChild(); first != nil && first.Type == "jumd" && first.Description != nil {
				b.Subtype = first.Description.Label
			}
		}
		return nil
	case b.Type == "cbor":
		tree, err := cborio.Unmarshal(payload, cborio.ReaderOptions{})
		if err != nil {
			return wrapError(ErrBadSyntax, err, "box: decoding cbor box")
		}
		b.Kind = ContentCBOR
		b.Tree = tree
		return nil
	case b.Type == "json":
		tree, err := jsonio.ReadNode(bytes.NewReader(payload), jsonio.ReaderOptions{})
		if err != nil {
			return wrapError(ErrBadSyntax, err, "box: decoding json box")
		}
		b.Kind = ContentJSON
		b.Tree = tree
		return nil
	default:
		b.Kind = ContentData
		b.Data = payload
		return nil
	}
}
