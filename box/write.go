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

	"github.com/dsnet/golib/memfile"

	"github.com/faceless2/json/cborio"
	"github.com/faceless2/json/jsonio"
)

// WriteAll writes every box in boxes to w in order (§4.8 Writing).
func WriteAll(w io.Writer, boxes []*Box) error {
	for _, b := range boxes {
		if err := WriteBox(w, b); err != nil {
			return err
		}
	}
	return nil
}

// WriteBox encodes b (and, recursively, its children) to w. It encodes the
// payload first so the final length is known, writes the header with that
// length followed by the payload into an in-memory file, and then flushes
// the file to w in a single write, the way the teacher's proxy buffers a
// response before framing it. No placeholder is written or patched.
func WriteBox(w io.Writer, b *Box) error {
	buf, err := encodeBody(b)
	if err != nil {
		return err
	}
	total := 8 + len(buf)
	f := memfile.New(nil)
	if total <= 0xFFFFFFFF {
		var hdr [8]byte
		binary.BigEndian.PutUint32(hdr[0:4], uint32(total))
		copy(hdr[4:8], b.Type)
		if _, err := f.Write(hdr[:]); err != nil {
			return wrapError(ErrBadSyntax, err, "box: writing header")
		}
	} else {
		var hdr [16]byte
		hdr[3] = 1
		copy(hdr[4:8], b.Type)
		binary.BigEndian.PutUint64(hdr[8:16], uint64(total+8))
		if _, err := f.Write(hdr[:]); err != nil {
			return wrapError(ErrBadSyntax, err, "box: writing extended header")
		}
	}
	if _, err := f.Write(buf); err != nil {
		return wrapError(ErrBadSyntax, err, "box: writing payload")
	}
	if _, err := w.Write(f.Bytes()); err != nil {
		return wrapError(ErrBadSyntax, err, "box: flushing box")
	}
	return nil
}

// encodeBody renders b's payload (children, tree, or raw data) plus its
// trailing padding, without the length/type header.
func encodeBody(b *Box) ([]byte, error) {
	var buf bytes.Buffer
	switch b.Kind {
	case ContentContainer:
		for _, c := range b.Children {
			if err := WriteBox(&buf, c); err != nil {
				return nil, err
			}
		}
	case ContentCBOR:
		out, err := cborio.Marshal(b.Tree, cborio.WriterOptions{})
		if err != nil {
			return nil, err
		}
		buf.Write(out)
	case ContentJSON:
		if err := jsonio.WriteNode(&buf, b.Tree, jsonio.WriterOptions{}); err != nil {
			return nil, err
		}
	case ContentData:
		if b.Description != nil {
			buf.Write(b.Description.Encode())
		} else {
			buf.Write(b.Data)
		}
	}
	buf.Write(b.Padding)
	return buf.Bytes(), nil
}
