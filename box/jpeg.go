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
	"encoding/binary"
	"sort"
)

// jpegSegHeaderLen is the length of the common header repeated at the
// start of every APP11 segment payload (§6.2): "JP" + box instance (u16) +
// packet sequence (u32) + box length (u32) + box type (4 bytes).
const jpegSegHeaderLen = 2 + 2 + 4 + 4 + 4

// ReadJPEGSegments reassembles one or more C2PA JUMBF box instances from
// their raw APP11 segment payloads (each payload is everything in the
// marker segment after its 2-byte JPEG length field, starting with "JP").
// Scanning the host JPEG for APP11 markers and handing their payloads here
// is the caller's job (§1 Non-goals); this function only performs the
// box-instance reassembly defined by §6.2. The first box instance
// encountered (by the order its segments first appear in segments) is
// returned as active, per "if several are present, the first encountered
// is active".
func ReadJPEGSegments(segments [][]byte) (boxType string, data []byte, err error) {
	type part struct {
		seq     uint32
		payload []byte
	}
	order := []uint16{}
	seen := map[uint16]bool{}
	byInstance := map[uint16][]part{}
	typeByInstance := map[uint16]string{}

	for _, seg := range segments {
		if len(seg) < jpegSegHeaderLen {
			return "", nil, newError(ErrBadSyntax, "jpeg: APP11 segment too short (%d bytes)", len(seg))
		}
		if seg[0] != 'J' || seg[1] != 'P' {
			return "", nil, newError(ErrBadSyntax, "jpeg: APP11 segment missing 'JP' header")
		}
		instance := binary.BigEndian.Uint16(seg[2:4])
		seq := binary.BigEndian.Uint32(seg[4:8])
		typ := string(seg[12:16])
		payload := seg[jpegSegHeaderLen:]

		if !seen[instance] {
			seen[instance] = true
			order = append(order, instance)
			typeByInstance[instance] = typ
		}
		byInstance[instance] = append(byInstance[instance], part{seq: seq, payload: payload})
	}
	if len(order) == 0 {
		return "", nil, newError(ErrBadSyntax, "jpeg: no APP11 segments supplied")
	}
	active := order[0]
	parts := byInstance[active]
	sort.Slice(parts, func(i, j int) bool { return parts[i].seq < parts[j].seq })
	var out []byte
	for _, p := range parts {
		out = append(out, p.payload...)
	}
	return typeByInstance[active], out, nil
}

// WriteJPEGSegments splits data into APP11 segment payloads (§6.2),
// prefixing each with the common "JP"/instance/sequence/length/type
// header. maxPayload bounds each segment's content length; the caller is
// responsible for wrapping each returned payload with the FFEB marker and
// its own 2-byte JPEG segment length field (len(payload)+2 must fit in a
// uint16).
func WriteJPEGSegments(data []byte, boxType string, instance uint16, maxPayload int) ([][]byte, error) {
	if len(boxType) != 4 {
		return nil, newError(ErrBadSyntax, "jpeg: box type must be 4 bytes, got %q", boxType)
	}
	if maxPayload <= 0 {
		maxPayload = 65535 - 2 - jpegSegHeaderLen
	}
	var segments [][]byte
	seq := uint32(1)
	total := uint32(len(data))
	for off := 0; off < len(data) || len(segments) == 0; seq++ {
		end := off + maxPayload
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		seg := make([]byte, jpegSegHeaderLen+len(chunk))
		seg[0], seg[1] = 'J', 'P'
		binary.BigEndian.PutUint16(seg[2:4], instance)
		binary.BigEndian.PutUint32(seg[4:8], seq)
		binary.BigEndian.PutUint32(seg[8:12], total)
		copy(seg[12:16], boxType)
		copy(seg[jpegSegHeaderLen:], chunk)
		segments = append(segments, seg)
		off = end
		if off >= len(data) {
			break
		}
	}
	return segments, nil
}
