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

import "bytes"

// jumdToggleRequestable and friends are the bit flags of a jumd box's
// toggles byte (ISO/IEC 19566-5 §7.2.3).
const (
	jumdToggleRequestable  = 1 << 0
	jumdToggleHasLabel     = 1 << 1
	jumdToggleHasID        = 1 << 2
	jumdToggleHasSignature = 1 << 3
)

// Description is the parsed payload of a "jumd" box: the content-type UUID
// and label that identify what its enclosing "jumb" super-box contains.
type Description struct {
	UUID      [16]byte
	Toggles   byte
	Label     string
	ID        uint32
	HasID     bool
	Signature []byte
}

// ParseDescription decodes a jumd box payload.
func ParseDescription(payload []byte) (*Description, error) {
	if len(payload) < 17 {
		return nil, newError(ErrBadSyntax, "jumd: payload too short (%d bytes)", len(payload))
	}
	d := &Description{Toggles: payload[16]}
	copy(d.UUID[:], payload[:16])
	pos := 17
	if d.Toggles&jumdToggleHasLabel != 0 {
		end := bytes.IndexByte(payload[pos:], 0)
		if end < 0 {
			return nil, newError(ErrBadSyntax, "jumd: unterminated label")
		}
		d.Label = string(payload[pos : pos+end])
		pos += end + 1
	}
	if d.Toggles&jumdToggleHasID != 0 {
		if pos+4 > len(payload) {
			return nil, newError(ErrBadSyntax, "jumd: truncated id field")
		}
		d.ID = uint32(payload[pos])<<24 | uint32(payload[pos+1])<<16 | uint32(payload[pos+2])<<8 | uint32(payload[pos+3])
		d.HasID = true
		pos += 4
	}
	if d.Toggles&jumdToggleHasSignature != 0 {
		if pos+4 > len(payload) {
			return nil, newError(ErrBadSyntax, "jumd: truncated signature field")
		}
		d.Signature = append([]byte(nil), payload[pos:pos+4]...)
		pos += 4
	}
	return d, nil
}

// Encode renders the description back to its box payload form.
func (d *Description) Encode() []byte {
	toggles := d.Toggles
	if d.Label != "" {
		toggles |= jumdToggleHasLabel
	}
	if d.HasID {
		toggles |= jumdToggleHasID
	}
	if len(d.Signature) > 0 {
		toggles |= jumdToggleHasSignature
	}
	var buf bytes.Buffer
	buf.Write(d.UUID[:])
	buf.WriteByte(toggles)
	if toggles&jumdToggleHasLabel != 0 {
		buf.WriteString(d.Label)
		buf.WriteByte(0)
	}
	if toggles&jumdToggleHasID != 0 {
		buf.Write([]byte{byte(d.ID >> 24), byte(d.ID >> 16), byte(d.ID >> 8), byte(d.ID)})
	}
	if toggles&jumdToggleHasSignature != 0 {
		buf.Write(d.Signature)
	}
	return buf.Bytes()
}
