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

// Package cborio implements the CBOR (RFC 7049/8949) reader/writer over the
// shared pivot event stream (§4.4).
package cborio

import "github.com/faceless2/json/node"

// KeyCoercer turns a non-string CBOR map key into the string key the value
// tree requires. The default rejects nothing: it renders the key via
// StringValue, matching the canonical textual form used elsewhere in the
// tree (§4.4 "non-string map keys").
type KeyCoercer func(key *node.Node) (string, error)

func defaultKeyCoercer(key *node.Node) (string, error) { return key.StringValue() }

// ReaderOptions configures the CBOR reader.
type ReaderOptions struct {
	AllowTrailingEOF bool // partial-parse/resumable mode (§5)
	MaxRecursion     int
	KeyCoercer       KeyCoercer
}

func (o ReaderOptions) coercer() KeyCoercer {
	if o.KeyCoercer != nil {
		return o.KeyCoercer
	}
	return defaultKeyCoercer
}

// WriterOptions configures the CBOR writer.
type WriterOptions struct {
	// Canonical writes RFC 7049 §3.9 canonical CBOR: definite-length
	// containers, shortest-form integers, and map keys sorted by their
	// encoded byte representation. Floating-point values are always
	// written as 8-byte doubles, with or without Canonical; half and
	// single precision forms are never emitted.
	Canonical bool
	Sorted    bool
	MaxRecursion int
}
