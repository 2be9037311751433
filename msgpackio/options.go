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

// Package msgpackio implements the MessagePack reader/writer over the
// shared pivot event stream (§4.5). No third-party MessagePack library
// appears anywhere in the retrieved example pack, so this codec is built
// directly on the event stream the way the pack's own hand-rolled wire
// codecs are (see DESIGN.md).
package msgpackio

import "github.com/faceless2/json/node"

// ReaderOptions configures the MessagePack reader.
type ReaderOptions struct {
	AllowTrailingEOF bool
	MaxRecursion     int
	KeyCoercer       func(key *node.Node) (string, error)
}

func (o ReaderOptions) coercer() func(*node.Node) (string, error) {
	if o.KeyCoercer != nil {
		return o.KeyCoercer
	}
	return func(k *node.Node) (string, error) { return k.StringValue() }
}

// WriterOptions configures the MessagePack writer.
type WriterOptions struct {
	Sorted       bool
	MaxRecursion int
}
