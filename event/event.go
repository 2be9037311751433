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

// Package event defines the pivot event stream shared by the JSON, CBOR and
// MsgPack codecs (§4.2), and a Builder that assembles a value tree from it.
package event

import "github.com/faceless2/json/node"

// Type enumerates the events in the shared stream.
type Type int

const (
	StartMap Type = iota
	EndMap
	StartList
	EndList
	Key
	Primitive
	Tag
	Simple
)

func (t Type) String() string {
	switch t {
	case StartMap:
		return "START_MAP"
	case EndMap:
		return "END_MAP"
	case StartList:
		return "START_LIST"
	case EndList:
		return "END_LIST"
	case Key:
		return "KEY"
	case Primitive:
		return "PRIMITIVE"
	case Tag:
		return "TAG"
	case Simple:
		return "SIMPLE"
	default:
		return "UNKNOWN"
	}
}

// Event is a single item of the pivot stream. Only the fields relevant to
// Type are populated.
type Event struct {
	Type  Type
	Key   string     // valid when Type == Key
	Value *node.Node // valid when Type == Primitive: a fresh, parentless leaf
	Tag   uint64     // valid when Type == Tag
	Code  uint64     // valid when Type == Simple
	Count int        // valid when Type == StartMap/StartList: child count, when known
}

// Reader is implemented by every codec's pull parser.
type Reader interface {
	// HasNext reports whether another event is available without consuming
	// it. In partial mode it returns false when input is exhausted even if
	// the root END event has not yet been seen; SetInput then resumes.
	HasNext() (bool, error)
	// Next consumes and returns the next event.
	Next() (Event, error)
	// Done reports whether the root container/value has been fully read.
	Done() bool
}

// Writer is implemented by every codec's push serializer.
type Writer interface {
	Write(Event) error
	// Close flushes any buffered output and finalizes the stream (e.g.
	// back-patches length-prefixed containers).
	Close() error
}
