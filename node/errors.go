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

package node

import "fmt"

// Kind classifies an Error so callers can branch on errors.As without
// string matching, mirroring the semantic error taxonomy in the design.
type ErrorKind string

const (
	ErrBadPath       ErrorKind = "bad_path"
	ErrBadCoercion   ErrorKind = "bad_coercion"
	ErrCycleOrShare  ErrorKind = "cycle_or_shared"
	ErrResourceLimit ErrorKind = "resource_limit"
	ErrBadSyntax     ErrorKind = "bad_syntax"
	ErrDuplicateKey  ErrorKind = "cbor_duplicate_key"
)

// Error is the error type returned by every node operation that can fail.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// NewStreamError builds a bad_syntax Error for malformed event streams,
// shared by the Builder and every codec reader (§7).
func NewStreamError(format string, args ...interface{}) *Error {
	return newError(ErrBadSyntax, format, args...)
}

// NewError is the exported constructor for Kind-tagged errors, used by
// packages layered above node (codecs, cose, box, c2pa) that want the same
// taxonomy without duplicating it.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return newError(kind, format, args...)
}

// WrapError is the exported constructor for Kind-tagged errors that wrap a
// cause.
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return wrapError(kind, err, format, args...)
}
