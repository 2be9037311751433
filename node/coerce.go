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

import (
	"encoding/base64"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// IntValue coerces n to a value that fits signed 32 bits (§4.1). Wider
// numeric variants saturate to math.MinInt32/MaxInt32 rather than erroring.
func (n *Node) IntValue() (int32, error) {
	v, err := n.LongValue()
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	if v < math.MinInt32 {
		return math.MinInt32, nil
	}
	return int32(v), nil
}

// LongValue coerces n to a value that fits signed 64 bits. Wider variants
// (big-integer, double, big-decimal) saturate to math.MinInt64/MaxInt64.
func (n *Node) LongValue() (int64, error) {
	switch n.kind {
	case KindNumber:
		switch n.numKind {
		case NumberInt:
			return int64(n.i), nil
		case NumberLong:
			return n.i64, nil
		case NumberBigInt:
			if n.big.IsInt64() {
				return n.big.Int64(), nil
			}
			if n.big.Sign() > 0 {
				return math.MaxInt64, nil
			}
			return math.MinInt64, nil
		case NumberDouble:
			return saturateFloatToInt64(n.f), nil
		case NumberBigDecimal:
			return saturateFloatToInt64(n.bigdec.Float64()), nil
		}
	case KindString:
		i, ok := new(big.Int).SetString(strings.TrimSpace(n.s), 10)
		if !ok {
			return 0, newError(ErrBadCoercion, "string %q is not an exact integer", n.s)
		}
		if i.IsInt64() {
			return i.Int64(), nil
		}
		if i.Sign() > 0 {
			return math.MaxInt64, nil
		}
		return math.MinInt64, nil
	}
	return 0, newError(ErrBadCoercion, "cannot coerce %s to an integer", n.kind)
}

func saturateFloatToInt64(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	if f <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(f)
}

// DoubleValue coerces n to a double. Unlike the integer accessors this
// accepts any finite textual parse of a string (§4.1).
func (n *Node) DoubleValue() (float64, error) {
	switch n.kind {
	case KindNumber:
		switch n.numKind {
		case NumberInt:
			return float64(n.i), nil
		case NumberLong:
			return float64(n.i64), nil
		case NumberBigInt:
			f := new(big.Float).SetInt(n.big)
			v, _ := f.Float64()
			return v, nil
		case NumberDouble:
			return n.f, nil
		case NumberBigDecimal:
			return n.bigdec.Float64(), nil
		}
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(n.s), 64)
		if err != nil {
			return 0, newError(ErrBadCoercion, "string %q is not a finite number", n.s)
		}
		return f, nil
	}
	return 0, newError(ErrBadCoercion, "cannot coerce %s to a double", n.kind)
}

// BooleanValue coerces n to a boolean. Only boolean nodes succeed.
func (n *Node) BooleanValue() (bool, error) {
	if n.kind != KindBoolean {
		return false, newError(ErrBadCoercion, "cannot coerce %s to a boolean", n.kind)
	}
	return n.b, nil
}

// StringValue coerces n to a string: numbers render their canonical textual
// form, buffers render as standard-padded base64, and string returns itself.
func (n *Node) StringValue() (string, error) {
	switch n.kind {
	case KindString:
		return n.s, nil
	case KindNumber:
		return n.canonicalNumberString(), nil
	case KindBuffer:
		return base64.StdEncoding.EncodeToString(n.buf), nil
	case KindBoolean:
		if n.b {
			return "true", nil
		}
		return "false", nil
	}
	return "", newError(ErrBadCoercion, "cannot coerce %s to a string", n.kind)
}

func (n *Node) canonicalNumberString() string {
	switch n.numKind {
	case NumberInt:
		return strconv.FormatInt(int64(n.i), 10)
	case NumberLong:
		return strconv.FormatInt(n.i64, 10)
	case NumberBigInt:
		return n.big.String()
	case NumberDouble:
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	case NumberBigDecimal:
		return n.bigdec.String()
	}
	return ""
}

// BufferValue coerces n to a byte slice. Only buffer nodes succeed; strings
// are not implicitly base64-decoded (that conversion is the codec's job).
func (n *Node) BufferValue() ([]byte, error) {
	if n.kind != KindBuffer {
		return nil, newError(ErrBadCoercion, "cannot coerce %s to a buffer", n.kind)
	}
	out := make([]byte, len(n.buf))
	copy(out, n.buf)
	return out, nil
}
