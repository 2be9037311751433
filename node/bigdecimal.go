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
	"math/big"
	"strings"
)

// BigDecimal is an arbitrary-precision decimal: unscaled * 10^-scale,
// matching the semantics of the optional big-decimal number variant in §3.1.
type BigDecimal struct {
	Unscaled *big.Int
	Scale    int32
}

// ParseBigDecimal parses a decimal literal such as "123.456" or "-1.2E10".
func ParseBigDecimal(s string) (*BigDecimal, bool) {
	orig := s
	exp := int32(0)
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, ok := new(big.Int).SetString(s[i+1:], 10)
		if !ok {
			return nil, false
		}
		if !e.IsInt64() {
			return nil, false
		}
		exp = int32(e.Int64())
		s = s[:i]
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	scale := int32(0)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		scale = int32(len(s) - dot - 1)
		s = s[:dot] + s[dot+1:]
	}
	if s == "" {
		return nil, false
	}
	unscaled, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, false
	}
	if neg {
		unscaled.Neg(unscaled)
	}
	scale -= exp
	if scale < 0 {
		// normalise: multiply unscaled by 10^-scale so Scale is never negative
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-scale)), nil)
		unscaled.Mul(unscaled, mul)
		scale = 0
	}
	_ = orig
	return &BigDecimal{Unscaled: unscaled, Scale: scale}, true
}

// String renders the canonical textual form, e.g. "123.456".
func (d *BigDecimal) String() string {
	if d.Scale == 0 {
		return d.Unscaled.String()
	}
	s := new(big.Int).Abs(d.Unscaled).String()
	for int32(len(s)) <= d.Scale {
		s = "0" + s
	}
	intPart := s[:int32(len(s))-d.Scale]
	fracPart := s[int32(len(s))-d.Scale:]
	sign := ""
	if d.Unscaled.Sign() < 0 {
		sign = "-"
	}
	return sign + intPart + "." + fracPart
}

// Float64 returns the nearest double approximation.
func (d *BigDecimal) Float64() float64 {
	f := new(big.Float).SetInt(d.Unscaled)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil))
	f.Quo(f, scale)
	v, _ := f.Float64()
	return v
}
