// Copyright 2024 The Gradb Authors
// This file is part of Gradb.
//
// Gradb is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gradb is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Gradb. If not, see <http://www.gnu.org/licenses/>.

package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ValueType enumerates the attribute value types the encoding layer
// knows how to sort-preservingly encode. Struct-typed values are
// intentionally absent: their value encoding is stubbed Open Questions
// (definition keys exist in definition.go, but there is no struct VALUE
// codec here).
type ValueType uint8

const (
	ValueTypeBoolean ValueType = iota + 1
	ValueTypeLong
	ValueTypeDouble
	ValueTypeDecimal
	ValueTypeString
	ValueTypeDate
	ValueTypeDateTime
	ValueTypeDuration
)

// DecimalFractionalDenominator is the fixed denominator used by the
// decimal encoding's fractional part, fixed here to 10^19 and
// unit-tested (see value_test.go).
const DecimalFractionalDenominator uint64 = 10_000_000_000_000_000_000 // 10^19

// EncodeBoolean sort-preservingly encodes a boolean as a single byte.
func EncodeBoolean(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// DecodeBoolean is the inverse of EncodeBoolean.
func DecodeBoolean(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, fmt.Errorf("boolean encoding must be 1 byte, got %d", len(b))
	}
	return b[0] != 0, nil
}

// EncodeLong sort-preservingly encodes a signed 64-bit integer: the
// sign bit is flipped (x XOR MIN) so natural lexicographic order over
// the big-endian bytes equals signed numeric order.
func EncodeLong(v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, u)
	return b
}

// DecodeLong is the inverse of EncodeLong.
func DecodeLong(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("long encoding must be 8 bytes, got %d", len(b))
	}
	u := binary.BigEndian.Uint64(b) ^ (1 << 63)
	return int64(u), nil
}

// EncodeDouble sort-preservingly encodes an IEEE-754 double: for
// non-negative numbers the sign bit is set; for negative numbers every
// bit is flipped. This is the standard sign-magnitude adjustment that
// makes the big-endian byte order of the transformed bits match
// floating-point order, including across the zero boundary.
func EncodeDouble(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, bits)
	return b
}

// DecodeDouble is the inverse of EncodeDouble.
func DecodeDouble(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("double encoding must be 8 bytes, got %d", len(b))
	}
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits), nil
}

// Decimal is a fixed-point value: an integer part and a fractional
// part expressed as a numerator over DecimalFractionalDenominator.
type Decimal struct {
	Integer    int64
	Fractional uint64 // numerator over DecimalFractionalDenominator
}

// EncodeDecimal encodes a Decimal as a signed 64-bit integer part
// followed by an unsigned 64-bit fractional part. Both halves use their
// respective sort-preserving integer encodings so the concatenation orders
// correctly for equal integer parts.
func EncodeDecimal(d Decimal) []byte {
	out := make([]byte, 16)
	copy(out[:8], EncodeLong(d.Integer))
	binary.BigEndian.PutUint64(out[8:], d.Fractional)
	return out
}

// DecodeDecimal is the inverse of EncodeDecimal.
func DecodeDecimal(b []byte) (Decimal, error) {
	if len(b) != 16 {
		return Decimal{}, fmt.Errorf("decimal encoding must be 16 bytes, got %d", len(b))
	}
	integer, err := DecodeLong(b[:8])
	if err != nil {
		return Decimal{}, err
	}
	fractional := binary.BigEndian.Uint64(b[8:])
	return Decimal{Integer: integer, Fractional: fractional}, nil
}

// EncodeDate encodes a day count (days since the Unix epoch, may be
// negative) as a fixed-width big-endian integer.
func EncodeDate(daysSinceEpoch int64) []byte {
	return EncodeLong(daysSinceEpoch)
}

// DecodeDate is the inverse of EncodeDate.
func DecodeDate(b []byte) (int64, error) { return DecodeLong(b) }

// DateTime is a seconds+nanos pair relative to the Unix epoch.
type DateTime struct {
	Seconds int64
	Nanos   uint32
}

// EncodeDateTime encodes seconds (sign-flipped signed) followed by
// nanoseconds (plain unsigned big-endian, always in [0, 1e9)).
func EncodeDateTime(dt DateTime) []byte {
	out := make([]byte, 12)
	copy(out[:8], EncodeLong(dt.Seconds))
	binary.BigEndian.PutUint32(out[8:], dt.Nanos)
	return out
}

// DecodeDateTime is the inverse of EncodeDateTime.
func DecodeDateTime(b []byte) (DateTime, error) {
	if len(b) != 12 {
		return DateTime{}, fmt.Errorf("datetime encoding must be 12 bytes, got %d", len(b))
	}
	seconds, err := DecodeLong(b[:8])
	if err != nil {
		return DateTime{}, err
	}
	nanos := binary.BigEndian.Uint32(b[8:])
	return DateTime{Seconds: seconds, Nanos: nanos}, nil
}

// Duration is a calendar duration expressed as four independent
// fields, matching the original source's month/day/seconds/nanos split
// ; durations are not totally ordered and are not compared
// byte-lexicographically by this engine.
type Duration struct {
	Months  uint32
	Days    uint32
	Seconds uint32
	Nanos   uint32
}

// EncodeDuration lays out the four fields as big-endian uint32s, in
// the order months, days, seconds, nanos.
func EncodeDuration(d Duration) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint32(out[0:], d.Months)
	binary.BigEndian.PutUint32(out[4:], d.Days)
	binary.BigEndian.PutUint32(out[8:], d.Seconds)
	binary.BigEndian.PutUint32(out[12:], d.Nanos)
	return out
}

// DecodeDuration is the inverse of EncodeDuration.
func DecodeDuration(b []byte) (Duration, error) {
	if len(b) != 16 {
		return Duration{}, fmt.Errorf("duration encoding must be 16 bytes, got %d", len(b))
	}
	return Duration{
		Months:  binary.BigEndian.Uint32(b[0:]),
		Days:    binary.BigEndian.Uint32(b[4:]),
		Seconds: binary.BigEndian.Uint32(b[8:]),
		Nanos:   binary.BigEndian.Uint32(b[12:]),
	}, nil
}

// EncodeString encodes a string as its raw UTF-8 bytes: byte order
// equals code-point order for valid UTF-8, so no transformation is
// needed.
func EncodeString(s string) []byte { return []byte(s) }

// DecodeString is the inverse of EncodeString.
func DecodeString(b []byte) string { return string(b) }

// Compare returns -1/0/1 comparing two values of the same ValueType by
// their encoded byte representation — the contract every iterator in
// this engine relies on.
func Compare(vt ValueType, a, b []byte) int {
	_ = vt // comparison is always lexicographic once encoded; vt documents intent
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
