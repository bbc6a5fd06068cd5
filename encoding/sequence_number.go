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
)

// SequenceNumberLength is the width of a SequenceNumber in bytes: an
// 80-bit monotonic integer, not a uint64.
const SequenceNumberLength = 10

// SequenceNumber is a global, monotonic 80-bit identifier of a durable
// event, kept as a fixed-width big-endian byte array rather than a
// uint64. The WAL numbers its own records with a uint64
// (durability.Record.Seq) and does not use this type.
type SequenceNumber [SequenceNumberLength]byte

// MinSequenceNumber is the smallest possible sequence number.
var MinSequenceNumber = SequenceNumber{}

// MaxSequenceNumber is the largest representable 80-bit sequence number.
var MaxSequenceNumber = SequenceNumber{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// SequenceNumberFromUint64 builds a SequenceNumber from a uint64 (the
// common case; the top two bytes stay zero until the log truly needs
// the extra headroom).
func SequenceNumberFromUint64(n uint64) SequenceNumber {
	var s SequenceNumber
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	copy(s[2:], buf[:])
	return s
}

// Uint64 returns the numeric value, panicking if it does not fit in 64
// bits (it never should in this engine's lifetime, but the check keeps
// the narrowing honest).
func (s SequenceNumber) Uint64() uint64 {
	if s[0] != 0 || s[1] != 0 {
		panic(fmt.Sprintf("sequence number %x exceeds 64 bits", s[:]))
	}
	return binary.BigEndian.Uint64(s[2:])
}

// Bytes returns the big-endian byte representation used as a key
// suffix / WAL record ordering key.
func (s SequenceNumber) Bytes() []byte {
	b := make([]byte, SequenceNumberLength)
	copy(b, s[:])
	return b
}

// SequenceNumberFromBytes parses the canonical 10-byte representation.
func SequenceNumberFromBytes(b []byte) (SequenceNumber, error) {
	if len(b) != SequenceNumberLength {
		return SequenceNumber{}, fmt.Errorf("sequence number must be %d bytes, got %d", SequenceNumberLength, len(b))
	}
	var s SequenceNumber
	copy(s[:], b)
	return s, nil
}

// Compare returns -1, 0 or 1 as s is less than, equal to, or greater
// than other — lexicographic on the big-endian bytes, which equals
// numeric order.
func (s SequenceNumber) Compare(other SequenceNumber) int {
	for i := range s {
		if s[i] != other[i] {
			if s[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Less reports s < other.
func (s SequenceNumber) Less(other SequenceNumber) bool { return s.Compare(other) < 0 }

// Next returns s+1, failing with an error once the 80-bit space is
// exhausted (practically unreachable, but kept total per Increment's
// contract, see increment.go).
func (s SequenceNumber) Next() (SequenceNumber, error) {
	b := s.Bytes()
	inc, err := Increment(b)
	if err != nil {
		return SequenceNumber{}, err
	}
	return SequenceNumberFromBytes(inc)
}

// String renders a compact decimal form when the value fits in 64
// bits (always true for any realistically operated database), and a
// hex form otherwise.
func (s SequenceNumber) String() string {
	if s[0] == 0 && s[1] == 0 {
		return fmt.Sprintf("%d", s.Uint64())
	}
	return fmt.Sprintf("0x%x", s[:])
}
