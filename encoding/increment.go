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

import "github.com/gradb/gradb/dberrors"

// Increment treats b as a big-endian unsigned integer and returns b+1
// as a freshly-allocated slice of the same length, used to form
// exclusive upper bounds for prefix scans. It fails with
// dberrors.Encoding/IncrementOverflow semantics when b is all 0xFF.
func Increment(b []byte) ([]byte, error) {
	out := make([]byte, len(b))
	copy(out, b)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out, nil
		}
		out[i] = 0
	}
	return nil, dberrors.New(dberrors.Encoding, "IncrementOverflow: all bytes are 0xFF")
}

// PrefixUpperBound returns the exclusive upper bound of the range of
// all keys sharing the given prefix: Increment(prefix), or nil (meaning
// unbounded) if the prefix is all 0xFF.
func PrefixUpperBound(prefix []byte) []byte {
	ub, err := Increment(prefix)
	if err != nil {
		return nil
	}
	return ub
}
