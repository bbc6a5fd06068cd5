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
	"testing"

	"github.com/gradb/gradb/dberrors"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func decodeBE(b []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}

func TestIncrementMatchesDecodePlusOne(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint32Range(0, 0xFFFFFFFE).Draw(t, "n")
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, n)
		inc, err := Increment(b)
		require.NoError(t, err)
		require.Equal(t, uint64(n)+1, decodeBE(inc))
	})
}

func TestIncrementOverflow(t *testing.T) {
	all0xFF := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	_, err := Increment(all0xFF)
	require.Error(t, err)
	require.Equal(t, dberrors.Encoding, dberrors.CodeOf(err))
}

func TestIncrementDoesNotMutateInput(t *testing.T) {
	in := []byte{0x00, 0x01}
	cp := append([]byte(nil), in...)
	_, err := Increment(in)
	require.NoError(t, err)
	require.Equal(t, cp, in)
}
