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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeTypeVertexRoundTrip(t *testing.T) {
	key := EncodeTypeVertex(VertexEntityType, 42)
	prefix, id, err := DecodeTypeVertex(key)
	require.NoError(t, err)
	require.Equal(t, VertexEntityType, prefix)
	require.Equal(t, TypeID(42), id)
}

func TestEncodeObjectVertexRoundTrip(t *testing.T) {
	key := EncodeObjectVertex(VertexEntity, 7, 1001)
	prefix, typeID, objID, err := DecodeObjectVertex(key)
	require.NoError(t, err)
	require.Equal(t, VertexEntity, prefix)
	require.Equal(t, TypeID(7), typeID)
	require.Equal(t, ObjectID(1001), objID)
}

func TestEncodeAttributeVertexPrefixScan(t *testing.T) {
	a := EncodeAttributeVertex(3, EncodeString("alice"))
	b := EncodeAttributeVertex(3, EncodeString("bob"))
	prefix := AttributeVertexTypePrefix(3)
	require.True(t, bytes.HasPrefix(a, prefix))
	require.True(t, bytes.HasPrefix(b, prefix))
	require.True(t, bytes.Compare(a, b) < 0) // "alice" < "bob"
}

func TestTypeVertexOrderingGroupsByTypeID(t *testing.T) {
	low := EncodeTypeVertex(VertexEntityType, 1)
	high := EncodeTypeVertex(VertexEntityType, 2)
	require.True(t, bytes.Compare(low, high) < 0)
}
