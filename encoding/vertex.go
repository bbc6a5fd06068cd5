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

// TypeID is a 16-bit type identifier, big-endian when encoded.
type TypeID uint16

// ObjectID is a 64-bit instance identifier for entities and relations,
// process-local and monotonic per type.
type ObjectID uint64

// TypeVertexLength is the byte length of an encoded type vertex key:
// [prefix:1][type_id:2].
const TypeVertexLength = 1 + 2

// EncodeTypeVertex builds the key [prefix][type_id] for an
// entity/relation/role/attribute type.
func EncodeTypeVertex(prefix Prefix, id TypeID) []byte {
	if !prefix.IsTypeVertex() {
		panic(fmt.Sprintf("%s is not a type-vertex prefix", prefix))
	}
	out := make([]byte, TypeVertexLength)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint16(out[1:], uint16(id))
	return out
}

// DecodeTypeVertex is the inverse of EncodeTypeVertex.
func DecodeTypeVertex(b []byte) (Prefix, TypeID, error) {
	if len(b) != TypeVertexLength {
		return 0, 0, fmt.Errorf("type vertex must be %d bytes, got %d", TypeVertexLength, len(b))
	}
	return Prefix(b[0]), TypeID(binary.BigEndian.Uint16(b[1:])), nil
}

// ObjectVertexLength is the byte length of an entity/relation vertex
// key: [prefix:1][type_id:2][object_id:8].
const ObjectVertexLength = 1 + 2 + 8

// EncodeObjectVertex builds the key for an entity or relation instance.
func EncodeObjectVertex(prefix Prefix, typeID TypeID, objectID ObjectID) []byte {
	if prefix != VertexEntity && prefix != VertexRelation {
		panic(fmt.Sprintf("%s is not an object-vertex prefix", prefix))
	}
	out := make([]byte, ObjectVertexLength)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint16(out[1:3], uint16(typeID))
	binary.BigEndian.PutUint64(out[3:], uint64(objectID))
	return out
}

// DecodeObjectVertex is the inverse of EncodeObjectVertex.
func DecodeObjectVertex(b []byte) (Prefix, TypeID, ObjectID, error) {
	if len(b) != ObjectVertexLength {
		return 0, 0, 0, fmt.Errorf("object vertex must be %d bytes, got %d", ObjectVertexLength, len(b))
	}
	return Prefix(b[0]), TypeID(binary.BigEndian.Uint16(b[1:3])), ObjectID(binary.BigEndian.Uint64(b[3:])), nil
}

// EncodeAttributeVertex builds an attribute instance key: [prefix:1]
// [type_id:2][value_encoding...]. Attribute identity is the (type,
// value) pair, so there is no separate object id.
func EncodeAttributeVertex(typeID TypeID, encodedValue []byte) []byte {
	out := make([]byte, 1+2+len(encodedValue))
	out[0] = byte(VertexAttribute)
	binary.BigEndian.PutUint16(out[1:3], uint16(typeID))
	copy(out[3:], encodedValue)
	return out
}

// DecodeAttributeVertex splits an attribute vertex key into its type
// id and encoded value tail; the caller must know the value type (from
// schema) to further decode the tail.
func DecodeAttributeVertex(b []byte) (TypeID, []byte, error) {
	if len(b) < 3 || Prefix(b[0]) != VertexAttribute {
		return 0, nil, fmt.Errorf("not an attribute vertex key: %x", b)
	}
	return TypeID(binary.BigEndian.Uint16(b[1:3])), b[3:], nil
}

// AttributeVertexTypePrefix returns the prefix bytes [VertexAttribute]
// [type_id] shared by every instance of one attribute type — the seek
// prefix used to scan all attributes of a type.
func AttributeVertexTypePrefix(typeID TypeID) []byte {
	out := make([]byte, 3)
	out[0] = byte(VertexAttribute)
	binary.BigEndian.PutUint16(out[1:3], uint16(typeID))
	return out
}
