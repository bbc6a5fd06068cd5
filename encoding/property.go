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

// EncodeProperty builds a [prefix][vertex] property key: the layout
// shared by PropertyLabel, PropertyValueType and every
// PropertyAnnotation* prefix.
func EncodeProperty(prefix Prefix, vertex []byte) []byte {
	out := make([]byte, 1+len(vertex))
	out[0] = byte(prefix)
	copy(out[1:], vertex)
	return out
}

// DecodePropertyVertex strips the leading prefix byte off a property
// key, returning the vertex it annotates.
func DecodePropertyVertex(key []byte) []byte {
	if len(key) == 0 {
		return nil
	}
	return key[1:]
}
