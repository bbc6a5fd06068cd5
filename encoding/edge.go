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

// EncodeEdge builds [prefix][from_vertex][to_vertex]. Lexicographic
// order of the encoded key equals (from, to) order, which lets
// iterators prefix-scan from either endpoint by choosing forward or
// reverse prefix.
func EncodeEdge(prefix Prefix, from, to []byte) []byte {
	out := make([]byte, 1+len(from)+len(to))
	out[0] = byte(prefix)
	n := copy(out[1:], from)
	copy(out[1+n:], to)
	return out
}

// EdgeFromPrefix returns the seek prefix [prefix][from_vertex], used to
// iterate every edge of this kind originating at from.
func EdgeFromPrefix(prefix Prefix, from []byte) []byte {
	out := make([]byte, 1+len(from))
	out[0] = byte(prefix)
	copy(out[1:], from)
	return out
}

// SplitEdge parses an edge key into its from/to vertex parts, given
// the known byte widths of each side (edges link vertices of known,
// fixed widths once the prefix and vertex kind are known).
func SplitEdge(key []byte, fromWidth, toWidth int) (from, to []byte, err error) {
	want := 1 + fromWidth + toWidth
	if len(key) != want {
		return nil, nil, fmt.Errorf("edge key must be %d bytes, got %d", want, len(key))
	}
	return key[1 : 1+fromWidth], key[1+fromWidth:], nil
}

// RoleTypeID identifies the role played in a Links edge.
type RoleTypeID = TypeID

// EncodeLinksEdge builds a relation->player links-edge augmented with
// the role type, laid out as [prefix][relation_vertex][role_type:2]
// [player_vertex] so that a prefix scan on [prefix][relation_vertex]
// yields all players of a relation, and on
// [prefix][relation_vertex][role_type] yields players of one role.
func EncodeLinksEdge(prefix Prefix, relation []byte, role TypeID, player []byte) []byte {
	out := make([]byte, 1+len(relation)+2+len(player))
	out[0] = byte(prefix)
	n := 1
	n += copy(out[n:], relation)
	binary.BigEndian.PutUint16(out[n:], uint16(role))
	n += 2
	copy(out[n:], player)
	return out
}

// SplitLinksEdge is the inverse of EncodeLinksEdge given the known
// vertex widths of each side.
func SplitLinksEdge(key []byte, relationWidth, playerWidth int) (relation []byte, role TypeID, player []byte, err error) {
	want := 1 + relationWidth + 2 + playerWidth
	if len(key) != want {
		return nil, 0, nil, fmt.Errorf("links edge key must be %d bytes, got %d", want, len(key))
	}
	relation = key[1 : 1+relationWidth]
	role = TypeID(binary.BigEndian.Uint16(key[1+relationWidth:]))
	player = key[1+relationWidth+2:]
	return relation, role, player, nil
}
