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

import "encoding/binary"

// DefinitionKey identifies a user-defined function or struct
// definition: [prefix:1][id:4].
type DefinitionKey uint32

// EncodeDefinitionKey builds the persisted key for a function or
// struct definition.
func EncodeDefinitionKey(prefix Prefix, id DefinitionKey) []byte {
	if prefix != DefinitionStruct && prefix != DefinitionFunction {
		panic("not a definition prefix")
	}
	out := make([]byte, 5)
	out[0] = byte(prefix)
	binary.BigEndian.PutUint32(out[1:], uint32(id))
	return out
}

// DefinitionKeyGenerator hands out monotonic definition ids per prefix,
// mirroring TypeIDAllocator's scan-from-top strategy but over a wider
// 32-bit space (functions/structs are far less numerous than types,
// but definitions are never renumbered either).
type DefinitionKeyGenerator struct {
	prefix Prefix
}

// NewDefinitionKeyGenerator builds a generator for one definition prefix.
func NewDefinitionKeyGenerator(prefix Prefix) *DefinitionKeyGenerator {
	return &DefinitionKeyGenerator{prefix: prefix}
}

// Allocate returns the next free DefinitionKey, scanning backward from
// the top of the id space via snap, exactly like TypeIDAllocator.
func (g *DefinitionKeyGenerator) Allocate(snap PrevScanner) (DefinitionKey, error) {
	top := EncodeDefinitionKey(g.prefix, ^DefinitionKey(0))
	key, _, ok, err := snap.GetPrev(top)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	existing := binary.BigEndian.Uint32(key[1:])
	return DefinitionKey(existing) + 1, nil
}
