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

// Package annotation implements the two compile-time passes that run
// between IR construction and planning: type/value-type inference over a
// conjunction's variables, and expression compilation to a small stack VM.
package annotation

import "github.com/gradb/gradb/encoding"

// TypeSet is the set of type ids a variable may be bound to, narrowed
// by each round of the inference fixpoint.
type TypeSet map[encoding.TypeID]struct{}

// NewTypeSet builds a set from the given ids.
func NewTypeSet(ids ...encoding.TypeID) TypeSet {
	s := make(TypeSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Intersect returns a new set containing only ids present in both
// a and b.
func (a TypeSet) Intersect(b TypeSet) TypeSet {
	out := make(TypeSet)
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Union returns a new set containing every id in a or b.
func (a TypeSet) Union(b TypeSet) TypeSet {
	out := make(TypeSet, len(a)+len(b))
	for id := range a {
		out[id] = struct{}{}
	}
	for id := range b {
		out[id] = struct{}{}
	}
	return out
}

// Equal reports whether a and b contain exactly the same ids.
func (a TypeSet) Equal(b TypeSet) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// Slice returns the set's members in no particular order.
func (a TypeSet) Slice() []encoding.TypeID {
	out := make([]encoding.TypeID, 0, len(a))
	for id := range a {
		out = append(out, id)
	}
	return out
}
