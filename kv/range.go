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

package kv

import "github.com/gradb/gradb/encoding"

// BoundKind classifies one end of a Range.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Inclusive
	Exclusive
)

// Bound is one end of a Range.
type Bound struct {
	Kind BoundKind
	Key  []byte
}

// Range is a half-open (or fully/partially unbounded) key interval
// passed to IterateRange.
type Range struct {
	Start Bound
	End   Bound
}

// PrefixRange builds the range of every key beginning with prefix,
// using Increment to form the exclusive upper bound. An all-0xFF
// prefix has no finite upper bound, in which case End is Unbounded.
func PrefixRange(prefix []byte) Range {
	r := Range{Start: Bound{Kind: Inclusive, Key: prefix}}
	if upper := encoding.PrefixUpperBound(prefix); upper != nil {
		r.End = Bound{Kind: Exclusive, Key: upper}
	} else {
		r.End = Bound{Kind: Unbounded}
	}
	return r
}

// Full is the unbounded range over an entire keyspace.
func Full() Range {
	return Range{Start: Bound{Kind: Unbounded}, End: Bound{Kind: Unbounded}}
}
