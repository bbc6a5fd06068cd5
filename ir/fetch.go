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

package ir

// FetchEntryKind tags a FetchEntry's active payload.
type FetchEntryKind uint8

const (
	// FetchEntryExpression projects a compiled expression's value.
	FetchEntryExpression FetchEntryKind = iota
	// FetchEntryAttributes projects every value of a has-edge target,
	// as a list.
	FetchEntryAttributes
	// FetchEntrySubFetch nests another Fetch document, run once per
	// input row against a sub-block (e.g. fetching a related entity's
	// own attributes).
	FetchEntrySubFetch
)

// FetchEntry is one labelled field of a fetched document: a value
// expression, every value of an attribute ownership edge, or a nested
// sub-document evaluated once per input row.
type FetchEntry struct {
	Key  string
	Kind FetchEntryKind

	Expression *Expression
	Attribute  VariableID
	SubFetch   *Fetch
}

// Fetch projects a tree of attributes/expressions per input row into
// a JSON-like document, rooted at a conjunction that supplies the
// bindings each entry reads.
type Fetch struct {
	Block   BlockID
	Entries []FetchEntry
}

func ExpressionEntry(key string, expr *Expression) FetchEntry {
	return FetchEntry{Key: key, Kind: FetchEntryExpression, Expression: expr}
}

func AttributesEntry(key string, attr VariableID) FetchEntry {
	return FetchEntry{Key: key, Kind: FetchEntryAttributes, Attribute: attr}
}

func SubFetchEntry(key string, sub *Fetch) FetchEntry {
	return FetchEntry{Key: key, Kind: FetchEntrySubFetch, SubFetch: sub}
}
