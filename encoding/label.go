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

// Label is a type's name, optionally scoped (relations scope their
// role labels, e.g. "marriage:spouse").
type Label struct {
	Name  string
	Scope string // empty if unscoped
}

// NewLabel builds an unscoped label.
func NewLabel(name string) Label { return Label{Name: name} }

// NewScopedLabel builds a scoped label, used for role labels.
func NewScopedLabel(name, scope string) Label { return Label{Name: name, Scope: scope} }

// Scoped reports whether this label carries a scope.
func (l Label) Scoped() bool { return l.Scope != "" }

// String renders "scope:name" when scoped, else "name".
func (l Label) String() string {
	if l.Scoped() {
		return l.Scope + ":" + l.Name
	}
	return l.Name
}

// EncodePropertyLabel builds the PropertyLabel key for a type vertex:
// [PropertyLabel][type_vertex]. The value stored at this key is the
// label's encoded string form (see EncodeLabelValue).
func EncodePropertyLabel(typeVertex []byte) []byte {
	out := make([]byte, 1+len(typeVertex))
	out[0] = byte(PropertyLabel)
	copy(out[1:], typeVertex)
	return out
}

// EncodeLabelValue serialises a Label as its stored property value:
// "scope\x00name" when scoped (NUL cannot appear in either half since
// labels are identifier-like), else just "name".
func EncodeLabelValue(l Label) []byte {
	if !l.Scoped() {
		return []byte(l.Name)
	}
	out := make([]byte, 0, len(l.Scope)+1+len(l.Name))
	out = append(out, l.Scope...)
	out = append(out, 0)
	out = append(out, l.Name...)
	return out
}

// DecodeLabelValue is the inverse of EncodeLabelValue.
func DecodeLabelValue(b []byte) Label {
	for i, c := range b {
		if c == 0 {
			return Label{Scope: string(b[:i]), Name: string(b[i+1:])}
		}
	}
	return Label{Name: string(b)}
}
