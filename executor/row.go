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

package executor

import (
	"bytes"
	"sort"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
)

// BindingKind tags what kind of concept a Row's variable is currently
// bound to.
type BindingKind uint8

const (
	BindingUnbound BindingKind = iota
	BindingEntity
	BindingRelation
	BindingAttribute
	BindingType
	BindingValue
)

// Binding is the tagged value one variable holds within a Row. Only
// the fields matching Kind are meaningful.
type Binding struct {
	Kind BindingKind

	TypeID   encoding.TypeID  // BindingEntity/BindingRelation/BindingAttribute/BindingType
	ObjectID encoding.ObjectID // BindingEntity/BindingRelation

	// AttributeValue holds an attribute instance's encoded value bytes
	// (its identity, alongside TypeID) for BindingAttribute.
	AttributeValue []byte

	// Value holds a computed scalar for BindingValue (an Assignment
	// stage's result).
	Value annotation.Value
}

func EntityBinding(typeID encoding.TypeID, id encoding.ObjectID) Binding {
	return Binding{Kind: BindingEntity, TypeID: typeID, ObjectID: id}
}

func RelationBinding(typeID encoding.TypeID, id encoding.ObjectID) Binding {
	return Binding{Kind: BindingRelation, TypeID: typeID, ObjectID: id}
}

func AttributeBinding(typeID encoding.TypeID, value []byte) Binding {
	return Binding{Kind: BindingAttribute, TypeID: typeID, AttributeValue: value}
}

func TypeBinding(typeID encoding.TypeID) Binding {
	return Binding{Kind: BindingType, TypeID: typeID}
}

func ValueBinding(v annotation.Value) Binding {
	return Binding{Kind: BindingValue, Value: v}
}

// SortKey returns a byte encoding of the binding such that comparing
// two bindings' SortKeys lexicographically agrees with the engine's
// key ordering for the underlying vertex/value.
func (b Binding) SortKey() []byte {
	switch b.Kind {
	case BindingEntity:
		return encoding.EncodeObjectVertex(encoding.VertexEntity, b.TypeID, b.ObjectID)
	case BindingRelation:
		return encoding.EncodeObjectVertex(encoding.VertexRelation, b.TypeID, b.ObjectID)
	case BindingAttribute:
		return encoding.EncodeAttributeVertex(b.TypeID, b.AttributeValue)
	case BindingType:
		return encoding.EncodeTypeVertex(encoding.VertexEntityType, b.TypeID)
	case BindingValue:
		return valueSortKey(b.Value)
	default:
		return nil
	}
}

func valueSortKey(v annotation.Value) []byte {
	switch v.Kind {
	case annotation.ValueLong:
		return encoding.EncodeLong(v.Long)
	case annotation.ValueDouble:
		return encoding.EncodeDouble(v.Double)
	case annotation.ValueString:
		return encoding.EncodeString(v.Str)
	case annotation.ValueDecimal:
		return encoding.EncodeDecimal(v.Decimal)
	case annotation.ValueDateTime:
		return encoding.EncodeDateTime(v.DateTime)
	default:
		return nil
	}
}

// Row maps each bound variable to its Binding; a variable missing from
// the map is unbound. Rows are immutable from a stage's perspective: each stage
// produces new Row values rather than mutating its input in place, so
// upstream iterators may safely retain rows they have already yielded.
type Row map[ir.VariableID]Binding

// Clone returns a shallow copy safe to extend without mutating the
// original.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a clone of r with v bound to b.
func (r Row) With(v ir.VariableID, b Binding) Row {
	out := r.Clone()
	out[v] = b
	return out
}

// CompareRows orders two rows lexicographically over the sort keys of
// the given variables in order, matching the engine's key-order
// contract.
func CompareRows(a, b Row, order []ir.VariableID) int {
	for _, v := range order {
		c := bytes.Compare(a[v].SortKey(), b[v].SortKey())
		if c != 0 {
			return c
		}
	}
	return 0
}

// SortRows sorts rows in place by the sort keys of order, ascending.
func SortRows(rows []Row, order []ir.VariableID) {
	sort.SliceStable(rows, func(i, j int) bool {
		return CompareRows(rows[i], rows[j], order) < 0
	})
}
