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

package annotation

import "github.com/gradb/gradb/encoding"

// ValueKind tags a Value's active payload, mirroring
// encoding.ValueType but scoped to runtime stack-VM values: Long,
// Double, Decimal, DateTime, String, and their list forms.
type ValueKind uint8

const (
	ValueLong ValueKind = iota
	ValueDouble
	ValueDecimal
	ValueDateTime
	ValueString
	ValueLongList
	ValueDoubleList
)

// Value is one runtime stack-VM value.
type Value struct {
	Kind       ValueKind
	Long       int64
	Double     float64
	Decimal    encoding.Decimal
	DateTime   encoding.DateTime
	Str        string
	LongList   []int64
	DoubleList []float64
}

func LongValue(v int64) Value     { return Value{Kind: ValueLong, Long: v} }
func DoubleValue(v float64) Value { return Value{Kind: ValueDouble, Double: v} }
func StringValue(v string) Value  { return Value{Kind: ValueString, Str: v} }

// IsNumeric reports whether the value's kind participates in implicit
// numeric casts.
func (v Value) IsNumeric() bool {
	return v.Kind == ValueLong || v.Kind == ValueDouble || v.Kind == ValueDecimal
}
