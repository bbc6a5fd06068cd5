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
	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
)

// decodeAttributeValue turns an attribute binding's encoded value
// bytes into a runtime Value, consulting the schema for its value
// type.
func decodeAttributeValue(cache *concept.TypeCache, b Binding) (annotation.Value, error) {
	t, ok := cache.ByID(b.TypeID)
	if !ok || t.ValueType == nil {
		return annotation.Value{}, dberrors.New(dberrors.Unexpected, "attribute type %d has no value type", b.TypeID)
	}
	switch *t.ValueType {
	case encoding.ValueTypeLong:
		v, err := encoding.DecodeLong(b.AttributeValue)
		return annotation.LongValue(v), err
	case encoding.ValueTypeDouble:
		v, err := encoding.DecodeDouble(b.AttributeValue)
		return annotation.DoubleValue(v), err
	case encoding.ValueTypeString:
		return annotation.StringValue(encoding.DecodeString(b.AttributeValue)), nil
	case encoding.ValueTypeDecimal:
		d, err := encoding.DecodeDecimal(b.AttributeValue)
		return annotation.Value{Kind: annotation.ValueDecimal, Decimal: d}, err
	case encoding.ValueTypeDateTime:
		dt, err := encoding.DecodeDateTime(b.AttributeValue)
		return annotation.Value{Kind: annotation.ValueDateTime, DateTime: dt}, err
	default:
		return annotation.Value{}, dberrors.New(dberrors.Unexpected, "unsupported value type %v for expression evaluation", *t.ValueType)
	}
}

// ResolveValue resolves a Row binding to a runtime Value, for callers
// outside this package that need the same BindingValue/BindingAttribute
// decoding match/reduce use internally — e.g. a function runtime
// reading a stream-return variable off a function body's result row.
func ResolveValue(cache *concept.TypeCache, b Binding) (annotation.Value, error) {
	return bindingToValue(cache, b)
}

// bindingToValue resolves a Row binding to a runtime Value for use in
// a Comparator, FunctionCallBinding or ExpressionBinding constraint.
func bindingToValue(cache *concept.TypeCache, b Binding) (annotation.Value, error) {
	switch b.Kind {
	case BindingValue:
		return b.Value, nil
	case BindingAttribute:
		return decodeAttributeValue(cache, b)
	default:
		return annotation.Value{}, dberrors.New(dberrors.ExpressionCompile, "variable bound to a %v concept has no scalar value", b.Kind)
	}
}

// rowToValueBindings projects every variable in row that carries a
// scalar value (directly or via an attribute instance) into the map
// shape annotation.Eval expects. Concept-typed bindings (entity,
// relation, type) are omitted; referencing one inside an expression
// surfaces as an unbound-variable error from Eval.
func rowToValueBindings(cache *concept.TypeCache, row Row) (map[ir.VariableID]annotation.Value, error) {
	out := make(map[ir.VariableID]annotation.Value, len(row))
	for v, b := range row {
		if b.Kind != BindingValue && b.Kind != BindingAttribute {
			continue
		}
		val, err := bindingToValue(cache, b)
		if err != nil {
			return nil, err
		}
		out[v] = val
	}
	return out, nil
}

// CallFunction invokes a (non-recursive) user-defined function by
// name, returning one Value per declared output. The function runtime
// supplies the concrete implementation; Context accepts nil when a plan is
// known not to call any function.
type CallFunction func(name string, args []annotation.Value) ([]annotation.Value, error)

// singleValuedCaller adapts a CallFunction to annotation.FunctionCaller
// for use inside a compiled expression, which only ever consumes one
// result per call.
func singleValuedCaller(fn CallFunction) annotation.FunctionCaller {
	return func(name string, args []annotation.Value) (annotation.Value, error) {
		if fn == nil {
			return annotation.Value{}, dberrors.New(dberrors.ExpressionCompile, "no function runtime configured to resolve %s", name)
		}
		out, err := fn(name, args)
		if err != nil {
			return annotation.Value{}, err
		}
		if len(out) != 1 {
			return annotation.Value{}, dberrors.New(dberrors.ExpressionCompile, "function %s must return exactly one value in an expression, got %d", name, len(out))
		}
		return out[0], nil
	}
}
