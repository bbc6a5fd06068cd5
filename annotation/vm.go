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

import (
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/ir"
)

// FunctionCaller invokes a named, already-compiled function with
// scalar arguments, returning its single scalar result. The executor
// package supplies the concrete implementation backed by functionrt.
type FunctionCaller func(name string, args []Value) (Value, error)

// Eval runs a compiled Program against a row's current variable
// bindings, returning the single resulting value.
func Eval(prog Program, bindings map[ir.VariableID]Value, call FunctionCaller) (Value, error) {
	var stack []Value
	pop := func() Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, ins := range prog {
		switch ins.Op {
		case OpPushLong:
			stack = append(stack, LongValue(ins.Long))
		case OpPushDouble:
			stack = append(stack, DoubleValue(ins.Double))
		case OpPushString:
			stack = append(stack, StringValue(ins.Str))
		case OpPushVar:
			v, ok := bindings[ins.Var]
			if !ok {
				return Value{}, dberrors.New(dberrors.ExpressionCompile, "unbound variable in expression")
			}
			stack = append(stack, v)
		case OpBinary:
			rhs := pop()
			lhs := pop()
			result, err := evalBinary(ins.BinaryOp, lhs, rhs)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, result)
		case OpCallFunction:
			if call == nil {
				return Value{}, dberrors.New(dberrors.ExpressionCompile, "function calls require a FunctionCaller")
			}
			args := make([]Value, ins.ArgCount)
			for i := ins.ArgCount - 1; i >= 0; i-- {
				args[i] = pop()
			}
			result, err := call(ins.FunctionName, args)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, result)
		case OpListIndex:
			idx := pop()
			list := pop()
			result, err := evalListIndex(list, idx)
			if err != nil {
				return Value{}, err
			}
			stack = append(stack, result)
		default:
			return Value{}, dberrors.New(dberrors.ExpressionCompile, "unknown opcode %d", ins.Op)
		}
	}
	if len(stack) != 1 {
		return Value{}, dberrors.New(dberrors.ExpressionCompile, "expression did not reduce to a single value")
	}
	return stack[0], nil
}

func evalBinary(op ir.BinaryOp, lhs, rhs Value) (Value, error) {
	if !lhs.IsNumeric() || !rhs.IsNumeric() {
		return Value{}, dberrors.New(dberrors.ExpressionCompile, "UnsupportedOperandsForOperation: non-numeric operand")
	}
	// Implicit cast: if either side is Double, promote both to Double;
	// otherwise stay in Long.
	if lhs.Kind == ValueDouble || rhs.Kind == ValueDouble {
		a, b := asDouble(lhs), asDouble(rhs)
		v, err := applyDouble(op, a, b)
		return DoubleValue(v), err
	}
	v, err := applyLong(op, lhs.Long, rhs.Long)
	return LongValue(v), err
}

func asDouble(v Value) float64 {
	if v.Kind == ValueDouble {
		return v.Double
	}
	return float64(v.Long)
}

func applyLong(op ir.BinaryOp, a, b int64) (int64, error) {
	switch op {
	case ir.OpAdd:
		return a + b, nil
	case ir.OpSub:
		return a - b, nil
	case ir.OpMul:
		return a * b, nil
	case ir.OpDiv:
		if b == 0 {
			return 0, dberrors.New(dberrors.ExpressionCompile, "division by zero")
		}
		return a / b, nil
	case ir.OpModulo:
		if b == 0 {
			return 0, dberrors.New(dberrors.ExpressionCompile, "modulo by zero")
		}
		return a % b, nil
	case ir.OpPower:
		result := int64(1)
		for i := int64(0); i < b; i++ {
			result *= a
		}
		return result, nil
	default:
		return 0, dberrors.New(dberrors.ExpressionCompile, "unknown binary op %d", op)
	}
}

func applyDouble(op ir.BinaryOp, a, b float64) (float64, error) {
	switch op {
	case ir.OpAdd:
		return a + b, nil
	case ir.OpSub:
		return a - b, nil
	case ir.OpMul:
		return a * b, nil
	case ir.OpDiv:
		if b == 0 {
			return 0, dberrors.New(dberrors.ExpressionCompile, "division by zero")
		}
		return a / b, nil
	case ir.OpModulo:
		return 0, dberrors.New(dberrors.ExpressionCompile, "modulo is not defined over Double operands")
	case ir.OpPower:
		result := 1.0
		for i := 0; i < int(b); i++ {
			result *= a
		}
		return result, nil
	default:
		return 0, dberrors.New(dberrors.ExpressionCompile, "unknown binary op %d", op)
	}
}

func evalListIndex(list, idx Value) (Value, error) {
	if idx.Kind != ValueLong {
		return Value{}, dberrors.New(dberrors.ExpressionCompile, "list index must be Long")
	}
	i := idx.Long
	switch list.Kind {
	case ValueLongList:
		if i < 0 || i >= int64(len(list.LongList)) {
			return Value{}, dberrors.New(dberrors.ExpressionCompile, "ListIndexOutOfRange: index %d, length %d", i, len(list.LongList))
		}
		return LongValue(list.LongList[i]), nil
	case ValueDoubleList:
		if i < 0 || i >= int64(len(list.DoubleList)) {
			return Value{}, dberrors.New(dberrors.ExpressionCompile, "ListIndexOutOfRange: index %d, length %d", i, len(list.DoubleList))
		}
		return DoubleValue(list.DoubleList[i]), nil
	default:
		return Value{}, dberrors.New(dberrors.ExpressionCompile, "not a list value")
	}
}
