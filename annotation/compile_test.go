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
	"testing"

	"github.com/gradb/gradb/ir"
	"github.com/stretchr/testify/require"
)

func TestCompileAndEvalLongArithmetic(t *testing.T) {
	// (2 + 3) * 4
	expr := ir.BinaryOpExprOf(ir.OpMul,
		ir.BinaryOpExprOf(ir.OpAdd, ir.LiteralLong(2), ir.LiteralLong(3)),
		ir.LiteralLong(4),
	)
	prog, err := Compile(expr)
	require.NoError(t, err)

	result, err := Eval(prog, nil, nil)
	require.NoError(t, err)
	require.Equal(t, ValueLong, result.Kind)
	require.Equal(t, int64(20), result.Long)
}

func TestEvalPromotesLongToDoubleOnMixedOperands(t *testing.T) {
	expr := ir.BinaryOpExprOf(ir.OpAdd, ir.LiteralLong(1), ir.LiteralDouble(0.5))
	prog, err := Compile(expr)
	require.NoError(t, err)

	result, err := Eval(prog, nil, nil)
	require.NoError(t, err)
	require.Equal(t, ValueDouble, result.Kind)
	require.InDelta(t, 1.5, result.Double, 1e-9)
}

func TestEvalRejectsNonNumericOperands(t *testing.T) {
	expr := ir.BinaryOpExprOf(ir.OpAdd, ir.LiteralString("a"), ir.LiteralLong(1))
	prog, err := Compile(expr)
	require.NoError(t, err)

	_, err = Eval(prog, nil, nil)
	require.Error(t, err)
}

func TestEvalReadsVariableBindings(t *testing.T) {
	vars := ir.NewVariableRegistry()
	x := vars.Declare("x")

	expr := ir.BinaryOpExprOf(ir.OpMul, ir.VariableExpr(x), ir.LiteralLong(10))
	prog, err := Compile(expr)
	require.NoError(t, err)

	result, err := Eval(prog, map[ir.VariableID]Value{x: LongValue(7)}, nil)
	require.NoError(t, err)
	require.Equal(t, int64(70), result.Long)
}

func TestEvalListIndexOutOfRangeErrors(t *testing.T) {
	vars := ir.NewVariableRegistry()
	list := vars.Declare("xs")

	expr := ir.ListIndexExprOf(list, ir.LiteralLong(5))
	prog, err := Compile(expr)
	require.NoError(t, err)

	_, err = Eval(prog, map[ir.VariableID]Value{list: {Kind: ValueLongList, LongList: []int64{1, 2, 3}}}, nil)
	require.Error(t, err)
}

func TestEvalCallsFunctionCaller(t *testing.T) {
	expr := ir.FunctionCallExprOf("double", ir.LiteralLong(21))
	prog, err := Compile(expr)
	require.NoError(t, err)

	called := false
	caller := func(name string, args []Value) (Value, error) {
		called = true
		require.Equal(t, "double", name)
		require.Len(t, args, 1)
		return LongValue(args[0].Long * 2), nil
	}

	result, err := Eval(prog, nil, caller)
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, int64(42), result.Long)
}

func TestCompileRejectsUnsupportedLiteralKinds(t *testing.T) {
	trueVal := true
	expr := &ir.Expression{Kind: ir.ExprLiteral, Literal: &ir.LiteralValue{Bool: &trueVal}}
	_, err := Compile(expr)
	require.Error(t, err)
}
