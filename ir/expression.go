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

// ExpressionKind tags an Expression's active payload, using the same
// tagged-union discipline as Constraint.
type ExpressionKind uint8

const (
	ExprLiteral ExpressionKind = iota
	ExprVariable
	ExprBinaryOp
	ExprFunctionCall
	ExprListIndex
)

// BinaryOp enumerates the arithmetic operators the stack VM compiles.
type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpModulo
	OpPower
)

// LiteralValue is a compile-time constant of one of the engine's
// value types, tagged the same way encoding.ValueType tags persisted
// values.
type LiteralValue struct {
	Long     *int64
	Double   *float64
	Decimal  *string // decimal literal text; parsed to encoding.Decimal during compilation
	Str      *string
	DateTime *string
	Bool     *bool
}

// BinaryOpExpr applies Op to two sub-expressions.
type BinaryOpExpr struct {
	Op       BinaryOp
	LHS, RHS *Expression
}

// FunctionCallExpr is a function invocation used as a value-producing
// expression (as opposed to a FunctionCallBinding constraint, which
// binds the call's result to pattern variables).
type FunctionCallExpr struct {
	FunctionName string
	Arguments    []*Expression
}

// ListIndexExpr indexes into a list-categorized variable; out-of-range
// access compiles to the runtime error named in ("ListIndexOutOfRange").
type ListIndexExpr struct {
	List  VariableID
	Index *Expression
}

// Expression is a tagged union over the five expression kinds. Only
// the field matching Kind is populated.
type Expression struct {
	Kind ExpressionKind

	Literal      *LiteralValue
	Variable     VariableID
	BinaryOp     *BinaryOpExpr
	FunctionCall *FunctionCallExpr
	ListIndex    *ListIndexExpr
}

// Variables returns every variable this expression reads, recursively.
func (e *Expression) Variables() []VariableID {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case ExprVariable:
		return []VariableID{e.Variable}
	case ExprBinaryOp:
		out := e.BinaryOp.LHS.Variables()
		return append(out, e.BinaryOp.RHS.Variables()...)
	case ExprFunctionCall:
		var out []VariableID
		for _, a := range e.FunctionCall.Arguments {
			out = append(out, a.Variables()...)
		}
		return out
	case ExprListIndex:
		out := []VariableID{e.ListIndex.List}
		return append(out, e.ListIndex.Index.Variables()...)
	default:
		return nil
	}
}

func LiteralLong(v int64) *Expression {
	return &Expression{Kind: ExprLiteral, Literal: &LiteralValue{Long: &v}}
}

func LiteralDouble(v float64) *Expression {
	return &Expression{Kind: ExprLiteral, Literal: &LiteralValue{Double: &v}}
}

func LiteralString(v string) *Expression {
	return &Expression{Kind: ExprLiteral, Literal: &LiteralValue{Str: &v}}
}

func VariableExpr(v VariableID) *Expression {
	return &Expression{Kind: ExprVariable, Variable: v}
}

func BinaryOpExprOf(op BinaryOp, lhs, rhs *Expression) *Expression {
	return &Expression{Kind: ExprBinaryOp, BinaryOp: &BinaryOpExpr{Op: op, LHS: lhs, RHS: rhs}}
}

func FunctionCallExprOf(name string, args ...*Expression) *Expression {
	return &Expression{Kind: ExprFunctionCall, FunctionCall: &FunctionCallExpr{FunctionName: name, Arguments: args}}
}

func ListIndexExprOf(list VariableID, index *Expression) *Expression {
	return &Expression{Kind: ExprListIndex, ListIndex: &ListIndexExpr{List: list, Index: index}}
}
