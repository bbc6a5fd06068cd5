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

// OpCode tags one stack-VM instruction.
type OpCode uint8

const (
	OpPushLong OpCode = iota
	OpPushDouble
	OpPushString
	OpPushVar
	OpBinary
	OpCallFunction
	OpListIndex
)

// Instruction is one compiled stack-VM opcode.
type Instruction struct {
	Op OpCode

	Long         int64
	Double       float64
	Str          string
	Var          ir.VariableID
	BinaryOp     ir.BinaryOp
	FunctionName string
	ArgCount     int
}

// Program is the flat, linear instruction stream an Expression
// compiles to.
type Program []Instruction

// Compile lowers an expression tree into a flat stack-VM program,
// inserting no explicit cast opcodes: numeric promotion (Long->Double)
// happens at evaluation time once both operands' runtime kinds are
// known, matching ("implicit numeric casts are inserted only where both
// operands' categories allow it").
func Compile(expr *ir.Expression) (Program, error) {
	var prog Program
	if err := compileInto(&prog, expr); err != nil {
		return nil, err
	}
	return prog, nil
}

func compileInto(prog *Program, expr *ir.Expression) error {
	switch expr.Kind {
	case ir.ExprLiteral:
		return compileLiteral(prog, expr.Literal)
	case ir.ExprVariable:
		*prog = append(*prog, Instruction{Op: OpPushVar, Var: expr.Variable})
		return nil
	case ir.ExprBinaryOp:
		if err := compileInto(prog, expr.BinaryOp.LHS); err != nil {
			return err
		}
		if err := compileInto(prog, expr.BinaryOp.RHS); err != nil {
			return err
		}
		*prog = append(*prog, Instruction{Op: OpBinary, BinaryOp: expr.BinaryOp.Op})
		return nil
	case ir.ExprFunctionCall:
		for _, arg := range expr.FunctionCall.Arguments {
			if err := compileInto(prog, arg); err != nil {
				return err
			}
		}
		*prog = append(*prog, Instruction{
			Op:           OpCallFunction,
			FunctionName: expr.FunctionCall.FunctionName,
			ArgCount:     len(expr.FunctionCall.Arguments),
		})
		return nil
	case ir.ExprListIndex:
		*prog = append(*prog, Instruction{Op: OpPushVar, Var: expr.ListIndex.List})
		if err := compileInto(prog, expr.ListIndex.Index); err != nil {
			return err
		}
		*prog = append(*prog, Instruction{Op: OpListIndex})
		return nil
	default:
		return dberrors.New(dberrors.ExpressionCompile, "unknown expression kind %d", expr.Kind)
	}
}

func compileLiteral(prog *Program, lit *ir.LiteralValue) error {
	switch {
	case lit.Long != nil:
		*prog = append(*prog, Instruction{Op: OpPushLong, Long: *lit.Long})
	case lit.Double != nil:
		*prog = append(*prog, Instruction{Op: OpPushDouble, Double: *lit.Double})
	case lit.Str != nil:
		*prog = append(*prog, Instruction{Op: OpPushString, Str: *lit.Str})
	default:
		return dberrors.New(dberrors.ExpressionCompile, "unsupported literal kind in this core (decimal/datetime/bool literals defer to a richer compiler)")
	}
	return nil
}
