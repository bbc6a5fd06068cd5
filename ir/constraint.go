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

import "github.com/gradb/gradb/encoding"

// ConstraintKind tags a Constraint's active payload field.
type ConstraintKind uint8

const (
	ConstraintIsa ConstraintKind = iota
	ConstraintHas
	ConstraintLinks
	ConstraintSub
	ConstraintComparator
	ConstraintFunctionCallBinding
	ConstraintExpressionBinding
	ConstraintTypeConstant
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintIsa:
		return "isa"
	case ConstraintHas:
		return "has"
	case ConstraintLinks:
		return "links"
	case ConstraintSub:
		return "sub"
	case ConstraintComparator:
		return "comparator"
	case ConstraintFunctionCallBinding:
		return "function-call-binding"
	case ConstraintExpressionBinding:
		return "expression-binding"
	case ConstraintTypeConstant:
		return "type-constant"
	default:
		return "unknown-constraint"
	}
}

// ComparatorOp enumerates comparison operators usable in a Comparator
// constraint.
type ComparatorOp uint8

const (
	ComparatorEQ ComparatorOp = iota
	ComparatorNEQ
	ComparatorLT
	ComparatorLTE
	ComparatorGT
	ComparatorGTE
	ComparatorContains
)

// IsaConstraint binds Var to be an instance of one of the types
// reachable from TypeVar (or, before annotation narrows it, any type).
type IsaConstraint struct {
	Var     VariableID
	TypeVar VariableID // bound by a prior TypeConstant or another variable
}

// HasConstraint relates an owner variable to an attribute variable via
// an owns/has edge.
type HasConstraint struct {
	Owner VariableID
	Attr  VariableID
}

// LinksConstraint relates a relation variable to a player variable in
// a given role.
type LinksConstraint struct {
	Relation VariableID
	Player   VariableID
	Role     VariableID // may be bound to a concrete role type via TypeConstant
}

// SubConstraint requires Sub to be a (possibly transitive) subtype of
// Super.
type SubConstraint struct {
	Sub   VariableID
	Super VariableID
}

// ComparatorConstraint compares the values bound to two variables (or
// a variable against a compiled expression result).
type ComparatorConstraint struct {
	Op  ComparatorOp
	LHS VariableID
	RHS VariableID
}

// FunctionCallBinding binds the (possibly multiple, for tuple-valued
// functions) output variables of a non-recursive function call.
type FunctionCallBinding struct {
	FunctionName string
	Arguments    []VariableID
	Outputs      []VariableID
}

// ExpressionBinding assigns the result of a compiled expression to a
// variable.
type ExpressionBinding struct {
	Output     VariableID
	Expression *Expression
}

// TypeConstantConstraint binds Var to a single, literal, already-known
// type id (e.g. the right-hand side of `$x isa person`).
type TypeConstantConstraint struct {
	Var    VariableID
	TypeID encoding.TypeID
}

// Constraint is a tagged union over the eight constraint kinds named
// in Only the field matching Kind is populated; callers must switch on
// Kind rather than checking fields for nil.
type Constraint struct {
	Kind ConstraintKind

	Isa          *IsaConstraint
	Has          *HasConstraint
	Links        *LinksConstraint
	Sub          *SubConstraint
	Comparator   *ComparatorConstraint
	FunctionCall *FunctionCallBinding
	Expression   *ExpressionBinding
	TypeConstant *TypeConstantConstraint
}

// Variables returns every variable id this constraint reads or writes,
// used by the planner's binding-state tracking.
func (c Constraint) Variables() []VariableID {
	switch c.Kind {
	case ConstraintIsa:
		return []VariableID{c.Isa.Var, c.Isa.TypeVar}
	case ConstraintHas:
		return []VariableID{c.Has.Owner, c.Has.Attr}
	case ConstraintLinks:
		return []VariableID{c.Links.Relation, c.Links.Player, c.Links.Role}
	case ConstraintSub:
		return []VariableID{c.Sub.Sub, c.Sub.Super}
	case ConstraintComparator:
		return []VariableID{c.Comparator.LHS, c.Comparator.RHS}
	case ConstraintFunctionCallBinding:
		out := append([]VariableID{}, c.FunctionCall.Arguments...)
		return append(out, c.FunctionCall.Outputs...)
	case ConstraintExpressionBinding:
		out := []VariableID{c.Expression.Output}
		return append(out, c.Expression.Expression.Variables()...)
	case ConstraintTypeConstant:
		return []VariableID{c.TypeConstant.Var}
	default:
		return nil
	}
}

func Isa(v, typeVar VariableID) Constraint {
	return Constraint{Kind: ConstraintIsa, Isa: &IsaConstraint{Var: v, TypeVar: typeVar}}
}

func Has(owner, attr VariableID) Constraint {
	return Constraint{Kind: ConstraintHas, Has: &HasConstraint{Owner: owner, Attr: attr}}
}

func Links(relation, player, role VariableID) Constraint {
	return Constraint{Kind: ConstraintLinks, Links: &LinksConstraint{Relation: relation, Player: player, Role: role}}
}

func Sub(sub, super VariableID) Constraint {
	return Constraint{Kind: ConstraintSub, Sub: &SubConstraint{Sub: sub, Super: super}}
}

func Comparator(op ComparatorOp, lhs, rhs VariableID) Constraint {
	return Constraint{Kind: ConstraintComparator, Comparator: &ComparatorConstraint{Op: op, LHS: lhs, RHS: rhs}}
}

func FunctionCall(name string, args, outputs []VariableID) Constraint {
	return Constraint{Kind: ConstraintFunctionCallBinding, FunctionCall: &FunctionCallBinding{FunctionName: name, Arguments: args, Outputs: outputs}}
}

func ExpressionOf(output VariableID, expr *Expression) Constraint {
	return Constraint{Kind: ConstraintExpressionBinding, Expression: &ExpressionBinding{Output: output, Expression: expr}}
}

func TypeConstant(v VariableID, typeID encoding.TypeID) Constraint {
	return Constraint{Kind: ConstraintTypeConstant, TypeConstant: &TypeConstantConstraint{Var: v, TypeID: typeID}}
}
