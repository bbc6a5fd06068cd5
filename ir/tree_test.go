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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildS6Pattern builds `$p isa person; not { $p has name "alice"; };`
// scenario S6, exercising negation nesting.
func buildS6Pattern(t *testing.T) (*Tree, VariableID) {
	t.Helper()
	tree := NewTree()
	vars := tree.Variables()

	p := vars.Declare("p")
	personType := vars.Anonymous()
	tree.AddConstraint(tree.Root(), TypeConstant(personType, 1))
	tree.AddConstraint(tree.Root(), Isa(p, personType))

	inner := tree.NewConjunction(tree.Root())
	name := vars.Anonymous()
	nameType := vars.Anonymous()
	tree.AddConstraint(inner, TypeConstant(nameType, 2))
	tree.AddConstraint(inner, Isa(name, nameType))
	tree.AddConstraint(inner, Has(p, name))

	tree.NewNegation(tree.Root(), inner)
	return tree, p
}

func TestTreeBuildsNegationOverConjunction(t *testing.T) {
	tree, p := buildS6Pattern(t)

	root := tree.Block(tree.Root())
	require.Equal(t, BlockConjunction, root.Kind)
	require.Len(t, root.Constraints, 2)

	children := tree.Children(tree.Root())
	require.Len(t, children, 2) // the inner conjunction and the negation wrapping it

	var negation *Block
	for _, id := range children {
		if tree.Block(id).Kind == BlockNegation {
			negation = tree.Block(id)
		}
	}
	require.NotNil(t, negation)

	innerBlock := tree.Block(negation.Inner)
	require.Equal(t, BlockConjunction, innerBlock.Kind)
	require.Len(t, innerBlock.Constraints, 3)
	require.Equal(t, p, innerBlock.Constraints[2].Has.Owner)
}

func TestVariableRegistryDeclareIsIdempotentByName(t *testing.T) {
	r := NewVariableRegistry()
	a := r.Declare("x")
	b := r.Declare("x")
	require.Equal(t, a, b)

	c := r.Anonymous()
	d := r.Anonymous()
	require.NotEqual(t, c, d)
}

func TestConstraintVariablesCoversEveryKind(t *testing.T) {
	expr := ExpressionOf(5, BinaryOpExprOf(OpAdd, VariableExpr(1), LiteralLong(2)))
	require.ElementsMatch(t, []VariableID{5, 1}, expr.Variables())

	fc := FunctionCall("double", []VariableID{1}, []VariableID{2})
	require.ElementsMatch(t, []VariableID{1, 2}, fc.Variables())
}
