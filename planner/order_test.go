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

package planner

import (
	"testing"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/internal/testutil"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/mvcc"
	"github.com/stretchr/testify/require"
)

// buildFixture defines person (entity) owning name (string attribute),
// with 3 people and 2 name attributes, and returns the type cache and
// a snapshot Stats can be built from.
func buildFixture(t *testing.T) (*concept.TypeCache, *mvcc.Manager, *mvcc.Snapshot) {
	t.Helper()
	mgr := testutil.NewManager(t)

	var person, name *concept.Type
	cache := testutil.CommitSchema(t, mgr, func(tm *concept.TypeManager) {
		var err error
		person, err = tm.CreateType(concept.KindEntityType, encoding.NewLabel("person"))
		require.NoError(t, err)
		name, err = tm.CreateType(concept.KindAttributeType, encoding.NewLabel("name"))
		require.NoError(t, err)
		tm.SetValueType(name, encoding.ValueTypeString)
		require.NoError(t, tm.SetOwns(person, name, concept.Unbounded))
	})
	person, _ = cache.ByID(person.ID)
	name, _ = cache.ByID(name.ID)

	writer, things := testutil.WriteSnapshot(t, mgr, cache)
	alice, err := things.CreateEntity(person.ID)
	require.NoError(t, err)
	_, err = things.CreateEntity(person.ID)
	require.NoError(t, err)
	aliceName, err := things.PutAttribute(name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, aliceName)
	_, err = writer.Commit()
	require.NoError(t, err)

	dataSnap := testutil.ReadSnapshot(t, mgr)
	return cache, mgr, dataSnap
}

// TestOrderPicksMostBoundConstraintFirst builds "$p isa person; $p has
// name $n;" with $p's type already known via TypeConstant, and checks
// the TypeConstant/Isa pair (zero free variables to discover) is
// ordered before the Has constraint, which only becomes eligible to
// bind $n once $p is known.
func TestOrderPicksMostBoundConstraintFirst(t *testing.T) {
	cache, _, snap := buildFixture(t)
	stats, err := BuildStats(snap, cache)
	require.NoError(t, err)
	person, _ := cache.ByLabel(encoding.NewLabel("person"))

	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	n := vars.Declare("n")
	typeVar := vars.Anonymous()
	root := tree.Root()
	// Deliberately list Has before Isa/TypeConstant to prove ordering,
	// not input order, determines the plan.
	tree.AddConstraint(root, ir.Has(p, n))
	tree.AddConstraint(root, ir.Isa(p, typeVar))
	tree.AddConstraint(root, ir.TypeConstant(typeVar, person.ID))

	annotations := annotation.Infer(tree, root, cache)
	plan := Order(tree, root, annotations, stats)

	require.Len(t, plan.Steps, 3)
	require.Equal(t, ir.ConstraintTypeConstant, plan.Steps[0].Constraint.Kind)
	require.Equal(t, ir.ConstraintIsa, plan.Steps[1].Constraint.Kind)
	require.Equal(t, ir.ConstraintHas, plan.Steps[2].Constraint.Kind)
	require.Contains(t, plan.Steps[2].NewlyBound, n)
}

// TestOrderDeterministicTieBreak checks that when two eligible
// constraints have equal bound-count and equal estimate, the one
// touching the smaller variable id is scheduled first.
func TestOrderDeterministicTieBreak(t *testing.T) {
	tree := ir.NewTree()
	vars := tree.Variables()
	a := vars.Declare("a")
	b := vars.Declare("b")
	root := tree.Root()
	// Two independent Sub constraints with no stats available (both
	// estimate to 0): the one referencing the lower variable id (a)
	// must win the tie-break.
	tree.AddConstraint(root, ir.Sub(b, b))
	tree.AddConstraint(root, ir.Sub(a, a))

	plan := Order(tree, root, annotation.Result{}, nil)
	require.Len(t, plan.Steps, 2)
	require.Equal(t, a, minVariableID(plan.Steps[0].Constraint))
}

func TestOrderBuildsSubPlanForNegation(t *testing.T) {
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	n := vars.Declare("n")
	root := tree.Root()
	tree.AddConstraint(root, ir.Isa(p, vars.Anonymous()))

	inner := tree.NewConjunction(root)
	tree.AddConstraint(inner, ir.Has(p, n))
	tree.NewNegation(root, inner)

	plan := Order(tree, root, annotation.Result{}, nil)
	require.Len(t, plan.Children, 1)
	require.Equal(t, inner, plan.Children[0].Block)
	require.Len(t, plan.Children[0].Steps, 1)
}

func TestOptimiseDedupesRepeatedIsaConstraint(t *testing.T) {
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	typeVar := vars.Anonymous()
	root := tree.Root()
	tree.AddConstraint(root, ir.Isa(p, typeVar))
	tree.AddConstraint(root, ir.Isa(p, typeVar))

	Optimise(tree, root)
	require.Len(t, tree.Block(root).Constraints, 1)
}

func TestOptimiseHoistsLinksNextToItsRoleTypeConstant(t *testing.T) {
	tree := ir.NewTree()
	vars := tree.Variables()
	rel := vars.Declare("job")
	player := vars.Declare("p")
	role := vars.Anonymous()
	root := tree.Root()

	tree.AddConstraint(root, ir.Links(rel, player, role))
	tree.AddConstraint(root, ir.TypeConstant(role, encoding.TypeID(7)))

	Optimise(tree, root)
	constraints := tree.Block(root).Constraints
	require.Len(t, constraints, 2)
	require.Equal(t, ir.ConstraintTypeConstant, constraints[0].Kind)
	require.Equal(t, ir.ConstraintLinks, constraints[1].Kind)
}
