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
	"testing"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/planner"
	"github.com/stretchr/testify/require"
)

// buildDisjunctionPlan wires "$p isa person; { $p has $n; } or { $p has
// $n; };" where the first alternative also carries a type constant for
// name, so ParallelMatch has two independent sub-plans to join.
func buildDisjunctionPlan(t *testing.T, f *personFixture) (*ir.Tree, *planner.Plan, ir.VariableID) {
	t.Helper()
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	typeVar := vars.Anonymous()
	root := tree.Root()
	tree.AddConstraint(root, ir.TypeConstant(typeVar, f.person.ID))
	tree.AddConstraint(root, ir.Isa(p, typeVar))

	altA := tree.NewConjunction(root)
	n := vars.Declare("n")
	nameA := vars.Anonymous()
	tree.AddConstraint(altA, ir.TypeConstant(nameA, f.name.ID))
	tree.AddConstraint(altA, ir.Has(p, n))

	altB := tree.NewConjunction(root)
	tree.AddConstraint(altB, ir.Has(p, n))

	tree.NewDisjunction(root, altA, altB)

	annotations := annotation.Infer(tree, root, f.cache)
	plan := planner.Order(tree, root, annotations, nil)
	return tree, plan, n
}

// TestParallelMatchAgreesWithMatch checks ParallelMatch and Match
// produce byte-identical row sets, in the same order, for a plan whose
// disjunction has more than one alternative.
func TestParallelMatchAgreesWithMatch(t *testing.T) {
	f := buildPersonFixture(t)

	writer, things := f.writeSnapshot(t)
	alice, err := things.CreateEntity(f.person.ID)
	require.NoError(t, err)
	aliceName, err := things.PutAttribute(f.name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, aliceName)
	_, err = writer.Commit()
	require.NoError(t, err)

	snap := f.readSnapshot(t)
	tree, plan, _ := buildDisjunctionPlan(t, f)
	ctx := newTestContext(tree, snap, f.cache)

	serial, err := Match(ctx, plan, Row{})
	require.NoError(t, err)
	serialRows, err := drain(serial)
	require.NoError(t, err)

	parallelIter, err := ParallelMatch(ctx, plan, Row{}, 2)
	require.NoError(t, err)
	parallelRows, err := drain(parallelIter)
	require.NoError(t, err)

	require.Equal(t, serialRows, parallelRows)
}

// TestParallelMatchDefaultsParallelism checks a non-positive
// parallelism argument falls back to DefaultParallelism rather than
// deadlocking an errgroup bounded to zero workers.
func TestParallelMatchDefaultsParallelism(t *testing.T) {
	f := buildPersonFixture(t)
	snap := f.readSnapshot(t)
	tree, plan, _ := buildDisjunctionPlan(t, f)
	ctx := newTestContext(tree, snap, f.cache)

	iter, err := ParallelMatch(ctx, plan, Row{}, 0)
	require.NoError(t, err)
	rows, err := drain(iter)
	require.NoError(t, err)
	require.Empty(t, rows)
}
