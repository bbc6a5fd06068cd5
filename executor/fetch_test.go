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

// TestFetchBuildsExpressionAndAttributesEntries creates one person
// owning two names and checks Fetch produces one document per upstream
// row, with an expression entry evaluating a string literal and an
// attributes entry collecting every owned name.
func TestFetchBuildsExpressionAndAttributesEntries(t *testing.T) {
	f := buildPersonFixture(t)

	writer, things := f.writeSnapshot(t)
	alice, err := things.CreateEntity(f.person.ID)
	require.NoError(t, err)
	n1, err := things.PutAttribute(f.name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	n2, err := things.PutAttribute(f.name.ID, encoding.EncodeString("Al"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, n1)
	things.CreateHasEdge(alice, n2)
	_, err = writer.Commit()
	require.NoError(t, err)

	snap := f.readSnapshot(t)
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	root := tree.Root()

	fetchBlock := tree.NewConjunction(root)
	n := vars.Declare("n")
	tree.AddConstraint(fetchBlock, ir.Has(p, n))

	fetch := &ir.Fetch{
		Block: fetchBlock,
		Entries: []ir.FetchEntry{
			ir.ExpressionEntry("kind", ir.LiteralString("person")),
			ir.AttributesEntry("names", n),
		},
	}

	ctx := newTestContext(tree, snap, f.cache)
	annotations := annotation.Infer(tree, fetchBlock, f.cache)
	fetchPlan := planner.Order(tree, fetchBlock, annotations, nil)
	planFor := func(ir.BlockID) *planner.Plan { return fetchPlan }

	upstream := sliceIterator([]Row{{p: EntityBinding(f.person.ID, alice.ID)}})
	docs, err := Fetch(ctx, planFor, upstream, fetch)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	kind, ok := docs[0]["kind"].(annotation.Value)
	require.True(t, ok)
	require.Equal(t, "person", kind.Str)

	names, ok := docs[0]["names"].([]annotation.Value)
	require.True(t, ok)
	require.Len(t, names, 2)
}

// TestFetchSubFetchRecursesPerRow checks a sub-fetch entry produces
// one nested Document per upstream row.
func TestFetchSubFetchRecursesPerRow(t *testing.T) {
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
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	n := vars.Declare("n")
	root := tree.Root()

	outerBlock := tree.NewConjunction(root)
	innerBlock := tree.NewConjunction(outerBlock)
	tree.AddConstraint(innerBlock, ir.Has(p, n))

	inner := &ir.Fetch{Block: innerBlock, Entries: []ir.FetchEntry{ir.ExpressionEntry("n", ir.VariableExpr(n))}}
	outer := &ir.Fetch{Block: outerBlock, Entries: []ir.FetchEntry{ir.SubFetchEntry("names", inner)}}

	ctx := newTestContext(tree, snap, f.cache)
	innerAnnotations := annotation.Infer(tree, innerBlock, f.cache)
	innerPlan := planner.Order(tree, innerBlock, innerAnnotations, nil)
	outerAnnotations := annotation.Infer(tree, outerBlock, f.cache)
	outerPlan := planner.Order(tree, outerBlock, outerAnnotations, nil)
	planFor := func(b ir.BlockID) *planner.Plan {
		if b == innerBlock {
			return innerPlan
		}
		return outerPlan
	}

	upstream := sliceIterator([]Row{{p: EntityBinding(f.person.ID, alice.ID)}})
	docs, err := Fetch(ctx, planFor, upstream, outer)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	subs, ok := docs[0]["names"].([]Document)
	require.True(t, ok)
	require.Len(t, subs, 1)
	require.Equal(t, "Alice", subs[0]["n"].(annotation.Value).Str)
}
