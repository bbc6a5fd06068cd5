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

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/planner"
	"github.com/stretchr/testify/require"
)

// TestInsertCreatesObjectAttributeAndHasEdge runs a bare insert stage
// creating a person owning a name, then checks a fresh match over the
// committed snapshot finds the written has edge.
func TestInsertCreatesObjectAttributeAndHasEdge(t *testing.T) {
	f := buildPersonFixture(t)
	vars := ir.NewVariableRegistry()
	p := vars.Declare("p")
	n := vars.Declare("n")

	writer, err := f.mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	things := concept.NewThingManager(writer, f.cache, encoding.NewThingIDGenerator())
	ctx := &Context{Cache: f.cache, Snapshot: writer, Interrupt: NewExecutionInterrupt(nil)}

	statements := []WriteStatement{
		{Op: WritePutObject, Var: p, TypeID: f.person.ID},
		{Op: WritePutAttribute, Var: n, TypeID: f.name.ID, Value: encoding.EncodeString("Alice")},
		{Op: WriteHas, Owner: p, Attr: n},
	}
	iter, err := Insert(ctx, things, sliceIterator(nil), statements)
	require.NoError(t, err)
	rows, err := drain(iter)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, BindingEntity, rows[0][p].Kind)
	require.Equal(t, BindingAttribute, rows[0][n].Kind)

	_, err = writer.Commit()
	require.NoError(t, err)

	snap := f.readSnapshot(t)
	tree := ir.NewTree()
	root := tree.Root()
	typeVar := tree.Variables().Anonymous()
	pv := tree.Variables().Declare("p")
	nv := tree.Variables().Declare("n")
	tree.AddConstraint(root, ir.TypeConstant(typeVar, f.person.ID))
	tree.AddConstraint(root, ir.Isa(pv, typeVar))
	tree.AddConstraint(root, ir.Has(pv, nv))
	plan := planner.Order(tree, root, nil, nil)

	readCtx := newTestContext(tree, snap, f.cache)
	readIter, err := Match(readCtx, plan, Row{})
	require.NoError(t, err)
	found, err := drain(readIter)
	require.NoError(t, err)
	require.Len(t, found, 1)
}

// TestUpdateDeletesThenInserts runs an update stage that drops an
// existing has edge and replaces it with a new attribute value in the
// same stage.
func TestUpdateDeletesThenInserts(t *testing.T) {
	f := buildPersonFixture(t)

	writer, things := f.writeSnapshot(t)
	alice, err := things.CreateEntity(f.person.ID)
	require.NoError(t, err)
	oldName, err := things.PutAttribute(f.name.ID, encoding.EncodeString("Al"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, oldName)
	_, err = writer.Commit()
	require.NoError(t, err)

	updateSnap, things2 := f.writeSnapshot(t)
	vars := ir.NewVariableRegistry()
	p := vars.Declare("p")
	oldN := vars.Declare("old")
	newN := vars.Declare("new")
	ctx := &Context{Cache: f.cache, Snapshot: updateSnap, Interrupt: NewExecutionInterrupt(nil)}

	row := Row{p: EntityBinding(f.person.ID, alice.ID), oldN: AttributeBinding(oldName.TypeID, oldName.Value)}
	deletes := []WriteStatement{{Op: WriteDeleteHas, Owner: p, Attr: oldN}}
	inserts := []WriteStatement{
		{Op: WritePutAttribute, Var: newN, TypeID: f.name.ID, Value: encoding.EncodeString("Alice")},
		{Op: WriteHas, Owner: p, Attr: newN},
	}
	iter, err := Update(ctx, things2, sliceIterator([]Row{row}), deletes, inserts)
	require.NoError(t, err)
	_, err = drain(iter)
	require.NoError(t, err)
	_, err = updateSnap.Commit()
	require.NoError(t, err)

	snap := f.readSnapshot(t)
	key := encoding.EncodeEdge(encoding.EdgeHas, EntityBinding(f.person.ID, alice.ID).SortKey(), AttributeBinding(oldName.TypeID, oldName.Value).SortKey())
	_, ok, err := snap.Get(kv.KeyspaceEdges, key)
	require.NoError(t, err)
	require.False(t, ok, "old has edge should be gone")
}

// TestDeleteThingCascadeRemovesOwnedAttributeEdges creates a person
// owning a name, deletes the person, and checks both the forward and
// reverse has edges are gone afterward.
func TestDeleteThingCascadeRemovesOwnedAttributeEdges(t *testing.T) {
	f := buildPersonFixture(t)

	writer, things := f.writeSnapshot(t)
	alice, err := things.CreateEntity(f.person.ID)
	require.NoError(t, err)
	aliceName, err := things.PutAttribute(f.name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, aliceName)
	_, err = writer.Commit()
	require.NoError(t, err)

	deleteSnap, err := f.mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	vars := ir.NewVariableRegistry()
	p := vars.Declare("p")
	ctx := &Context{Cache: f.cache, Snapshot: deleteSnap, Interrupt: NewExecutionInterrupt(nil)}

	row := Row{p: EntityBinding(f.person.ID, alice.ID)}
	iter, err := Delete(ctx, sliceIterator([]Row{row}), []WriteStatement{{Op: WriteDeleteThing, Var: p}})
	require.NoError(t, err)
	_, err = drain(iter)
	require.NoError(t, err)
	_, err = deleteSnap.Commit()
	require.NoError(t, err)

	snap := f.readSnapshot(t)
	ownerKey := EntityBinding(f.person.ID, alice.ID).SortKey()
	attrKey := AttributeBinding(aliceName.TypeID, aliceName.Value).SortKey()
	for _, key := range [][]byte{
		encoding.EncodeEdge(encoding.EdgeHas, ownerKey, attrKey),
		encoding.EncodeEdge(encoding.EdgeHasReverse, attrKey, ownerKey),
	} {
		_, ok, err := snap.Get(kv.KeyspaceEdges, key)
		require.NoError(t, err)
		require.False(t, ok)
	}

	tree := ir.NewTree()
	root := tree.Root()
	typeVar := tree.Variables().Anonymous()
	pv := tree.Variables().Declare("p")
	nv := tree.Variables().Declare("n")
	tree.AddConstraint(root, ir.TypeConstant(typeVar, f.person.ID))
	tree.AddConstraint(root, ir.Isa(pv, typeVar))
	tree.AddConstraint(root, ir.Has(pv, nv))
	plan := planner.Order(tree, root, nil, nil)

	readCtx := newTestContext(tree, snap, f.cache)
	readIter, err := Match(readCtx, plan, Row{})
	require.NoError(t, err)
	found, err := drain(readIter)
	require.NoError(t, err)
	require.Empty(t, found)
}
