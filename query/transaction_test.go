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

package query

import (
	"context"
	"testing"
	"time"

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/internal/testutil"
	"github.com/gradb/gradb/ir"
	"github.com/stretchr/testify/require"
)

// personSchema defines a person entity owning a name attribute, the
// schema every test below builds on.
type personSchema struct {
	person *concept.Type
	name   *concept.Type
}

func newTransactionManager(t *testing.T) *TransactionManager {
	t.Helper()
	return NewTransactionManager(testutil.NewManager(t), nil)
}

func defineSchema(t *testing.T, tm *TransactionManager) personSchema {
	t.Helper()
	var out personSchema
	op := &SchemaOperation{
		Kind: SchemaDefine,
		Apply: func(types *concept.TypeManager) error {
			person, err := types.CreateType(concept.KindEntityType, encoding.NewLabel("person"))
			if err != nil {
				return err
			}
			name, err := types.CreateType(concept.KindAttributeType, encoding.NewLabel("name"))
			if err != nil {
				return err
			}
			types.SetValueType(name, encoding.ValueTypeString)
			if err := types.SetOwns(person, name, concept.Unbounded); err != nil {
				return err
			}
			out.person, out.name = person, name
			return nil
		},
	}

	tx, err := tm.OpenSchema(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	require.NoError(t, tx.ExecuteSchema(op))
	_, err = tx.Commit()
	require.NoError(t, err)
	return out
}

// insertPersonPipeline builds a one-stage Insert pipeline creating a
// person owning name.
func insertPersonPipeline(schema personSchema, value string) *Pipeline {
	tree := ir.NewTree()
	p := tree.Variables().Declare("p")
	n := tree.Variables().Declare("n")
	statements := []executor.WriteStatement{
		{Op: executor.WritePutObject, Var: p, TypeID: schema.person.ID},
		{Op: executor.WritePutAttribute, Var: n, TypeID: schema.name.ID, Value: encoding.EncodeString(value)},
		{Op: executor.WriteHas, Owner: p, Attr: n},
	}
	return &Pipeline{Tree: tree, Stages: []Stage{InsertStage(statements)}}
}

// matchPersonPipeline builds a one-stage Match pipeline over every
// person owning a name.
func matchPersonPipeline(schema personSchema) (*Pipeline, ir.VariableID, ir.VariableID) {
	tree := ir.NewTree()
	vars := tree.Variables()
	p := vars.Declare("p")
	n := vars.Declare("n")
	typeVar := vars.Anonymous()
	root := tree.Root()
	tree.AddConstraint(root, ir.TypeConstant(typeVar, schema.person.ID))
	tree.AddConstraint(root, ir.Isa(p, typeVar))
	tree.AddConstraint(root, ir.Has(p, n))
	return &Pipeline{Tree: tree, Stages: []Stage{MatchStage(root)}}, p, n
}

func TestTransactionManagerSchemaThenInsertThenMatch(t *testing.T) {
	tm := newTransactionManager(t)
	schema := defineSchema(t, tm)

	writeTx, err := tm.OpenWrite(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	_, err = writeTx.Execute(insertPersonPipeline(schema, "Alice"))
	require.NoError(t, err)
	_, err = writeTx.Commit()
	require.NoError(t, err)

	readTx, err := tm.OpenRead(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer readTx.Rollback()

	pipeline, p, n := matchPersonPipeline(schema)
	result, err := readTx.Execute(pipeline)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, executor.BindingEntity, result.Rows[0][p].Kind)
	require.Equal(t, executor.BindingAttribute, result.Rows[0][n].Kind)
}

func TestTransactionManagerRollbackDiscardsWrites(t *testing.T) {
	tm := newTransactionManager(t)
	schema := defineSchema(t, tm)

	writeTx, err := tm.OpenWrite(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	_, err = writeTx.Execute(insertPersonPipeline(schema, "Alice"))
	require.NoError(t, err)
	writeTx.Rollback()

	readTx, err := tm.OpenRead(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer readTx.Rollback()

	pipeline, _, _ := matchPersonPipeline(schema)
	result, err := readTx.Execute(pipeline)
	require.NoError(t, err)
	require.Empty(t, result.Rows)
}

// TestExecuteSchemaRequiresSchemaTransaction checks a non-schema
// transaction rejects ExecuteSchema rather than silently no-op'ing.
func TestExecuteSchemaRequiresSchemaTransaction(t *testing.T) {
	tm := newTransactionManager(t)
	_ = defineSchema(t, tm)

	writeTx, err := tm.OpenWrite(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer writeTx.Rollback()

	err = writeTx.ExecuteSchema(&SchemaOperation{Apply: func(*concept.TypeManager) error { return nil }})
	require.Error(t, err)
	require.Equal(t, dberrors.QueryLanguageUsage, dberrors.CodeOf(err))
}

// TestRunWithRetryStopsOnNonConflictError checks a non-conflict error
// from body is returned on the first attempt without retrying.
func TestRunWithRetryStopsOnNonConflictError(t *testing.T) {
	tm := newTransactionManager(t)
	_ = defineSchema(t, tm)

	attempts := 0
	err := tm.RunWithRetry(context.Background(), gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions(), dberrors.RetryOptions{}, func(tx *Transaction) error {
		attempts++
		return dberrors.New(dberrors.QueryLanguageUsage, "not retryable")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

// TestRunWithRetrySucceedsAfterTransientConflict checks body is re-run
// against a fresh transaction each time it reports a conflict, until it
// finally succeeds.
func TestRunWithRetrySucceedsAfterTransientConflict(t *testing.T) {
	tm := newTransactionManager(t)
	_ = defineSchema(t, tm)

	attempts := 0
	retry := dberrors.RetryOptions{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second}
	err := tm.RunWithRetry(context.Background(), gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions(), retry, func(tx *Transaction) error {
		attempts++
		if attempts < 3 {
			return dberrors.WithConflictKey([]byte("k"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

// TestPutStageSkipsAlreadyExistingEdge inserts a person/name pair via
// Put twice against the same already-bound identities and checks the
// second application does not duplicate the has edge.
func TestPutStageSkipsAlreadyExistingEdge(t *testing.T) {
	tm := newTransactionManager(t)
	schema := defineSchema(t, tm)

	writeTx, err := tm.OpenWrite(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	tree := ir.NewTree()
	p := tree.Variables().Declare("p")
	n := tree.Variables().Declare("n")
	statements := []executor.WriteStatement{
		{Op: executor.WritePutObject, Var: p, TypeID: schema.person.ID},
		{Op: executor.WritePutAttribute, Var: n, TypeID: schema.name.ID, Value: encoding.EncodeString("Alice")},
		{Op: executor.WriteHas, Owner: p, Attr: n},
	}
	pipeline := &Pipeline{Tree: tree, Stages: []Stage{PutStage(statements)}}

	first, err := writeTx.Execute(pipeline)
	require.NoError(t, err)
	require.Len(t, first.Rows, 1)

	// Re-run Put with the same owner/attribute identities already
	// bound (as a repeated put of the identical pattern would): the
	// has edge must not be written twice.
	row := executor.Row{
		p: first.Rows[0][p],
		n: first.Rows[0][n],
	}
	again, err := Put(writeTx.Context, writeTx.Things, executor.RowsIterator([]executor.Row{row}), []executor.WriteStatement{
		{Op: executor.WriteHas, Owner: p, Attr: n},
	})
	require.NoError(t, err)
	_, err = executor.Drain(again)
	require.NoError(t, err)

	_, err = writeTx.Commit()
	require.NoError(t, err)

	readTx, err := tm.OpenRead(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer readTx.Rollback()

	pipeline2, _, _ := matchPersonPipeline(schema)
	result, err := readTx.Execute(pipeline2)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1, "the has edge must not have been duplicated")
}

// TestFetchStageMustBeLast checks a pipeline with a fetch stage
// followed by another stage is rejected rather than silently dropping
// the trailing stage.
func TestFetchStageMustBeLast(t *testing.T) {
	tm := newTransactionManager(t)
	schema := defineSchema(t, tm)

	readTx, err := tm.OpenRead(gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer readTx.Rollback()

	pipeline, p, _ := matchPersonPipeline(schema)
	fetch := &ir.Fetch{}
	pipeline.Stages = append(pipeline.Stages, FetchStage(fetch), SelectStage([]ir.VariableID{p}))

	_, err = readTx.Execute(pipeline)
	require.Error(t, err)
	require.Equal(t, dberrors.QueryLanguageUsage, dberrors.CodeOf(err))
}
