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

package mvcc

import (
	"testing"

	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/durability"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/kvengine"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	wal, err := durability.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })
	return NewManager(kvengine.New(), wal, nil)
}

func TestDisjointConcurrentWritesBothCommit(t *testing.T) {
	m := newTestManager(t)

	t1, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	t2, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	t1.Insert(kv.KeyspaceVertices, []byte("k1"), []byte("v1"))
	t2.Insert(kv.KeyspaceVertices, []byte("k2"), []byte("v2"))

	_, err = t1.Commit()
	require.NoError(t, err)
	_, err = t2.Commit()
	require.NoError(t, err)

	reader, err := m.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	v1, ok, err := reader.Get(kv.KeyspaceVertices, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v1)

	v2, ok, err := reader.Get(kv.KeyspaceVertices, []byte("k2"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v2)
}

func TestConcurrentInsertOfSameKeyConflicts(t *testing.T) {
	m := newTestManager(t)

	t1, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	t2, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	t1.Insert(kv.KeyspaceVertices, []byte("k"), []byte("from-t1"))
	t2.Insert(kv.KeyspaceVertices, []byte("k"), []byte("from-t2"))

	_, err = t1.Commit()
	require.NoError(t, err)

	_, err = t2.Commit()
	require.Error(t, err)
	require.True(t, dberrors.IsConflict(err))
}

func TestReaderOpenedBeforeCommitDoesNotObserveIt(t *testing.T) {
	m := newTestManager(t)

	writer, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	reader, err := m.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	writer.Insert(kv.KeyspaceVertices, []byte("k"), []byte("v"))
	_, err = writer.Commit()
	require.NoError(t, err)

	_, ok, err := reader.Get(kv.KeyspaceVertices, []byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutWithReconcileDoesNotConflict(t *testing.T) {
	m := newTestManager(t)

	base, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	base.Insert(kv.KeyspaceVertices, []byte("k"), []byte("base"))
	_, err = base.Commit()
	require.NoError(t, err)

	t1, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	t2, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	t1.Put(kv.KeyspaceVertices, []byte("k"), []byte("from-t1"), true)
	t2.Put(kv.KeyspaceVertices, []byte("k"), []byte("from-t2"), true)

	_, err = t1.Commit()
	require.NoError(t, err)
	_, err = t2.Commit()
	require.NoError(t, err)
}

func TestRequireExistsConflictsWithConcurrentDelete(t *testing.T) {
	m := newTestManager(t)

	base, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	base.Insert(kv.KeyspaceEdges, []byte("edge"), []byte("v"))
	_, err = base.Commit()
	require.NoError(t, err)

	deleter, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	checker, err := m.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	deleter.Delete(kv.KeyspaceEdges, []byte("edge"))
	checker.RequireExists(kv.KeyspaceEdges, []byte("edge"))
	checker.Insert(kv.KeyspaceVertices, []byte("unrelated"), []byte("x"))

	_, err = deleter.Commit()
	require.NoError(t, err)

	_, err = checker.Commit()
	require.Error(t, err)
	require.True(t, dberrors.IsConflict(err))
}

func TestSchemaSnapshotsAreExclusive(t *testing.T) {
	m := newTestManager(t)

	s1, err := m.Open(gradbcfg.TransactionSchema, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	opts := gradbcfg.DefaultTransactionOptions()
	opts.SchemaLockAcquireTimeoutMillis = 10
	_, err = m.Open(gradbcfg.TransactionSchema, opts)
	require.Error(t, err)
	require.Equal(t, dberrors.SchemaLockTimeout, dberrors.CodeOf(err))

	_, err = s1.Commit()
	require.NoError(t, err)

	s2, err := m.Open(gradbcfg.TransactionSchema, opts)
	require.NoError(t, err)
	s2.Rollback()
}
