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

// Package testutil holds the storage/schema bootstrap boilerplate
// repeated, with small variations, across this module's higher-layer
// test suites: opening a WAL in a temporary directory and an MVCC
// manager over an in-memory store, and opening
// read/write snapshots against it. Each suite still builds its own
// schema shape (the narrowing a test needs from annotation differs
// from the population a planner or executor test needs), but the
// manager plumbing underneath is identical everywhere, so it lives
// here once.
package testutil

import (
	"testing"

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/durability"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/kvengine"
	"github.com/gradb/gradb/mvcc"
	"github.com/stretchr/testify/require"
)

// NewManager opens a fresh WAL rooted at a temporary directory,
// cleaned up when t ends, and an MVCC manager over an in-memory
// kvengine store.
func NewManager(t *testing.T) *mvcc.Manager {
	t.Helper()
	wal, err := durability.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.Close() })
	return mvcc.NewManager(kvengine.New(), wal, nil)
}

// CommitSchema opens a schema transaction, runs define against its
// TypeManager, commits, and returns the resulting TypeCache built at
// the commit sequence.
func CommitSchema(t *testing.T, mgr *mvcc.Manager, define func(*concept.TypeManager)) *concept.TypeCache {
	t.Helper()
	snap, err := mgr.Open(gradbcfg.TransactionSchema, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	define(concept.NewTypeManager(snap))
	seq, err := snap.Commit()
	require.NoError(t, err)
	return ReadTypeCache(t, mgr, seq)
}

// ReadTypeCache builds a TypeCache at seq from a throwaway read
// snapshot.
func ReadTypeCache(t *testing.T, mgr *mvcc.Manager, seq uint64) *concept.TypeCache {
	t.Helper()
	reader, err := mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	defer reader.Rollback()
	cache, err := concept.BuildTypeCache(reader, seq)
	require.NoError(t, err)
	return cache
}

// ReadSnapshot opens a read snapshot against mgr, rolled back
// automatically when t ends.
func ReadSnapshot(t *testing.T, mgr *mvcc.Manager) *mvcc.Snapshot {
	t.Helper()
	snap, err := mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	t.Cleanup(snap.Rollback)
	return snap
}

// WriteSnapshot opens a write snapshot against mgr along with a
// ThingManager over cache, using a fresh ThingIDGenerator (fine for a
// test that opens exactly one write transaction against this manager;
// a long-lived caller shares one generator the way query.TransactionManager does).
func WriteSnapshot(t *testing.T, mgr *mvcc.Manager, cache *concept.TypeCache) (*mvcc.Snapshot, *concept.ThingManager) {
	t.Helper()
	snap, err := mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	return snap, concept.NewThingManager(snap, cache, encoding.NewThingIDGenerator())
}
