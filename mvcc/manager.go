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
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/durability"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/kv"
	"go.uber.org/zap"
)

// committedTx is one transaction's write set, retained only as long
// as some open snapshot could still conflict against it.
type committedTx struct {
	seq    uint64
	writes map[string]WriteOp
}

// Manager is the MVCC layer: it wraps a kv.Store and a durability.WAL,
// tracks open snapshots, and runs the serialisable commit protocol.
type Manager struct {
	store  kv.Store
	wal    *durability.WAL
	logger *zap.Logger

	schemaLock *SchemaLock
	pool       *SnapshotPool

	watermark atomic.Uint64

	mu      sync.Mutex
	history []committedTx
}

// NewManager builds a Manager over store and wal. The manager owns
// its own committed watermark, distinct from the WAL's own
// append-durability watermark: a record can be durably appended (WAL
// watermark) before its effects are published to new snapshots (MVCC
// watermark).
func NewManager(store kv.Store, wal *durability.WAL, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		wal:        wal,
		logger:     logger,
		schemaLock: NewSchemaLock(),
		pool:       NewSnapshotPool(),
	}
}

// Watermark is the highest sequence number whose effects are visible
// to new snapshots.
func (m *Manager) Watermark() uint64 {
	return m.watermark.Load()
}

// Open begins a new snapshot of the given kind. Schema snapshots are
// exclusive and block (bounded by opts.SchemaLockAcquireTimeoutMillis)
// until no other schema snapshot is open.
func (m *Manager) Open(kind gradbcfg.TransactionKind, opts gradbcfg.TransactionOptions) (*Snapshot, error) {
	if kind == gradbcfg.TransactionSchema {
		timeout := time.Duration(opts.SchemaLockAcquireTimeoutMillis) * time.Millisecond
		if err := m.schemaLock.Acquire(timeout); err != nil {
			return nil, err
		}
	}
	snap := newSnapshot(kind, m.Watermark(), m.store, m)
	m.pool.add(snap)
	return snap, nil
}

// commit validates snap against concurrently committed transactions
// and, if there is no conflict, applies its buffered writes and
// advances the commit sequence.
func (m *Manager) commit(snap *Snapshot) (uint64, error) {
	defer m.releaseSchemaLock(snap)
	defer m.pool.remove(snap)

	m.mu.Lock()
	defer m.mu.Unlock()

	myWrites := snap.buffer.ByCompositeKey()
	summary := encodeCommitSummary(snap, len(myWrites))

	// Step 1: reserve a sequence number by appending the commit record
	// first; it is not visible to new snapshots until step 4.
	seq, err := m.wal.Append(durability.TransactionCommit, summary)
	if err != nil {
		return 0, err
	}

	// Step 2: isolation check against every transaction committed in
	// (open_seq, seq).
	if conflictKey, ok := m.findConflict(snap.OpenSeq, seq, myWrites); ok {
		if _, abortErr := m.wal.Append(durability.TransactionAbort, summary); abortErr != nil {
			m.logger.Error("failed to append abort record after conflict", zap.Error(abortErr))
		}
		return 0, dberrors.WithConflictKey([]byte(conflictKey))
	}

	// Step 3: apply buffered ops to the KV store, batched per keyspace.
	if err := m.apply(snap); err != nil {
		if _, abortErr := m.wal.Append(durability.TransactionAbort, summary); abortErr != nil {
			m.logger.Error("failed to append abort record after apply failure", zap.Error(abortErr))
		}
		return 0, dberrors.Wrap(dberrors.Unexpected, err, "apply commit batch")
	}

	// Step 4: publish.
	m.history = append(m.history, committedTx{seq: seq, writes: myWrites})
	m.watermark.Store(seq)
	return seq, nil
}

func (m *Manager) abort(snap *Snapshot) {
	m.releaseSchemaLock(snap)
	m.pool.remove(snap)
}

func (m *Manager) releaseSchemaLock(snap *Snapshot) {
	if snap.schemaTx {
		m.schemaLock.Release()
	}
}

// findConflict applies two conflict rules against every transaction
// committed since snap opened: (a) writes vs writes on the same key
// with incompatible ops, (b) RequireExists keys vs concurrent deletes.
func (m *Manager) findConflict(openSeq, commitSeq uint64, myWrites map[string]WriteOp) (string, bool) {
	for _, tx := range m.history {
		if !(openSeq < tx.seq && tx.seq < commitSeq) {
			continue
		}
		for key, mine := range myWrites {
			other, ok := tx.writes[key]
			if !ok {
				continue
			}
			if conflicts(mine, other) {
				return key, true
			}
		}
	}
	return "", false
}

func conflicts(mine, other WriteOp) bool {
	switch mine.Kind {
	case OpInsert:
		return true // any concurrent write to the same key conflicts
	case OpPut:
		return !mine.Reconcile
	case OpDelete:
		return other.Kind == OpInsert
	case OpRequireExists:
		return other.Kind == OpDelete
	default:
		return false
	}
}

// TrimHistory drops committed-transaction entries with seq at or below
// the oldest still-open snapshot's OpenSeq (or all of them, if no
// snapshot is open). Safe to call periodically; never required for
// correctness, only to bound memory.
func (m *Manager) TrimHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()

	floor, ok := m.pool.MinOpenSeq()
	kept := m.history[:0]
	for _, tx := range m.history {
		if !ok || tx.seq <= floor {
			continue
		}
		kept = append(kept, tx)
	}
	m.history = kept
}

func (m *Manager) apply(snap *Snapshot) error {
	entries := snap.buffer.Entries()
	ops := make([]kv.BatchOp, 0, len(entries))
	for _, e := range entries {
		if e.op.Kind == OpRequireExists {
			continue
		}
		ops = append(ops, kv.BatchOp{
			Keyspace: e.keyspace,
			Key:      e.key,
			Value:    e.op.Value,
			Delete:   e.op.Kind == OpDelete,
		})
	}
	if batcher, ok := m.store.(kv.Batcher); ok {
		return batcher.ApplyBatch(ops)
	}
	for _, op := range ops {
		if op.Delete {
			if err := m.store.Delete(op.Keyspace, op.Key); err != nil {
				return err
			}
			continue
		}
		if err := m.store.Put(op.Keyspace, op.Key, op.Value); err != nil {
			return err
		}
	}
	return nil
}

// encodeCommitSummary is the lightweight WAL payload for a
// TransactionCommit record: snapshot id, open sequence and write
// count. The full write set lives only in the in-memory commit
// history used for isolation checks; replaying it from the WAL on
// recovery is out of this package's scope.
func encodeCommitSummary(snap *Snapshot, writeCount int) []byte {
	buf := make([]byte, 16+8+4)
	idBytes, _ := snap.ID.MarshalBinary()
	copy(buf[:16], idBytes)
	binary.BigEndian.PutUint64(buf[16:24], snap.OpenSeq)
	binary.BigEndian.PutUint32(buf[24:28], uint32(writeCount))
	return buf
}
