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
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/kv"
)

// Snapshot is a read view tagged with an open sequence number, plus a
// write buffer for its owner's pending mutations. Read-only, writable and
// exclusive schema-writable snapshots share this type; Kind distinguishes
// them.
type Snapshot struct {
	ID      uuid.UUID
	Kind    gradbcfg.TransactionKind
	OpenSeq uint64

	store   kv.Store
	buffer  *WriteBuffer
	manager *Manager

	mu       sync.Mutex
	done     bool
	schemaTx bool
}

func newSnapshot(kind gradbcfg.TransactionKind, openSeq uint64, store kv.Store, manager *Manager) *Snapshot {
	return &Snapshot{
		ID:       uuid.New(),
		Kind:     kind,
		OpenSeq:  openSeq,
		store:    store,
		buffer:   NewWriteBuffer(),
		manager:  manager,
		schemaTx: kind == gradbcfg.TransactionSchema,
	}
}

// Get returns the buffered op's effective value if any, else the
// committed value at this snapshot's open sequence.
func (s *Snapshot) Get(ks kv.Keyspace, key []byte) ([]byte, bool, error) {
	if op, ok := s.buffer.Get(ks, key); ok {
		switch op.Kind {
		case OpDelete:
			return nil, false, nil
		case OpInsert, OpPut:
			return op.Value, true, nil
		case OpRequireExists:
			// No buffered value; fall through to the committed view.
		}
	}
	return s.store.Get(ks, key)
}

func (s *Snapshot) Insert(ks kv.Keyspace, key, value []byte) { s.buffer.Insert(ks, key, value) }
func (s *Snapshot) Put(ks kv.Keyspace, key, value []byte, reconcile bool) {
	s.buffer.Put(ks, key, value, reconcile)
}
func (s *Snapshot) Delete(ks kv.Keyspace, key []byte)        { s.buffer.Delete(ks, key) }
func (s *Snapshot) RequireExists(ks kv.Keyspace, key []byte) { s.buffer.RequireExists(ks, key) }

// IterateRange merges the buffer and the committed store view in lex
// order: a buffered delete hides the committed entry, a buffered
// put/insert overrides its value.
func (s *Snapshot) IterateRange(ks kv.Keyspace, r kv.Range) (kv.RangeIter, error) {
	storeIt, err := s.store.IterateRange(ks, r)
	if err != nil {
		return nil, err
	}
	defer storeIt.Close()

	merged := make(map[string][]byte)
	for {
		k, v, ok, err := storeIt.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		merged[string(k)] = v
	}

	for _, e := range s.buffer.Entries() {
		if e.keyspace != ks || !withinRange(e.key, r) {
			continue
		}
		sk := string(e.key)
		if e.op.Kind == OpDelete {
			delete(merged, sk)
			continue
		}
		if e.op.Kind == OpRequireExists {
			continue
		}
		merged[sk] = e.op.Value
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &mergedIter{keys: keys, vals: merged}, nil
}

func withinRange(key []byte, r kv.Range) bool {
	sk := string(key)
	switch r.Start.Kind {
	case kv.Inclusive:
		if sk < string(r.Start.Key) {
			return false
		}
	case kv.Exclusive:
		if sk <= string(r.Start.Key) {
			return false
		}
	}
	switch r.End.Kind {
	case kv.Inclusive:
		if sk > string(r.End.Key) {
			return false
		}
	case kv.Exclusive:
		if sk >= string(r.End.Key) {
			return false
		}
	}
	return true
}

type mergedIter struct {
	keys []string
	vals map[string][]byte
	idx  int
}

func (it *mergedIter) Next() ([]byte, []byte, bool, error) {
	if it.idx >= len(it.keys) {
		return nil, nil, false, nil
	}
	k := it.keys[it.idx]
	it.idx++
	return []byte(k), it.vals[k], true, nil
}

func (it *mergedIter) Close() error { return nil }

// keyspaceScanner adapts a Snapshot, bound to one keyspace, to
// encoding.PrevScanner by structural typing (package encoding cannot
// import mvcc without a cycle, so it declares the interface locally).
type keyspaceScanner struct {
	snap *Snapshot
	ks   kv.Keyspace
}

// Scanner returns a PrevScanner-compatible view of this snapshot
// scoped to ks, for use by the encoding layer's id allocators.
func (s *Snapshot) Scanner(ks kv.Keyspace) *keyspaceScanner {
	return &keyspaceScanner{snap: s, ks: ks}
}

// GetPrev returns the largest key <= seekKey visible to the snapshot,
// merging buffered writes with the committed view. A buffered delete
// of a key smaller than a committed candidate is not reconciled
// against still-smaller committed keys; in practice allocators never
// buffer deletes ahead of their own allocation, so this does not
// affect correctness there.
func (k *keyspaceScanner) GetPrev(seekKey []byte) ([]byte, []byte, bool, error) {
	storeKey, storeVal, storeOk, err := k.snap.store.GetPrev(k.ks, seekKey)
	if err != nil {
		return nil, nil, false, err
	}

	bestKey, bestVal, found := []byte(nil), []byte(nil), false
	if storeOk {
		if op, ok := k.snap.buffer.Get(k.ks, storeKey); !ok || op.Kind != OpDelete {
			bestKey, bestVal, found = storeKey, storeVal, true
		}
	}

	for _, e := range k.snap.buffer.Entries() {
		if e.keyspace != k.ks || bytes.Compare(e.key, seekKey) > 0 {
			continue
		}
		if found && bytes.Compare(e.key, bestKey) <= 0 {
			continue
		}
		if e.op.Kind == OpDelete {
			continue
		}
		bestKey, bestVal, found = e.key, e.op.Value, true
	}
	return bestKey, bestVal, found, nil
}

// Commit applies the snapshot's buffered writes under isolation
// validation. Returns the commit sequence number.
func (s *Snapshot) Commit() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return 0, dberrors.New(dberrors.Unexpected, "snapshot already closed")
	}
	s.done = true
	return s.manager.commit(s)
}

// Rollback discards the snapshot's buffered writes.
func (s *Snapshot) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.manager.abort(s)
}
