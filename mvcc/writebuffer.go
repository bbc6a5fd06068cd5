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

// Package mvcc layers snapshots, per-snapshot write buffers and a
// serialisable commit path over package kv.
package mvcc

import (
	"github.com/gradb/gradb/kv"
	"github.com/tidwall/btree"
)

// OpKind is one of the write-buffer operation kinds.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpPut
	OpDelete
	OpRequireExists
)

// WriteOp is one buffered mutation.
type WriteOp struct {
	Kind      OpKind
	Value     []byte // nil for Delete/RequireExists
	Reconcile bool   // only meaningful for OpPut: false conflicts with any concurrent write
}

type bufferEntry struct {
	keyspace kv.Keyspace
	key      []byte
	op       WriteOp
}

// WriteBuffer is a snapshot's pending (keyspace, key) -> write-op map,
// kept in composite-key order. Entries are merged with the committed KV
// view during reads.
type WriteBuffer struct {
	entries *btree.Map[string, bufferEntry]
}

// NewWriteBuffer returns an empty buffer.
func NewWriteBuffer() *WriteBuffer {
	return &WriteBuffer{entries: &btree.Map[string, bufferEntry]{}}
}

func composite(ks kv.Keyspace, key []byte) string {
	b := make([]byte, 1+len(key))
	b[0] = byte(ks)
	copy(b[1:], key)
	return string(b)
}

func (b *WriteBuffer) set(ks kv.Keyspace, key []byte, op WriteOp) {
	b.entries.Set(composite(ks, key), bufferEntry{
		keyspace: ks,
		key:      append([]byte(nil), key...),
		op:       op,
	})
}

// Insert buffers a new-key write: conflicts with any concurrent write
// to the same key at commit time.
func (b *WriteBuffer) Insert(ks kv.Keyspace, key, value []byte) {
	b.set(ks, key, WriteOp{Kind: OpInsert, Value: append([]byte(nil), value...)})
}

// Put buffers an overwrite. reconcile=true means two concurrent Puts
// of the same key do not conflict with each other.
func (b *WriteBuffer) Put(ks kv.Keyspace, key, value []byte, reconcile bool) {
	b.set(ks, key, WriteOp{Kind: OpPut, Value: append([]byte(nil), value...), Reconcile: reconcile})
}

// Delete buffers a tombstone: conflicts with a concurrent Insert of
// the same key.
func (b *WriteBuffer) Delete(ks kv.Keyspace, key []byte) {
	b.set(ks, key, WriteOp{Kind: OpDelete})
}

// RequireExists buffers no mutation, but fails commit if the key was
// deleted by a transaction committed in between.
func (b *WriteBuffer) RequireExists(ks kv.Keyspace, key []byte) {
	b.set(ks, key, WriteOp{Kind: OpRequireExists})
}

// Get returns the buffered op for (ks, key), if any.
func (b *WriteBuffer) Get(ks kv.Keyspace, key []byte) (WriteOp, bool) {
	e, ok := b.entries.Get(composite(ks, key))
	if !ok {
		return WriteOp{}, false
	}
	return e.op, true
}

// Entries returns every buffered entry, in composite-key order.
func (b *WriteBuffer) Entries() []bufferEntry {
	out := make([]bufferEntry, 0, b.entries.Len())
	b.entries.Scan(func(_ string, e bufferEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

// ByCompositeKey returns every buffered op keyed by its (keyspace,
// key) composite string, as used by the isolation check to compare write
// sets without re-deriving the encoding.
func (b *WriteBuffer) ByCompositeKey() map[string]WriteOp {
	out := make(map[string]WriteOp, b.entries.Len())
	b.entries.Scan(func(k string, e bufferEntry) bool {
		out[k] = e.op
		return true
	})
	return out
}
