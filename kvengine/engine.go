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

// Package kvengine implements the committed-state side of package kv:
// an in-memory ordered map per keyspace. Checkpoint writes its contents
// to disk and Restore loads them back. Nothing in this module rebuilds
// the engine from the durability log or calls Checkpoint on a schedule;
// the log's commit records carry a summary, not the written entries.
package kvengine

import (
	"sync"

	"github.com/gradb/gradb/kv"
	"github.com/tidwall/btree"
)

// Engine is a process-local, in-memory implementation of kv.Store.
// Keys and values are copied on every Put/Get so callers may reuse
// their buffers.
type Engine struct {
	mu     sync.RWMutex
	tables map[kv.Keyspace]*btree.Map[string, []byte]
}

// New builds an empty engine with one ordered map per keyspace.
func New() *Engine {
	e := &Engine{tables: make(map[kv.Keyspace]*btree.Map[string, []byte])}
	for _, ks := range kv.All() {
		t := &btree.Map[string, []byte]{}
		e.tables[ks] = t
	}
	return e
}

func (e *Engine) Get(ks kv.Keyspace, key []byte) ([]byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.tables[ks].Get(string(key))
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (e *Engine) Put(ks kv.Keyspace, key, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[ks].Set(string(key), cloneBytes(value))
	return nil
}

func (e *Engine) Delete(ks kv.Keyspace, key []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tables[ks].Delete(string(key))
	return nil
}

// ApplyBatch applies every op under a single write lock, satisfying
// kv.Batcher so commit lands a whole keyspace's writes as one atomic unit
// from the perspective of concurrent readers.
func (e *Engine) ApplyBatch(ops []kv.BatchOp) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, op := range ops {
		t := e.tables[op.Keyspace]
		if op.Delete {
			t.Delete(string(op.Key))
			continue
		}
		t.Set(string(op.Key), cloneBytes(op.Value))
	}
	return nil
}

// GetPrev returns the largest key <= seekKey in ks.
func (e *Engine) GetPrev(ks kv.Keyspace, seekKey []byte) ([]byte, []byte, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var foundKey string
	var foundVal []byte
	found := false
	e.tables[ks].Descend(string(seekKey), func(k string, v []byte) bool {
		foundKey, foundVal, found = k, v, true
		return false
	})
	if !found {
		return nil, nil, false, nil
	}
	return []byte(foundKey), cloneBytes(foundVal), true, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
