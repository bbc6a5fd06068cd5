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

package kv

import "sync"

// Pool lends range iterators keyed by (keyspace, prefixed?); at most
// one iterator is lent out per slot at a time. Prefixed leases mark the
// slot for same-prefix seeks; unprefixed leases get total-order seeks.
type Pool struct {
	store Store

	mu    sync.Mutex
	slots map[slotKey]*sync.Mutex
}

type slotKey struct {
	ks       Keyspace
	prefixed bool
}

// NewPool builds an iterator pool fronting store.
func NewPool(store Store) *Pool {
	return &Pool{store: store, slots: make(map[slotKey]*sync.Mutex)}
}

func (p *Pool) slotFor(ks Keyspace, prefixed bool) *sync.Mutex {
	key := slotKey{ks: ks, prefixed: prefixed}
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.slots[key]
	if !ok {
		m = &sync.Mutex{}
		p.slots[key] = m
	}
	return m
}

// Lease blocks until the (ks, prefixed) slot is free, opens a range
// iterator over r, and returns it along with a release function the
// caller must invoke exactly once when finished.
func (p *Pool) Lease(ks Keyspace, r Range, prefixed bool) (RangeIter, func(), error) {
	slot := p.slotFor(ks, prefixed)
	slot.Lock()
	it, err := p.store.IterateRange(ks, r)
	if err != nil {
		slot.Unlock()
		return nil, nil, err
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		_ = it.Close()
		slot.Unlock()
	}
	return it, release, nil
}

// LeasePrefix is a convenience for the common case of leasing a
// prefix-bounded, prefix-seekable iterator.
func (p *Pool) LeasePrefix(ks Keyspace, prefix []byte) (RangeIter, func(), error) {
	return p.Lease(ks, PrefixRange(prefix), true)
}
