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

package kvengine

import "github.com/gradb/gradb/kv"

// IterateRange materialises r into a snapshot slice under a read
// lock, then yields it lazily. Materialising up front keeps the lock
// hold time bounded and gives iteration the same "never observes a
// partial commit" guarantee as point reads.
func (e *Engine) IterateRange(ks kv.Keyspace, r kv.Range) (kv.RangeIter, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t := e.tables[ks]
	it := &rangeIterator{}

	pivot := ""
	if r.Start.Kind != kv.Unbounded {
		pivot = string(r.Start.Key)
	}
	t.Ascend(pivot, func(k string, v []byte) bool {
		if r.Start.Kind == kv.Exclusive && k == string(r.Start.Key) {
			return true
		}
		switch r.End.Kind {
		case kv.Inclusive:
			if k > string(r.End.Key) {
				return false
			}
		case kv.Exclusive:
			if k >= string(r.End.Key) {
				return false
			}
		}
		it.keys = append(it.keys, k)
		it.vals = append(it.vals, cloneBytes(v))
		return true
	})
	return it, nil
}

type rangeIterator struct {
	keys []string
	vals [][]byte
	idx  int
}

func (it *rangeIterator) Next() ([]byte, []byte, bool, error) {
	if it.idx >= len(it.keys) {
		return nil, nil, false, nil
	}
	k, v := []byte(it.keys[it.idx]), it.vals[it.idx]
	it.idx++
	return k, v, true, nil
}

func (it *rangeIterator) Close() error {
	it.keys = nil
	it.vals = nil
	return nil
}
