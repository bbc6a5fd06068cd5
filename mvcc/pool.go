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
	"sync"

	"github.com/google/uuid"
)

// SnapshotPool tracks every currently-open snapshot, so the commit
// path can find the oldest still-active open sequence number — the
// point before which committed-transaction history no longer needs
// to be retained for isolation checks.
type SnapshotPool struct {
	mu     sync.Mutex
	active map[uuid.UUID]*Snapshot
}

// NewSnapshotPool returns an empty pool.
func NewSnapshotPool() *SnapshotPool {
	return &SnapshotPool{active: make(map[uuid.UUID]*Snapshot)}
}

func (p *SnapshotPool) add(s *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[s.ID] = s
}

func (p *SnapshotPool) remove(s *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, s.ID)
}

// Len returns the number of currently open snapshots.
func (p *SnapshotPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// MinOpenSeq returns the smallest OpenSeq among active snapshots, and
// ok=false if none are open. Used to trim committed-transaction
// history that no longer-open snapshot could conflict against.
func (p *SnapshotPool) MinOpenSeq() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	min := uint64(0)
	found := false
	for _, s := range p.active {
		if !found || s.OpenSeq < min {
			min = s.OpenSeq
			found = true
		}
	}
	return min, found
}
