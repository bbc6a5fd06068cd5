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

// Package durability implements the write-ahead log: an append-only,
// crash-safe record log that assigns monotonic sequence numbers and is
// iterable from any sequence number. The byte-level file format beyond
// this durability contract is this package's private concern.
package durability

import "sync"

// RecordType is the stable numeric code prefixing every WAL record.
type RecordType uint32

const (
	TransactionCommit RecordType = 1
	TransactionAbort  RecordType = 2
	Statistics        RecordType = 3
	SchemaMutation    RecordType = 4
)

// TypeRegistry maps record type codes to human-readable names, needed
// to decode records during recovery. Registration is idempotent:
// registering the same (code, name) pair twice is a no-op, and registering
// a code under a different name is a logic error.
type TypeRegistry struct {
	mu    sync.RWMutex
	names map[RecordType]string
}

// NewTypeRegistry builds a registry pre-populated with the four stable
// record types
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{names: make(map[RecordType]string)}
	r.Register(TransactionCommit, "TransactionCommit")
	r.Register(TransactionAbort, "TransactionAbort")
	r.Register(Statistics, "Statistics")
	r.Register(SchemaMutation, "SchemaMutation")
	return r
}

// Register idempotently associates a type code with a name. Panics if
// the code is already registered under a different name: that would
// silently corrupt recovery's interpretation of old records.
func (r *TypeRegistry) Register(code RecordType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.names[code]; ok {
		if existing != name {
			panic("durability: record type " + existing + " re-registered as " + name)
		}
		return
	}
	r.names[code] = name
}

// Name returns the registered name for code, or "" if unregistered.
func (r *TypeRegistry) Name(code RecordType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[code]
}

// Record is one decoded entry from the log, as yielded by IterFrom.
type Record struct {
	Seq     uint64
	Type    RecordType
	Payload []byte
}
