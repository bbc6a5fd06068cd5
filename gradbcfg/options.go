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

// Package gradbcfg holds the in-process option structs for the storage
// and transaction surfaces. There is no file/CLI config loader here: that
// surface is out of scope.
package gradbcfg

import (
	"time"

	"github.com/c2h5oh/datasize"
)

// StoreOptions configures a database directory on open.
type StoreOptions struct {
	// Dir is the database directory, containing wal/, storage/<keyspace>/
	// and checkpoint/<seq>/ subdirectories.
	Dir string

	// WALFsyncInterval batches fsync calls on the durability log; zero
	// means fsync after every append.
	WALFsyncInterval time.Duration

	// MemtableBudget bounds the in-memory portion of the log-structured
	// KV engine before it flushes a segment to disk.
	MemtableBudget datasize.ByteSize

	// SchemaLockAcquireTimeout is the default bound used when a caller's
	// TransactionOptions does not override it.
	SchemaLockAcquireTimeout time.Duration
}

// DefaultStoreOptions returns sane defaults for tests and small tools.
func DefaultStoreOptions(dir string) StoreOptions {
	return StoreOptions{
		Dir:                      dir,
		WALFsyncInterval:         5 * time.Millisecond,
		MemtableBudget:           64 * datasize.MB,
		SchemaLockAcquireTimeout: 10 * time.Second,
	}
}

// TransactionKind selects the class of snapshot a transaction opens.
type TransactionKind uint8

const (
	TransactionRead TransactionKind = iota
	TransactionWrite
	TransactionSchema
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionRead:
		return "read"
	case TransactionWrite:
		return "write"
	case TransactionSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// TransactionOptions configures a single transaction.
type TransactionOptions struct {
	Parallel                       bool
	SchemaLockAcquireTimeoutMillis uint64
	TransactionTimeoutMillis       uint64
}

// DefaultTransactionOptions returns sane defaults alongside functional
// overrides.
func DefaultTransactionOptions() TransactionOptions {
	return TransactionOptions{
		Parallel:                       false,
		SchemaLockAcquireTimeoutMillis: 10_000,
		TransactionTimeoutMillis:       0, // 0 == no timeout
	}
}

// Option mutates a TransactionOptions value.
type Option func(*TransactionOptions)

// WithParallel enables the parallel match executor variant.
func WithParallel(v bool) Option { return func(o *TransactionOptions) { o.Parallel = v } }

// WithSchemaLockTimeout overrides the schema-lock bounded acquire timeout.
func WithSchemaLockTimeout(d time.Duration) Option {
	return func(o *TransactionOptions) { o.SchemaLockAcquireTimeoutMillis = uint64(d.Milliseconds()) }
}

// WithTransactionTimeout overrides the background interrupt timer.
func WithTransactionTimeout(d time.Duration) Option {
	return func(o *TransactionOptions) { o.TransactionTimeoutMillis = uint64(d.Milliseconds()) }
}

// Apply folds a list of Options onto DefaultTransactionOptions.
func Apply(opts ...Option) TransactionOptions {
	o := DefaultTransactionOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
