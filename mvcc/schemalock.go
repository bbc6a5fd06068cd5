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
	"time"

	"github.com/gradb/gradb/dberrors"
)

// SchemaLock is the process-wide exclusive lock schema snapshots must
// hold: at most one open at a time, acquired with a bounded timeout.
type SchemaLock struct {
	ch chan struct{}
}

// NewSchemaLock returns an unheld lock.
func NewSchemaLock() *SchemaLock {
	return &SchemaLock{ch: make(chan struct{}, 1)}
}

// Acquire blocks up to timeout for the lock. timeout<=0 means "try
// once, don't wait".
func (l *SchemaLock) Acquire(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case l.ch <- struct{}{}:
			return nil
		default:
			return dberrors.New(dberrors.SchemaLockTimeout, "schema lock is held by another transaction")
		}
	}
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-time.After(timeout):
		return dberrors.New(dberrors.SchemaLockTimeout, "schema lock acquire timed out after %s", timeout)
	}
}

// Release frees the lock. A no-op if not held, so callers can call it
// unconditionally in cleanup paths.
func (l *SchemaLock) Release() {
	select {
	case <-l.ch:
	default:
	}
}
