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

package executor

import (
	"context"
	"sync/atomic"

	"github.com/gradb/gradb/dberrors"
)

// RowIterator is the pull-based contract every stage in this package
// implements. Seek is a best-effort positioning hint: stages backed by a
// real key-ordered scan honor it to skip ahead, stages that only transform
// an upstream iterator ignore it.
type RowIterator interface {
	// Next advances the iterator, returning (row, true, nil) if one is
	// available, (zero, false, nil) at end of input, or a non-nil error
	// if production failed or was interrupted.
	Next() (Row, bool, error)
	// Seek discards rows ordered before key, where key is compared
	// against Row.SortKey() of the iterator's primary variable. Stages
	// with no natural key order are free to treat this as a no-op.
	Seek(key []byte) error
	// Peek returns the next row without consuming it.
	Peek() (Row, bool, error)
}

// ExecutionInterrupt threads query cancellation through every stage
// . Stages check it between rows, and every 1024 iterations of an internal
// scan loop, rather than on every inner-loop item, so the ctx.Done()
// select does not dominate a tight scan. ticks is an atomic counter
// because ParallelMatch shares one ExecutionInterrupt across the
// goroutines evaluating a disjunction's alternatives concurrently.
type ExecutionInterrupt struct {
	ctx   context.Context
	ticks atomic.Uint32
}

// NewExecutionInterrupt wraps ctx as an ExecutionInterrupt. A nil
// *ExecutionInterrupt is valid and never trips (used by tests and by
// callers that do not need cancellation).
func NewExecutionInterrupt(ctx context.Context) *ExecutionInterrupt {
	return &ExecutionInterrupt{ctx: ctx}
}

// CheckRow is called once per row a stage emits or consumes.
func (i *ExecutionInterrupt) CheckRow() error {
	if i == nil || i.ctx == nil {
		return nil
	}
	select {
	case <-i.ctx.Done():
		return dberrors.New(dberrors.Interrupted, "execution interrupted: %v", i.ctx.Err())
	default:
		return nil
	}
}

// CheckBatch is called on every iteration of an internal scan loop
// (e.g. a prefix scan inside one Isa/Has/Links step) but only actually
// tests the context every 1024 calls, batch size.
func (i *ExecutionInterrupt) CheckBatch() error {
	if i == nil || i.ctx == nil {
		return nil
	}
	n := i.ticks.Add(1)
	if n&1023 != 0 {
		return nil
	}
	return i.CheckRow()
}

// funcIterator adapts a plain next function to RowIterator, providing
// Peek via a one-row lookahead cache. Seek is unsupported (returns
// nil, a no-op) unless the constructing stage overrides it.
type funcIterator struct {
	next    func() (Row, bool, error)
	seek    func(key []byte) error
	peeked  bool
	row     Row
	ok      bool
	peekErr error
}

func newFuncIterator(next func() (Row, bool, error)) *funcIterator {
	return &funcIterator{next: next}
}

func (f *funcIterator) Next() (Row, bool, error) {
	if f.peeked {
		f.peeked = false
		return f.row, f.ok, f.peekErr
	}
	return f.next()
}

func (f *funcIterator) Peek() (Row, bool, error) {
	if !f.peeked {
		f.row, f.ok, f.peekErr = f.next()
		f.peeked = true
	}
	return f.row, f.ok, f.peekErr
}

func (f *funcIterator) Seek(key []byte) error {
	if f.seek != nil {
		return f.seek(key)
	}
	return nil
}

// sliceIterator serves pre-materialized rows, used by stages that must
// buffer (Sort, reducers, the write stages) rather than stream.
func sliceIterator(rows []Row) RowIterator {
	i := 0
	return newFuncIterator(func() (Row, bool, error) {
		if i >= len(rows) {
			return nil, false, nil
		}
		r := rows[i]
		i++
		return r, true, nil
	})
}

// RowsIterator serves pre-materialized rows, for callers outside this
// package building a RowIterator over a fixed row set (e.g. a query
// stage re-entering Insert once per row on its own pre-materialized
// upstream).
func RowsIterator(rows []Row) RowIterator { return sliceIterator(rows) }

// Drain reads every remaining row out of it into a slice, for callers
// outside this package that need the same draining behavior the
// buffering stages use internally.
func Drain(it RowIterator) ([]Row, error) { return drain(it) }

// drain reads every remaining row out of it into a slice.
func drain(it RowIterator) ([]Row, error) {
	var out []Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}
