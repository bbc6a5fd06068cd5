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

package query

import (
	"context"
	"sync"
	"time"

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/functionrt"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/mvcc"
	"github.com/gradb/gradb/planner"
	"go.uber.org/zap"
)

// TransactionManager opens, executes and closes transactions against
// one mvcc.Manager, rebuilding the schema-derived TypeCache and
// function registry whenever a schema transaction commits. This is the
// concrete coordinator behind the transaction surface: a caller never
// touches mvcc.Manager directly.
type TransactionManager struct {
	mgr     *mvcc.Manager
	logger  *zap.Logger
	thingID *encoding.ThingIDGenerator

	mu           sync.RWMutex
	cache        *concept.TypeCache
	functions    *functionrt.Cache
	functionDefs []*ir.FunctionDefinition
}

// NewTransactionManager wraps mgr. The schema TypeCache and function
// registry are built lazily, on the first transaction opened.
func NewTransactionManager(mgr *mvcc.Manager, logger *zap.Logger) *TransactionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionManager{mgr: mgr, logger: logger, thingID: encoding.NewThingIDGenerator()}
}

// Transaction bundles one open snapshot with everything derived from
// it a pipeline needs to execute: type cache, thing manager (write
// only), type manager (schema only), planner statistics, and a function
// runtime wired to the same snapshot.
type Transaction struct {
	tm   *TransactionManager
	kind gradbcfg.TransactionKind

	Snapshot *mvcc.Snapshot
	Cache    *concept.TypeCache
	Things   *concept.ThingManager
	Types    *concept.TypeManager
	Stats    *planner.Stats
	Context  *executor.Context

	cancel       context.CancelFunc
	functionDefs []*ir.FunctionDefinition
}

func (tm *TransactionManager) ensureCache() error {
	tm.mu.RLock()
	ready := tm.cache != nil
	tm.mu.RUnlock()
	if ready {
		return nil
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.cache != nil {
		return nil
	}
	reader, err := tm.mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	if err != nil {
		return err
	}
	defer reader.Rollback()
	cache, err := concept.BuildTypeCache(reader, tm.mgr.Watermark())
	if err != nil {
		return err
	}
	registry, err := functionrt.NewRegistry(nil)
	if err != nil {
		return err
	}
	fnCache, err := functionrt.NewCache(registry, 0)
	if err != nil {
		return err
	}
	tm.cache = cache
	tm.functions = fnCache
	return nil
}

// refreshCache rebuilds the schema cache at seq and, if defs is
// non-nil, replaces the registered function set too. Called after a
// schema transaction commits.
func (tm *TransactionManager) refreshCache(reader *mvcc.Snapshot, seq uint64, defs []*ir.FunctionDefinition) error {
	cache, err := concept.BuildTypeCache(reader, seq)
	if err != nil {
		return err
	}

	tm.mu.Lock()
	defer tm.mu.Unlock()
	if defs != nil {
		registry, err := functionrt.NewRegistry(defs)
		if err != nil {
			return err
		}
		fnCache, err := functionrt.NewCache(registry, 0)
		if err != nil {
			return err
		}
		// Compile every definition now, against the cache/stats this
		// schema just committed, so a bad function body surfaces here
		// rather than on some later query's first call to it.
		stats, err := planner.BuildStats(reader, cache)
		if err != nil {
			return err
		}
		if err := fnCache.WarmAll(cache, stats); err != nil {
			tm.logger.Warn("function definition rejected at schema commit", zap.Error(err))
			return err
		}
		tm.functions = fnCache
		tm.functionDefs = defs
	}
	tm.cache = cache
	return nil
}

func interruptFor(opts gradbcfg.TransactionOptions) (*executor.ExecutionInterrupt, context.CancelFunc) {
	if opts.TransactionTimeoutMillis == 0 {
		return executor.NewExecutionInterrupt(nil), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(opts.TransactionTimeoutMillis)*time.Millisecond)
	return executor.NewExecutionInterrupt(ctx), cancel
}

func (tm *TransactionManager) open(kind gradbcfg.TransactionKind, opts gradbcfg.TransactionOptions) (*Transaction, error) {
	if err := tm.ensureCache(); err != nil {
		return nil, err
	}
	snap, err := tm.mgr.Open(kind, opts)
	if err != nil {
		return nil, err
	}

	tm.mu.RLock()
	cache := tm.cache
	fnCache := tm.functions
	tm.mu.RUnlock()

	stats, err := planner.BuildStats(snap, cache)
	if err != nil {
		snap.Rollback()
		return nil, err
	}

	interrupt, cancel := interruptFor(opts)
	runtime := functionrt.NewRuntime(fnCache, snap, cache, stats, interrupt)

	tx := &Transaction{
		tm:       tm,
		kind:     kind,
		Snapshot: snap,
		Cache:    cache,
		Stats:    stats,
		cancel:   cancel,
		Context: &executor.Context{
			Snapshot:  snap,
			Cache:     cache,
			Functions: runtime.Call,
			Interrupt: interrupt,
		},
	}
	if kind == gradbcfg.TransactionWrite {
		tx.Things = concept.NewThingManager(snap, cache, tm.thingID)
	}
	if kind == gradbcfg.TransactionSchema {
		tx.Types = concept.NewTypeManager(snap)
	}
	return tx, nil
}

// OpenRead starts a read-only transaction.
func (tm *TransactionManager) OpenRead(opts gradbcfg.TransactionOptions) (*Transaction, error) {
	return tm.open(gradbcfg.TransactionRead, opts)
}

// OpenWrite starts a data-write transaction.
func (tm *TransactionManager) OpenWrite(opts gradbcfg.TransactionOptions) (*Transaction, error) {
	return tm.open(gradbcfg.TransactionWrite, opts)
}

// OpenSchema starts an exclusive schema transaction, blocking (bounded
// by opts.SchemaLockAcquireTimeoutMillis) until no other schema
// transaction is open.
func (tm *TransactionManager) OpenSchema(opts gradbcfg.TransactionOptions) (*Transaction, error) {
	return tm.open(gradbcfg.TransactionSchema, opts)
}

// Run opens a transaction of kind, executes body, and commits on
// success or rolls back on error/panic — the common open/execute/
// close shape every pipeline or schema operation follows.
func (tm *TransactionManager) Run(kind gradbcfg.TransactionKind, opts gradbcfg.TransactionOptions, body func(*Transaction) error) (err error) {
	tx, err := tm.open(kind, opts)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
		if err != nil {
			tm.logger.Debug("rolling back transaction after error", zap.String("kind", kind.String()), zap.Error(err))
			tx.Rollback()
			return
		}
	}()
	if err = body(tx); err != nil {
		return err
	}
	_, err = tx.Commit()
	return err
}

// RunWithRetry behaves like Run, but re-opens and re-runs body against
// a fresh transaction, with exponential backoff, as long as it keeps
// failing with an Isolation(Conflict) error. Use this for write/schema
// bodies that should survive losing a commit-time race against another
// writer rather than surfacing the conflict to the caller.
func (tm *TransactionManager) RunWithRetry(ctx context.Context, kind gradbcfg.TransactionKind, opts gradbcfg.TransactionOptions, retry dberrors.RetryOptions, body func(*Transaction) error) error {
	return dberrors.RetryOnConflict(ctx, retry, func() error {
		return tm.Run(kind, opts, body)
	})
}

// Execute runs pipeline's stages against tx and returns its final
// Result. Valid on a read or write transaction; on a read transaction
// a pipeline containing a write stage is rejected with a
// QueryLanguageUsage error before any stage runs.
func (tx *Transaction) Execute(pipeline *Pipeline) (*Result, error) {
	if tx.kind == gradbcfg.TransactionRead && pipeline.writes() {
		return nil, dberrors.New(dberrors.QueryLanguageUsage, "a read transaction cannot run a pipeline with a write stage")
	}
	tx.Context.Tree = pipeline.Tree
	return Execute(tx.Context, tx.Things, tx.Cache, tx.Stats, pipeline)
}

// ExecuteSchema applies op against tx's TypeManager. Valid only on a
// schema transaction.
func (tx *Transaction) ExecuteSchema(op *SchemaOperation) error {
	if tx.kind != gradbcfg.TransactionSchema {
		return dberrors.New(dberrors.QueryLanguageUsage, "schema operations require a schema transaction")
	}
	if err := op.Apply(tx.Types); err != nil {
		return err
	}
	if op.Functions != nil {
		tx.functionDefs = op.Functions
	}
	return nil
}

// Commit finalizes tx. For a schema transaction, it also rebuilds the
// manager's shared TypeCache and function registry so subsequent
// transactions see the new schema.
func (tx *Transaction) Commit() (uint64, error) {
	if tx.cancel != nil {
		defer tx.cancel()
	}
	seq, err := tx.Snapshot.Commit()
	if err != nil {
		return 0, err
	}
	if tx.kind == gradbcfg.TransactionSchema {
		reader, rerr := tx.tm.mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
		if rerr != nil {
			return seq, rerr
		}
		defer reader.Rollback()
		if rerr := tx.tm.refreshCache(reader, seq, tx.functionDefs); rerr != nil {
			return seq, rerr
		}
	}
	return seq, nil
}

// Rollback discards tx without applying its writes.
func (tx *Transaction) Rollback() {
	if tx.cancel != nil {
		defer tx.cancel()
	}
	tx.Snapshot.Rollback()
}
