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

package functionrt

import (
	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/mvcc"
	"github.com/gradb/gradb/planner"
)

// Runtime adapts a Cache of compiled, non-recursive function bodies
// into the executor's CallFunction seam: Call resolves one row of
// output values for a single invocation, re-entering Match (and,
// transitively, Call again for any function the body itself calls —
// the acyclic check in NewRegistry is what keeps this from looping).
type Runtime struct {
	cache     *Cache
	snapshot  *mvcc.Snapshot
	types     *concept.TypeCache
	stats     *planner.Stats
	interrupt *executor.ExecutionInterrupt
}

// NewRuntime binds a Cache to one snapshot/schema pair for the
// lifetime of a single transaction's query execution.
func NewRuntime(cache *Cache, snapshot *mvcc.Snapshot, types *concept.TypeCache, stats *planner.Stats, interrupt *executor.ExecutionInterrupt) *Runtime {
	return &Runtime{cache: cache, snapshot: snapshot, types: types, stats: stats, interrupt: interrupt}
}

// Call implements executor.CallFunction.
func (r *Runtime) Call(name string, args []annotation.Value) ([]annotation.Value, error) {
	compiled, ok, err := r.cache.Get(name, r.types, r.stats)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.FunctionDefinition, "no function named %s is defined in this schema", name)
	}
	if len(args) != len(compiled.Parameters) {
		return nil, dberrors.New(dberrors.ExpressionCompile, "function %s expects %d arguments, got %d", name, len(compiled.Parameters), len(args))
	}

	ctx := &executor.Context{
		Tree:      compiled.Definition.Tree,
		Snapshot:  r.snapshot,
		Cache:     r.types,
		Functions: r.Call,
		Interrupt: r.interrupt,
	}
	seed := executor.Row{}
	for i, param := range compiled.Parameters {
		seed = seed.With(param, executor.ValueBinding(args[i]))
	}

	rows, err := executor.Match(ctx, compiled.Plan, seed)
	if err != nil {
		return nil, err
	}

	def := compiled.Definition
	switch def.ReturnKind {
	case ir.FunctionReturnReduce:
		return reduceReturn(ctx, rows, def.ReturnReducers, compiled.ReduceOutputs)
	default:
		return streamReturn(rows, def.ReturnVariables, name, r.types)
	}
}

// streamReturn reads def's output variables off the first row the
// body produces; a function whose body produces no row returns an
// ExpressionCompile error naming the function, as does a return
// variable left unbound.
func streamReturn(rows executor.RowIterator, outputs []ir.VariableID, name string, types *concept.TypeCache) ([]annotation.Value, error) {
	row, ok, err := rows.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dberrors.New(dberrors.ExpressionCompile, "function %s produced no answer for this call", name)
	}
	out := make([]annotation.Value, len(outputs))
	for i, v := range outputs {
		b, bound := row[v]
		if !bound {
			return nil, dberrors.New(dberrors.ExpressionCompile, "function %s: return variable is unbound", name)
		}
		val, err := executor.ResolveValue(types, b)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func reduceReturn(ctx *executor.Context, rows executor.RowIterator, reducers []ir.FunctionReducer, outputs []ir.VariableID) ([]annotation.Value, error) {
	execReducers := make([]executor.Reducer, len(reducers))
	for i, r := range reducers {
		execReducers[i] = executor.Reducer{Kind: toExecutorReduceKind(r.Kind), Variable: r.Variable, Output: outputs[i]}
	}

	out, err := executor.Reduce(ctx, rows, nil, execReducers)
	if err != nil {
		return nil, err
	}
	row, ok, err := out.Next()
	if err != nil {
		return nil, err
	}
	if !ok {
		// Reduce always emits exactly one ungrouped row, even over zero
		// input rows; reaching here would be an executor invariant
		// violation, not a user-facing condition.
		return nil, dberrors.New(dberrors.Unexpected, "ungrouped reduce produced no row")
	}
	result := make([]annotation.Value, len(outputs))
	for i, v := range outputs {
		result[i] = row[v].Value
	}
	return result, nil
}

func toExecutorReduceKind(k ir.FunctionReduceKind) executor.ReducerKind {
	switch k {
	case ir.FunctionReduceSum:
		return executor.ReduceSum
	case ir.FunctionReduceMin:
		return executor.ReduceMin
	case ir.FunctionReduceMax:
		return executor.ReduceMax
	case ir.FunctionReduceMean:
		return executor.ReduceMean
	case ir.FunctionReduceMedian:
		return executor.ReduceMedian
	case ir.FunctionReduceStd:
		return executor.ReduceStd
	default:
		return executor.ReduceCount
	}
}
