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
	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/planner"
)

// Result is a pipeline's output: its final rows in Rows or, when the
// last stage is a Fetch, the documents it produced in Documents. The
// other field is always nil; a result with no rows may leave both nil.
type Result struct {
	Rows      []executor.Row
	Documents []executor.Document
}

// planFor builds the executor.PlanFor resolver a pipeline's Match and
// Fetch stages share: annotate and order the conjunction at block
// fresh each time, since a sub-pattern's binding context depends on
// where it is reached, not just its own shape.
func planFor(tree *ir.Tree, cache *concept.TypeCache, stats *planner.Stats) executor.PlanFor {
	return func(block ir.BlockID) *planner.Plan {
		planner.Optimise(tree, block)
		annotations := annotation.Infer(tree, block, cache)
		return planner.Order(tree, block, annotations, stats)
	}
}

// Execute runs pipeline's stages in order against ctx, returning its
// final Result. ctx.Tree must be pipeline.Tree.
func Execute(ctx *executor.Context, things *concept.ThingManager, cache *concept.TypeCache, stats *planner.Stats, pipeline *Pipeline) (*Result, error) {
	resolve := planFor(pipeline.Tree, cache, stats)

	var cur executor.RowIterator = executor.RowsIterator([]executor.Row{{}})
	for i, stage := range pipeline.Stages {
		if stage.Kind == StageFetch {
			if i != len(pipeline.Stages)-1 {
				return nil, dberrors.New(dberrors.QueryLanguageUsage, "a fetch stage must be the last stage of a pipeline")
			}
			docs, err := executor.Fetch(ctx, resolve, cur, stage.Fetch)
			if err != nil {
				return nil, err
			}
			return &Result{Documents: docs}, nil
		}

		next, err := runStage(ctx, things, resolve, cur, stage)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	rows, err := executor.Drain(cur)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: rows}, nil
}

func runStage(ctx *executor.Context, things *concept.ThingManager, resolve executor.PlanFor, cur executor.RowIterator, stage Stage) (executor.RowIterator, error) {
	switch stage.Kind {
	case StageMatch:
		return flatMapMatch(ctx, resolve(stage.MatchBlock), cur)
	case StageInsert:
		return executor.Insert(ctx, things, cur, stage.WriteStatements)
	case StageDelete:
		return executor.Delete(ctx, cur, stage.WriteStatements)
	case StageUpdate:
		return executor.Update(ctx, things, cur, stage.UpdateDeletes, stage.WriteStatements)
	case StagePut:
		return Put(ctx, things, cur, stage.WriteStatements)
	case StageSelect:
		return executor.Select(cur, stage.Variables), nil
	case StageSort:
		return executor.Sort(cur, stage.SortSpecs)
	case StageOffset:
		return executor.Offset(cur, stage.N), nil
	case StageLimit:
		return executor.Limit(cur, stage.N), nil
	case StageReduce:
		return executor.Reduce(ctx, cur, stage.GroupBy, stage.Reducers)
	default:
		return nil, dberrors.New(dberrors.QueryLanguageUsage, "unsupported stage kind %v", stage.Kind)
	}
}

// flatMapMatch re-seeds plan once per upstream row and concatenates
// every row each match produces, since executor.Match itself only
// seeds a single starting row.
func flatMapMatch(ctx *executor.Context, plan *planner.Plan, upstream executor.RowIterator) (executor.RowIterator, error) {
	rows, err := executor.Drain(upstream)
	if err != nil {
		return nil, err
	}
	var out []executor.Row
	for _, row := range rows {
		if err := ctx.Interrupt.CheckRow(); err != nil {
			return nil, err
		}
		matched, err := executor.Match(ctx, plan, row)
		if err != nil {
			return nil, err
		}
		produced, err := executor.Drain(matched)
		if err != nil {
			return nil, err
		}
		out = append(out, produced...)
	}
	return executor.RowsIterator(out), nil
}
