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
	"github.com/gradb/gradb/planner"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism bounds the worker pool ParallelMatch spins up per
// row when its caller passes a non-positive parallelism. A disjunction
// with a single alternative runs it directly, without a pool.
const DefaultParallelism = 4

// ParallelMatch is Match with one difference: each disjunction group's
// alternatives are evaluated concurrently on a worker pool bounded by
// parallelism (DefaultParallelism if <= 0) instead of one at a time.
// Alternatives are independent sub-plans — none can bind a variable the
// others read — so running them concurrently changes nothing but wall
// time. Results are still joined in alternative order, not completion
// order, so ParallelMatch and Match always produce identical row
// sequences for the same plan and seed.
func ParallelMatch(ctx *Context, plan *planner.Plan, seed Row, parallelism int) (RowIterator, error) {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	var cur RowIterator = sliceIterator([]Row{seed})
	for _, step := range plan.Steps {
		cur = applyStep(ctx, step, cur)
	}
	return applyChildrenParallel(ctx, plan.Children, cur, parallelism)
}

// applyChildrenParallel mirrors applyChildren, substituting a
// concurrent join for each disjunction group.
func applyChildrenParallel(ctx *Context, children []planner.SubPlan, upstream RowIterator, parallelism int) (RowIterator, error) {
	if len(children) == 0 {
		return upstream, nil
	}

	negations, optionals, groups := partitionChildren(children)

	cur := upstream
	for _, neg := range negations {
		cur = filterNegation(ctx, neg, cur)
	}
	for _, opt := range optionals {
		cur = applyOptional(ctx, opt, cur)
	}
	for _, group := range groups {
		cur = applyDisjunctionParallel(ctx, group, cur, parallelism)
	}
	return cur, nil
}

// applyDisjunctionParallel evaluates alternatives on a bounded pool of
// goroutines per upstream row, then flattens their results in
// alternative order — the same order applyDisjunction would produce
// running one at a time, just computed sooner when alternatives are
// slow relative to the pool size.
func applyDisjunctionParallel(ctx *Context, alternatives []planner.SubPlan, upstream RowIterator, parallelism int) RowIterator {
	if len(alternatives) <= 1 {
		return applyDisjunction(ctx, alternatives, upstream)
	}

	var pending []Row
	var idx int
	next := func() (Row, bool, error) {
		for {
			if idx < len(pending) {
				r := pending[idx]
				idx++
				return r, true, nil
			}
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			if err := ctx.Interrupt.CheckRow(); err != nil {
				return nil, false, err
			}
			rows, err := matchAlternatives(ctx, alternatives, row, parallelism)
			if err != nil {
				return nil, false, err
			}
			pending, idx = rows, 0
		}
	}
	return newFuncIterator(next)
}

// matchAlternatives runs every alternative against row concurrently,
// bounded by parallelism, and concatenates their row sets back together
// in the alternatives' original order.
func matchAlternatives(ctx *Context, alternatives []planner.SubPlan, row Row, parallelism int) ([]Row, error) {
	perAlt := make([][]Row, len(alternatives))

	group := new(errgroup.Group)
	group.SetLimit(parallelism)
	for i, alt := range alternatives {
		i, alt := i, alt
		group.Go(func() error {
			inner, err := Match(ctx, &planner.Plan{Steps: alt.Steps, Children: alt.Children}, row)
			if err != nil {
				return err
			}
			rows, err := drain(inner)
			if err != nil {
				return err
			}
			perAlt[i] = rows
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var out []Row
	for _, rows := range perAlt {
		out = append(out, rows...)
	}
	return out, nil
}
