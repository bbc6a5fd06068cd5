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

package planner

import (
	"sort"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
)

// Order produces a Plan for the conjunction at block, applying the
// heuristic: at each position, pick the constraint that (a) has the most
// already-bound variables, (b) among those, has the smallest estimated
// output, (c) breaks ties lexicographically by variable id. Negations,
// optionals, and disjunction alternatives nested directly inside the
// conjunction are recursively ordered into Plan.Children. Each child is
// ordered on its own: no variable bound by the parent counts as bound
// when its steps' order and modes are chosen.
func Order(tree *ir.Tree, block ir.BlockID, annotations annotation.Result, stats *Stats) *Plan {
	b := tree.Block(block)
	remaining := append([]ir.Constraint{}, b.Constraints...)
	bound := make(map[ir.VariableID]bool)
	plan := &Plan{}

	for len(remaining) > 0 {
		idx := pickNext(remaining, bound, annotations, stats)
		c := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		step := buildStep(c, bound)
		for _, v := range step.NewlyBound {
			bound[v] = true
		}
		plan.Steps = append(plan.Steps, step)
	}

	nextGroupID := 0
	for _, childID := range tree.Children(block) {
		child := tree.Block(childID)
		switch child.Kind {
		case ir.BlockNegation:
			plan.Children = append(plan.Children, orderSub(tree, child.Inner, SubPlanNegation, 0, annotations, stats))
		case ir.BlockOptional:
			plan.Children = append(plan.Children, orderSub(tree, child.Inner, SubPlanOptional, 0, annotations, stats))
		case ir.BlockDisjunction:
			groupID := nextGroupID
			nextGroupID++
			for _, alt := range child.Alternatives {
				plan.Children = append(plan.Children, orderSub(tree, alt, SubPlanDisjunctionAlternative, groupID, annotations, stats))
			}
		}
	}
	return plan
}

func orderSub(tree *ir.Tree, block ir.BlockID, kind SubPlanKind, groupID int, annotations annotation.Result, stats *Stats) SubPlan {
	sub := Order(tree, block, annotations, stats)
	return SubPlan{Kind: kind, GroupID: groupID, Block: block, Steps: sub.Steps, Children: sub.Children}
}

// requiredVariables returns the variables that must already be bound
// before c can run in any mode: Comparator and Assignment-style
// constraints only filter or compute, they never open a fresh scan.
func requiredVariables(c ir.Constraint) []ir.VariableID {
	switch c.Kind {
	case ir.ConstraintComparator:
		return []ir.VariableID{c.Comparator.LHS, c.Comparator.RHS}
	case ir.ConstraintFunctionCallBinding:
		return c.FunctionCall.Arguments
	case ir.ConstraintExpressionBinding:
		return c.Expression.Expression.Variables()
	default:
		return nil
	}
}

func isEligible(c ir.Constraint, bound map[ir.VariableID]bool) bool {
	for _, v := range requiredVariables(c) {
		if !bound[v] {
			return false
		}
	}
	return true
}

func boundCount(c ir.Constraint, bound map[ir.VariableID]bool) int {
	n := 0
	for _, v := range c.Variables() {
		if bound[v] {
			n++
		}
	}
	return n
}

func minVariableID(c ir.Constraint) ir.VariableID {
	vars := c.Variables()
	min := vars[0]
	for _, v := range vars[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

type candidate struct {
	idx      int
	boundN   int
	estimate uint64
	minVarID ir.VariableID
}

func pickNext(constraints []ir.Constraint, bound map[ir.VariableID]bool, annotations annotation.Result, stats *Stats) int {
	var candidates []candidate
	for i, c := range constraints {
		if !isEligible(c, bound) {
			continue
		}
		candidates = append(candidates, candidate{
			idx:      i,
			boundN:   boundCount(c, bound),
			estimate: estimateOutput(c, annotations, stats),
			minVarID: minVariableID(c),
		})
	}
	if len(candidates) == 0 {
		// Nothing is eligible yet (e.g. every remaining constraint
		// needs a variable none of the others bind): fall back to
		// plan order rather than deadlock the planner.
		return 0
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.boundN != b.boundN {
			return a.boundN > b.boundN
		}
		if a.estimate != b.estimate {
			return a.estimate < b.estimate
		}
		return a.minVarID < b.minVarID
	})
	return candidates[0].idx
}

// estimateOutput approximates a constraint's output cardinality from
// Stats and the annotation-narrowed type sets of its variables — the
// "simple statistics: per-type instance count, per-type has/links
// counts" named in, never a cost-based join estimate (an explicit
// Non-goal).
func estimateOutput(c ir.Constraint, annotations annotation.Result, stats *Stats) uint64 {
	// A TypeConstant never touches storage: it binds a variable to an
	// already-known literal type id, so it costs nothing to place
	// ahead of any real scan regardless of that type's population.
	if c.Kind == ir.ConstraintTypeConstant {
		return 0
	}
	if stats == nil {
		return 0
	}
	switch c.Kind {
	case ir.ConstraintIsa:
		return sumInstanceCounts(annotations[c.Isa.TypeVar], stats)

	case ir.ConstraintHas:
		return sumPairCounts(annotations[c.Has.Owner], annotations[c.Has.Attr], stats.HasCount)

	case ir.ConstraintLinks:
		return sumPairCounts(annotations[c.Links.Relation], annotations[c.Links.Player], stats.LinksCount)

	case ir.ConstraintSub:
		return sumInstanceCounts(annotations[c.Sub.Sub], stats)

	default:
		// Comparator/FunctionCallBinding/ExpressionBinding only ever
		// run after their inputs are bound, so they filter or compute
		// over an already-determined row count; no independent
		// estimate narrows the plan further.
		return 0
	}
}

func sumInstanceCounts(types annotation.TypeSet, stats *Stats) uint64 {
	var total uint64
	for id := range types {
		total += stats.InstanceCount(id)
	}
	return total
}

// sumPairCounts sums count(a, b) over the cartesian product of the two
// annotation-narrowed type sets, approximating a constraint's output
// size from the type pairs it could possibly match.
func sumPairCounts(from, to annotation.TypeSet, count func(a, b encoding.TypeID) uint64) uint64 {
	var total uint64
	for a := range from {
		for b := range to {
			total += count(a, b)
		}
	}
	return total
}
