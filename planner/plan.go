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

import "github.com/gradb/gradb/ir"

// IterateMode selects how a step's driving constraint is evaluated
// against the current row.
type IterateMode uint8

const (
	// Unbounded scans every entry matching the constraint's prefix; no
	// variable the constraint touches is yet bound.
	Unbounded IterateMode = iota
	// BoundFrom seeks using a prefix built from one already-bound
	// variable (e.g. the owner vertex of a Has constraint).
	BoundFrom
	// Check probes membership: every variable the constraint touches
	// is already bound, so the step only filters.
	Check
)

func (m IterateMode) String() string {
	switch m {
	case Unbounded:
		return "unbounded"
	case BoundFrom:
		return "bound-from"
	case Check:
		return "check"
	default:
		return "unknown-mode"
	}
}

// Step is one planned unit of execution: a constraint to drive, the
// mode to drive it in, and the variables it newly binds.
type Step struct {
	Constraint  ir.Constraint
	Mode        IterateMode
	BoundBefore []ir.VariableID // variables already bound when this step runs
	NewlyBound  []ir.VariableID // variables this step binds for the first time
}

// SubPlanKind tags what control construct a SubPlan implements, so the
// executor knows whether to subtract, left-join, or union its rows
// into the parent.
type SubPlanKind uint8

const (
	SubPlanNegation SubPlanKind = iota
	SubPlanOptional
	SubPlanDisjunctionAlternative
)

// SubPlan is a planned negation, optional, or disjunction alternative:
// its own ordered steps over the free variables visible at its
// insertion point. GroupID ties together every SubPlan produced from the
// alternatives of the same disjunction (so the executor can union exactly
// that set); it is meaningless for SubPlanNegation/SubPlanOptional, each
// of which stands alone.
type SubPlan struct {
	Kind     SubPlanKind
	GroupID  int
	Block    ir.BlockID
	Steps    []Step
	Children []SubPlan
}

// Plan is the ordered sequence of steps the executor runs for one
// conjunction, plus any nested sub-plans for negations/optionals/
// disjunction alternatives found directly inside it.
type Plan struct {
	Steps    []Step
	Children []SubPlan
}
