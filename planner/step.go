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

// buildStep decides a constraint's iterate mode and which of its
// variables become newly bound, given the variables already bound by
// earlier steps.
func buildStep(c ir.Constraint, bound map[ir.VariableID]bool) Step {
	vars := c.Variables()
	step := Step{Constraint: c}
	for _, v := range vars {
		if bound[v] {
			step.BoundBefore = append(step.BoundBefore, v)
		}
	}

	switch c.Kind {
	case ir.ConstraintTypeConstant:
		// A literal type assignment never scans; it binds its
		// variable outright if not already bound.
		step.Mode = Check
		if !bound[c.TypeConstant.Var] {
			step.NewlyBound = []ir.VariableID{c.TypeConstant.Var}
		}

	case ir.ConstraintIsa:
		step.Mode, step.NewlyBound = modeFor(bound, c.Isa.TypeVar, c.Isa.Var)

	case ir.ConstraintHas:
		step.Mode, step.NewlyBound = modeForPair(bound, c.Has.Owner, c.Has.Attr)

	case ir.ConstraintLinks:
		step.Mode, step.NewlyBound = modeForTriple(bound, c.Links.Relation, c.Links.Player, c.Links.Role)

	case ir.ConstraintSub:
		step.Mode, step.NewlyBound = modeForPair(bound, c.Sub.Super, c.Sub.Sub)

	case ir.ConstraintComparator:
		step.Mode = Check

	case ir.ConstraintFunctionCallBinding:
		step.Mode = BoundFrom
		for _, out := range c.FunctionCall.Outputs {
			if !bound[out] {
				step.NewlyBound = append(step.NewlyBound, out)
			}
		}

	case ir.ConstraintExpressionBinding:
		step.Mode = BoundFrom
		if !bound[c.Expression.Output] {
			step.NewlyBound = []ir.VariableID{c.Expression.Output}
		}
	}
	return step
}

// modeFor handles a single driver/dependent pair: Isa's (typeVar, var).
func modeFor(bound map[ir.VariableID]bool, driver, dependent ir.VariableID) (IterateMode, []ir.VariableID) {
	driverBound := bound[driver]
	dependentBound := bound[dependent]
	switch {
	case driverBound && dependentBound:
		return Check, nil
	case driverBound && !dependentBound:
		return BoundFrom, []ir.VariableID{dependent}
	case !driverBound && dependentBound:
		return BoundFrom, []ir.VariableID{driver}
	default:
		return Unbounded, []ir.VariableID{driver, dependent}
	}
}

// modeForPair handles a symmetric two-variable edge constraint (Has,
// Sub): whichever side is unbound becomes newly bound, seeking from
// whichever side is already bound.
func modeForPair(bound map[ir.VariableID]bool, a, b ir.VariableID) (IterateMode, []ir.VariableID) {
	return modeFor(bound, a, b)
}

// modeForTriple handles Links, whose three variables (relation,
// player, role) may be bound in any combination.
func modeForTriple(bound map[ir.VariableID]bool, relation, player, role ir.VariableID) (IterateMode, []ir.VariableID) {
	vars := []ir.VariableID{relation, player, role}
	var newlyBound []ir.VariableID
	boundN := 0
	for _, v := range vars {
		if bound[v] {
			boundN++
		} else {
			newlyBound = append(newlyBound, v)
		}
	}
	switch {
	case boundN == len(vars):
		return Check, nil
	case boundN == 0:
		return Unbounded, newlyBound
	default:
		return BoundFrom, newlyBound
	}
}
