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

// Optimise rewrites a conjunction's constraint list in place before
// ordering: a supplemented pre-planning pass (not described in the
// original heuristic-ordering text, which only covers step ordering)
// applying two rewrites:
//
//  1. Redundant constraint elimination: an exact duplicate Isa or Has
//     constraint over the same variables contributes nothing beyond
//     the first occurrence.
//  2. Role-player index rewrite: a Links constraint whose role
//     variable is already bound to a single concrete type by a sibling
//     TypeConstant constraint is reordered to sit immediately after
//     that TypeConstant, so the ordering heuristic sees it as
//     BoundFrom-eligible on the role as early as possible rather than
//     needing a full pass to discover the dependency.
func Optimise(tree *ir.Tree, block ir.BlockID) {
	b := tree.Block(block)
	b.Constraints = dedupe(b.Constraints)
	b.Constraints = hoistRoleBoundLinks(b.Constraints)
}

func dedupe(constraints []ir.Constraint) []ir.Constraint {
	type key struct {
		kind ir.ConstraintKind
		a, b ir.VariableID
	}
	seen := make(map[key]bool)
	out := make([]ir.Constraint, 0, len(constraints))
	for _, c := range constraints {
		var k key
		switch c.Kind {
		case ir.ConstraintIsa:
			k = key{c.Kind, c.Isa.Var, c.Isa.TypeVar}
		case ir.ConstraintHas:
			k = key{c.Kind, c.Has.Owner, c.Has.Attr}
		default:
			out = append(out, c)
			continue
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

// hoistRoleBoundLinks moves each Links constraint to directly follow
// the TypeConstant constraint that binds its role variable, when one
// exists in the same conjunction. This lets the role-player index
// (EncodeLinksEdge's [relation][role][player] layout, which a known
// role type can seek into directly) dominate the player/relation scan
// as soon as possible.
func hoistRoleBoundLinks(constraints []ir.Constraint) []ir.Constraint {
	roleConstant := make(map[ir.VariableID]int) // var -> TypeConstant index
	for i, c := range constraints {
		if c.Kind == ir.ConstraintTypeConstant {
			roleConstant[c.TypeConstant.Var] = i
		}
	}

	out := make([]ir.Constraint, 0, len(constraints))
	placed := make([]bool, len(constraints))
	for i, c := range constraints {
		if placed[i] {
			continue
		}
		if c.Kind == ir.ConstraintLinks {
			if _, ok := roleConstant[c.Links.Role]; ok {
				continue // placed right after its role's TypeConstant
			}
		}
		out = append(out, c)
		placed[i] = true
		if c.Kind != ir.ConstraintTypeConstant {
			continue
		}
		for j, link := range constraints {
			if placed[j] || link.Kind != ir.ConstraintLinks {
				continue
			}
			if link.Links.Role == c.TypeConstant.Var {
				out = append(out, link)
				placed[j] = true
			}
		}
	}
	for i, c := range constraints {
		if !placed[i] {
			out = append(out, c)
		}
	}
	return out
}
