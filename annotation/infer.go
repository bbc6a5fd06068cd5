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

package annotation

import (
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
)

// Result is the outcome of one fixpoint run over a conjunction: each
// variable referenced by the conjunction's constraints maps to its
// narrowed TypeSet. A variable absent from the map was never
// constrained and may be any type in the cache.
type Result map[ir.VariableID]TypeSet

// Unsatisfiable reports whether any bound variable's set collapsed to
// empty.
func (r Result) Unsatisfiable() bool {
	for _, s := range r {
		if len(s) == 0 {
			return true
		}
	}
	return false
}

// Infer runs the type-inference fixpoint over the conjunction at
// block: every variable is seeded with the universal type set, each
// constraint narrows the sets its variables participate in, and the
// whole process repeats until a round changes nothing. Propagation
// only ever shrinks a variable's set, so the loop is bounded by the
// sum of the variables' initial set sizes.
func Infer(tree *ir.Tree, block ir.BlockID, cache *concept.TypeCache) Result {
	b := tree.Block(block)
	universe := NewTypeSet(allTypeIDs(cache)...)
	result := make(Result)

	get := func(v ir.VariableID) TypeSet {
		if s, ok := result[v]; ok {
			return s
		}
		return universe
	}

	maxRounds := len(b.Constraints)*tree.Variables().Len() + 1
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, c := range b.Constraints {
			switch c.Kind {
			case ir.ConstraintTypeConstant:
				narrowed := get(c.TypeConstant.Var).Intersect(NewTypeSet(cache.Subtypes(c.TypeConstant.TypeID)...))
				changed = narrow(result, c.TypeConstant.Var, narrowed) || changed

			case ir.ConstraintIsa:
				narrowed := get(c.Isa.Var).Intersect(get(c.Isa.TypeVar))
				changed = narrow(result, c.Isa.Var, narrowed) || changed
				changed = narrow(result, c.Isa.TypeVar, get(c.Isa.TypeVar).Intersect(get(c.Isa.Var))) || changed

			case ir.ConstraintHas:
				ownerCompat := compatibleOwners(cache, get(c.Has.Attr))
				attrCompat := compatibleAttrs(cache, get(c.Has.Owner))
				changed = narrow(result, c.Has.Owner, get(c.Has.Owner).Intersect(ownerCompat)) || changed
				changed = narrow(result, c.Has.Attr, get(c.Has.Attr).Intersect(attrCompat)) || changed

			case ir.ConstraintSub:
				validSupers := closure(get(c.Sub.Sub), cache.Supertypes)
				validSubs := closure(get(c.Sub.Super), cache.Subtypes)
				changed = narrow(result, c.Sub.Super, get(c.Sub.Super).Intersect(validSupers)) || changed
				changed = narrow(result, c.Sub.Sub, get(c.Sub.Sub).Intersect(validSubs)) || changed

			case ir.ConstraintLinks:
				playerCompat := compatiblePlayers(cache, get(c.Links.Role))
				roleCompat := compatibleRoles(cache, get(c.Links.Player))
				changed = narrow(result, c.Links.Player, get(c.Links.Player).Intersect(playerCompat)) || changed
				changed = narrow(result, c.Links.Role, get(c.Links.Role).Intersect(roleCompat)) || changed
			}
		}
		if !changed {
			break
		}
	}
	return result
}

func narrow(result Result, v ir.VariableID, newSet TypeSet) bool {
	old, ok := result[v]
	if ok && old.Equal(newSet) {
		return false
	}
	result[v] = newSet
	return true
}

func allTypeIDs(cache *concept.TypeCache) []encoding.TypeID {
	types := cache.All()
	out := make([]encoding.TypeID, len(types))
	for i, t := range types {
		out[i] = t.ID
	}
	return out
}

func closure(from TypeSet, expand func(encoding.TypeID) []encoding.TypeID) TypeSet {
	out := make(TypeSet)
	for id := range from {
		for _, e := range expand(id) {
			out[e] = struct{}{}
		}
	}
	return out
}

func compatibleOwners(cache *concept.TypeCache, attrs TypeSet) TypeSet {
	out := make(TypeSet)
	for attr := range attrs {
		for _, owner := range cache.OwnersOf(attr) {
			out[owner] = struct{}{}
		}
	}
	return out
}

func compatibleAttrs(cache *concept.TypeCache, owners TypeSet) TypeSet {
	out := make(TypeSet)
	for owner := range owners {
		t, ok := cache.ByID(owner)
		if !ok {
			continue
		}
		for attr := range t.Owns {
			out[attr] = struct{}{}
		}
	}
	return out
}

func compatiblePlayers(cache *concept.TypeCache, roles TypeSet) TypeSet {
	out := make(TypeSet)
	for role := range roles {
		for _, player := range cache.PlayersOf(role) {
			out[player] = struct{}{}
		}
	}
	return out
}

func compatibleRoles(cache *concept.TypeCache, players TypeSet) TypeSet {
	out := make(TypeSet)
	for player := range players {
		t, ok := cache.ByID(player)
		if !ok {
			continue
		}
		for role := range t.Plays {
			out[role] = struct{}{}
		}
	}
	return out
}
