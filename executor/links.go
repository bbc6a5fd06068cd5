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
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/kv"
)

// expandLinks drives a Links constraint in whichever of its eight
// bound/unbound combinations applies to row, preferring the relation-
// keyed forward index when the relation is known and the player-keyed
// reverse index otherwise.
func expandLinks(ctx *Context, row Row, c *ir.LinksConstraint) ([]Row, error) {
	relation, relationBound := row[c.Relation]
	player, playerBound := row[c.Player]
	role, roleBound := row[c.Role]

	var roleFilter *encoding.TypeID
	if roleBound {
		id := role.TypeID
		roleFilter = &id
	}

	switch {
	case relationBound && playerBound && roleBound:
		key := encoding.EncodeLinksEdge(encoding.EdgeLinks, relation.SortKey(), role.TypeID, player.SortKey())
		_, ok, err := ctx.Snapshot.Get(kv.KeyspaceEdges, key)
		if err != nil || !ok {
			return nil, err
		}
		return []Row{row}, nil

	case relationBound && !playerBound:
		next, err := scanLinksForward(ctx.Snapshot, relation, roleFilter, ctx.Interrupt)
		if err != nil {
			return nil, err
		}
		return collectPlayers(row, c, next, roleBound)

	case !relationBound && playerBound:
		next, err := scanLinksReverse(ctx.Snapshot, player, roleFilter, ctx.Interrupt)
		if err != nil {
			return nil, err
		}
		return collectRelations(row, c, next, roleBound)

	case relationBound && playerBound && !roleBound:
		next, err := scanLinksForward(ctx.Snapshot, relation, nil, ctx.Interrupt)
		if err != nil {
			return nil, err
		}
		return filterByPlayer(row, c, next, player)

	default:
		return expandLinksUnbounded(ctx, row, c, roleFilter)
	}
}

func collectPlayers(row Row, c *ir.LinksConstraint, next func() (Binding, encoding.TypeID, bool, error), roleBound bool) ([]Row, error) {
	var out []Row
	for {
		player, roleID, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		r := row.With(c.Player, player)
		if !roleBound {
			r = r.With(c.Role, TypeBinding(roleID))
		}
		out = append(out, r)
	}
}

func collectRelations(row Row, c *ir.LinksConstraint, next func() (Binding, encoding.TypeID, bool, error), roleBound bool) ([]Row, error) {
	var out []Row
	for {
		relation, roleID, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		r := row.With(c.Relation, relation)
		if !roleBound {
			r = r.With(c.Role, TypeBinding(roleID))
		}
		out = append(out, r)
	}
}

// filterByPlayer handles the relation-and-player-bound, role-unbound
// case: scan every player of relation and keep only the edge matching
// the already-bound player, binding the role it discovers there.
func filterByPlayer(row Row, c *ir.LinksConstraint, next func() (Binding, encoding.TypeID, bool, error), wantPlayer Binding) ([]Row, error) {
	want := string(wantPlayer.SortKey())
	var out []Row
	for {
		player, roleID, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if string(player.SortKey()) != want {
			continue
		}
		out = append(out, row.With(c.Role, TypeBinding(roleID)))
	}
}

// expandLinksUnbounded is the fallback taken when neither relation nor
// player is bound (relation and player are both object vertices of
// fixed width, so a full-store scan can still decode every edge
// directly). A role-only bound constraint also lands here: the links
// encoding is keyed by relation then role, so there is no index to
// seek by role alone.
func expandLinksUnbounded(ctx *Context, row Row, c *ir.LinksConstraint, roleFilter *encoding.TypeID) ([]Row, error) {
	prefix := []byte{byte(encoding.EdgeLinks)}
	iter, err := ctx.Snapshot.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	var out []Row
	for {
		if err := ctx.Interrupt.CheckBatch(); err != nil {
			return nil, err
		}
		key, _, ok, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		relVertex, roleID, playerVertex, err := encoding.SplitLinksEdge(key, encoding.ObjectVertexLength, encoding.ObjectVertexLength)
		if err != nil {
			return nil, err
		}
		if roleFilter != nil && roleID != *roleFilter {
			continue
		}
		relation, _, err := decodeObjectBinding(relVertex)
		if err != nil {
			return nil, err
		}
		player, _, err := decodeObjectBinding(playerVertex)
		if err != nil {
			return nil, err
		}
		r := row.With(c.Relation, relation).With(c.Player, player)
		if roleFilter == nil {
			r = r.With(c.Role, TypeBinding(roleID))
		}
		out = append(out, r)
	}
}
