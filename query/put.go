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
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/kv"
)

// Put applies statements per upstream row like Insert, except that a
// WriteHas/WriteLinks edge already present in the store is left alone
// rather than written again. WritePutObject always creates a fresh
// instance (an anonymous entity/relation has no identity to check
// against) and WritePutAttribute is already find-or-create by
// (type, value) dedup, so only the edge statements need the existence
// check — the same semantics TypeQL's put gives a pattern whose
// vertices are freshly created but whose edges may already exist.
func Put(ctx *executor.Context, things *concept.ThingManager, upstream executor.RowIterator, statements []executor.WriteStatement) (executor.RowIterator, error) {
	rows, err := executor.Drain(upstream)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []executor.Row{{}}
	}
	out := make([]executor.Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Interrupt.CheckRow(); err != nil {
			return nil, err
		}
		r, err := applyPut(ctx, things, row, statements)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return executor.RowsIterator(out), nil
}

func applyPut(ctx *executor.Context, things *concept.ThingManager, row executor.Row, statements []executor.WriteStatement) (executor.Row, error) {
	row = row.Clone()
	for _, stmt := range statements {
		switch stmt.Op {
		case executor.WritePutObject, executor.WritePutAttribute:
			r, err := executor.Insert(ctx, things, executor.RowsIterator([]executor.Row{row}), []executor.WriteStatement{stmt})
			if err != nil {
				return nil, err
			}
			rows, err := executor.Drain(r)
			if err != nil {
				return nil, err
			}
			row = rows[0]

		case executor.WriteHas:
			if !hasEdgeExists(ctx, row[stmt.Owner], row[stmt.Attr]) {
				if _, err := executor.Insert(ctx, things, executor.RowsIterator([]executor.Row{row}), []executor.WriteStatement{stmt}); err != nil {
					return nil, err
				}
			}

		case executor.WriteLinks:
			role := row[stmt.Role].TypeID
			if !linksEdgeExists(ctx, row[stmt.Relation], row[stmt.Player], role) {
				if _, err := executor.Insert(ctx, things, executor.RowsIterator([]executor.Row{row}), []executor.WriteStatement{stmt}); err != nil {
					return nil, err
				}
			}
		}
	}
	return row, nil
}

func hasEdgeExists(ctx *executor.Context, owner, attr executor.Binding) bool {
	fwd := encoding.EncodeEdge(encoding.EdgeHas, owner.SortKey(), attr.SortKey())
	_, ok, err := ctx.Snapshot.Get(kv.KeyspaceEdges, fwd)
	return err == nil && ok
}

func linksEdgeExists(ctx *executor.Context, relation, player executor.Binding, role encoding.TypeID) bool {
	fwd := encoding.EncodeLinksEdge(encoding.EdgeLinks, relation.SortKey(), role, player.SortKey())
	_, ok, err := ctx.Snapshot.Get(kv.KeyspaceEdges, fwd)
	return err == nil && ok
}
