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
	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/planner"
)

// Document is one fetched record: a key maps to a scalar
// annotation.Value, a []annotation.Value (an attributes list), or a
// nested Document/[]Document (a sub-fetch).
type Document map[string]any

// PlanFor resolves a block to the plan that should drive it. Fetch
// blocks are ordered ahead of time alongside the rest of a pipeline's
// blocks, so Fetch itself never calls into planner.Order.
type PlanFor func(ir.BlockID) *planner.Plan

// Fetch runs fetch once per upstream row, seeded with that row's
// bindings, and returns one Document per row.
func Fetch(ctx *Context, planFor PlanFor, upstream RowIterator, fetch *ir.Fetch) ([]Document, error) {
	rows, err := drain(upstream)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Interrupt.CheckRow(); err != nil {
			return nil, err
		}
		doc, err := runFetch(ctx, planFor, fetch, row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// runFetch re-matches fetch.Block seeded with row — the block may bind
// variables beyond what row already carries (e.g. the has-edge target
// behind an attributes entry) — then builds one field per entry from
// the resulting row set.
func runFetch(ctx *Context, planFor PlanFor, fetch *ir.Fetch, row Row) (Document, error) {
	iter, err := Match(ctx, planFor(fetch.Block), row)
	if err != nil {
		return nil, err
	}
	rows, err := drain(iter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []Row{row}
	}

	doc := make(Document, len(fetch.Entries))
	for _, entry := range fetch.Entries {
		switch entry.Kind {
		case ir.FetchEntryExpression:
			value, err := fetchExpression(ctx, entry, rows[0])
			if err != nil {
				return nil, err
			}
			doc[entry.Key] = value

		case ir.FetchEntryAttributes:
			values, err := fetchAttributes(ctx, entry, rows)
			if err != nil {
				return nil, err
			}
			doc[entry.Key] = values

		case ir.FetchEntrySubFetch:
			subs, err := fetchSub(ctx, planFor, entry, rows)
			if err != nil {
				return nil, err
			}
			doc[entry.Key] = subs
		}
	}
	return doc, nil
}

func fetchExpression(ctx *Context, entry ir.FetchEntry, row Row) (annotation.Value, error) {
	prog, err := annotation.Compile(entry.Expression)
	if err != nil {
		return annotation.Value{}, err
	}
	bindings, err := rowToValueBindings(ctx.Cache, row)
	if err != nil {
		return annotation.Value{}, err
	}
	return annotation.Eval(prog, bindings, singleValuedCaller(ctx.Functions))
}

// fetchAttributes collects the distinct values bound to entry.Attribute
// across rows, deduping by encoded value since a multi-valued owner's
// has-edges can otherwise surface the same value more than once when
// other variables in the block also vary.
func fetchAttributes(ctx *Context, entry ir.FetchEntry, rows []Row) ([]annotation.Value, error) {
	seen := make(map[string]bool, len(rows))
	values := make([]annotation.Value, 0, len(rows))
	for _, r := range rows {
		b, bound := r[entry.Attribute]
		if !bound {
			continue
		}
		key := string(b.SortKey())
		if seen[key] {
			continue
		}
		seen[key] = true
		v, err := bindingToValue(ctx.Cache, b)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func fetchSub(ctx *Context, planFor PlanFor, entry ir.FetchEntry, rows []Row) ([]Document, error) {
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		doc, err := runFetch(ctx, planFor, entry.SubFetch, r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
