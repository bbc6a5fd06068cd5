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
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/kv"
)

// WriteOp tags one statement of an Insert/Delete/Update write stage.
type WriteOp uint8

const (
	// WritePutObject creates an entity or relation instance of TypeID,
	// binding Var.
	WritePutObject WriteOp = iota
	// WritePutAttribute finds-or-creates an attribute instance of
	// TypeID holding Value, deduping by (type, value), binding Var.
	WritePutAttribute
	// WriteHas links Owner to Attr with a forward and reverse edge.
	WriteHas
	// WriteLinks links Relation to Player in the role bound to Role.
	WriteLinks
	// WriteDeleteHas removes the has edge between Owner and Attr.
	WriteDeleteHas
	// WriteDeleteLinks removes the links edge between Relation and
	// Player in the role bound to Role.
	WriteDeleteLinks
	// WriteDeleteThing removes an entity, relation or attribute
	// instance and every edge touching it.
	WriteDeleteThing
)

// WriteStatement is one planned write, resolved against the current
// Row: Var/Owner/Attr/Relation/Player/Role name variables already (or,
// for Put, about to be) bound in the row.
type WriteStatement struct {
	Op     WriteOp
	Var    ir.VariableID
	TypeID encoding.TypeID // WritePutObject/WritePutAttribute
	Value  []byte          // WritePutAttribute

	Owner, Attr            ir.VariableID // WriteHas/WriteDeleteHas
	Relation, Player, Role ir.VariableID // WriteLinks/WriteDeleteLinks
}

// compileWriteStatement rejects statements a schema-aware compiler
// would never let through.
func compileWriteStatement(cache *concept.TypeCache, stmt WriteStatement) error {
	switch stmt.Op {
	case WritePutObject:
		t, ok := cache.ByID(stmt.TypeID)
		if !ok || (t.Kind != concept.KindEntityType && t.Kind != concept.KindRelationType) {
			return dberrors.New(dberrors.WriteCompilation, "type %d is not an entity or relation type", stmt.TypeID)
		}
	case WritePutAttribute:
		t, ok := cache.ByID(stmt.TypeID)
		if !ok || t.Kind != concept.KindAttributeType {
			return dberrors.New(dberrors.WriteCompilation, "type %d is not an attribute type", stmt.TypeID)
		}
	}
	return nil
}

// Insert executes insert statements against each upstream row (or a
// single empty row for a bare top-level insert with no preceding
// match), extending the row with whatever Put creates so a later
// statement in the same block can reference it.
func Insert(ctx *Context, things *concept.ThingManager, upstream RowIterator, statements []WriteStatement) (RowIterator, error) {
	for _, stmt := range statements {
		if err := compileWriteStatement(ctx.Cache, stmt); err != nil {
			return nil, err
		}
	}
	rows, err := drain(upstream)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []Row{{}}
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Interrupt.CheckRow(); err != nil {
			return nil, err
		}
		r, err := applyInsert(ctx, things, row, statements)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return sliceIterator(out), nil
}

func applyInsert(ctx *Context, things *concept.ThingManager, row Row, statements []WriteStatement) (Row, error) {
	row = row.Clone()
	for _, stmt := range statements {
		switch stmt.Op {
		case WritePutObject:
			t, _ := ctx.Cache.ByID(stmt.TypeID)
			if t.Kind == concept.KindRelationType {
				rel, err := things.CreateRelation(stmt.TypeID)
				if err != nil {
					return nil, err
				}
				row[stmt.Var] = RelationBinding(rel.TypeID, rel.ID)
			} else {
				ent, err := things.CreateEntity(stmt.TypeID)
				if err != nil {
					return nil, err
				}
				row[stmt.Var] = EntityBinding(ent.TypeID, ent.ID)
			}

		case WritePutAttribute:
			attr, err := things.PutAttribute(stmt.TypeID, stmt.Value)
			if err != nil {
				return nil, err
			}
			row[stmt.Var] = AttributeBinding(attr.TypeID, attr.Value)

		case WriteHas:
			writeHasEdge(ctx, row[stmt.Owner], row[stmt.Attr])

		case WriteLinks:
			role := row[stmt.Role].TypeID
			writeLinksEdge(ctx, row[stmt.Relation], row[stmt.Player], role)

		default:
			return nil, dberrors.New(dberrors.WriteCompilation, "write op %d is not valid in an insert stage", stmt.Op)
		}
	}
	return row, nil
}

// Delete buffers tombstones for every statement against every upstream
// row; unlike Insert it never extends a row, since nothing it does
// introduces a new binding. WriteDeleteThing's role-type rejection
// happens per-row in applyDelete/deleteThingCascade, since the
// statement names a variable and its kind is only known once the row
// is in hand.
func Delete(ctx *Context, upstream RowIterator, statements []WriteStatement) (RowIterator, error) {
	rows, err := drain(upstream)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Interrupt.CheckRow(); err != nil {
			return nil, err
		}
		if err := applyDelete(ctx, row, statements); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return sliceIterator(out), nil
}

func applyDelete(ctx *Context, row Row, statements []WriteStatement) error {
	for _, stmt := range statements {
		switch stmt.Op {
		case WriteDeleteHas:
			deleteHasEdge(ctx, row[stmt.Owner], row[stmt.Attr])

		case WriteDeleteLinks:
			role := row[stmt.Role].TypeID
			deleteLinksEdge(ctx, row[stmt.Relation], row[stmt.Player], role)

		case WriteDeleteThing:
			if err := deleteThingCascade(ctx, row[stmt.Var]); err != nil {
				return err
			}

		default:
			return dberrors.New(dberrors.WriteCompilation, "write op %d is not valid in a delete stage", stmt.Op)
		}
	}
	return nil
}

// Update applies a Delete batch followed by an Insert batch over the
// same rows: the only write combination that can both retract and
// introduce bindings for the same variable in one stage.
func Update(ctx *Context, things *concept.ThingManager, upstream RowIterator, deletes, inserts []WriteStatement) (RowIterator, error) {
	deleted, err := Delete(ctx, upstream, deletes)
	if err != nil {
		return nil, err
	}
	return Insert(ctx, things, deleted, inserts)
}

func writeHasEdge(ctx *Context, owner, attr Binding) {
	fwd := encoding.EncodeEdge(encoding.EdgeHas, owner.SortKey(), attr.SortKey())
	rev := encoding.EncodeEdge(encoding.EdgeHasReverse, attr.SortKey(), owner.SortKey())
	ctx.Snapshot.Put(kv.KeyspaceEdges, fwd, nil, true)
	ctx.Snapshot.Put(kv.KeyspaceEdges, rev, nil, true)
}

func writeLinksEdge(ctx *Context, relation, player Binding, role encoding.TypeID) {
	fwd := encoding.EncodeLinksEdge(encoding.EdgeLinks, relation.SortKey(), role, player.SortKey())
	rev := encoding.EncodeLinksEdge(encoding.EdgeLinksReverse, player.SortKey(), role, relation.SortKey())
	ctx.Snapshot.Put(kv.KeyspaceEdges, fwd, nil, true)
	ctx.Snapshot.Put(kv.KeyspaceEdges, rev, nil, true)
}

func deleteHasEdge(ctx *Context, owner, attr Binding) {
	fwd := encoding.EncodeEdge(encoding.EdgeHas, owner.SortKey(), attr.SortKey())
	rev := encoding.EncodeEdge(encoding.EdgeHasReverse, attr.SortKey(), owner.SortKey())
	ctx.Snapshot.Delete(kv.KeyspaceEdges, fwd)
	ctx.Snapshot.Delete(kv.KeyspaceEdges, rev)
}

func deleteLinksEdge(ctx *Context, relation, player Binding, role encoding.TypeID) {
	fwd := encoding.EncodeLinksEdge(encoding.EdgeLinks, relation.SortKey(), role, player.SortKey())
	rev := encoding.EncodeLinksEdge(encoding.EdgeLinksReverse, player.SortKey(), role, relation.SortKey())
	ctx.Snapshot.Delete(kv.KeyspaceEdges, fwd)
	ctx.Snapshot.Delete(kv.KeyspaceEdges, rev)
}

// deleteThingCascade removes target's own vertex plus every has/links
// edge touching it on either side, rejecting a role-type target
// outright: a role type has no instances of its own.
func deleteThingCascade(ctx *Context, target Binding) error {
	if target.Kind == BindingType {
		return dberrors.New(dberrors.WriteCompilation, "cannot delete a type as an instance")
	}

	vertex := target.SortKey()
	ctx.Snapshot.Delete(kv.KeyspaceVertices, vertex)

	if target.Kind == BindingAttribute {
		// Attribute instances are the "to" side of has edges and never
		// appear as a links relation or player.
		return deleteHasEdgesTo(ctx, target)
	}

	if err := deleteHasEdgesFrom(ctx, target); err != nil {
		return err
	}
	if err := deleteLinksEdgesFrom(ctx, target, encoding.EdgeLinks); err != nil {
		return err
	}
	return deleteLinksEdgesFrom(ctx, target, encoding.EdgeLinksReverse)
}

func deleteHasEdgesFrom(ctx *Context, owner Binding) error {
	prefix := encoding.EdgeFromPrefix(encoding.EdgeHas, owner.SortKey())
	iter, err := ctx.Snapshot.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return err
	}
	ownerWidth := len(owner.SortKey())
	var toDelete [][]byte
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		_, to, err := encoding.SplitEdge(key, ownerWidth, len(key)-1-ownerWidth)
		if err != nil {
			return err
		}
		toDelete = append(toDelete, append([]byte{}, to...))
	}
	for _, attrVertex := range toDelete {
		tid, value, err := encoding.DecodeAttributeVertex(attrVertex)
		if err != nil {
			return err
		}
		deleteHasEdge(ctx, owner, AttributeBinding(tid, value))
	}
	return nil
}

func deleteHasEdgesTo(ctx *Context, attr Binding) error {
	prefix := encoding.EdgeFromPrefix(encoding.EdgeHasReverse, attr.SortKey())
	iter, err := ctx.Snapshot.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return err
	}
	attrWidth := len(attr.SortKey())
	var owners [][]byte
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		_, to, err := encoding.SplitEdge(key, attrWidth, len(key)-1-attrWidth)
		if err != nil {
			return err
		}
		owners = append(owners, append([]byte{}, to...))
	}
	for _, ownerVertex := range owners {
		owner, _, err := decodeObjectBinding(ownerVertex)
		if err != nil {
			return err
		}
		deleteHasEdge(ctx, owner, attr)
	}
	return nil
}

func deleteLinksEdgesFrom(ctx *Context, vertex Binding, prefix encoding.Prefix) error {
	seek := encoding.EdgeFromPrefix(prefix, vertex.SortKey())
	iter, err := ctx.Snapshot.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(seek))
	if err != nil {
		return err
	}
	vertexWidth := len(vertex.SortKey())
	type edge struct {
		role  encoding.TypeID
		other []byte
	}
	var edges []edge
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		_, role, other, err := encoding.SplitLinksEdge(key, vertexWidth, len(key)-1-vertexWidth-2)
		if err != nil {
			return err
		}
		edges = append(edges, edge{role: role, other: append([]byte{}, other...)})
	}
	for _, e := range edges {
		other, _, err := decodeObjectBinding(e.other)
		if err != nil {
			return err
		}
		if prefix == encoding.EdgeLinks {
			deleteLinksEdge(ctx, vertex, other, e.role)
		} else {
			deleteLinksEdge(ctx, other, vertex, e.role)
		}
	}
	return nil
}
