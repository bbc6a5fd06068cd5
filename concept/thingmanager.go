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

package concept

import (
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/mvcc"
)

// ThingManager creates and links instances inside a write snapshot,
// consulting a TypeCache to reject instances of a missing, wrong-kind
// or abstract type when they are created. No constraint check runs at
// commit: uniqueness is checked only when a caller invokes
// CheckUniqueness, and has-edge cardinality is not checked.
type ThingManager struct {
	cache   *TypeCache
	thingID *encoding.ThingIDGenerator
	snap    *mvcc.Snapshot
}

// NewThingManager wraps a write snapshot with the cache it should
// validate instance writes against and the process-local id generator
// that mints new entity/relation object ids.
func NewThingManager(snap *mvcc.Snapshot, cache *TypeCache, thingID *encoding.ThingIDGenerator) *ThingManager {
	return &ThingManager{cache: cache, thingID: thingID, snap: snap}
}

// Entity is a created or looked-up entity instance.
type Entity struct {
	TypeID encoding.TypeID
	ID     encoding.ObjectID
}

func (e Entity) vertex() []byte { return encoding.EncodeObjectVertex(encoding.VertexEntity, e.TypeID, e.ID) }

// Relation is a created or looked-up relation instance.
type Relation struct {
	TypeID encoding.TypeID
	ID     encoding.ObjectID
}

func (r Relation) vertex() []byte {
	return encoding.EncodeObjectVertex(encoding.VertexRelation, r.TypeID, r.ID)
}

// Attribute identifies an attribute instance by its (type, encoded
// value) identity — there is no separate object id.
type Attribute struct {
	TypeID encoding.TypeID
	Value  []byte
}

func (a Attribute) vertex() []byte { return encoding.EncodeAttributeVertex(a.TypeID, a.Value) }

// CreateEntity instantiates a new entity of typeID, rejecting abstract
// types.
func (m *ThingManager) CreateEntity(typeID encoding.TypeID) (Entity, error) {
	t, ok := m.cache.ByID(typeID)
	if !ok || t.Kind != KindEntityType {
		return Entity{}, dberrors.New(dberrors.SchemaValidation, "not an entity type: %d", typeID)
	}
	if t.Abstract {
		return Entity{}, dberrors.New(dberrors.SchemaValidation, "cannot instantiate abstract type %s", t.Label.Name)
	}
	e := Entity{TypeID: typeID, ID: m.thingID.TakeObjectID(typeID)}
	m.snap.Insert(kv.KeyspaceVertices, e.vertex(), nil)
	return e, nil
}

// CreateRelation instantiates a new relation of typeID.
func (m *ThingManager) CreateRelation(typeID encoding.TypeID) (Relation, error) {
	t, ok := m.cache.ByID(typeID)
	if !ok || t.Kind != KindRelationType {
		return Relation{}, dberrors.New(dberrors.SchemaValidation, "not a relation type: %d", typeID)
	}
	if t.Abstract {
		return Relation{}, dberrors.New(dberrors.SchemaValidation, "cannot instantiate abstract type %s", t.Label.Name)
	}
	r := Relation{TypeID: typeID, ID: m.thingID.TakeObjectID(typeID)}
	m.snap.Insert(kv.KeyspaceVertices, r.vertex(), nil)
	return r, nil
}

// PutAttribute returns the attribute instance of typeID holding value,
// creating its vertex if this is the first owner to introduce that
// value. Attributes dedupe by (type, value) so this is Put, never
// Insert.
func (m *ThingManager) PutAttribute(typeID encoding.TypeID, value []byte) (Attribute, error) {
	t, ok := m.cache.ByID(typeID)
	if !ok || t.Kind != KindAttributeType {
		return Attribute{}, dberrors.New(dberrors.SchemaValidation, "not an attribute type: %d", typeID)
	}
	a := Attribute{TypeID: typeID, Value: value}
	m.snap.Put(kv.KeyspaceVertices, a.vertex(), nil, true)
	return a, nil
}

type vertexOwner interface{ vertex() []byte }

// CreateHasEdge links owner to attr with a forward and reverse edge.
// It checks neither cardinality nor uniqueness, and neither does the
// commit that follows.
func (m *ThingManager) CreateHasEdge(owner vertexOwner, attr Attribute) {
	fwd := encoding.EncodeEdge(encoding.EdgeHas, owner.vertex(), attr.vertex())
	rev := encoding.EncodeEdge(encoding.EdgeHasReverse, attr.vertex(), owner.vertex())
	m.snap.Put(kv.KeyspaceEdges, fwd, nil, true)
	m.snap.Put(kv.KeyspaceEdges, rev, nil, true)
}

// CreateLinksEdge links relation to player in the given role, writing
// both the forward (keyed by relation, scannable per-role) and reverse
// (keyed by player) edges.
func (m *ThingManager) CreateLinksEdge(relation Relation, role encoding.TypeID, player vertexOwner) {
	fwd := encoding.EncodeLinksEdge(encoding.EdgeLinks, relation.vertex(), role, player.vertex())
	rev := encoding.EncodeLinksEdge(encoding.EdgeLinksReverse, player.vertex(), role, relation.vertex())
	m.snap.Put(kv.KeyspaceEdges, fwd, nil, true)
	m.snap.Put(kv.KeyspaceEdges, rev, nil, true)
}

// CheckUniqueness verifies that no owner other than exclude already
// holds attr on a Unique attribute type, scanning the attribute's
// reverse-has edges. It runs only when called; commit does not call it.
func (m *ThingManager) CheckUniqueness(attr Attribute, exclude vertexOwner) error {
	t, ok := m.cache.ByID(attr.TypeID)
	if !ok || !t.Unique {
		return nil
	}
	prefix := encoding.EdgeFromPrefix(encoding.EdgeHasReverse, attr.vertex())
	iter, err := m.snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()
	excludeVertex := exclude.vertex()
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		_, owner, err := encoding.SplitEdge(key, len(attr.vertex()), len(key)-1-len(attr.vertex()))
		if err != nil {
			return err
		}
		if string(owner) != string(excludeVertex) {
			return dberrors.New(dberrors.SchemaValidation, "unique attribute %s already owned by another instance", t.Label.Name)
		}
	}
}
