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

// TypeCache is an immutable, read-only index over every schema type,
// rebuilt from a snapshot after each schema commit. It is safe for
// concurrent readers since nothing mutates it after Build returns.
type TypeCache struct {
	seq     uint64
	byID    map[encoding.TypeID]*Type
	byLabel map[string]*Type
}

var allTypeVertexKinds = []Kind{KindEntityType, KindRelationType, KindRoleType, KindAttributeType}

// BuildTypeCache scans snap for every type vertex and its properties
// and edges, assembling a fully-linked TypeCache. snap should be a
// read snapshot opened at the sequence number the cache will be tagged
// with.
func BuildTypeCache(snap *mvcc.Snapshot, seq uint64) (*TypeCache, error) {
	c := &TypeCache{
		seq:     seq,
		byID:    make(map[encoding.TypeID]*Type),
		byLabel: make(map[string]*Type),
	}

	for _, kind := range allTypeVertexKinds {
		if err := c.loadVertices(snap, kind); err != nil {
			return nil, err
		}
	}
	for _, t := range c.byID {
		if err := c.loadLabel(snap, t); err != nil {
			return nil, err
		}
		if err := c.loadAbstract(snap, t); err != nil {
			return nil, err
		}
		if t.Kind == KindAttributeType {
			if err := c.loadValueType(snap, t); err != nil {
				return nil, err
			}
			if err := c.loadUnique(snap, t); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range c.byID {
		if t.Label.Name != "" {
			c.byLabel[labelKey(t.Label)] = t
		}
	}
	if err := c.loadSub(snap); err != nil {
		return nil, err
	}
	if err := c.loadOwnsAndPlays(snap); err != nil {
		return nil, err
	}
	return c, nil
}

func labelKey(l encoding.Label) string {
	if l.Scope == "" {
		return l.Name
	}
	return l.Scope + ":" + l.Name
}

func (c *TypeCache) loadVertices(snap *mvcc.Snapshot, kind Kind) error {
	prefix := []byte{byte(kind.vertexPrefix())}
	iter, err := snap.IterateRange(kv.KeyspaceVertices, kv.PrefixRange(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		_, id, err := encoding.DecodeTypeVertex(key)
		if err != nil {
			return dberrors.Wrap(dberrors.Encoding, err, "decode type vertex")
		}
		c.byID[id] = &Type{
			ID:    id,
			Kind:  kind,
			Owns:  make(map[encoding.TypeID]Cardinality),
			Plays: make(map[encoding.TypeID]Cardinality),
		}
	}
}

func (c *TypeCache) loadLabel(snap *mvcc.Snapshot, t *Type) error {
	key := encoding.EncodePropertyLabel(t.vertex())
	val, ok, err := snap.Get(kv.KeyspaceProperties, key)
	if err != nil {
		return err
	}
	if ok {
		t.Label = encoding.DecodeLabelValue(val)
	}
	return nil
}

func (c *TypeCache) loadAbstract(snap *mvcc.Snapshot, t *Type) error {
	key := encoding.EncodeProperty(encoding.PropertyAnnotationAbstract, t.vertex())
	_, ok, err := snap.Get(kv.KeyspaceProperties, key)
	if err != nil {
		return err
	}
	t.Abstract = ok
	return nil
}

func (c *TypeCache) loadValueType(snap *mvcc.Snapshot, t *Type) error {
	key := encoding.EncodeProperty(encoding.PropertyValueType, t.vertex())
	val, ok, err := snap.Get(kv.KeyspaceProperties, key)
	if err != nil {
		return err
	}
	if ok && len(val) == 1 {
		vt := encoding.ValueType(val[0])
		t.ValueType = &vt
	}
	return nil
}

func (c *TypeCache) loadUnique(snap *mvcc.Snapshot, t *Type) error {
	key := encoding.EncodeProperty(encoding.PropertyAnnotationUnique, t.vertex())
	_, ok, err := snap.Get(kv.KeyspaceProperties, key)
	if err != nil {
		return err
	}
	t.Unique = ok
	return nil
}

func (c *TypeCache) loadSub(snap *mvcc.Snapshot) error {
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange([]byte{byte(encoding.EdgeSub)}))
	if err != nil {
		return err
	}
	defer iter.Close()
	for {
		key, _, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		from, to, err := splitTypeEdge(key)
		if err != nil {
			return err
		}
		sub := c.byID[from]
		if sub == nil {
			continue
		}
		superID := to
		sub.Super = &superID
	}
}

func (c *TypeCache) loadOwnsAndPlays(snap *mvcc.Snapshot) error {
	if err := c.loadCardinalityEdges(snap, encoding.EdgeHas, func(owner *Type) map[encoding.TypeID]Cardinality { return owner.Owns }); err != nil {
		return err
	}
	return c.loadCardinalityEdges(snap, encoding.EdgeLinks, func(player *Type) map[encoding.TypeID]Cardinality { return player.Plays })
}

func (c *TypeCache) loadCardinalityEdges(snap *mvcc.Snapshot, prefix encoding.Prefix, target func(*Type) map[encoding.TypeID]Cardinality) error {
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange([]byte{byte(prefix)}))
	if err != nil {
		return err
	}
	defer iter.Close()
	for {
		key, val, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if len(key) != 1+2*3 {
			continue // an instance has/links edge sharing the prefix, not an owns/plays edge
		}
		from, to, err := splitTypeEdge(key)
		if err != nil {
			return err
		}
		owner := c.byID[from]
		if owner == nil {
			continue
		}
		target(owner)[to] = decodeCardinality(val)
	}
}

// splitTypeEdge decodes a [prefix][fromVertex][toVertex] key where
// both sides are fixed-width type vertices.
func splitTypeEdge(key []byte) (from, to encoding.TypeID, err error) {
	const vertexWidth = 3 // 1 prefix byte + 2-byte TypeID, per encoding.EncodeTypeVertex
	rawFrom, rawTo, err := encoding.SplitEdge(key, vertexWidth, vertexWidth)
	if err != nil {
		return 0, 0, err
	}
	_, fromID, err := encoding.DecodeTypeVertex(rawFrom)
	if err != nil {
		return 0, 0, err
	}
	_, toID, err := encoding.DecodeTypeVertex(rawTo)
	if err != nil {
		return 0, 0, err
	}
	return fromID, toID, nil
}

func decodeCardinality(b []byte) Cardinality {
	if len(b) != 16 {
		return Unbounded
	}
	min, errMin := encoding.DecodeLong(b[0:8])
	max, errMax := encoding.DecodeLong(b[8:16])
	if errMin != nil || errMax != nil {
		return Unbounded
	}
	return Cardinality{Min: uint64(min), Max: uint64(max)}
}

// ByID looks up a type by its identifier.
func (c *TypeCache) ByID(id encoding.TypeID) (*Type, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// ByLabel looks up a type by its fully-scoped label.
func (c *TypeCache) ByLabel(l encoding.Label) (*Type, bool) {
	t, ok := c.byLabel[labelKey(l)]
	return t, ok
}

// Seq returns the sequence number the cache was built at.
func (c *TypeCache) Seq() uint64 { return c.seq }

// All returns every cached type, in no particular order.
func (c *TypeCache) All() []*Type {
	out := make([]*Type, 0, len(c.byID))
	for _, t := range c.byID {
		out = append(out, t)
	}
	return out
}

// OwnersOf returns every type that directly owns attrType, the inverse
// of Type.Owns, used by type inference's `$x has name` seeding step.
func (c *TypeCache) OwnersOf(attrType encoding.TypeID) []encoding.TypeID {
	var out []encoding.TypeID
	for id, t := range c.byID {
		if _, ok := t.Owns[attrType]; ok {
			out = append(out, id)
		}
	}
	return out
}

// PlayersOf returns every type that directly plays roleType.
func (c *TypeCache) PlayersOf(roleType encoding.TypeID) []encoding.TypeID {
	var out []encoding.TypeID
	for id, t := range c.byID {
		if _, ok := t.Plays[roleType]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Subtypes returns id and every type transitively reachable by
// following Super back to id (the direct and indirect subtypes),
// used to expand an Isa constraint's compatible-type set.
func (c *TypeCache) Subtypes(id encoding.TypeID) []encoding.TypeID {
	out := []encoding.TypeID{id}
	for _, t := range c.byID {
		if t.Super != nil && *t.Super == id {
			out = append(out, c.Subtypes(t.ID)...)
		}
	}
	return out
}

// Supertypes returns id and every type reachable by following Super
// forward from id to the hierarchy root.
func (c *TypeCache) Supertypes(id encoding.TypeID) []encoding.TypeID {
	out := []encoding.TypeID{id}
	t, ok := c.byID[id]
	if !ok || t.Super == nil {
		return out
	}
	return append(out, c.Supertypes(*t.Super)...)
}
