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

// TypeManager creates and edits schema types inside a schema
// snapshot's write buffer. All edits go through it; the cache it feeds is
// rebuilt only after commit.
type TypeManager struct {
	snap *mvcc.Snapshot
}

// NewTypeManager wraps a schema-writable snapshot.
func NewTypeManager(snap *mvcc.Snapshot) *TypeManager {
	return &TypeManager{snap: snap}
}

// CreateType allocates a fresh TypeID for kind and writes its vertex
// and label property.
func (m *TypeManager) CreateType(kind Kind, label encoding.Label) (*Type, error) {
	allocator := encoding.NewTypeIDAllocator(kind.vertexPrefix())
	id, err := allocator.Allocate(m.snap.Scanner(kv.KeyspaceVertices))
	if err != nil {
		return nil, err
	}
	t := &Type{
		ID:    id,
		Kind:  kind,
		Label: label,
		Owns:  make(map[encoding.TypeID]Cardinality),
		Plays: make(map[encoding.TypeID]Cardinality),
	}
	m.snap.Insert(kv.KeyspaceVertices, t.vertex(), nil)
	m.snap.Insert(kv.KeyspaceProperties, encoding.EncodePropertyLabel(t.vertex()), encoding.EncodeLabelValue(label))
	return t, nil
}

// SetSuper writes the sub edge (and its reverse) linking a type to its
// direct supertype.
func (m *TypeManager) SetSuper(sub, super *Type) {
	if sub.Kind != super.Kind {
		panic("concept: sub/super kind mismatch")
	}
	fwd := encoding.EncodeEdge(encoding.EdgeSub, sub.vertex(), super.vertex())
	rev := encoding.EncodeEdge(encoding.EdgeSubReverse, super.vertex(), sub.vertex())
	m.snap.Put(kv.KeyspaceEdges, fwd, nil, true)
	m.snap.Put(kv.KeyspaceEdges, rev, nil, true)
}

// SetAbstract marks or unmarks a type as abstract (cannot be directly
// instantiated; ).
func (m *TypeManager) SetAbstract(t *Type, abstract bool) {
	t.Abstract = abstract
	key := encoding.EncodeProperty(encoding.PropertyAnnotationAbstract, t.vertex())
	if abstract {
		m.snap.Put(kv.KeyspaceProperties, key, []byte{1}, true)
	} else {
		m.snap.Delete(kv.KeyspaceProperties, key)
	}
}

// SetValueType records the value type of an attribute type.
func (m *TypeManager) SetValueType(t *Type, vt encoding.ValueType) {
	if t.Kind != KindAttributeType {
		panic("concept: SetValueType requires an attribute type")
	}
	t.ValueType = &vt
	key := encoding.EncodeProperty(encoding.PropertyValueType, t.vertex())
	m.snap.Put(kv.KeyspaceProperties, key, []byte{byte(vt)}, true)
}

// SetUnique marks an attribute type's values as globally unique across
// owners.
func (m *TypeManager) SetUnique(t *Type, unique bool) {
	t.Unique = unique
	key := encoding.EncodeProperty(encoding.PropertyAnnotationUnique, t.vertex())
	if unique {
		m.snap.Put(kv.KeyspaceProperties, key, []byte{1}, true)
	} else {
		m.snap.Delete(kv.KeyspaceProperties, key)
	}
}

// SetOwns records that owner may own attrType, with the given
// cardinality, writing a forward has edge template at the type level
// (no instance yet) so the cache can validate instance writes.
func (m *TypeManager) SetOwns(owner, attrType *Type, card Cardinality) error {
	if owner.Kind != KindEntityType && owner.Kind != KindRelationType {
		return dberrors.New(dberrors.SchemaValidation, "owner must be an entity or relation type")
	}
	if attrType.Kind != KindAttributeType {
		return dberrors.New(dberrors.SchemaValidation, "owns target must be an attribute type")
	}
	owner.Owns[attrType.ID] = card
	cv := encodeCardinality(card)
	fwd := encoding.EncodeEdge(encoding.EdgeHas, owner.vertex(), attrType.vertex())
	rev := encoding.EncodeEdge(encoding.EdgeHasReverse, attrType.vertex(), owner.vertex())
	m.snap.Put(kv.KeyspaceEdges, fwd, cv, true)
	m.snap.Put(kv.KeyspaceEdges, rev, cv, true)
	return nil
}

// SetPlays records that roleType may be played by playerType.
func (m *TypeManager) SetPlays(playerType, roleType *Type, card Cardinality) error {
	if roleType.Kind != KindRoleType {
		return dberrors.New(dberrors.SchemaValidation, "plays target must be a role type")
	}
	playerType.Plays[roleType.ID] = card
	cv := encodeCardinality(card)
	fwd := encoding.EncodeEdge(encoding.EdgeLinks, playerType.vertex(), roleType.vertex())
	rev := encoding.EncodeEdge(encoding.EdgeLinksReverse, roleType.vertex(), playerType.vertex())
	m.snap.Put(kv.KeyspaceEdges, fwd, cv, true)
	m.snap.Put(kv.KeyspaceEdges, rev, cv, true)
	return nil
}

func encodeCardinality(c Cardinality) []byte {
	buf := make([]byte, 16)
	be := encoding.EncodeLong // reuse sort-preserving long codec for the stored bounds, even though cardinality is never scanned by range
	copy(buf[0:8], be(int64(c.Min)))
	copy(buf[8:16], be(int64(c.Max)))
	return buf
}
