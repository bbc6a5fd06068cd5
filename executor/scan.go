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
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/mvcc"
)

// scanTypeInstances yields a Binding per instance of typeID, dispatched
// on the type's Kind: entities and relations live under their object
// vertex prefix, attributes under the attribute vertex prefix keyed by
// (type, value) with no separate object id.
func scanTypeInstances(snap *mvcc.Snapshot, cache *concept.TypeCache, typeID encoding.TypeID, interrupt *ExecutionInterrupt) (func() (Binding, bool, error), error) {
	t, ok := cache.ByID(typeID)
	if !ok {
		return func() (Binding, bool, error) { return Binding{}, false, nil }, nil
	}
	switch t.Kind {
	case concept.KindEntityType, concept.KindRelationType:
		prefix := encoding.VertexEntity
		if t.Kind == concept.KindRelationType {
			prefix = encoding.VertexRelation
		}
		seek := encoding.EncodeObjectVertex(prefix, typeID, 0)[:3]
		iter, err := snap.IterateRange(kv.KeyspaceVertices, kv.PrefixRange(seek))
		if err != nil {
			return nil, err
		}
		return func() (Binding, bool, error) {
			if err := interrupt.CheckBatch(); err != nil {
				return Binding{}, false, err
			}
			key, _, ok, err := iter.Next()
			if err != nil || !ok {
				return Binding{}, false, err
			}
			_, tid, oid, err := encoding.DecodeObjectVertex(key)
			if err != nil {
				return Binding{}, false, err
			}
			if t.Kind == concept.KindRelationType {
				return RelationBinding(tid, oid), true, nil
			}
			return EntityBinding(tid, oid), true, nil
		}, nil

	case concept.KindAttributeType:
		seek := encoding.AttributeVertexTypePrefix(typeID)
		iter, err := snap.IterateRange(kv.KeyspaceVertices, kv.PrefixRange(seek))
		if err != nil {
			return nil, err
		}
		return func() (Binding, bool, error) {
			if err := interrupt.CheckBatch(); err != nil {
				return Binding{}, false, err
			}
			key, _, ok, err := iter.Next()
			if err != nil || !ok {
				return Binding{}, false, err
			}
			tid, value, err := encoding.DecodeAttributeVertex(key)
			if err != nil {
				return Binding{}, false, err
			}
			return AttributeBinding(tid, append([]byte{}, value...)), true, nil
		}, nil

	default:
		return func() (Binding, bool, error) { return Binding{}, false, nil }, nil
	}
}

// scanHasForward yields the attribute Bindings owner holds via
// EdgeHas, seeking by the owner's vertex prefix.
func scanHasForward(snap *mvcc.Snapshot, owner Binding, interrupt *ExecutionInterrupt) (func() (Binding, bool, error), error) {
	prefix := encoding.EdgeFromPrefix(encoding.EdgeHas, owner.SortKey())
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	ownerWidth := len(owner.SortKey())
	return func() (Binding, bool, error) {
		if err := interrupt.CheckBatch(); err != nil {
			return Binding{}, false, err
		}
		key, _, ok, err := iter.Next()
		if err != nil || !ok {
			return Binding{}, false, err
		}
		_, to, err := encoding.SplitEdge(key, ownerWidth, len(key)-1-ownerWidth)
		if err != nil {
			return Binding{}, false, err
		}
		tid, value, err := encoding.DecodeAttributeVertex(to)
		if err != nil {
			return Binding{}, false, err
		}
		return AttributeBinding(tid, append([]byte{}, value...)), true, nil
	}, nil
}

// scanHasReverse yields the owner Bindings (entity or relation) of an
// attribute instance, via the reverse EdgeHasReverse edge.
func scanHasReverse(snap *mvcc.Snapshot, attr Binding, interrupt *ExecutionInterrupt) (func() (Binding, bool, error), error) {
	prefix := encoding.EdgeFromPrefix(encoding.EdgeHasReverse, attr.SortKey())
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	attrWidth := len(attr.SortKey())
	return func() (Binding, bool, error) {
		if err := interrupt.CheckBatch(); err != nil {
			return Binding{}, false, err
		}
		key, _, ok, err := iter.Next()
		if err != nil || !ok {
			return Binding{}, false, err
		}
		_, to, err := encoding.SplitEdge(key, attrWidth, len(key)-1-attrWidth)
		if err != nil {
			return Binding{}, false, err
		}
		return decodeObjectBinding(to)
	}, nil
}

func decodeObjectBinding(vertex []byte) (Binding, bool, error) {
	prefix, tid, oid, err := encoding.DecodeObjectVertex(vertex)
	if err != nil {
		return Binding{}, false, err
	}
	if prefix == encoding.VertexRelation {
		return RelationBinding(tid, oid), true, nil
	}
	return EntityBinding(tid, oid), true, nil
}

// scanLinksForward yields (player, role) pairs played in relation,
// optionally restricted to a single known role.
func scanLinksForward(snap *mvcc.Snapshot, relation Binding, role *encoding.TypeID, interrupt *ExecutionInterrupt) (func() (player Binding, roleID encoding.TypeID, ok bool, err error), error) {
	relVertex := relation.SortKey()
	var prefix []byte
	if role != nil {
		prefix = encoding.EncodeLinksEdge(encoding.EdgeLinks, relVertex, *role, nil)
	} else {
		prefix = encoding.EdgeFromPrefix(encoding.EdgeLinks, relVertex)
	}
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	relWidth := len(relVertex)
	return func() (Binding, encoding.TypeID, bool, error) {
		if err := interrupt.CheckBatch(); err != nil {
			return Binding{}, 0, false, err
		}
		key, _, ok, err := iter.Next()
		if err != nil || !ok {
			return Binding{}, 0, false, err
		}
		_, roleID, playerVertex, err := encoding.SplitLinksEdge(key, relWidth, len(key)-1-relWidth-2)
		if err != nil {
			return Binding{}, 0, false, err
		}
		player, _, err := decodeObjectBinding(playerVertex)
		if err != nil {
			return Binding{}, 0, false, err
		}
		return player, roleID, true, nil
	}, nil
}

// scanLinksReverse yields (relation, role) pairs in which player takes
// part, via the reverse EdgeLinksReverse edge.
func scanLinksReverse(snap *mvcc.Snapshot, player Binding, role *encoding.TypeID, interrupt *ExecutionInterrupt) (func() (relation Binding, roleID encoding.TypeID, ok bool, err error), error) {
	playerVertex := player.SortKey()
	var prefix []byte
	if role != nil {
		prefix = encoding.EncodeLinksEdge(encoding.EdgeLinksReverse, playerVertex, *role, nil)
	} else {
		prefix = encoding.EdgeFromPrefix(encoding.EdgeLinksReverse, playerVertex)
	}
	iter, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	playerWidth := len(playerVertex)
	return func() (Binding, encoding.TypeID, bool, error) {
		if err := interrupt.CheckBatch(); err != nil {
			return Binding{}, 0, false, err
		}
		key, _, ok, err := iter.Next()
		if err != nil || !ok {
			return Binding{}, 0, false, err
		}
		_, roleID, relVertex, err := encoding.SplitLinksEdge(key, playerWidth, len(key)-1-playerWidth-2)
		if err != nil {
			return Binding{}, 0, false, err
		}
		relation, _, err := decodeObjectBinding(relVertex)
		if err != nil {
			return Binding{}, 0, false, err
		}
		return relation, roleID, true, nil
	}, nil
}
