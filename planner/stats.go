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

// Package planner turns a type-annotated conjunction into an ordered
// sequence of executable steps: a heuristic, not cost-based, ordering
// driven by bound-variable count and simple per-type/per-edge statistics.
package planner

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/mvcc"
)

type edgeTypePair struct {
	from, to encoding.TypeID
}

// Stats holds the "simple statistics" named in: per-type instance counts
// and per-type-pair has/links edge counts, used purely to break ties in
// the ordering heuristic — never for cost-based join reordering (an
// explicit Non-goal).
type Stats struct {
	instanceCount map[encoding.TypeID]uint64
	hasCount      map[edgeTypePair]uint64
	linksCount    map[edgeTypePair]uint64

	// present records which types were actually observed while
	// building stats, distinguishing "zero instances" from "type
	// unknown to this snapshot" should that ever matter to a caller.
	present *roaring.Bitmap
}

// BuildStats scans the snapshot once, counting every entity/relation
// instance by type and every has/links edge by (from-type, to-type)
// pair. This is the heuristic planner's only statistics source: there
// is no background maintenance job, so callers should rebuild Stats
// once per schema-affecting commit rather than per query if the
// snapshot is long-lived.
func BuildStats(snap *mvcc.Snapshot, cache *concept.TypeCache) (*Stats, error) {
	s := &Stats{
		instanceCount: make(map[encoding.TypeID]uint64),
		hasCount:      make(map[edgeTypePair]uint64),
		linksCount:    make(map[edgeTypePair]uint64),
		present:       roaring.New(),
	}

	for _, t := range cache.All() {
		s.present.Add(uint32(t.ID))
		switch t.Kind {
		case concept.KindEntityType:
			n, err := countObjectInstances(snap, encoding.VertexEntity, t.ID)
			if err != nil {
				return nil, err
			}
			s.instanceCount[t.ID] = n
		case concept.KindRelationType:
			n, err := countObjectInstances(snap, encoding.VertexRelation, t.ID)
			if err != nil {
				return nil, err
			}
			s.instanceCount[t.ID] = n
		case concept.KindAttributeType:
			n, err := countAttributeInstances(snap, t.ID)
			if err != nil {
				return nil, err
			}
			s.instanceCount[t.ID] = n
		}
	}

	if err := countEdges(snap, encoding.EdgeHas, s.hasCount); err != nil {
		return nil, err
	}
	if err := countEdges(snap, encoding.EdgeLinks, s.linksCount); err != nil {
		return nil, err
	}
	return s, nil
}

func countObjectInstances(snap *mvcc.Snapshot, prefix encoding.Prefix, typeID encoding.TypeID) (uint64, error) {
	seekPrefix := encoding.EncodeObjectVertex(prefix, typeID, 0)[:3]
	return countPrefix(snap, kv.KeyspaceVertices, seekPrefix)
}

func countAttributeInstances(snap *mvcc.Snapshot, typeID encoding.TypeID) (uint64, error) {
	return countPrefix(snap, kv.KeyspaceVertices, encoding.AttributeVertexTypePrefix(typeID))
}

func countPrefix(snap *mvcc.Snapshot, ks kv.Keyspace, prefix []byte) (uint64, error) {
	it, err := snap.IterateRange(ks, kv.PrefixRange(prefix))
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n uint64
	for {
		_, _, ok, err := it.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// countEdges scans every forward edge of the given prefix (EdgeHas or
// EdgeLinks) and tallies (from-type, to-type) occurrences. Both edge
// shapes begin with an 11-byte object vertex (owner or relation), so
// the from-type is always readable at a fixed offset; the to-type is
// read differently depending on whether the edge terminates in an
// attribute vertex (Has) or another object vertex behind a role tag
// (Links).
func countEdges(snap *mvcc.Snapshot, prefix encoding.Prefix, into map[edgeTypePair]uint64) error {
	it, err := snap.IterateRange(kv.KeyspaceEdges, kv.PrefixRange([]byte{byte(prefix)}))
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		key, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if len(key) < 1+encoding.ObjectVertexLength {
			continue
		}
		_, fromType, _, err := encoding.DecodeObjectVertex(key[1 : 1+encoding.ObjectVertexLength])
		if err != nil {
			continue
		}

		var toType encoding.TypeID
		tail := key[1+encoding.ObjectVertexLength:]
		switch prefix {
		case encoding.EdgeHas:
			toType, _, err = encoding.DecodeAttributeVertex(tail)
			if err != nil {
				continue
			}
		case encoding.EdgeLinks:
			if len(tail) < 2+encoding.ObjectVertexLength {
				continue
			}
			_, toType, _, err = encoding.DecodeObjectVertex(tail[2:])
			if err != nil {
				continue
			}
		default:
			continue
		}
		into[edgeTypePair{from: fromType, to: toType}]++
	}
}

// InstanceCount returns the number of instances observed for typeID,
// zero if none were counted.
func (s *Stats) InstanceCount(typeID encoding.TypeID) uint64 {
	return s.instanceCount[typeID]
}

// HasCount returns the number of has-edges observed between ownerType
// and attrType.
func (s *Stats) HasCount(ownerType, attrType encoding.TypeID) uint64 {
	return s.hasCount[edgeTypePair{from: ownerType, to: attrType}]
}

// LinksCount returns the number of links-edges observed between
// relationType and playerType (irrespective of role).
func (s *Stats) LinksCount(relationType, playerType encoding.TypeID) uint64 {
	return s.linksCount[edgeTypePair{from: relationType, to: playerType}]
}

// Observed reports whether typeID existed in the schema at the time
// Stats was built, distinguishing a genuinely zero-instance type from
// one the planner has no statistics for at all.
func (s *Stats) Observed(typeID encoding.TypeID) bool {
	return s.present.Contains(uint32(typeID))
}
