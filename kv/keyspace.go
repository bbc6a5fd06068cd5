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

// Package kv defines the partitioned ordered byte-map contract over
// the log-structured storage substrate: keyspaces, half open ranges, and a
// pooled iterator lease protocol. Concrete storage is provided by package
// kvengine.
package kv

import "github.com/gradb/gradb/encoding"

// Keyspace is one of a small, fixed set of independently ordered byte
// maps. Every persisted key lives in exactly one keyspace, grouping
// several of encoding's finer-grained prefix bytes under a single
// physically-partitioned map.
type Keyspace uint8

const (
	KeyspaceVertices Keyspace = iota
	KeyspaceEdges
	KeyspaceProperties
	KeyspaceDefinitions
	KeyspaceStatistics
)

var keyspaceNames = map[Keyspace]string{
	KeyspaceVertices:    "vertices",
	KeyspaceEdges:       "edges",
	KeyspaceProperties:  "properties",
	KeyspaceDefinitions: "definitions",
	KeyspaceStatistics:  "statistics",
}

func (k Keyspace) String() string {
	if n, ok := keyspaceNames[k]; ok {
		return n
	}
	return "keyspace-unknown"
}

// All returns every keyspace, in a stable order (used to initialise
// storage and to enumerate checkpoint files).
func All() []Keyspace {
	return []Keyspace{
		KeyspaceVertices,
		KeyspaceEdges,
		KeyspaceProperties,
		KeyspaceDefinitions,
		KeyspaceStatistics,
	}
}

// FromPrefix maps an encoding prefix byte to the keyspace it is
// physically partitioned into. Panics on an unrecognised prefix: a
// caller has a key that predates a keyspace assignment, an internal
// invariant violation.
func FromPrefix(p encoding.Prefix) Keyspace {
	switch {
	case p.IsTypeVertex() || p.IsThingVertex():
		return KeyspaceVertices
	case isEdgePrefix(p):
		return KeyspaceEdges
	case isPropertyPrefix(p):
		return KeyspaceProperties
	case p == encoding.DefinitionStruct || p == encoding.DefinitionFunction:
		return KeyspaceDefinitions
	default:
		panic("kv: unrecognised encoding prefix " + p.String())
	}
}

func isEdgePrefix(p encoding.Prefix) bool {
	switch p {
	case encoding.EdgeHas, encoding.EdgeHasReverse,
		encoding.EdgeLinks, encoding.EdgeLinksReverse,
		encoding.EdgeSub, encoding.EdgeSubReverse:
		return true
	default:
		return false
	}
}

func isPropertyPrefix(p encoding.Prefix) bool {
	switch p {
	case encoding.PropertyLabel, encoding.PropertyValueType,
		encoding.PropertyAnnotationAbstract, encoding.PropertyAnnotationUnique,
		encoding.PropertyAnnotationCardinality, encoding.PropertyAnnotationKey,
		encoding.PropertyAnnotationDistinct:
		return true
	default:
		return false
	}
}
