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

// Package concept implements the two schema/instance managers: a type
// manager backed by an immutable, rebuilt-at-commit cache, and a thing
// manager that rejects instances of wrong-kind or abstract types when
// they are created; no constraint check runs at commit time.
package concept

import "github.com/gradb/gradb/encoding"

// Kind distinguishes the four type-vertex categories.
type Kind uint8

const (
	KindEntityType Kind = iota
	KindRelationType
	KindRoleType
	KindAttributeType
)

func (k Kind) String() string {
	switch k {
	case KindEntityType:
		return "entity"
	case KindRelationType:
		return "relation"
	case KindRoleType:
		return "role"
	case KindAttributeType:
		return "attribute"
	default:
		return "unknown"
	}
}

func (k Kind) vertexPrefix() encoding.Prefix {
	switch k {
	case KindEntityType:
		return encoding.VertexEntityType
	case KindRelationType:
		return encoding.VertexRelationType
	case KindRoleType:
		return encoding.VertexRoleType
	case KindAttributeType:
		return encoding.VertexAttributeType
	default:
		panic("concept: unknown kind")
	}
}

// Cardinality bounds the number of edges of a given relationship a
// single owner/relation instance may have.
type Cardinality struct {
	Min uint64
	Max uint64 // 0 means unbounded
}

// Unbounded is the cardinality placed on a newly created ownership or
// role-play relationship before an explicit annotation narrows it.
var Unbounded = Cardinality{Min: 0, Max: 0}

// Type is one node of the schema: an entity, relation, role or
// attribute type, with its label, optional super-type and, for
// attribute types, its value type.
type Type struct {
	ID       encoding.TypeID
	Kind     Kind
	Label    encoding.Label
	Super    *encoding.TypeID // nil for a root type
	Abstract bool

	// ValueType is set only for KindAttributeType.
	ValueType *encoding.ValueType

	// Owns maps an owned attribute type id to the cardinality of that
	// ownership; Plays maps a played role type id to its cardinality.
	Owns  map[encoding.TypeID]Cardinality
	Plays map[encoding.TypeID]Cardinality

	// Unique marks an attribute type whose values must be unique
	// across all owners.
	Unique bool
}

func (t *Type) vertex() []byte {
	return encoding.EncodeTypeVertex(t.Kind.vertexPrefix(), t.ID)
}
