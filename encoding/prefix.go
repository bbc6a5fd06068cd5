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

// Package encoding implements the bit-exact, sort-preserving key and
// value encodings for schema, instances and edges. No component outside
// this package constructs a persisted key.
package encoding

// Prefix is the first byte of every persisted key, stable across
// versions: renumbering any of these requires a data migration.
type Prefix byte

const (
	VertexEntityType Prefix = iota + 1
	VertexRelationType
	VertexRoleType
	VertexAttributeType

	VertexEntity
	VertexRelation
	VertexAttribute

	EdgeHas
	EdgeHasReverse
	EdgeLinks
	EdgeLinksReverse
	EdgeSub
	EdgeSubReverse

	PropertyLabel
	PropertyValueType
	PropertyAnnotationAbstract
	PropertyAnnotationUnique
	PropertyAnnotationCardinality
	PropertyAnnotationKey
	PropertyAnnotationDistinct

	DefinitionStruct
	DefinitionFunction
)

var prefixNames = map[Prefix]string{
	VertexEntityType:    "vertex-entity-type",
	VertexRelationType:  "vertex-relation-type",
	VertexRoleType:      "vertex-role-type",
	VertexAttributeType: "vertex-attribute-type",
	VertexEntity:        "vertex-entity",
	VertexRelation:      "vertex-relation",
	VertexAttribute:     "vertex-attribute",

	EdgeHas:         "edge-has",
	EdgeHasReverse:  "edge-has-reverse",
	EdgeLinks:       "edge-links",
	EdgeLinksReverse: "edge-links-reverse",
	EdgeSub:         "edge-sub",
	EdgeSubReverse:  "edge-sub-reverse",

	PropertyLabel:                 "property-label",
	PropertyValueType:             "property-value-type",
	PropertyAnnotationAbstract:    "property-annotation-abstract",
	PropertyAnnotationUnique:      "property-annotation-unique",
	PropertyAnnotationCardinality: "property-annotation-cardinality",
	PropertyAnnotationKey:         "property-annotation-key",
	PropertyAnnotationDistinct:    "property-annotation-distinct",

	DefinitionStruct:   "definition-struct",
	DefinitionFunction: "definition-function",
}

func (p Prefix) String() string {
	if n, ok := prefixNames[p]; ok {
		return n
	}
	return "prefix-unknown"
}

// IsTypeVertex reports whether p identifies a type vertex prefix.
func (p Prefix) IsTypeVertex() bool {
	switch p {
	case VertexEntityType, VertexRelationType, VertexRoleType, VertexAttributeType:
		return true
	default:
		return false
	}
}

// IsThingVertex reports whether p identifies an instance vertex prefix.
func (p Prefix) IsThingVertex() bool {
	switch p {
	case VertexEntity, VertexRelation, VertexAttribute:
		return true
	default:
		return false
	}
}

// ReverseOf returns the symmetric reverse edge prefix for a forward
// edge prefix, and ok=false for anything else.
func (p Prefix) ReverseOf() (Prefix, bool) {
	switch p {
	case EdgeHas:
		return EdgeHasReverse, true
	case EdgeHasReverse:
		return EdgeHas, true
	case EdgeLinks:
		return EdgeLinksReverse, true
	case EdgeLinksReverse:
		return EdgeLinks, true
	case EdgeSub:
		return EdgeSubReverse, true
	case EdgeSubReverse:
		return EdgeSub, true
	default:
		return 0, false
	}
}
