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

// Package query is the public entry point for executing a pipeline of
// already-built stages against an open transaction: the IR/annotation/
// planner/executor/functionrt layers compile and run each stage, and
// query coordinates the transaction lifecycle around them. There is no
// parser here — a Pipeline is a constructor-built value, the same way
// tests elsewhere in this module build ir.Tree fixtures directly.
package query

import (
	"github.com/gradb/gradb/executor"
	"github.com/gradb/gradb/ir"
)

// StageKind identifies which operation a Stage performs.
type StageKind uint8

const (
	StageMatch StageKind = iota
	StageInsert
	StageDelete
	StageUpdate
	StagePut
	StageSelect
	StageSort
	StageOffset
	StageLimit
	StageReduce
	StageFetch
)

func (k StageKind) String() string {
	switch k {
	case StageMatch:
		return "Match"
	case StageInsert:
		return "Insert"
	case StageDelete:
		return "Delete"
	case StageUpdate:
		return "Update"
	case StagePut:
		return "Put"
	case StageSelect:
		return "Select"
	case StageSort:
		return "Sort"
	case StageOffset:
		return "Offset"
	case StageLimit:
		return "Limit"
	case StageReduce:
		return "Reduce"
	case StageFetch:
		return "Fetch"
	default:
		return "Unknown"
	}
}

// Stage is one step of a Pipeline. Exactly one of the kind-specific
// fields is populated, selected by Kind.
type Stage struct {
	Kind StageKind

	// Match: the conjunction block (within Pipeline.Tree) this stage
	// matches. Root() for a top-level match.
	MatchBlock ir.BlockID

	// Insert/Put: statements to apply per upstream row.
	WriteStatements []executor.WriteStatement
	// Update: statements removed, then statements inserted, per row.
	UpdateDeletes []executor.WriteStatement

	// Select/Require (Require is implied for every stage's own
	// matched variables; Select additionally narrows the row's shape).
	Variables []ir.VariableID

	// Sort.
	SortSpecs []executor.SortSpec

	// Offset/Limit.
	N uint64

	// Reduce.
	GroupBy  []ir.VariableID
	Reducers []executor.Reducer

	// Fetch.
	Fetch *ir.Fetch
}

// MatchStage builds a Match stage over block.
func MatchStage(block ir.BlockID) Stage { return Stage{Kind: StageMatch, MatchBlock: block} }

// InsertStage builds an Insert stage.
func InsertStage(statements []executor.WriteStatement) Stage {
	return Stage{Kind: StageInsert, WriteStatements: statements}
}

// DeleteStage builds a Delete stage.
func DeleteStage(statements []executor.WriteStatement) Stage {
	return Stage{Kind: StageDelete, WriteStatements: statements}
}

// UpdateStage builds an Update stage: deletes are removed first, then
// inserts are applied, against each upstream row.
func UpdateStage(deletes, inserts []executor.WriteStatement) Stage {
	return Stage{Kind: StageUpdate, UpdateDeletes: deletes, WriteStatements: inserts}
}

// PutStage builds a Put stage: statements are applied per row like an
// Insert, except that a has or links edge already in the store is not
// written again (see Put).
func PutStage(statements []executor.WriteStatement) Stage {
	return Stage{Kind: StagePut, WriteStatements: statements}
}

// SelectStage narrows each row to vars.
func SelectStage(vars []ir.VariableID) Stage { return Stage{Kind: StageSelect, Variables: vars} }

// SortStage orders rows by specs.
func SortStage(specs []executor.SortSpec) Stage { return Stage{Kind: StageSort, SortSpecs: specs} }

// OffsetStage skips the first n rows.
func OffsetStage(n uint64) Stage { return Stage{Kind: StageOffset, N: n} }

// LimitStage caps the stream at n rows.
func LimitStage(n uint64) Stage { return Stage{Kind: StageLimit, N: n} }

// ReduceStage aggregates reducers per groupBy key (nil groupBy means a
// single ungrouped aggregate over every row).
func ReduceStage(groupBy []ir.VariableID, reducers []executor.Reducer) Stage {
	return Stage{Kind: StageReduce, GroupBy: groupBy, Reducers: reducers}
}

// FetchStage projects fetch per row into a document.
func FetchStage(fetch *ir.Fetch) Stage { return Stage{Kind: StageFetch, Fetch: fetch} }

// Pipeline is a data query: a Tree shared by every Match/sub-match
// stage, and the ordered Stages run against it.
type Pipeline struct {
	Tree   *ir.Tree
	Stages []Stage
}
