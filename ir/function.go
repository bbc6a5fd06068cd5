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

package ir

// ParameterSignature declares one formal parameter of a user-defined
// function.
type ParameterSignature struct {
	Name     string
	Category Category
}

// FunctionSignature is the declared shape of a non-recursive
// user-defined function.
type FunctionSignature struct {
	Name             string
	Parameters       []ParameterSignature
	ReturnCategories []Category
	// Recursive is always false for a signature this engine will plan
	// and execute; a function that calls itself (directly or through a
	// cycle) is rejected at definition time, never here.
	Recursive bool
}

// FunctionReturnKind distinguishes a function whose answer is the
// first row its body produces from one whose answer is an aggregate
// over every row the body produces.
type FunctionReturnKind uint8

const (
	// FunctionReturnStream reads ReturnVariables off the body's first
	// produced row.
	FunctionReturnStream FunctionReturnKind = iota
	// FunctionReturnReduce aggregates ReturnReducers across every row
	// the body produces, same as a top-level reduce stage.
	FunctionReturnReduce
)

// FunctionReduceKind mirrors the executor's reducer kinds without
// introducing a dependency on the executor package from ir.
type FunctionReduceKind uint8

const (
	FunctionReduceCount FunctionReduceKind = iota
	FunctionReduceSum
	FunctionReduceMin
	FunctionReduceMax
	FunctionReduceMean
	FunctionReduceMedian
	FunctionReduceStd
)

// FunctionReducer is one aggregated output of a FunctionReturnReduce
// function body.
type FunctionReducer struct {
	Kind     FunctionReduceKind
	Variable VariableID
}

// FunctionDefinition pairs a signature with the body block (always a
// Conjunction) that computes its return row stream, plus how that
// stream becomes the call's return tuple.
type FunctionDefinition struct {
	Signature FunctionSignature
	Body      BlockID
	Tree      *Tree

	ReturnKind FunctionReturnKind
	// ReturnVariables names the body variables read off the first
	// produced row, in call-return order, for FunctionReturnStream.
	ReturnVariables []VariableID
	// ReturnReducers computes one aggregate per entry, in call-return
	// order, for FunctionReturnReduce.
	ReturnReducers []FunctionReducer
}
