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

// Package functionrt resolves and executes non-recursive user-defined
// functions called from a match pattern's FunctionCallBinding or
// expression constraints: it type-annotates and plans each function
// body once, caches the compiled form, and adapts a function call into
// the executor's single-valued CallFunction seam.
package functionrt

import (
	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/planner"
)

// CompiledFunction is a function definition's executable form: its
// body block already type-annotated and planned, and its formal
// parameters resolved to the body tree's own variable ids so a call's
// argument values can be seeded directly into a Row.
type CompiledFunction struct {
	Definition *ir.FunctionDefinition
	Parameters []ir.VariableID
	Plan       *planner.Plan

	// ReduceOutputs holds one fresh variable id per entry of
	// Definition.ReturnReducers, allocated once at compile time from
	// the body tree's own registry so a Reduce call's synthetic output
	// bindings can never collide with a variable the body already uses.
	// Empty when Definition.ReturnKind is FunctionReturnStream.
	ReduceOutputs []ir.VariableID
}

// compile type-annotates and plans def's body, resolving each declared
// parameter name to the variable id the body actually uses. A
// parameter name absent from the body's registry is a definition
// error: the signature promises an argument the body never binds.
func compile(def *ir.FunctionDefinition, cache *concept.TypeCache, stats *planner.Stats) (*CompiledFunction, error) {
	params := make([]ir.VariableID, len(def.Signature.Parameters))
	for i, p := range def.Signature.Parameters {
		id, ok := def.Tree.Variables().Lookup(p.Name)
		if !ok {
			return nil, dberrors.New(dberrors.FunctionDefinition, "function %s: parameter %s is never bound in its body", def.Signature.Name, p.Name)
		}
		params[i] = id
	}

	annotations := annotation.Infer(def.Tree, def.Body, cache)
	plan := planner.Order(def.Tree, def.Body, annotations, stats)

	var reduceOutputs []ir.VariableID
	if def.ReturnKind == ir.FunctionReturnReduce {
		reduceOutputs = make([]ir.VariableID, len(def.ReturnReducers))
		for i := range def.ReturnReducers {
			reduceOutputs[i] = def.Tree.Variables().Anonymous()
		}
	}

	return &CompiledFunction{Definition: def, Parameters: params, Plan: plan, ReduceOutputs: reduceOutputs}, nil
}
