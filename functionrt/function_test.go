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

package functionrt

import (
	"testing"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/ir"
	"github.com/stretchr/testify/require"
)

// identityDefinition builds a function name(param) whose body is empty
// (x arrives already bound from the call's argument) and whose return
// is simply x itself, streamed from the body's first (only) row.
func identityDefinition(name string, param string) *ir.FunctionDefinition {
	tree := ir.NewTree()
	x := tree.Variables().Declare(param)
	root := tree.Root()
	return &ir.FunctionDefinition{
		Signature: ir.FunctionSignature{
			Name:             name,
			Parameters:       []ir.ParameterSignature{{Name: param, Category: ir.CategoryValue}},
			ReturnCategories: []ir.Category{ir.CategoryValue},
		},
		Body:            root,
		Tree:            tree,
		ReturnKind:      ir.FunctionReturnStream,
		ReturnVariables: []ir.VariableID{x},
	}
}

// callerDefinition builds a function that calls callee(x) and streams
// the callee's result back out, used to exercise a function
// whose body itself calls another registered function.
func callerDefinition(name, callee, param string) *ir.FunctionDefinition {
	tree := ir.NewTree()
	x := tree.Variables().Declare(param)
	out := tree.Variables().Anonymous()
	root := tree.Root()
	tree.AddConstraint(root, ir.FunctionCall(callee, []ir.VariableID{x}, []ir.VariableID{out}))
	return &ir.FunctionDefinition{
		Signature: ir.FunctionSignature{
			Name:             name,
			Parameters:       []ir.ParameterSignature{{Name: param, Category: ir.CategoryValue}},
			ReturnCategories: []ir.Category{ir.CategoryValue},
		},
		Body:            root,
		Tree:            tree,
		ReturnKind:      ir.FunctionReturnStream,
		ReturnVariables: []ir.VariableID{out},
	}
}

func TestRegistryRejectsDirectRecursion(t *testing.T) {
	tree := ir.NewTree()
	x := tree.Variables().Declare("x")
	out := tree.Variables().Anonymous()
	root := tree.Root()
	tree.AddConstraint(root, ir.FunctionCall("loopy", []ir.VariableID{x}, []ir.VariableID{out}))
	def := &ir.FunctionDefinition{
		Signature:       ir.FunctionSignature{Name: "loopy", Parameters: []ir.ParameterSignature{{Name: "x", Category: ir.CategoryValue}}},
		Body:            root,
		Tree:            tree,
		ReturnKind:      ir.FunctionReturnStream,
		ReturnVariables: []ir.VariableID{out},
	}

	_, err := NewRegistry([]*ir.FunctionDefinition{def})
	require.Error(t, err)
}

func TestRegistryRejectsMutualRecursion(t *testing.T) {
	a := callerDefinition("a", "b", "x")
	b := callerDefinition("b", "a", "x")

	_, err := NewRegistry([]*ir.FunctionDefinition{a, b})
	require.Error(t, err)
}

func TestRegistryAcceptsAcyclicCallChain(t *testing.T) {
	leaf := identityDefinition("leaf", "x")
	caller := callerDefinition("caller", "leaf", "x")

	reg, err := NewRegistry([]*ir.FunctionDefinition{leaf, caller})
	require.NoError(t, err)

	_, ok := reg.Lookup("caller")
	require.True(t, ok)
	_, ok = reg.Lookup("missing")
	require.False(t, ok)
}

func TestCacheCompilesOnMissAndReusesOnHit(t *testing.T) {
	def := identityDefinition("double", "x")
	reg, err := NewRegistry([]*ir.FunctionDefinition{def})
	require.NoError(t, err)

	cache, err := NewCache(reg, 0)
	require.NoError(t, err)

	first, ok, err := cache.Get("double", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, first)

	second, ok, err := cache.Get("double", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, first, second)

	_, ok, err = cache.Get("nonexistent", nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheWarmAllCompilesEveryFunction(t *testing.T) {
	leaf := identityDefinition("leaf", "x")
	caller := callerDefinition("caller", "leaf", "x")
	reg, err := NewRegistry([]*ir.FunctionDefinition{leaf, caller})
	require.NoError(t, err)

	cache, err := NewCache(reg, 0)
	require.NoError(t, err)
	require.NoError(t, cache.WarmAll(nil, nil))

	compiled, ok, err := cache.Get("leaf", nil, nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, compiled)
}

func TestRuntimeCallStreamReturnsArgumentBack(t *testing.T) {
	def := identityDefinition("double", "x")
	reg, err := NewRegistry([]*ir.FunctionDefinition{def})
	require.NoError(t, err)
	cache, err := NewCache(reg, 0)
	require.NoError(t, err)

	rt := NewRuntime(cache, nil, nil, nil, nil)
	out, err := rt.Call("double", []annotation.Value{annotation.LongValue(21)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(21), out[0].Long)
}

func TestRuntimeCallUnknownFunction(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)
	cache, err := NewCache(reg, 0)
	require.NoError(t, err)

	rt := NewRuntime(cache, nil, nil, nil, nil)
	_, err = rt.Call("missing", nil)
	require.Error(t, err)
}

func TestRuntimeCallArgumentCountMismatch(t *testing.T) {
	def := identityDefinition("double", "x")
	reg, err := NewRegistry([]*ir.FunctionDefinition{def})
	require.NoError(t, err)
	cache, err := NewCache(reg, 0)
	require.NoError(t, err)

	rt := NewRuntime(cache, nil, nil, nil, nil)
	_, err = rt.Call("double", []annotation.Value{annotation.LongValue(1), annotation.LongValue(2)})
	require.Error(t, err)
}

func TestCompileRejectsUnboundParameter(t *testing.T) {
	tree := ir.NewTree()
	// x is declared in the signature but never referenced in the body.
	def := &ir.FunctionDefinition{
		Signature: ir.FunctionSignature{
			Name:       "broken",
			Parameters: []ir.ParameterSignature{{Name: "x", Category: ir.CategoryValue}},
		},
		Body: tree.Root(),
		Tree: tree,
	}

	_, err := compile(def, nil, nil)
	require.Error(t, err)
}

func TestRuntimeCallChainsThroughAnotherFunction(t *testing.T) {
	leaf := identityDefinition("leaf", "x")
	caller := callerDefinition("caller", "leaf", "x")
	reg, err := NewRegistry([]*ir.FunctionDefinition{leaf, caller})
	require.NoError(t, err)
	cache, err := NewCache(reg, 0)
	require.NoError(t, err)

	rt := NewRuntime(cache, nil, nil, nil, nil)
	out, err := rt.Call("caller", []annotation.Value{annotation.LongValue(7)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(7), out[0].Long)
}
