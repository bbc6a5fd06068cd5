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
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/planner"
)

// Registry holds every non-recursive function definition known to a
// schema, keyed by name, rejecting at construction time any direct or
// mutual recursion a later call would otherwise loop on forever (the
// engine has no tabling, so recursive evaluation is out of scope; the
// failure is a definition error, not a runtime one).
type Registry struct {
	defs map[string]*ir.FunctionDefinition
}

// NewRegistry builds a Registry from every function definition visible
// to a schema, rejecting the set outright if any function calls itself
// through a direct or indirect cycle.
func NewRegistry(defs []*ir.FunctionDefinition) (*Registry, error) {
	byName := make(map[string]*ir.FunctionDefinition, len(defs))
	for _, d := range defs {
		byName[d.Signature.Name] = d
	}
	if err := checkAcyclic(byName); err != nil {
		return nil, err
	}
	return &Registry{defs: byName}, nil
}

// Lookup returns the raw definition for name, or ok=false if no such
// function is registered.
func (r *Registry) Lookup(name string) (*ir.FunctionDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// checkAcyclic walks each function's body for FunctionCallBinding
// constraints naming another registered function, and depth-first
// searches the resulting call graph for a cycle (a function, directly
// or transitively, calling itself).
func checkAcyclic(defs map[string]*ir.FunctionDefinition) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(defs))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return dberrors.New(dberrors.FunctionDefinition, "recursive function call detected: %s", cycleString(append(path, name)))
		}
		def, ok := defs[name]
		if !ok {
			// Called function is resolved elsewhere (e.g. a built-in);
			// nothing to recurse into.
			return nil
		}
		state[name] = visiting
		var err error
		callees(def).Each(func(callee string) {
			if err == nil {
				err = visit(callee, append(path, name))
			}
		})
		if err != nil {
			return err
		}
		state[name] = done
		return nil
	}

	for name := range defs {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func cycleString(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += " -> " + p
	}
	return out
}

// nameSet is a small ordered set, used so callees() is deterministic
// for a deterministic cycle-report message.
type nameSet struct {
	order []string
	seen  map[string]bool
}

func (s *nameSet) add(name string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.order = append(s.order, name)
}

func (s *nameSet) Each(fn func(string)) {
	for _, name := range s.order {
		fn(name)
	}
}

// callees collects every function name def's body calls, anywhere in
// its nested conjunctions (disjunction alternatives and negation/
// optional inner blocks are built as siblings of their wrapper under
// the same enclosing conjunction, so a plain walk over tree.Children
// already reaches them).
func callees(def *ir.FunctionDefinition) *nameSet {
	out := &nameSet{}
	var walk func(b ir.BlockID)
	walk = func(b ir.BlockID) {
		for _, c := range def.Tree.Block(b).Constraints {
			if c.Kind == ir.ConstraintFunctionCallBinding {
				out.add(c.FunctionCall.FunctionName)
			}
		}
		for _, child := range def.Tree.Children(b) {
			walk(child)
		}
	}
	walk(def.Body)
	return out
}

// compileAll compiles every definition in the registry against cache
// and stats, used by Cache.WarmAll to compile every function eagerly
// instead of lazily per call (a Cache miss compiles only the one
// function asked for).
func compileAll(r *Registry, cache *concept.TypeCache, stats *planner.Stats) (map[string]*CompiledFunction, error) {
	out := make(map[string]*CompiledFunction, len(r.defs))
	for name, def := range r.defs {
		compiled, err := compile(def, cache, stats)
		if err != nil {
			return nil, err
		}
		out[name] = compiled
	}
	return out, nil
}
