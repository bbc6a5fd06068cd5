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
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/planner"
)

// DefaultCacheSize bounds how many distinct functions' annotated,
// planned form Cache keeps hot. A schema with more functions than this
// still works; the least-recently-called ones are recompiled on their
// next call instead of reusing a stale slot.
const DefaultCacheSize = 128

// Cache memoizes CompiledFunction by name so a query that calls the
// same function many times (directly, or once per row of its own
// match) only type-annotates and plans that function's body once per
// eviction window rather than once per call.
type Cache struct {
	registry *Registry
	cache    *lru.Cache[string, *CompiledFunction]
}

// NewCache builds a Cache of at most size entries over registry. A
// non-positive size falls back to DefaultCacheSize.
func NewCache(registry *Registry, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	inner, err := lru.New[string, *CompiledFunction](size)
	if err != nil {
		return nil, err
	}
	return &Cache{registry: registry, cache: inner}, nil
}

// WarmAll compiles every function in the registry up front and adds
// each to the cache, for a caller (e.g. schema commit) that wants
// definition-time compile errors surfaced immediately rather than on a
// query's first call to the function.
func (c *Cache) WarmAll(cache *concept.TypeCache, stats *planner.Stats) error {
	compiled, err := compileAll(c.registry, cache, stats)
	if err != nil {
		return err
	}
	for name, cf := range compiled {
		c.cache.Add(name, cf)
	}
	return nil
}

// Get returns name's compiled form, compiling and caching it on a
// miss. ok is false if no such function is registered.
func (c *Cache) Get(name string, cache *concept.TypeCache, stats *planner.Stats) (*CompiledFunction, bool, error) {
	if compiled, hit := c.cache.Get(name); hit {
		return compiled, true, nil
	}
	def, ok := c.registry.Lookup(name)
	if !ok {
		return nil, false, nil
	}
	compiled, err := compile(def, cache, stats)
	if err != nil {
		return nil, true, err
	}
	c.cache.Add(name, compiled)
	return compiled, true, nil
}
