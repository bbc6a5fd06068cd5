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

package executor

import (
	"sort"

	"github.com/gradb/gradb/ir"
)

// SortSpec orders rows by a variable, ascending or descending.
type SortSpec struct {
	Variable   ir.VariableID
	Descending bool
}

// Sort buffers the entire upstream and re-emits it ordered by specs,
// since a stable total order cannot be produced while still streaming.
func Sort(upstream RowIterator, specs []SortSpec) (RowIterator, error) {
	rows, err := drain(upstream)
	if err != nil {
		return nil, err
	}
	sortRowsBy(rows, specs)
	return sliceIterator(rows), nil
}

func sortRowsBy(rows []Row, specs []SortSpec) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range specs {
			if c := CompareRows(rows[i], rows[j], []ir.VariableID{s.Variable}); c != 0 {
				return (c < 0) != s.Descending
			}
		}
		return false
	})
}

// Offset streams upstream, dropping the first n rows.
func Offset(upstream RowIterator, n uint64) RowIterator {
	skipped := uint64(0)
	next := func() (Row, bool, error) {
		for skipped < n {
			_, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			skipped++
		}
		return upstream.Next()
	}
	return newFuncIterator(next)
}

// Limit streams upstream, stopping after n rows.
func Limit(upstream RowIterator, n uint64) RowIterator {
	emitted := uint64(0)
	next := func() (Row, bool, error) {
		if emitted >= n {
			return nil, false, nil
		}
		row, ok, err := upstream.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		emitted++
		return row, true, nil
	}
	return newFuncIterator(next)
}

// Select streams upstream, projecting each row down to vars.
func Select(upstream RowIterator, vars []ir.VariableID) RowIterator {
	next := func() (Row, bool, error) {
		row, ok, err := upstream.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		out := make(Row, len(vars))
		for _, v := range vars {
			if b, bound := row[v]; bound {
				out[v] = b
			}
		}
		return out, true, nil
	}
	return newFuncIterator(next)
}

// Require streams upstream, dropping any row where one of vars is
// unbound.
func Require(upstream RowIterator, vars []ir.VariableID) RowIterator {
	next := func() (Row, bool, error) {
		for {
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			complete := true
			for _, v := range vars {
				if _, bound := row[v]; !bound {
					complete = false
					break
				}
			}
			if complete {
				return row, true, nil
			}
		}
	}
	return newFuncIterator(next)
}
