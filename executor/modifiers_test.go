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
	"testing"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/ir"
	"github.com/stretchr/testify/require"
)

func longRows(v ir.VariableID, values ...int64) []Row {
	rows := make([]Row, len(values))
	for i, n := range values {
		rows[i] = Row{v: ValueBinding(annotation.LongValue(n))}
	}
	return rows
}

func drainLongs(t *testing.T, it RowIterator, v ir.VariableID) []int64 {
	t.Helper()
	rows, err := drain(it)
	require.NoError(t, err)
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r[v].Value.Long
	}
	return out
}

func TestSortOrdersAscendingThenDescending(t *testing.T) {
	vars := ir.NewVariableRegistry()
	v := vars.Declare("v")
	rows := longRows(v, 3, 1, 2)

	asc, err := Sort(sliceIterator(rows), []SortSpec{{Variable: v}})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, drainLongs(t, asc, v))

	desc, err := Sort(sliceIterator(rows), []SortSpec{{Variable: v, Descending: true}})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2, 1}, drainLongs(t, desc, v))
}

func TestOffsetAndLimit(t *testing.T) {
	vars := ir.NewVariableRegistry()
	v := vars.Declare("v")
	rows := longRows(v, 1, 2, 3, 4, 5)

	offset := Offset(sliceIterator(rows), 2)
	require.Equal(t, []int64{3, 4, 5}, drainLongs(t, offset, v))

	limit := Limit(sliceIterator(rows), 2)
	require.Equal(t, []int64{1, 2}, drainLongs(t, limit, v))
}

func TestSelectProjectsOnlyNamedVariables(t *testing.T) {
	vars := ir.NewVariableRegistry()
	a := vars.Declare("a")
	b := vars.Declare("b")
	rows := []Row{{a: ValueBinding(annotation.LongValue(1)), b: ValueBinding(annotation.LongValue(2))}}

	out, err := drain(Select(sliceIterator(rows), []ir.VariableID{a}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	_, hasA := out[0][a]
	_, hasB := out[0][b]
	require.True(t, hasA)
	require.False(t, hasB)
}

func TestRequireDropsRowsMissingAVariable(t *testing.T) {
	vars := ir.NewVariableRegistry()
	a := vars.Declare("a")
	b := vars.Declare("b")
	complete := Row{a: ValueBinding(annotation.LongValue(1)), b: ValueBinding(annotation.LongValue(2))}
	partial := Row{a: ValueBinding(annotation.LongValue(1))}

	out, err := drain(Require(sliceIterator([]Row{complete, partial}), []ir.VariableID{a, b}))
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, complete, out[0])
}
