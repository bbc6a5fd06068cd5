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
	"math"
	"sort"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/ir"
)

// ReducerKind enumerates the aggregate functions a reduce stage can
// apply to one variable within a group.
type ReducerKind uint8

const (
	ReduceCount ReducerKind = iota
	ReduceSum
	ReduceMin
	ReduceMax
	ReduceMean
	ReduceMedian
	ReduceStd
)

// Reducer is one column of a reduce stage's output: ReduceCount
// ignores Variable (it counts rows), every other kind aggregates the
// values bound to Variable across a group.
type Reducer struct {
	Kind     ReducerKind
	Variable ir.VariableID
	Output   ir.VariableID
}

// Reduce groups upstream rows by the tuple of groupBy variables (in
// first-seen order, determinism) and emits one output row per group
// carrying each reducer's result plus the group key. With no groupBy
// variables, the whole stream is a single group, matching an ungrouped
// aggregate query.
func Reduce(ctx *Context, upstream RowIterator, groupBy []ir.VariableID, reducers []Reducer) (RowIterator, error) {
	rows, err := drain(upstream)
	if err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string][]Row)
	keys := make(map[string]Row)
	for _, row := range rows {
		k := groupKey(row, groupBy)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
			key := make(Row, len(groupBy))
			for _, v := range groupBy {
				key[v] = row[v]
			}
			keys[k] = key
		}
		groups[k] = append(groups[k], row)
	}
	if len(order) == 0 && len(groupBy) == 0 {
		// An empty input still yields one ungrouped result row (e.g.
		// count() of zero matches is 0, not no rows).
		order = []string{""}
		groups[""] = nil
		keys[""] = Row{}
	}

	out := make([]Row, 0, len(order))
	for _, k := range order {
		result := keys[k].Clone()
		for _, r := range reducers {
			val, err := applyReducer(ctx, r, groups[k])
			if err != nil {
				return nil, err
			}
			result = result.With(r.Output, ValueBinding(val))
		}
		out = append(out, result)
	}
	return sliceIterator(out), nil
}

func groupKey(row Row, groupBy []ir.VariableID) string {
	var b []byte
	for _, v := range groupBy {
		b = append(b, row[v].SortKey()...)
		b = append(b, 0)
	}
	return string(b)
}

func applyReducer(ctx *Context, r Reducer, rows []Row) (annotation.Value, error) {
	if r.Kind == ReduceCount {
		return annotation.LongValue(int64(len(rows))), nil
	}

	values := make([]float64, 0, len(rows))
	allLong := true
	for _, row := range rows {
		v, err := bindingToValue(ctx.Cache, row[r.Variable])
		if err != nil {
			return annotation.Value{}, err
		}
		if !v.IsNumeric() {
			return annotation.Value{}, dberrors.New(dberrors.ExpressionCompile, "cannot aggregate a non-numeric value")
		}
		if v.Kind != annotation.ValueLong {
			allLong = false
		}
		values = append(values, asDoubleValue(v))
	}

	switch r.Kind {
	case ReduceSum:
		return reduceSum(values, allLong), nil
	case ReduceMin:
		return reduceExtreme(values, allLong, false)
	case ReduceMax:
		return reduceExtreme(values, allLong, true)
	case ReduceMean:
		return annotation.DoubleValue(mean(values)), nil
	case ReduceMedian:
		return annotation.DoubleValue(median(values)), nil
	case ReduceStd:
		return annotation.DoubleValue(stddev(values)), nil
	default:
		return annotation.Value{}, dberrors.New(dberrors.Unexpected, "unknown reducer kind %d", r.Kind)
	}
}

func reduceSum(values []float64, allLong bool) annotation.Value {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if allLong {
		return annotation.LongValue(int64(sum))
	}
	return annotation.DoubleValue(sum)
}

func reduceExtreme(values []float64, allLong, max bool) (annotation.Value, error) {
	if len(values) == 0 {
		return annotation.Value{}, dberrors.New(dberrors.ExpressionCompile, "cannot take min/max of an empty group")
	}
	best := values[0]
	for _, v := range values[1:] {
		if (max && v > best) || (!max && v < best) {
			best = v
		}
	}
	if allLong {
		return annotation.LongValue(int64(best)), nil
	}
	return annotation.DoubleValue(best), nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}
