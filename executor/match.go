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

// Package executor implements the pull-based match/write pipeline
// driven by a planner.Plan: per-step constraint expansion, negation/
// optional/disjunction sub-plans, modifiers, reducers and write
// stages, all composed behind a single RowIterator contract.
package executor

import (
	"bytes"

	"github.com/gradb/gradb/annotation"
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/ir"
	"github.com/gradb/gradb/kv"
	"github.com/gradb/gradb/mvcc"
	"github.com/gradb/gradb/planner"
)

// Context carries everything a match or write stage needs to resolve
// constraints against storage and schema for the lifetime of one
// executing query.
type Context struct {
	Tree      *ir.Tree
	Snapshot  *mvcc.Snapshot
	Cache     *concept.TypeCache
	Functions CallFunction
	Interrupt *ExecutionInterrupt
}

// Match runs plan starting from seed (typically an empty Row for a
// top-level match; a single outer row when plan is a sub-plan) and
// returns every row it produces, including its negation/optional/
// disjunction children.
func Match(ctx *Context, plan *planner.Plan, seed Row) (RowIterator, error) {
	var cur RowIterator = sliceIterator([]Row{seed})
	for _, step := range plan.Steps {
		next := applyStep(ctx, step, cur)
		cur = next
	}
	return applyChildren(ctx, plan.Children, cur)
}

// applyStep flat-maps one planned step over every row upstream
// produces: Check steps filter, BoundFrom/Unbounded steps expand a row
// into zero or more downstream rows via a storage scan or literal
// binding.
func applyStep(ctx *Context, step planner.Step, upstream RowIterator) RowIterator {
	var pending []Row
	var idx int
	next := func() (Row, bool, error) {
		for {
			if idx < len(pending) {
				r := pending[idx]
				idx++
				return r, true, nil
			}
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			if err := ctx.Interrupt.CheckRow(); err != nil {
				return nil, false, err
			}
			out, err := expandStep(ctx, step, row)
			if err != nil {
				return nil, false, err
			}
			pending, idx = out, 0
		}
	}
	return newFuncIterator(next)
}

func expandStep(ctx *Context, step planner.Step, row Row) ([]Row, error) {
	c := step.Constraint
	switch c.Kind {
	case ir.ConstraintTypeConstant:
		return expandTypeConstant(row, c.TypeConstant)
	case ir.ConstraintIsa:
		return expandIsa(ctx, row, c.Isa)
	case ir.ConstraintHas:
		return expandHas(ctx, row, c.Has)
	case ir.ConstraintLinks:
		return expandLinks(ctx, row, c.Links)
	case ir.ConstraintSub:
		return expandSub(ctx, row, c.Sub)
	case ir.ConstraintComparator:
		return expandComparator(ctx, row, c.Comparator)
	case ir.ConstraintFunctionCallBinding:
		return expandFunctionCall(ctx, row, c.FunctionCall)
	case ir.ConstraintExpressionBinding:
		return expandExpression(ctx, row, c.Expression)
	default:
		return nil, dberrors.New(dberrors.Unexpected, "unknown constraint kind %d", c.Kind)
	}
}

func expandTypeConstant(row Row, c *ir.TypeConstantConstraint) ([]Row, error) {
	if b, bound := row[c.Var]; bound {
		if b.Kind != BindingType || b.TypeID != c.TypeID {
			return nil, nil
		}
		return []Row{row}, nil
	}
	return []Row{row.With(c.Var, TypeBinding(c.TypeID))}, nil
}

// expandIsa handles `$var isa $typeVar`: typeVar is almost always
// already narrowed to a single concrete type by a TypeConstant, so the
// common path is BoundFrom(dependent=var) scanning every instance of
// typeVar's type and its subtypes (isa is transitive).
func expandIsa(ctx *Context, row Row, c *ir.IsaConstraint) ([]Row, error) {
	typeBinding, typeBound := row[c.TypeVar]
	varBinding, varBound := row[c.Var]

	switch {
	case typeBound && varBound:
		for _, t := range ctx.Cache.Subtypes(typeBinding.TypeID) {
			if t == varBinding.TypeID {
				return []Row{row}, nil
			}
		}
		return nil, nil

	case typeBound && !varBound:
		var out []Row
		for _, t := range ctx.Cache.Subtypes(typeBinding.TypeID) {
			rows, err := scanAllInstances(ctx, row, c.Var, t)
			if err != nil {
				return nil, err
			}
			out = append(out, rows...)
		}
		return out, nil

	case !typeBound && varBound:
		return []Row{row.With(c.TypeVar, TypeBinding(varBinding.TypeID))}, nil

	default:
		var out []Row
		for _, t := range ctx.Cache.All() {
			rows, err := scanAllInstances(ctx, row, c.Var, t.ID)
			if err != nil {
				return nil, err
			}
			for i := range rows {
				rows[i] = rows[i].With(c.TypeVar, TypeBinding(t.ID))
			}
			out = append(out, rows...)
		}
		return out, nil
	}
}

func scanAllInstances(ctx *Context, row Row, v ir.VariableID, typeID encoding.TypeID) ([]Row, error) {
	next, err := scanTypeInstances(ctx.Snapshot, ctx.Cache, typeID, ctx.Interrupt)
	if err != nil {
		return nil, err
	}
	var out []Row
	for {
		b, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row.With(v, b))
	}
}

func expandHas(ctx *Context, row Row, c *ir.HasConstraint) ([]Row, error) {
	owner, ownerBound := row[c.Owner]
	attr, attrBound := row[c.Attr]

	switch {
	case ownerBound && attrBound:
		key := encoding.EncodeEdge(encoding.EdgeHas, owner.SortKey(), attr.SortKey())
		_, ok, err := ctx.Snapshot.Get(kv.KeyspaceEdges, key)
		if err != nil || !ok {
			return nil, err
		}
		return []Row{row}, nil

	case ownerBound && !attrBound:
		next, err := scanHasForward(ctx.Snapshot, owner, ctx.Interrupt)
		if err != nil {
			return nil, err
		}
		return collectBound(row, c.Attr, next)

	case !ownerBound && attrBound:
		next, err := scanHasReverse(ctx.Snapshot, attr, ctx.Interrupt)
		if err != nil {
			return nil, err
		}
		return collectBound(row, c.Owner, next)

	default:
		return expandHasUnbounded(ctx, row, c)
	}
}

func collectBound(row Row, v ir.VariableID, next func() (Binding, bool, error)) ([]Row, error) {
	var out []Row
	for {
		b, ok, err := next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row.With(v, b))
	}
}

// expandHasUnbounded scans every EdgeHas edge in the store: a fallback
// path taken only when a query has neither side of a `has` constraint
// bound by anything else, which the planner's heuristic ordering
// avoids whenever it can.
func expandHasUnbounded(ctx *Context, row Row, c *ir.HasConstraint) ([]Row, error) {
	prefix := []byte{byte(encoding.EdgeHas)}
	iter, err := ctx.Snapshot.IterateRange(kv.KeyspaceEdges, kv.PrefixRange(prefix))
	if err != nil {
		return nil, err
	}
	var out []Row
	for {
		if err := ctx.Interrupt.CheckBatch(); err != nil {
			return nil, err
		}
		key, _, ok, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		ownerVertex, attrVertex, err := encoding.SplitEdge(key, encoding.ObjectVertexLength, len(key)-1-encoding.ObjectVertexLength)
		if err != nil {
			return nil, err
		}
		ownerBinding, _, err := decodeObjectBinding(ownerVertex)
		if err != nil {
			return nil, err
		}
		tid, value, err := encoding.DecodeAttributeVertex(attrVertex)
		if err != nil {
			return nil, err
		}
		out = append(out, row.With(c.Owner, ownerBinding).With(c.Attr, AttributeBinding(tid, append([]byte{}, value...))))
	}
}

func expandSub(ctx *Context, row Row, c *ir.SubConstraint) ([]Row, error) {
	subBinding, subBound := row[c.Sub]
	superBinding, superBound := row[c.Super]

	switch {
	case subBound && superBound:
		for _, t := range ctx.Cache.Subtypes(superBinding.TypeID) {
			if t == subBinding.TypeID {
				return []Row{row}, nil
			}
		}
		return nil, nil

	case !subBound && superBound:
		var out []Row
		for _, t := range ctx.Cache.Subtypes(superBinding.TypeID) {
			out = append(out, row.With(c.Sub, TypeBinding(t)))
		}
		return out, nil

	case subBound && !superBound:
		var out []Row
		for _, t := range ctx.Cache.Supertypes(subBinding.TypeID) {
			out = append(out, row.With(c.Super, TypeBinding(t)))
		}
		return out, nil

	default:
		var out []Row
		for _, t := range ctx.Cache.All() {
			for _, super := range ctx.Cache.Supertypes(t.ID) {
				out = append(out, row.With(c.Sub, TypeBinding(t.ID)).With(c.Super, TypeBinding(super)))
			}
		}
		return out, nil
	}
}

func expandComparator(ctx *Context, row Row, c *ir.ComparatorConstraint) ([]Row, error) {
	lhs, err := bindingToValue(ctx.Cache, row[c.LHS])
	if err != nil {
		return nil, err
	}
	rhs, err := bindingToValue(ctx.Cache, row[c.RHS])
	if err != nil {
		return nil, err
	}
	ok, err := compareValues(c.Op, lhs, rhs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []Row{row}, nil
}

func compareValues(op ir.ComparatorOp, lhs, rhs annotation.Value) (bool, error) {
	if op == ir.ComparatorContains {
		if lhs.Kind != annotation.ValueString || rhs.Kind != annotation.ValueString {
			return false, dberrors.New(dberrors.ExpressionCompile, "contains requires two strings")
		}
		return bytes.Contains([]byte(lhs.Str), []byte(rhs.Str)), nil
	}
	cmp, err := compareScalar(lhs, rhs)
	if err != nil {
		return false, err
	}
	switch op {
	case ir.ComparatorEQ:
		return cmp == 0, nil
	case ir.ComparatorNEQ:
		return cmp != 0, nil
	case ir.ComparatorLT:
		return cmp < 0, nil
	case ir.ComparatorLTE:
		return cmp <= 0, nil
	case ir.ComparatorGT:
		return cmp > 0, nil
	case ir.ComparatorGTE:
		return cmp >= 0, nil
	default:
		return false, dberrors.New(dberrors.Unexpected, "unknown comparator op %d", op)
	}
}

// compareScalar orders two values, promoting Long to Double on a mixed
// numeric comparison the same way annotation.Eval promotes operands
// for arithmetic.
func compareScalar(lhs, rhs annotation.Value) (int, error) {
	if lhs.Kind == annotation.ValueString && rhs.Kind == annotation.ValueString {
		return bytes.Compare([]byte(lhs.Str), []byte(rhs.Str)), nil
	}
	if lhs.IsNumeric() && rhs.IsNumeric() {
		if lhs.Kind == annotation.ValueLong && rhs.Kind == annotation.ValueLong {
			switch {
			case lhs.Long < rhs.Long:
				return -1, nil
			case lhs.Long > rhs.Long:
				return 1, nil
			default:
				return 0, nil
			}
		}
		l, r := asDoubleValue(lhs), asDoubleValue(rhs)
		switch {
		case l < r:
			return -1, nil
		case l > r:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, dberrors.New(dberrors.ExpressionCompile, "cannot compare values of kind %d and %d", lhs.Kind, rhs.Kind)
}

func asDoubleValue(v annotation.Value) float64 {
	switch v.Kind {
	case annotation.ValueDouble:
		return v.Double
	case annotation.ValueLong:
		return float64(v.Long)
	default:
		return 0
	}
}

func expandFunctionCall(ctx *Context, row Row, c *ir.FunctionCallBinding) ([]Row, error) {
	if ctx.Functions == nil {
		return nil, dberrors.New(dberrors.ExpressionCompile, "no function runtime configured to resolve %s", c.FunctionName)
	}
	args := make([]annotation.Value, len(c.Arguments))
	for i, v := range c.Arguments {
		val, err := bindingToValue(ctx.Cache, row[v])
		if err != nil {
			return nil, err
		}
		args[i] = val
	}
	results, err := ctx.Functions(c.FunctionName, args)
	if err != nil {
		return nil, err
	}
	if len(results) != len(c.Outputs) {
		return nil, dberrors.New(dberrors.ExpressionCompile, "function %s returned %d values, expected %d", c.FunctionName, len(results), len(c.Outputs))
	}
	out := row
	for i, output := range c.Outputs {
		out = out.With(output, ValueBinding(results[i]))
	}
	return []Row{out}, nil
}

func expandExpression(ctx *Context, row Row, c *ir.ExpressionBinding) ([]Row, error) {
	prog, err := annotation.Compile(c.Expression)
	if err != nil {
		return nil, err
	}
	bindings, err := rowToValueBindings(ctx.Cache, row)
	if err != nil {
		return nil, err
	}
	value, err := annotation.Eval(prog, bindings, singleValuedCaller(ctx.Functions))
	if err != nil {
		return nil, err
	}
	return []Row{row.With(c.Output, ValueBinding(value))}, nil
}

// applyChildren evaluates every negation/optional/disjunction child of
// a plan against each row upstream produces: a negation drops a row with
// any inner match, an optional passes a row through unchanged when its
// inner match is empty, and the alternatives sharing one GroupID are
// unioned together before being combined with the row they extend.
func applyChildren(ctx *Context, children []planner.SubPlan, upstream RowIterator) (RowIterator, error) {
	if len(children) == 0 {
		return upstream, nil
	}

	negations, optionals, groups := partitionChildren(children)

	cur := upstream
	for _, neg := range negations {
		cur = filterNegation(ctx, neg, cur)
	}
	for _, opt := range optionals {
		cur = applyOptional(ctx, opt, cur)
	}
	for _, group := range groups {
		cur = applyDisjunction(ctx, group, cur)
	}
	return cur, nil
}

func partitionChildren(children []planner.SubPlan) (negations, optionals []planner.SubPlan, groups [][]planner.SubPlan) {
	byGroup := make(map[int][]planner.SubPlan)
	var order []int
	for _, c := range children {
		switch c.Kind {
		case planner.SubPlanNegation:
			negations = append(negations, c)
		case planner.SubPlanOptional:
			optionals = append(optionals, c)
		case planner.SubPlanDisjunctionAlternative:
			if _, seen := byGroup[c.GroupID]; !seen {
				order = append(order, c.GroupID)
			}
			byGroup[c.GroupID] = append(byGroup[c.GroupID], c)
		}
	}
	for _, g := range order {
		groups = append(groups, byGroup[g])
	}
	return negations, optionals, groups
}

func filterNegation(ctx *Context, sub planner.SubPlan, upstream RowIterator) RowIterator {
	next := func() (Row, bool, error) {
		for {
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			if err := ctx.Interrupt.CheckRow(); err != nil {
				return nil, false, err
			}
			inner, err := Match(ctx, &planner.Plan{Steps: sub.Steps, Children: sub.Children}, row)
			if err != nil {
				return nil, false, err
			}
			_, found, err := inner.Next()
			if err != nil {
				return nil, false, err
			}
			if !found {
				return row, true, nil
			}
		}
	}
	return newFuncIterator(next)
}

func applyOptional(ctx *Context, sub planner.SubPlan, upstream RowIterator) RowIterator {
	var pending []Row
	var idx int
	next := func() (Row, bool, error) {
		for {
			if idx < len(pending) {
				r := pending[idx]
				idx++
				return r, true, nil
			}
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			if err := ctx.Interrupt.CheckRow(); err != nil {
				return nil, false, err
			}
			inner, err := Match(ctx, &planner.Plan{Steps: sub.Steps, Children: sub.Children}, row)
			if err != nil {
				return nil, false, err
			}
			rows, err := drain(inner)
			if err != nil {
				return nil, false, err
			}
			if len(rows) == 0 {
				rows = []Row{row}
			}
			pending, idx = rows, 0
		}
	}
	return newFuncIterator(next)
}

func applyDisjunction(ctx *Context, alternatives []planner.SubPlan, upstream RowIterator) RowIterator {
	var pending []Row
	var idx int
	next := func() (Row, bool, error) {
		for {
			if idx < len(pending) {
				r := pending[idx]
				idx++
				return r, true, nil
			}
			row, ok, err := upstream.Next()
			if err != nil || !ok {
				return nil, false, err
			}
			if err := ctx.Interrupt.CheckRow(); err != nil {
				return nil, false, err
			}
			var rows []Row
			for _, alt := range alternatives {
				inner, err := Match(ctx, &planner.Plan{Steps: alt.Steps, Children: alt.Children}, row)
				if err != nil {
					return nil, false, err
				}
				altRows, err := drain(inner)
				if err != nil {
					return nil, false, err
				}
				rows = append(rows, altRows...)
			}
			pending, idx = rows, 0
		}
	}
	return newFuncIterator(next)
}
