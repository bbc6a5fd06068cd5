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

package query

import (
	"github.com/gradb/gradb/concept"
	"github.com/gradb/gradb/ir"
)

// SchemaOperationKind distinguishes the three schema-mutation forms a
// query language exposes. With no parser in scope, a SchemaOperation's
// Apply closure stands in for the already-resolved AST a real define/
// redefine/undefine statement would compile to; tests build these the
// same way they build an ir.Tree fixture, by hand.
type SchemaOperationKind uint8

const (
	SchemaDefine SchemaOperationKind = iota
	SchemaRedefine
	SchemaUndefine
)

// SchemaOperation is one schema-transaction body: Apply runs against
// the schema snapshot's TypeManager and returns an error if the
// mutation is rejected (duplicate label, invalid supertype, and so on
// surface from TypeManager itself).
type SchemaOperation struct {
	Kind  SchemaOperationKind
	Apply func(*concept.TypeManager) error

	// Functions is the complete set of function definitions in effect
	// once this operation commits. With no parser to track incremental
	// defines against a stored body of function text, a schema
	// transaction that touches functions supplies the whole resulting
	// set, the same way Apply supplies the whole resulting type
	// mutation rather than a diff. Leave nil for a schema operation
	// that does not touch functions; the manager then keeps whatever
	// set is already registered.
	Functions []*ir.FunctionDefinition
}

// Query is the top-level union of a single schema mutation or a data
// pipeline. Nothing in this package executes a Query value: a caller
// opens the transaction itself and passes Schema to
// Transaction.ExecuteSchema or Pipeline to Transaction.Execute.
type Query struct {
	Schema   *SchemaOperation
	Pipeline *Pipeline
}

// writes reports whether p contains any write stage; Transaction.Execute
// rejects such a pipeline on a TransactionRead transaction.
func (p *Pipeline) writes() bool {
	for _, s := range p.Stages {
		switch s.Kind {
		case StageInsert, StageDelete, StageUpdate, StagePut:
			return true
		}
	}
	return false
}
