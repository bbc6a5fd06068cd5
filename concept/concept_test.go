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

package concept

import (
	"testing"

	"github.com/gradb/gradb/dberrors"
	"github.com/gradb/gradb/encoding"
	"github.com/gradb/gradb/gradbcfg"
	"github.com/gradb/gradb/internal/testutil"
	"github.com/gradb/gradb/mvcc"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *mvcc.Manager {
	return testutil.NewManager(t)
}

// buildSchema defines person (entity) owning name (string attribute),
// and employment (relation) relating employer/employee roles, the
// schema used across S1/S2-style scenarios.
func buildSchema(t *testing.T, mgr *mvcc.Manager) *TypeCache {
	t.Helper()
	snap, err := mgr.Open(gradbcfg.TransactionSchema, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)

	tm := NewTypeManager(snap)
	person, err := tm.CreateType(KindEntityType, encoding.NewLabel("person"))
	require.NoError(t, err)
	name, err := tm.CreateType(KindAttributeType, encoding.NewLabel("name"))
	require.NoError(t, err)
	tm.SetValueType(name, encoding.ValueTypeString)
	require.NoError(t, tm.SetOwns(person, name, Unbounded))

	employment, err := tm.CreateType(KindRelationType, encoding.NewLabel("employment"))
	require.NoError(t, err)
	employer, err := tm.CreateType(KindRoleType, encoding.NewLabel("employer"))
	require.NoError(t, err)
	employee, err := tm.CreateType(KindRoleType, encoding.NewLabel("employee"))
	require.NoError(t, err)
	require.NoError(t, tm.SetPlays(person, employer, Cardinality{Min: 0, Max: 1}))
	require.NoError(t, tm.SetPlays(person, employee, Cardinality{Min: 0, Max: 1}))
	_ = employment

	seq, err := snap.Commit()
	require.NoError(t, err)

	reader, err := mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	cache, err := BuildTypeCache(reader, seq)
	require.NoError(t, err)
	reader.Rollback()
	return cache
}

func TestTypeCacheResolvesLabelsAndOwnership(t *testing.T) {
	mgr := newTestManager(t)
	cache := buildSchema(t, mgr)

	person, ok := cache.ByLabel(encoding.NewLabel("person"))
	require.True(t, ok)
	name, ok := cache.ByLabel(encoding.NewLabel("name"))
	require.True(t, ok)

	card, ok := person.Owns[name.ID]
	require.True(t, ok)
	require.Equal(t, Unbounded, card)
}

func TestCreateEntityRejectsAbstractType(t *testing.T) {
	mgr := newTestManager(t)

	snap, err := mgr.Open(gradbcfg.TransactionSchema, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	tm := NewTypeManager(snap)
	abstractPerson, err := tm.CreateType(KindEntityType, encoding.NewLabel("abstract-person"))
	require.NoError(t, err)
	tm.SetAbstract(abstractPerson, true)
	seq, err := snap.Commit()
	require.NoError(t, err)

	reader, err := mgr.Open(gradbcfg.TransactionRead, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	cache, err := BuildTypeCache(reader, seq)
	require.NoError(t, err)
	reader.Rollback()

	writer, err := mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	things := NewThingManager(writer, cache, encoding.NewThingIDGenerator())
	_, err = things.CreateEntity(abstractPerson.ID)
	require.Error(t, err)
	require.Equal(t, dberrors.SchemaValidation, dberrors.CodeOf(err))
}

func TestPutAttributeDedupesByTypeAndValue(t *testing.T) {
	mgr := newTestManager(t)
	cache := buildSchema(t, mgr)
	name, ok := cache.ByLabel(encoding.NewLabel("name"))
	require.True(t, ok)

	writer, err := mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	things := NewThingManager(writer, cache, encoding.NewThingIDGenerator())

	a1, err := things.PutAttribute(name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	a2, err := things.PutAttribute(name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	require.Equal(t, a1, a2)
}

func TestCreateHasAndLinksEdgesCommit(t *testing.T) {
	mgr := newTestManager(t)
	cache := buildSchema(t, mgr)
	person, _ := cache.ByLabel(encoding.NewLabel("person"))
	name, _ := cache.ByLabel(encoding.NewLabel("name"))
	employer, _ := cache.ByLabel(encoding.NewLabel("employer"))
	employee, _ := cache.ByLabel(encoding.NewLabel("employee"))
	employment, _ := cache.ByLabel(encoding.NewLabel("employment"))

	writer, err := mgr.Open(gradbcfg.TransactionWrite, gradbcfg.DefaultTransactionOptions())
	require.NoError(t, err)
	thingIDs := encoding.NewThingIDGenerator()
	things := NewThingManager(writer, cache, thingIDs)

	alice, err := things.CreateEntity(person.ID)
	require.NoError(t, err)
	bob, err := things.CreateEntity(person.ID)
	require.NoError(t, err)
	aliceName, err := things.PutAttribute(name.ID, encoding.EncodeString("Alice"))
	require.NoError(t, err)
	things.CreateHasEdge(alice, aliceName)

	job, err := things.CreateRelation(employment.ID)
	require.NoError(t, err)
	things.CreateLinksEdge(job, employer.ID, bob)
	things.CreateLinksEdge(job, employee.ID, alice)

	require.NoError(t, things.CheckUniqueness(aliceName, alice))

	_, err = writer.Commit()
	require.NoError(t, err)
}
