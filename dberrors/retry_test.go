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

package dberrors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryOnConflictRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	opts := RetryOptions{InitialInterval: time.Millisecond, MaxElapsedTime: time.Second}
	err := RetryOnConflict(context.Background(), opts, func() error {
		attempts++
		if attempts < 4 {
			return WithConflictKey([]byte("k"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 4, attempts)
}

func TestRetryOnConflictStopsOnNonConflictError(t *testing.T) {
	attempts := 0
	err := RetryOnConflict(context.Background(), RetryOptions{}, func() error {
		attempts++
		return New(SchemaValidation, "not a conflict")
	})
	require.Error(t, err)
	require.Equal(t, SchemaValidation, CodeOf(err))
	require.Equal(t, 1, attempts)
}

func TestRetryOnConflictGivesUpAfterMaxElapsedTime(t *testing.T) {
	attempts := 0
	opts := RetryOptions{InitialInterval: time.Millisecond, MaxElapsedTime: 20 * time.Millisecond}
	err := RetryOnConflict(context.Background(), opts, func() error {
		attempts++
		return WithConflictKey([]byte("k"))
	})
	require.Error(t, err)
	require.True(t, IsConflict(err))
	require.Greater(t, attempts, 0)
}
