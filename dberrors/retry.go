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
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions configures RetryOnConflict's backoff schedule.
type RetryOptions struct {
	// InitialInterval is the delay before the first retry. Zero selects
	// backoff's default (500ms).
	InitialInterval time.Duration
	// MaxElapsedTime bounds total time spent retrying, including the
	// first attempt. Zero selects backoff's default (15m).
	MaxElapsedTime time.Duration
}

// RetryOnConflict runs op, retrying with exponential backoff as long as
// it keeps failing with an Isolation(Conflict) error — the only class a
// caller can safely resolve by simply re-running the transaction body
// against a fresher snapshot. Any other error stops the retry loop
// immediately and is returned as-is.
func RetryOnConflict(ctx context.Context, opts RetryOptions, op func() error) error {
	b := backoff.NewExponentialBackOff()
	if opts.InitialInterval > 0 {
		b.InitialInterval = opts.InitialInterval
	}
	if opts.MaxElapsedTime > 0 {
		b.MaxElapsedTime = opts.MaxElapsedTime
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	return backoff.Retry(wrapped, backoff.WithContext(b, ctx))
}
