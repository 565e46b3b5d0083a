// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package awaitable lets a wrapper hand the caller either the handle of a
// remote asynchronous operation or the result obtained by waiting on it.
package awaitable

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/cardinalhq/gcputil/pkg/awaitable")

// Handle is a reference to a remote operation that may still be running.
//
// Wait blocks until the operation finishes. A terminal failure reported by
// the provider must be returned as a *JobError (see Failed); any other error
// is treated as a transport or caller error and passed through untouched.
type Handle[R any] interface {
	Wait(ctx context.Context) (R, error)
}

// Outcome is what Call hands back. Value is only meaningful when Awaited is true.
type Outcome[R any] struct {
	Handle  Handle[R]
	Value   R
	Awaited bool
}

// Call submits an operation and, when await is set, blocks until it completes.
//
// Errors from submit are returned as-is regardless of await. When await is
// false the handle is returned without ever being waited on.
func Call[R any](ctx context.Context, op string, submit func(context.Context) (Handle[R], error), await bool) (Outcome[R], error) {
	var out Outcome[R]

	h, err := submit(ctx)
	if err != nil {
		return out, err
	}
	out.Handle = h

	if !await {
		slog.Debug("Not waiting for operation result", slog.String("op", op))
		outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", "submitted"),
		))
		return out, nil
	}

	ctx, span := tracer.Start(ctx, "awaitable.wait", trace.WithAttributes(attribute.String("op", op)))
	defer span.End()

	start := time.Now()
	value, err := h.Wait(ctx)
	waitDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("op", op)))
	if err != nil {
		span.RecordError(err)
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			if jobErr.Op == "" {
				jobErr.Op = op
			}
			slog.Error("Remote operation failed",
				slog.String("op", op),
				slog.String("jobID", jobErr.JobID),
				slog.String("message", jobErr.Message))
			outcomes.Add(ctx, 1, metric.WithAttributes(
				attribute.String("op", op),
				attribute.String("outcome", "failed"),
			))
			return out, err
		}
		outcomes.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", "wait_error"),
		))
		return out, err
	}

	outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", "completed"),
	))
	out.Value = value
	out.Awaited = true
	return out, nil
}
