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

package bq

import (
	"context"
	"log/slog"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gcputil/pkg/awaitable"
)

// Query runs sql in the client's project. With await it returns every row;
// otherwise only the QueryJob handle is returned.
//
// The account needs Job Create in the project and Data Viewer on the
// datasets the query reads.
func Query(ctx context.Context, client *bigquery.Client, sql string, await bool, opts ...JobOption) (awaitable.Outcome[[]Row], error) {
	cfg := newJobConfig(opts)

	ctx, span := tracer.Start(ctx, "bq.Query", trace.WithAttributes(attribute.Bool("await", await)))
	defer span.End()

	slog.Debug("Sending query", slog.String("sql", sql))

	out, err := awaitable.Call(ctx, "bigquery.query", func(ctx context.Context) (awaitable.Handle[[]Row], error) {
		slog.Info("Querying BigQuery", slog.String("project", client.Project()))
		job, err := client.Query(sql).Run(ctx)
		if err != nil {
			return nil, err
		}
		return newQueryJob(job, cfg), nil
	}, await)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	if out.Awaited {
		span.SetAttributes(attribute.Int("rows", len(out.Value)))
	}
	return out, nil
}

func newQueryJob(job *bigquery.Job, cfg jobConfig) *QueryJob {
	return &QueryJob{
		id:       job.ID(),
		interval: cfg.pollInterval,
		status:   statusOf(job),
		read:     readRows(job),
	}
}
