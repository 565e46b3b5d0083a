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
	"errors"
	"log/slog"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gcputil/internal/gcperr"
	"github.com/cardinalhq/gcputil/pkg/awaitable"
	"github.com/cardinalhq/gcputil/pkg/gcs"
)

// ErrNoSchema is returned by CreateAndUpload when the request neither
// carries a schema nor asks BigQuery to work one out.
var ErrNoSchema = errors.New("no schema given and neither autodetect nor schema generation requested")

// LoadRequest describes a newline-delimited JSON blob in GCS to load into
// an existing table. The zero value appends and ignores unknown columns.
type LoadRequest struct {
	Bucket  string
	Object  string
	Dataset string
	Table   string

	// Truncate replaces the table contents instead of appending.
	Truncate bool
	// RejectUnknown fails the load when a row has columns missing from the schema.
	RejectUnknown bool
	// Autodetect asks BigQuery to infer the schema from the data.
	Autodetect bool
	Schema     bigquery.Schema
}

// SourceURI is the gs:// location being loaded.
func (r LoadRequest) SourceURI() string {
	return gcs.URI(r.Bucket, r.Object)
}

func (r LoadRequest) gcsReference() *bigquery.GCSReference {
	ref := bigquery.NewGCSReference(r.SourceURI())
	ref.SourceFormat = bigquery.JSON
	ref.AutoDetect = r.Autodetect
	ref.IgnoreUnknownValues = !r.RejectUnknown
	ref.Schema = r.Schema
	return ref
}

func (r LoadRequest) writeDisposition() bigquery.TableWriteDisposition {
	if r.Truncate {
		return bigquery.WriteTruncate
	}
	return bigquery.WriteAppend
}

// UploadGCSJSON starts a load job from GCS into the request's table. With
// await it blocks until the job finishes; otherwise the LoadJob handle is
// returned as soon as the job is accepted.
//
// The executing account needs read access to the object, edit access to the
// dataset, and the BigQuery Job User role in the client's project.
func UploadGCSJSON(ctx context.Context, client *bigquery.Client, req LoadRequest, await bool, opts ...JobOption) (awaitable.Outcome[LoadResult], error) {
	cfg := newJobConfig(opts)
	tableID := TableID(client.Project(), req.Dataset, req.Table)

	ctx, span := tracer.Start(ctx, "bq.UploadGCSJSON",
		trace.WithAttributes(
			attribute.String("source", req.SourceURI()),
			attribute.String("table", tableID),
		),
	)
	defer span.End()

	if len(req.Schema) > 0 && req.Autodetect {
		slog.Warn("Autodetect is enabled while a schema is also given; consider disabling autodetect to avoid type inference conflicts",
			slog.String("table", tableID))
	}

	out, err := awaitable.Call(ctx, "bigquery.load", func(ctx context.Context) (awaitable.Handle[LoadResult], error) {
		table := client.Dataset(req.Dataset).Table(req.Table)
		if _, err := table.Metadata(ctx); err != nil {
			return nil, err
		}

		slog.Info("Uploading to BigQuery", slog.String("source", req.SourceURI()), slog.String("table", tableID))
		loader := table.LoaderFrom(req.gcsReference())
		loader.WriteDisposition = req.writeDisposition()
		job, err := loader.Run(ctx)
		if err != nil {
			return nil, err
		}
		return &LoadJob{id: job.ID(), interval: cfg.pollInterval, status: statusOf(job)}, nil
	}, await)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	if out.Awaited {
		slog.Info("Upload to BigQuery complete",
			slog.String("source", req.SourceURI()),
			slog.Int64("rows", out.Value.OutputRows))
	}
	return out, nil
}

// CreateAndUploadRequest combines table creation with a load.
type CreateAndUploadRequest struct {
	LoadRequest

	// GenerateSchema loads the blob into a temporary table with autodetect
	// and reuses the schema BigQuery inferred.
	GenerateSchema    bool
	PartitionInterval string
	PartitionField    string
	// AlreadyExistsOK continues with the load when the table exists.
	AlreadyExistsOK bool
}

// CreateAndUpload creates the destination table and loads the blob into it.
func CreateAndUpload(ctx context.Context, client *bigquery.Client, req CreateAndUploadRequest, await bool, opts ...JobOption) (awaitable.Outcome[LoadResult], error) {
	if len(req.Schema) == 0 && !req.Autodetect && !req.GenerateSchema {
		slog.Error("Refusing to create table without a schema",
			slog.String("dataset", req.Dataset),
			slog.String("table", req.Table))
		return awaitable.Outcome[LoadResult]{}, ErrNoSchema
	}

	slog.Info("Starting create and upload", slog.String("table", TableID(client.Project(), req.Dataset, req.Table)))

	if req.GenerateSchema {
		schema, err := generateSchema(ctx, client, req.LoadRequest, opts)
		if err != nil {
			return awaitable.Outcome[LoadResult]{}, err
		}
		req.Schema = schema
	}

	err := CreateTable(ctx, client, req.Dataset, req.Table, TableOptions{
		Schema:            req.Schema,
		PartitionInterval: req.PartitionInterval,
		PartitionField:    req.PartitionField,
	})
	if err != nil {
		if !req.AlreadyExistsOK || !gcperr.IsConflict(err) {
			return awaitable.Outcome[LoadResult]{}, err
		}
		slog.Info("Table already exists, continuing with upload", slog.String("table", req.Table))
	}

	out, err := UploadGCSJSON(ctx, client, req.LoadRequest, await, opts...)
	if err != nil {
		return out, err
	}
	slog.Info("Create and upload completed", slog.String("table", req.Table))
	return out, nil
}

// generateSchema loads the blob into a throwaway table with autodetect on
// and returns the schema BigQuery settled on. The table is always removed.
func generateSchema(ctx context.Context, client *bigquery.Client, req LoadRequest, opts []JobOption) (bigquery.Schema, error) {
	temp := tempTableName()
	if err := CreateTable(ctx, client, req.Dataset, temp, TableOptions{}); err != nil {
		return nil, err
	}
	defer func() {
		if err := DeleteTable(context.WithoutCancel(ctx), client, req.Dataset, temp); err != nil {
			slog.Error("Failed to delete schema detection table",
				slog.String("table", temp),
				slog.Any("error", err))
		}
	}()

	probe := req
	probe.Table = temp
	probe.Autodetect = true
	probe.RejectUnknown = true
	probe.Schema = nil
	if _, err := UploadGCSJSON(ctx, client, probe, true, opts...); err != nil {
		return nil, err
	}

	md, err := client.Dataset(req.Dataset).Table(temp).Metadata(ctx)
	if err != nil {
		return nil, err
	}
	return md.Schema, nil
}

func tempTableName() string {
	return "tmp_autodetect_schema_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
}
