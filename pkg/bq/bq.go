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

// Package bq wraps the BigQuery client: dataset and table management,
// loading newline-delimited JSON from GCS, and running queries. Load and
// query jobs can be awaited or handed back as a handle.
package bq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/gcputil/internal/gcperr"
)

// DefaultLocation is used for datasets created without a location.
const DefaultLocation = "US"

var tracer = otel.Tracer("github.com/cardinalhq/gcputil/pkg/bq")

// DatasetOptions configures CreateDataset.
type DatasetOptions struct {
	Description string
	Location    string
}

// DeleteDatasetOptions configures DeleteDataset.
type DeleteDatasetOptions struct {
	// DeleteContents removes the tables in the dataset as well. Without it a
	// non-empty dataset is not deleted.
	DeleteContents bool
	// NotFoundOK makes deleting a missing dataset a no-op.
	NotFoundOK bool
}

// TableOptions configures CreateTable.
type TableOptions struct {
	Schema bigquery.Schema
	// PartitionInterval is HOUR, DAY, MONTH or YEAR in any case. Other values
	// are ignored.
	PartitionInterval string
	// PartitionField must name a top-level DATE, DATETIME or TIMESTAMP column.
	PartitionField string
}

// TableID formats project.dataset.table.
func TableID(project, dataset, table string) string {
	return project + "." + dataset + "." + table
}

// CreateDataset creates dataset in the client's project.
func CreateDataset(ctx context.Context, client *bigquery.Client, dataset string, opts DatasetOptions) error {
	location := opts.Location
	if location == "" {
		location = DefaultLocation
	}
	datasetID := client.Project() + "." + dataset

	ctx, span := tracer.Start(ctx, "bq.CreateDataset", trace.WithAttributes(attribute.String("dataset", datasetID)))
	defer span.End()

	slog.Info("Attempting to create dataset", slog.String("dataset", datasetID))
	err := client.Dataset(dataset).Create(ctx, &bigquery.DatasetMetadata{
		Location:    location,
		Description: opts.Description,
	})
	if err != nil {
		span.RecordError(err)
		logPermissionHint(err, client.Project())
		return err
	}
	slog.Info("Dataset created", slog.String("dataset", datasetID))
	return nil
}

// DeleteDataset deletes dataset from the client's project.
func DeleteDataset(ctx context.Context, client *bigquery.Client, dataset string, opts DeleteDatasetOptions) error {
	datasetID := client.Project() + "." + dataset

	ctx, span := tracer.Start(ctx, "bq.DeleteDataset", trace.WithAttributes(attribute.String("dataset", datasetID)))
	defer span.End()

	slog.Info("Attempting to delete dataset", slog.String("dataset", datasetID))
	ds := client.Dataset(dataset)
	var err error
	if opts.DeleteContents {
		err = ds.DeleteWithContents(ctx)
	} else {
		err = ds.Delete(ctx)
	}
	if err != nil {
		if opts.NotFoundOK && gcperr.IsNotFound(err) {
			slog.Info("Dataset already absent", slog.String("dataset", datasetID))
			return nil
		}
		span.RecordError(err)
		logPermissionHint(err, client.Project())
		return err
	}
	slog.Info("Dataset deleted", slog.String("dataset", datasetID))
	return nil
}

// ParseSchema converts a JSON schema, as printed by
// `bq show --format=prettyjson project:dataset.table | jq '.schema.fields'`,
// into a bigquery.Schema. Nested RECORD fields are supported and a missing
// mode means NULLABLE.
func ParseSchema(schemaJSON []byte) (bigquery.Schema, error) {
	schema, err := bigquery.SchemaFromJSON(schemaJSON)
	if err != nil {
		return nil, fmt.Errorf("parse table schema: %w", err)
	}
	return schema, nil
}

// CreateTable creates dataset.table in the client's project.
func CreateTable(ctx context.Context, client *bigquery.Client, dataset, table string, opts TableOptions) error {
	tableID := TableID(client.Project(), dataset, table)

	ctx, span := tracer.Start(ctx, "bq.CreateTable", trace.WithAttributes(attribute.String("table", tableID)))
	defer span.End()

	slog.Info("Attempting to create table", slog.String("table", tableID))
	md := &bigquery.TableMetadata{
		Schema:           opts.Schema,
		TimePartitioning: timePartitioning(opts.PartitionInterval, opts.PartitionField),
	}
	if md.TimePartitioning != nil {
		slog.Info("Partitioning specified",
			slog.String("interval", string(md.TimePartitioning.Type)),
			slog.String("field", md.TimePartitioning.Field))
	}

	if err := client.Dataset(dataset).Table(table).Create(ctx, md); err != nil {
		span.RecordError(err)
		logPermissionHint(err, client.Project())
		return err
	}
	slog.Info("Table created", slog.String("table", tableID))
	return nil
}

// DeleteTable deletes dataset.table from the client's project.
func DeleteTable(ctx context.Context, client *bigquery.Client, dataset, table string) error {
	tableID := TableID(client.Project(), dataset, table)

	ctx, span := tracer.Start(ctx, "bq.DeleteTable", trace.WithAttributes(attribute.String("table", tableID)))
	defer span.End()

	slog.Info("Attempting to delete table", slog.String("table", tableID))
	if err := client.Dataset(dataset).Table(table).Delete(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	slog.Info("Table deleted", slog.String("table", tableID))
	return nil
}

func timePartitioning(interval, field string) *bigquery.TimePartitioning {
	if interval == "" && field == "" {
		return nil
	}
	tp := &bigquery.TimePartitioning{
		Type:  bigquery.DayPartitioningType,
		Field: field,
	}
	switch strings.ToUpper(interval) {
	case "HOUR":
		tp.Type = bigquery.HourPartitioningType
	case "DAY":
		tp.Type = bigquery.DayPartitioningType
	case "MONTH":
		tp.Type = bigquery.MonthPartitioningType
	case "YEAR":
		tp.Type = bigquery.YearPartitioningType
	}
	return tp
}

func logPermissionHint(err error, project string) {
	if !gcperr.IsPermissionDenied(err) {
		return
	}
	slog.Error("Current account does not have required BigQuery permissions",
		slog.String("project", project),
		slog.String("console", "https://console.cloud.google.com/iam-admin/iam?project="+project),
		slog.String("role", "BigQuery User"))
}
