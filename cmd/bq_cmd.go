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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/awaitable"
	"github.com/cardinalhq/gcputil/pkg/bq"
)

func init() {
	cmd := &cobra.Command{
		Use:   "bq",
		Short: "run BigQuery jobs and manage datasets and tables",
	}
	rootCmd.AddCommand(cmd)

	cmd.AddCommand(bqQueryCmd())
	cmd.AddCommand(bqLoadCmd())
	cmd.AddCommand(bqCreateTableCmd())
	cmd.AddCommand(bqDeleteTableCmd())
	cmd.AddCommand(bqCreateDatasetCmd())
	cmd.AddCommand(bqDeleteDatasetCmd())
}

func readSchema(path string) (bigquery.Schema, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return bq.ParseSchema(data)
}

func bqQueryCmd() *cobra.Command {
	var noWait bool
	c := &cobra.Command{
		Use:   "query SQL",
		Short: "run a query and print its rows as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run("bq-query", func(ctx context.Context, e *env) error {
				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				out, err := bq.Query(ctx, client, args[0], !noWait, bq.WithPollInterval(e.cfg.BigQuery.PollInterval))
				if err != nil {
					return err
				}
				if !out.Awaited {
					_, err = fmt.Fprintln(c.OutOrStdout(), out.Handle.(*bq.QueryJob).ID())
					return err
				}
				return writeJSON(c.OutOrStdout(), out.Value)
			})
		},
	}
	c.Flags().BoolVar(&noWait, "no-wait", false, "print the job ID instead of waiting for rows")
	return c
}

func bqLoadCmd() *cobra.Command {
	var (
		req        bq.CreateAndUploadRequest
		schemaFile string
		create     bool
		noWait     bool
	)
	c := &cobra.Command{
		Use:   "load",
		Short: "load newline delimited JSON from Cloud Storage into a table",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return run("bq-load", func(ctx context.Context, e *env) error {
				schema, err := readSchema(schemaFile)
				if err != nil {
					return err
				}
				req.Schema = schema

				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				poll := bq.WithPollInterval(e.cfg.BigQuery.PollInterval)
				var out awaitable.Outcome[bq.LoadResult]
				if create {
					out, err = bq.CreateAndUpload(ctx, client, req, !noWait, poll)
				} else {
					out, err = bq.UploadGCSJSON(ctx, client, req.LoadRequest, !noWait, poll)
				}
				if err != nil {
					return err
				}
				if out.Awaited {
					slog.Info("Load job done",
						slog.String("jobID", out.Value.JobID),
						slog.Int64("outputRows", out.Value.OutputRows))
					return writeJSON(c.OutOrStdout(), out.Value)
				}
				_, err = fmt.Fprintln(c.OutOrStdout(), out.Handle.(*bq.LoadJob).ID())
				return err
			})
		},
	}
	f := c.Flags()
	f.StringVar(&req.Bucket, "bucket", "", "source bucket")
	f.StringVar(&req.Object, "object", "", "source object")
	f.StringVar(&req.Dataset, "dataset", "", "destination dataset")
	f.StringVar(&req.Table, "table", "", "destination table")
	f.BoolVar(&req.Truncate, "truncate", false, "replace the table contents instead of appending")
	f.BoolVar(&req.RejectUnknown, "reject-unknown", false, "fail on fields missing from the schema")
	f.BoolVar(&req.Autodetect, "autodetect", false, "let BigQuery infer the schema")
	f.StringVar(&schemaFile, "schema", "", "JSON schema file")
	f.BoolVar(&create, "create", false, "create the table before loading")
	f.BoolVar(&req.GenerateSchema, "generate-schema", false, "infer the table schema from the data (with --create)")
	f.StringVar(&req.PartitionInterval, "partition-interval", "", "time partitioning: HOUR, DAY, MONTH or YEAR (with --create)")
	f.StringVar(&req.PartitionField, "partition-field", "", "time partitioning column (with --create)")
	f.BoolVar(&req.AlreadyExistsOK, "exists-ok", false, "load into the table if it already exists (with --create)")
	f.BoolVar(&noWait, "no-wait", false, "print the job ID without waiting for completion")
	for _, name := range []string{"bucket", "object", "dataset", "table"} {
		_ = c.MarkFlagRequired(name)
	}
	return c
}

func bqCreateTableCmd() *cobra.Command {
	var (
		opts       bq.TableOptions
		schemaFile string
	)
	c := &cobra.Command{
		Use:   "create-table DATASET TABLE",
		Short: "create a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return run("bq-create-table", func(ctx context.Context, e *env) error {
				schema, err := readSchema(schemaFile)
				if err != nil {
					return err
				}
				opts.Schema = schema
				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				return bq.CreateTable(ctx, client, args[0], args[1], opts)
			})
		},
	}
	c.Flags().StringVar(&schemaFile, "schema", "", "JSON schema file")
	c.Flags().StringVar(&opts.PartitionInterval, "partition-interval", "", "time partitioning: HOUR, DAY, MONTH or YEAR")
	c.Flags().StringVar(&opts.PartitionField, "partition-field", "", "time partitioning column")
	return c
}

func bqDeleteTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-table DATASET TABLE",
		Short: "delete a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return run("bq-delete-table", func(ctx context.Context, e *env) error {
				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				return bq.DeleteTable(ctx, client, args[0], args[1])
			})
		},
	}
}

func bqCreateDatasetCmd() *cobra.Command {
	var opts bq.DatasetOptions
	c := &cobra.Command{
		Use:   "create-dataset DATASET",
		Short: "create a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run("bq-create-dataset", func(ctx context.Context, e *env) error {
				if opts.Location == "" {
					opts.Location = e.cfg.BigQuery.Location
				}
				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				return bq.CreateDataset(ctx, client, args[0], opts)
			})
		},
	}
	c.Flags().StringVar(&opts.Description, "description", "", "dataset description")
	c.Flags().StringVar(&opts.Location, "location", "", "dataset location (default bigquery.location)")
	return c
}

func bqDeleteDatasetCmd() *cobra.Command {
	var opts bq.DeleteDatasetOptions
	c := &cobra.Command{
		Use:   "delete-dataset DATASET",
		Short: "delete a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run("bq-delete-dataset", func(ctx context.Context, e *env) error {
				client, err := e.clients.BigQuery(ctx)
				if err != nil {
					return err
				}
				return bq.DeleteDataset(ctx, client, args[0], opts)
			})
		},
	}
	c.Flags().BoolVar(&opts.DeleteContents, "delete-contents", false, "delete the tables in the dataset too")
	c.Flags().BoolVar(&opts.NotFoundOK, "not-found-ok", false, "succeed if the dataset does not exist")
	return c
}
