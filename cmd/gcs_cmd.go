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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/gcs"
)

func init() {
	cmd := &cobra.Command{
		Use:   "gcs",
		Short: "read and write Cloud Storage objects",
	}
	rootCmd.AddCommand(cmd)

	var readNLDJSON bool
	readCmd := &cobra.Command{
		Use:   "read BUCKET OBJECT",
		Short: "print an object to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return run("gcs-read", func(ctx context.Context, e *env) error {
				client, err := e.clients.Storage(ctx)
				if err != nil {
					return err
				}
				if readNLDJSON {
					rows, err := gcs.ReadNLDJSON(ctx, client, args[0], args[1])
					if err != nil {
						return err
					}
					return writeJSON(c.OutOrStdout(), rows)
				}
				data, err := gcs.Read(ctx, client, args[0], args[1])
				if err != nil {
					return err
				}
				_, err = c.OutOrStdout().Write(data)
				return err
			})
		},
	}
	readCmd.Flags().BoolVar(&readNLDJSON, "nldjson", false, "decode newline delimited JSON and print it as an array")
	cmd.AddCommand(readCmd)

	var (
		file         string
		contentType  string
		createBucket bool
		location     string
		asNLDJSON    bool
		addDate      bool
	)
	writeCmd := &cobra.Command{
		Use:   "write BUCKET OBJECT",
		Short: "upload a file or stdin to an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			return run("gcs-write", func(ctx context.Context, e *env) error {
				data, err := readInput(c.InOrStdin(), file)
				if err != nil {
					return err
				}
				client, err := e.clients.Storage(ctx)
				if err != nil {
					return err
				}

				var opts []gcs.WriteOption
				if contentType != "" {
					opts = append(opts, gcs.WithContentType(contentType))
				}
				if createBucket {
					loc := location
					if loc == "" {
						loc = e.cfg.Storage.Location
					}
					opts = append(opts, gcs.WithCreateBucket(e.cfg.Project, loc))
				}

				if asNLDJSON {
					var rows []map[string]any
					if err := json.Unmarshal(data, &rows); err != nil {
						return fmt.Errorf("input must be a JSON array of objects: %w", err)
					}
					_, err = gcs.WriteNLDJSON(ctx, client, args[0], args[1], rows, addDate, opts...)
					return err
				}
				_, err = gcs.Write(ctx, client, args[0], args[1], data, opts...)
				return err
			})
		},
	}
	writeCmd.Flags().StringVarP(&file, "file", "f", "", "file to upload (default stdin)")
	writeCmd.Flags().StringVar(&contentType, "content-type", "", "object content type")
	writeCmd.Flags().BoolVar(&createBucket, "create-bucket", false, "create the bucket if it does not exist")
	writeCmd.Flags().StringVar(&location, "location", "", "location for a created bucket (default storage.location)")
	writeCmd.Flags().BoolVar(&asNLDJSON, "nldjson", false, "convert a JSON array of objects to newline delimited JSON")
	writeCmd.Flags().BoolVar(&addDate, "add-date", false, "add an upload_date field to each row (with --nldjson)")
	cmd.AddCommand(writeCmd)
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
