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
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/secrets"
)

func init() {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "read Secret Manager secrets",
	}
	rootCmd.AddCommand(cmd)

	var (
		version string
		asJSON  bool
	)
	getCmd := &cobra.Command{
		Use:   "get NAME_OR_URI",
		Short: "print a secret version",
		Long: `Print a secret version. NAME_OR_URI is either a secret name in the configured
project or a full projects/{project}/secrets/{name}/versions/{version} URI.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run("secret-get", func(ctx context.Context, e *env) error {
				client, err := e.clients.Secrets(ctx)
				if err != nil {
					return err
				}

				uri := args[0]
				if !strings.HasPrefix(uri, "projects/") {
					uri = secrets.VersionURI(e.cfg.Project, uri, version)
				}
				data, err := secrets.GetByURI(ctx, client, uri)
				if err != nil {
					return err
				}
				if asJSON {
					var v map[string]any
					if err := json.Unmarshal(data, &v); err != nil {
						return fmt.Errorf("secret %s is not a JSON object: %w", uri, err)
					}
					return writeJSON(c.OutOrStdout(), v)
				}
				_, err = c.OutOrStdout().Write(data)
				return err
			})
		},
	}
	getCmd.Flags().StringVar(&version, "version", secrets.LatestVersion, "secret version")
	getCmd.Flags().BoolVar(&asJSON, "json", false, "decode the secret as a JSON object")
	cmd.AddCommand(getCmd)
}
