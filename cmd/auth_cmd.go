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

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/gcpauth"
)

func init() {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "service account credentials",
	}
	rootCmd.AddCommand(cmd)

	var scopes []string
	tokenCmd := &cobra.Command{
		Use:   "token SERVICE_ACCOUNT",
		Short: "print an access token for an impersonated service account",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run("auth-token", func(ctx context.Context, _ *env) error {
				token, err := gcpauth.AccessToken(ctx, args[0], scopes...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.OutOrStdout(), token)
				return err
			})
		},
	}
	tokenCmd.Flags().StringSliceVar(&scopes, "scope", []string{gcpauth.DefaultScope}, "OAuth scopes to request")
	cmd.AddCommand(tokenCmd)
}
