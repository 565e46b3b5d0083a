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
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gcputil",
	Short: "Google Cloud convenience tools",
	Long: `Read and write Cloud Storage objects, run BigQuery jobs, publish to Pub/Sub,
read secrets and post Slack alerts using the gcputil libraries.`,
	SilenceUsage: true,
}

var (
	projectFlag     string
	impersonateFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "GCP project (overrides GCPUTIL_PROJECT)")
	rootCmd.PersistentFlags().StringVar(&impersonateFlag, "impersonate", "", "service account to impersonate")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
