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
	"errors"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/slack"
)

func init() {
	cmd := &cobra.Command{
		Use:   "slack",
		Short: "post messages to a Slack webhook",
	}
	rootCmd.AddCommand(cmd)

	var (
		webhook string
		msg     slack.Message
		asError bool
	)
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "send a message (webhook defaults to slack.webhook)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run("slack-send", func(ctx context.Context, e *env) error {
				hook := webhook
				if hook == "" {
					hook = e.cfg.Slack.Webhook
				}
				if hook == "" {
					return errors.New("no webhook: pass --webhook or set GCPUTIL_SLACK_WEBHOOK")
				}

				client := slack.NewClient(
					slack.WithTimeout(e.cfg.Slack.Timeout),
					slack.WithRetries(e.cfg.Slack.Retries, 0),
				)
				if asError {
					return client.SendError(ctx, hook, msg.Text, slack.Environment{ProjectVar: e.cfg.Trigger.ProjectEnv})
				}
				return client.SendMessage(ctx, hook, msg)
			})
		},
	}
	f := sendCmd.Flags()
	f.StringVar(&webhook, "webhook", "", "Slack incoming webhook URL")
	f.StringVar(&msg.Title, "title", "", "message title")
	f.StringVar(&msg.Text, "text", "", "message text")
	f.StringVar(&msg.Color, "color", "", "attachment color (default #000000)")
	f.StringSliceVar(&msg.Blocks, "block", nil, "section text, repeatable (ignored when --text is set)")
	f.BoolVar(&asError, "error", false, "format --text as a Cloud Function error alert")
	cmd.AddCommand(sendCmd)
}
