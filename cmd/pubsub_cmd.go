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
	"time"

	"cloud.google.com/go/functions/metadata"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/gcputil/pkg/pubsub"
	"github.com/cardinalhq/gcputil/pkg/slack"
)

func init() {
	cmd := &cobra.Command{
		Use:   "pubsub",
		Short: "publish Pub/Sub messages",
	}
	rootCmd.AddCommand(cmd)

	var noWait bool
	publishCmd := &cobra.Command{
		Use:   "publish TOPIC_URI [PAYLOAD...]",
		Short: "publish each payload (or stdin) to projects/{project}/topics/{topic}",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run("pubsub-publish", func(ctx context.Context, e *env) error {
				payloads := make([]any, 0, len(args)-1)
				for _, a := range args[1:] {
					payloads = append(payloads, a)
				}
				if len(payloads) == 0 {
					data, err := readInput(c.InOrStdin(), "")
					if err != nil {
						return err
					}
					payloads = append(payloads, data)
				}

				client, err := e.clients.PubSub(ctx)
				if err != nil {
					return err
				}
				p := pubsub.NewPublisher(client)
				defer p.Stop()

				outs, err := p.PublishBatch(ctx, args[0], payloads, !noWait)
				if err != nil {
					return err
				}
				for _, out := range outs {
					if !out.Awaited {
						continue
					}
					if _, err := fmt.Fprintln(c.OutOrStdout(), out.Value); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	publishCmd.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for message IDs")
	cmd.AddCommand(publishCmd)

	retriggerCmd := &cobra.Command{
		Use:   "retrigger PAYLOAD",
		Short: "publish to the topic named by the trigger environment variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run("pubsub-retrigger", func(ctx context.Context, e *env) error {
				client, err := e.clients.PubSub(ctx)
				if err != nil {
					return err
				}
				p := pubsub.NewPublisher(client)
				defer p.Stop()

				_, err = pubsub.RetriggerSelf(ctx, p, args[0], e.cfg.TriggerEnv())
				return err
			})
		},
	}
	cmd.AddCommand(retriggerCmd)

	var (
		eventID   string
		eventTime string
		alert     bool
	)
	processCmd := &cobra.Command{
		Use:   "process-trigger [PAYLOAD]",
		Short: "check an event's age against trigger.timeout and print its payload",
		Long: `Run the same age check a Pub/Sub triggered function performs on start. The event
timestamp is RFC 3339. With --alert an expired event sends the failure alert to the
webhook stored in the secret named by FAIL_ALERT_WEBHOOK_SECRET_URI.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return run("pubsub-process-trigger", func(ctx context.Context, e *env) error {
				ts, err := time.Parse(time.RFC3339, eventTime)
				if err != nil {
					return fmt.Errorf("invalid --timestamp: %w", err)
				}
				var msg pubsub.Message
				if len(args) == 1 {
					msg.Data = []byte(args[0])
				}

				var alerter pubsub.FailAlerter
				if alert {
					secretsClient, err := e.clients.Secrets(ctx)
					if err != nil {
						return err
					}
					alerter = &pubsub.SecretWebhookAlerter{
						Secrets: secretsClient,
						Slack:   slack.NewClient(slack.WithTimeout(e.cfg.Slack.Timeout), slack.WithRetries(e.cfg.Slack.Retries, 0)),
						Env:     slack.Environment{ProjectVar: e.cfg.Trigger.ProjectEnv},
					}
				}

				ctx = metadata.NewContext(ctx, &metadata.Metadata{EventID: eventID, Timestamp: ts})
				payload, err := pubsub.ProcessTrigger(ctx, msg, e.cfg.TriggerOptions(alerter))
				if err != nil {
					return err
				}
				_, err = c.OutOrStdout().Write(payload)
				return err
			})
		},
	}
	processCmd.Flags().StringVar(&eventID, "event-id", "manual", "event ID to report")
	processCmd.Flags().StringVar(&eventTime, "timestamp", "", "event timestamp (RFC 3339)")
	processCmd.Flags().BoolVar(&alert, "alert", false, "send the failure alert when the event is too old")
	_ = processCmd.MarkFlagRequired("timestamp")
	cmd.AddCommand(processCmd)
}
