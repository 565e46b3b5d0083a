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

package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/functions/metadata"

	"github.com/cardinalhq/gcputil/pkg/awaitable"
	"github.com/cardinalhq/gcputil/pkg/secrets"
	"github.com/cardinalhq/gcputil/pkg/slack"
)

const (
	DefaultProjectVar     = "_GOOGLE_PROJECT"
	DefaultTopicVar       = "_TRIGGER_TOPIC"
	DefaultWebhookURIVar  = "FAIL_ALERT_WEBHOOK_SECRET_URI"
	DefaultTriggerTimeout = 1800 * time.Second
)

// Message is the event body a Pub/Sub triggered background function
// receives. Data arrives base64 encoded and is decoded by encoding/json.
type Message struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TriggerEnv names the variables holding the function's own project and
// trigger topic.
type TriggerEnv struct {
	ProjectVar string
	TopicVar   string
}

func (e TriggerEnv) topicURI() string {
	pv, tv := e.ProjectVar, e.TopicVar
	if pv == "" {
		pv = DefaultProjectVar
	}
	if tv == "" {
		tv = DefaultTopicVar
	}
	return fmt.Sprintf("projects/%s/topics/%s", os.Getenv(pv), os.Getenv(tv))
}

// RetriggerSelf dispatches the next iteration of a Pub/Sub triggered
// function by publishing payload to its own trigger topic. It does not wait
// for the publish to be acknowledged.
func RetriggerSelf(ctx context.Context, p *Publisher, payload any, env TriggerEnv) (awaitable.Outcome[string], error) {
	slog.Info("Dispatching next worker")
	return p.Publish(ctx, env.topicURI(), payload, false)
}

// FailAlerter is told when a trigger is dropped for being too old.
type FailAlerter interface {
	SendFailAlert(ctx context.Context, now, eventTime time.Time) error
}

// TriggerOptions tune ProcessTrigger. The zero value uses DefaultTriggerTimeout
// and sends no alert.
type TriggerOptions struct {
	Timeout time.Duration
	Alerter FailAlerter
	Now     func() time.Time
}

// TriggerExpiredError means the triggering event is older than the timeout,
// which usually indicates a retry loop.
type TriggerExpiredError struct {
	EventID string
	Lapsed  time.Duration
	Timeout time.Duration
}

func (e *TriggerExpiredError) Error() string {
	return fmt.Sprintf("threshold of %s exceeded by %s", e.Timeout, e.Lapsed-e.Timeout)
}

// ProcessTrigger checks the age of the event that invoked a Pub/Sub
// triggered function and returns the message payload, or nil when there is
// none. Call it first in a retry-on-failure function and return normally on
// error so the event is not retried forever.
func ProcessTrigger(ctx context.Context, msg Message, opts TriggerOptions) ([]byte, error) {
	meta, err := metadata.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("read event metadata: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTriggerTimeout
	}
	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now().UTC()
	}

	slog.Info("Processing Pub/Sub trigger", slog.String("eventID", meta.EventID))
	lapsed := now.Sub(meta.Timestamp)
	slog.Info("Lapsed time since triggering event", slog.Float64("seconds", lapsed.Seconds()))

	if lapsed > timeout {
		expired := &TriggerExpiredError{EventID: meta.EventID, Lapsed: lapsed, Timeout: timeout}
		slog.Error("Trigger too old, exiting", slog.Any("error", expired))
		if opts.Alerter != nil {
			if err := opts.Alerter.SendFailAlert(ctx, now, meta.Timestamp); err != nil {
				slog.Error("Could not send failure alert", slog.Any("error", err))
			}
		}
		return nil, expired
	}

	if len(msg.Data) == 0 {
		return nil, nil
	}
	return msg.Data, nil
}

// SecretWebhookAlerter sends failure alerts to a Slack webhook kept in
// Secret Manager as JSON {"hook": "<url>"}. The full secret version URI is
// read from the variable named by URIVar.
type SecretWebhookAlerter struct {
	Secrets secrets.Accessor
	Slack   *slack.Client
	URIVar  string
	Env     slack.Environment
}

type webhookSecret struct {
	Hook string `json:"hook"`
}

func (a *SecretWebhookAlerter) SendFailAlert(ctx context.Context, now, eventTime time.Time) error {
	uriVar := a.URIVar
	if uriVar == "" {
		uriVar = DefaultWebhookURIVar
	}
	uri := os.Getenv(uriVar)
	if uri == "" {
		return fmt.Errorf("no webhook secret URI in %s", uriVar)
	}

	data, err := secrets.GetByURI(ctx, a.Secrets, uri)
	if err != nil {
		return fmt.Errorf("get webhook secret from %s: %w", uriVar, err)
	}
	var ws webhookSecret
	if err := json.Unmarshal(data, &ws); err != nil {
		return fmt.Errorf("decode webhook secret: %w", err)
	}
	return a.Slack.SendFailAlert(ctx, ws.Hook, now, eventTime, a.Env)
}
