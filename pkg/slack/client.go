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

// Package slack posts messages to Slack incoming webhooks.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MaxTextLength is the longest text placed in one section block. Longer
	// text is cut and suffixed with "\n...".
	MaxTextLength = 3000 - 35

	// DefaultColor is the attachment border color when none is given.
	DefaultColor = "#000000"

	// AlertColor is used for error and failure alerts.
	AlertColor = "#ff0000"

	DefaultTimeout = 10 * time.Second
)

// ErrEmptyMessage is returned when a message has neither text nor blocks.
var ErrEmptyMessage = errors.New("either text or blocks must be set")

// WebhookError reports a non-2xx answer from Slack.
type WebhookError struct {
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("slack webhook returned %d: %s", e.StatusCode, e.Body)
}

// Client posts to Slack webhooks.
type Client struct {
	http *resty.Client
}

type clientConfig struct {
	timeout    time.Duration
	retries    int
	retryWait  time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*clientConfig)

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithRetries retries transport errors, 429 and 5xx answers up to n times,
// waiting at least wait between attempts. A zero wait keeps the default.
func WithRetries(n int, wait time.Duration) Option {
	return func(c *clientConfig) {
		c.retries = n
		if wait > 0 {
			c.retryWait = wait
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// NewClient builds a webhook client. By default it does not retry.
func NewClient(opts ...Option) *Client {
	cfg := clientConfig{timeout: DefaultTimeout, retryWait: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(&cfg)
	}

	var rc *resty.Client
	if cfg.httpClient != nil {
		rc = resty.NewWithClient(cfg.httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(cfg.timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.retries).
		SetRetryWaitTime(cfg.retryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &Client{http: rc}
}

// Post sends payload to webhook as JSON.
func (c *Client) Post(ctx context.Context, webhook string, payload any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(webhook)
	if err != nil {
		posts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "transport_error")))
		return fmt.Errorf("post to slack webhook: %w", err)
	}
	if resp.IsError() {
		posts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "rejected")))
		slog.Error("Slack rejected webhook post",
			slog.Int("status", resp.StatusCode()),
			slog.String("body", resp.String()))
		return &WebhookError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	posts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	return nil
}

var posts metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/gcputil/pkg/slack")

	var err error
	posts, err = meter.Int64Counter(
		"gcputil.slack.posts",
		metric.WithDescription("Slack webhook posts by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create slack.posts counter: %w", err))
	}
}
