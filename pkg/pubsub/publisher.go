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

// Package pubsub publishes messages to Pub/Sub topics and helps Pub/Sub
// triggered Cloud Functions guard against endless retries.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/gcputil/internal/gcperr"
	"github.com/cardinalhq/gcputil/pkg/awaitable"
)

// ErrInvalidTopicURI is returned for topic names not shaped like
// projects/{project}/topics/{topic}.
var ErrInvalidTopicURI = errors.New("topic URI must look like projects/{project}/topics/{topic}")

// ParseTopicURI splits projects/{project}/topics/{topic}.
func ParseTopicURI(uri string) (project, topic string, err error) {
	parts := strings.Split(uri, "/")
	if len(parts) != 4 || parts[0] != "projects" || parts[2] != "topics" || parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopicURI, uri)
	}
	return parts[1], parts[3], nil
}

// Publisher publishes to any number of topics through one client. Topic
// handles are created on first use and kept until Stop.
type Publisher struct {
	sync.RWMutex
	client *pubsub.Client
	topics map[string]*pubsub.Topic
	tracer trace.Tracer
}

// NewPublisher wraps client. The caller still owns and closes client.
func NewPublisher(client *pubsub.Client) *Publisher {
	return &Publisher{
		client: client,
		topics: make(map[string]*pubsub.Topic),
		tracer: otel.Tracer("github.com/cardinalhq/gcputil/pkg/pubsub"),
	}
}

func (p *Publisher) topic(uri string) (*pubsub.Topic, error) {
	p.RLock()
	t, ok := p.topics[uri]
	p.RUnlock()
	if ok {
		return t, nil
	}

	project, id, err := ParseTopicURI(uri)
	if err != nil {
		return nil, err
	}

	p.Lock()
	defer p.Unlock()

	if t, ok = p.topics[uri]; ok {
		return t, nil
	}
	t = p.client.TopicInProject(id, project)
	p.topics[uri] = t
	return t, nil
}

// Stop flushes pending messages and stops every topic publisher.
func (p *Publisher) Stop() {
	p.Lock()
	defer p.Unlock()
	for uri, t := range p.topics {
		t.Stop()
		delete(p.topics, uri)
	}
}

// Encode turns a payload into message bytes. []byte and string are sent as
// is; anything else is JSON encoded.
func Encode(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode pubsub payload: %w", err)
		}
		return b, nil
	}
}

// PublishHandle resolves to the server-assigned message ID.
type PublishHandle struct {
	topic  string
	result *pubsub.PublishResult
}

func (h *PublishHandle) Wait(ctx context.Context) (string, error) {
	id, err := h.result.Get(ctx)
	if err != nil {
		if ctx.Err() != nil || gcperr.IsTransportOrAuth(err) {
			return "", err
		}
		published.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", h.topic),
			attribute.String("result", "failed"),
		))
		return "", awaitable.Failed("", err)
	}
	published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", h.topic),
		attribute.String("result", "ok"),
	))
	return id, nil
}

// Publish sends payload to topicURI. The executing account needs publisher
// permission on the topic. With await set the message ID is returned in
// Outcome.Value; a rejected publish becomes a *awaitable.JobError.
func (p *Publisher) Publish(ctx context.Context, topicURI string, payload any, await bool) (awaitable.Outcome[string], error) {
	return awaitable.Call(ctx, "pubsub.publish", func(ctx context.Context) (awaitable.Handle[string], error) {
		return p.submit(ctx, topicURI, payload)
	}, await)
}

func (p *Publisher) submit(ctx context.Context, topicURI string, payload any) (*PublishHandle, error) {
	data, err := Encode(payload)
	if err != nil {
		return nil, err
	}
	t, err := p.topic(topicURI)
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pubsub.Publish", trace.WithAttributes(attribute.String("topic", topicURI)))
	defer span.End()

	slog.Info("Publishing message", slog.String("topic", topicURI), slog.Int("bytes", len(data)))
	res := t.Publish(ctx, &pubsub.Message{Data: data})
	return &PublishHandle{topic: topicURI, result: res}, nil
}

// PublishBatch publishes every payload to topicURI and returns one outcome
// per payload, in order. With await set every outcome carries its message
// ID; otherwise only the handles are set.
func (p *Publisher) PublishBatch(ctx context.Context, topicURI string, payloads []any, await bool) ([]awaitable.Outcome[string], error) {
	outs := make([]awaitable.Outcome[string], len(payloads))
	for i, payload := range payloads {
		h, err := p.submit(ctx, topicURI, payload)
		if err != nil {
			return nil, err
		}
		outs[i].Handle = h
	}
	if !await {
		return outs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range outs {
		h := outs[i].Handle
		g.Go(func() error {
			out, err := awaitable.Call(gctx, "pubsub.publish", func(context.Context) (awaitable.Handle[string], error) {
				return h, nil
			}, true)
			if err != nil {
				return err
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

var published metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/gcputil/pkg/pubsub")

	var err error
	published, err = meter.Int64Counter(
		"gcputil.pubsub.published",
		metric.WithDescription("Pub/Sub publish results by topic"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create pubsub.published counter: %w", err))
	}
}
