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

package gcpclient

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/pubsub"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"

	"github.com/cardinalhq/gcputil/pkg/gcpauth"
)

// Manager creates Google Cloud clients on first use and reuses them until Close.
type Manager struct {
	sync.RWMutex
	project    string
	bqLocation string
	auth       gcpauth.Config
	extra      []option.ClientOption
	tracer     trace.Tracer

	storage  *storage.Client
	bigquery *bigquery.Client
	pubsub   *pubsub.Client
	secrets  *secretmanager.Client
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithBigQueryLocation sets the default location for BigQuery jobs.
func WithBigQueryLocation(loc string) ManagerOption {
	return func(m *Manager) {
		m.bqLocation = loc
	}
}

// WithClientOptions adds options passed to every client constructor.
func WithClientOptions(opts ...option.ClientOption) ManagerOption {
	return func(m *Manager) {
		m.extra = append(m.extra, opts...)
	}
}

// NewManager creates a client manager for project using auth for credentials.
func NewManager(project string, auth gcpauth.Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		project: project,
		auth:    auth,
		tracer:  otel.Tracer("github.com/cardinalhq/gcputil/internal/gcpclient"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Project is the default project for clients that need one.
func (m *Manager) Project() string {
	return m.project
}

// getOrCreate returns *slot, creating it under the write lock if unset.
func getOrCreate[T any](ctx context.Context, m *Manager, name string, slot **T, create func(context.Context, []option.ClientOption) (*T, error)) (*T, error) {
	m.RLock()
	client := *slot
	m.RUnlock()
	if client != nil {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()

	// Double-check after acquiring write lock
	if *slot != nil {
		return *slot, nil
	}

	ctx, span := m.tracer.Start(ctx, "gcpclient.create."+name)
	defer span.End()

	opts, err := gcpauth.ClientOptions(ctx, m.auth)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	opts = append(opts, m.extra...)

	client, err = create(ctx, opts)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("creating GCP %s client: %w", name, err)
	}
	*slot = client
	return client, nil
}

func (m *Manager) Storage(ctx context.Context) (*storage.Client, error) {
	return getOrCreate(ctx, m, "storage", &m.storage, func(ctx context.Context, opts []option.ClientOption) (*storage.Client, error) {
		return storage.NewClient(ctx, opts...)
	})
}

func (m *Manager) BigQuery(ctx context.Context) (*bigquery.Client, error) {
	return getOrCreate(ctx, m, "bigquery", &m.bigquery, func(ctx context.Context, opts []option.ClientOption) (*bigquery.Client, error) {
		c, err := bigquery.NewClient(ctx, m.project, opts...)
		if err != nil {
			return nil, err
		}
		c.Location = m.bqLocation
		return c, nil
	})
}

func (m *Manager) PubSub(ctx context.Context) (*pubsub.Client, error) {
	return getOrCreate(ctx, m, "pubsub", &m.pubsub, func(ctx context.Context, opts []option.ClientOption) (*pubsub.Client, error) {
		return pubsub.NewClient(ctx, m.project, opts...)
	})
}

func (m *Manager) Secrets(ctx context.Context) (*secretmanager.Client, error) {
	return getOrCreate(ctx, m, "secretmanager", &m.secrets, func(ctx context.Context, opts []option.ClientOption) (*secretmanager.Client, error) {
		return secretmanager.NewClient(ctx, opts...)
	})
}

// Close closes every client created so far.
func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()

	var result *multierror.Error
	if m.storage != nil {
		result = multierror.Append(result, m.storage.Close())
		m.storage = nil
	}
	if m.bigquery != nil {
		result = multierror.Append(result, m.bigquery.Close())
		m.bigquery = nil
	}
	if m.pubsub != nil {
		result = multierror.Append(result, m.pubsub.Close())
		m.pubsub = nil
	}
	if m.secrets != nil {
		result = multierror.Append(result, m.secrets.Close())
		m.secrets = nil
	}
	return result.ErrorOrNil()
}
