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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/gcputil/config"
	"github.com/cardinalhq/gcputil/internal/gcpclient"
)

// env is what every subcommand works with.
type env struct {
	cfg     *config.Config
	clients *gcpclient.Manager
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if projectFlag != "" {
		cfg.Project = projectFlag
	}
	if impersonateFlag != "" {
		cfg.ImpersonateServiceAccount = impersonateFlag
	}
	return cfg, nil
}

// run sets up telemetry, loads configuration and client credentials, then
// calls fn. Clients are closed and telemetry flushed before returning.
func run(servicename string, fn func(ctx context.Context, e *env) error) error {
	doneCtx, doneFx, err := setupTelemetry(servicename)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	clients := gcpclient.NewManager(cfg.Project, cfg.Auth(),
		gcpclient.WithBigQueryLocation(cfg.BigQuery.Location))
	defer func() {
		if err := clients.Close(); err != nil {
			slog.Warn("Error closing GCP clients", slog.Any("error", err))
		}
	}()

	ctx, span := tracer.Start(doneCtx, servicename)
	defer span.End()

	start := time.Now()
	err = fn(ctx, &env{cfg: cfg, clients: clients})
	result := "ok"
	if err != nil {
		span.RecordError(err)
		result = "error"
	}
	commandDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("command", servicename),
		attribute.String("result", result),
	))
	return err
}
