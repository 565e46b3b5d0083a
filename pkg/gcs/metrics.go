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

package gcs

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	readErrors  metric.Int64Counter
	readCount   metric.Int64Counter
	readBytes   metric.Int64Counter
	writeErrors metric.Int64Counter
	writeCount  metric.Int64Counter
	writeBytes  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/gcputil/pkg/gcs")

	var err error
	readErrors, err = meter.Int64Counter(
		"gcputil.gcs.read.errors",
		metric.WithDescription("Number of GCS object read errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.errors counter: %w", err))
	}

	readCount, err = meter.Int64Counter(
		"gcputil.gcs.read.count",
		metric.WithDescription("Number of GCS objects read"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.count counter: %w", err))
	}

	readBytes, err = meter.Int64Counter(
		"gcputil.gcs.read.bytes",
		metric.WithDescription("Bytes read from GCS"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create read.bytes counter: %w", err))
	}

	writeErrors, err = meter.Int64Counter(
		"gcputil.gcs.write.errors",
		metric.WithDescription("Number of GCS object write errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create write.errors counter: %w", err))
	}

	writeCount, err = meter.Int64Counter(
		"gcputil.gcs.write.count",
		metric.WithDescription("Number of GCS objects written"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create write.count counter: %w", err))
	}

	writeBytes, err = meter.Int64Counter(
		"gcputil.gcs.write.bytes",
		metric.WithDescription("Bytes written to GCS"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create write.bytes counter: %w", err))
	}
}
