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

package awaitable

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	waitDuration metric.Float64Histogram
	outcomes     metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/gcputil/pkg/awaitable")

	var err error
	waitDuration, err = meter.Float64Histogram(
		"gcputil.job.wait.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time spent blocked waiting for a remote operation to finish"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create job.wait.duration histogram: %w", err))
	}

	outcomes, err = meter.Int64Counter(
		"gcputil.job.outcomes",
		metric.WithDescription("Remote operations by how the call ended"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create job.outcomes counter: %w", err))
	}
}
