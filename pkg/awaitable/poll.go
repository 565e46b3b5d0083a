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
	"context"
	"time"
)

// Poll calls check right away and then once per interval until it reports
// done, returns an error, or ctx ends. There is no built-in deadline.
func Poll[R any](ctx context.Context, interval time.Duration, check func(context.Context) (bool, R, error)) (R, error) {
	var zero R
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, res, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}
