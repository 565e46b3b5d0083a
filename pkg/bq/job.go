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

package bq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/cardinalhq/gcputil/pkg/awaitable"
)

// DefaultPollInterval is how often an awaited job's status is checked.
const DefaultPollInterval = time.Second

type jobConfig struct {
	pollInterval time.Duration
}

// JobOption adjusts how jobs are awaited.
type JobOption func(*jobConfig)

// WithPollInterval sets how often job status is polled while awaiting.
func WithPollInterval(d time.Duration) JobOption {
	return func(c *jobConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func newJobConfig(opts []JobOption) jobConfig {
	cfg := jobConfig{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// jobStatus is the part of bigquery.JobStatus the handles look at.
type jobStatus struct {
	done  bool
	err   error
	errs  []*bigquery.Error
	stats *bigquery.JobStatistics
}

type statusFunc func(context.Context) (jobStatus, error)

func statusOf(job *bigquery.Job) statusFunc {
	return func(ctx context.Context) (jobStatus, error) {
		st, err := job.Status(ctx)
		if err != nil {
			return jobStatus{}, err
		}
		return jobStatus{
			done:  st.Done(),
			err:   st.Err(),
			errs:  st.Errors,
			stats: st.Statistics,
		}, nil
	}
}

// waitJob polls until the job is done. A job that ends with an error is
// reported as *awaitable.JobError; errors fetching the status are returned as-is.
func waitJob(ctx context.Context, jobID string, interval time.Duration, status statusFunc) (*bigquery.JobStatistics, error) {
	return awaitable.Poll(ctx, interval, func(ctx context.Context) (bool, *bigquery.JobStatistics, error) {
		st, err := status(ctx)
		if err != nil {
			return false, nil, err
		}
		if !st.done {
			return false, nil, nil
		}
		if st.err != nil {
			for _, e := range st.errs {
				if e == nil {
					continue
				}
				slog.Error("BigQuery job error",
					slog.String("jobID", jobID),
					slog.String("reason", e.Reason),
					slog.String("location", e.Location),
					slog.String("message", e.Message))
			}
			return true, nil, awaitable.Failed(jobID, st.err)
		}
		return true, st.stats, nil
	})
}

// LoadResult summarizes a finished load job.
type LoadResult struct {
	JobID          string
	InputFiles     int64
	InputFileBytes int64
	OutputRows     int64
	OutputBytes    int64
}

// LoadJob is the handle of a submitted load job.
type LoadJob struct {
	id       string
	interval time.Duration
	status   statusFunc
}

var _ awaitable.Handle[LoadResult] = (*LoadJob)(nil)

// ID returns the BigQuery job ID.
func (j *LoadJob) ID() string {
	return j.id
}

// Wait blocks until the load job finishes.
func (j *LoadJob) Wait(ctx context.Context) (LoadResult, error) {
	stats, err := waitJob(ctx, j.id, j.interval, j.status)
	if err != nil {
		return LoadResult{}, err
	}
	res := LoadResult{JobID: j.id}
	if stats != nil {
		if ls, ok := stats.Details.(*bigquery.LoadStatistics); ok && ls != nil {
			res.InputFiles = ls.InputFiles
			res.InputFileBytes = ls.InputFileBytes
			res.OutputRows = ls.OutputRows
			res.OutputBytes = ls.OutputBytes
		}
	}
	return res, nil
}

// Row is one query result row keyed by column name.
type Row = map[string]bigquery.Value

// QueryJob is the handle of a submitted query job.
type QueryJob struct {
	id       string
	interval time.Duration
	status   statusFunc
	read     func(context.Context) ([]Row, error)
}

var _ awaitable.Handle[[]Row] = (*QueryJob)(nil)

// ID returns the BigQuery job ID.
func (j *QueryJob) ID() string {
	return j.id
}

// Wait blocks until the query finishes and returns every result row.
func (j *QueryJob) Wait(ctx context.Context) ([]Row, error) {
	if _, err := waitJob(ctx, j.id, j.interval, j.status); err != nil {
		return nil, err
	}
	slog.Info("Iterating over result rows", slog.String("jobID", j.id))
	return j.read(ctx)
}

func readRows(job *bigquery.Job) func(context.Context) ([]Row, error) {
	return func(ctx context.Context) ([]Row, error) {
		it, err := job.Read(ctx)
		if err != nil {
			return nil, err
		}
		rows := []Row{}
		for {
			var row map[string]bigquery.Value
			err := it.Next(&row)
			if errors.Is(err, iterator.Done) {
				return rows, nil
			}
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
}
