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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type pollingHandle struct {
	jobID     string
	pollsLeft int
	polls     atomic.Int32
	result    map[string]int
	failure   error
}

func (h *pollingHandle) Wait(ctx context.Context) (map[string]int, error) {
	return Poll(ctx, time.Millisecond, func(context.Context) (bool, map[string]int, error) {
		n := int(h.polls.Add(1))
		if n <= h.pollsLeft {
			return false, nil, nil
		}
		if h.failure != nil {
			return true, nil, Failed(h.jobID, h.failure)
		}
		return true, h.result, nil
	})
}

type blockingHandle struct {
	waited atomic.Bool
}

func (h *blockingHandle) Wait(ctx context.Context) (string, error) {
	h.waited.Store(true)
	<-ctx.Done()
	return "", ctx.Err()
}

func submitting[R any](h Handle[R]) func(context.Context) (Handle[R], error) {
	return func(context.Context) (Handle[R], error) { return h, nil }
}

func TestCallAwaitReturnsResultAfterPolling(t *testing.T) {
	h := &pollingHandle{jobID: "job-1", pollsLeft: 2, result: map[string]int{"rows": 3}}

	out, err := Call(context.Background(), "query", submitting[map[string]int](h), true)
	require.NoError(t, err)
	assert.True(t, out.Awaited)
	assert.Equal(t, map[string]int{"rows": 3}, out.Value)
	assert.Equal(t, int32(3), h.polls.Load())
	assert.Same(t, h, out.Handle)
}

func TestCallWithoutAwaitNeverWaits(t *testing.T) {
	h := &blockingHandle{}

	done := make(chan struct{})
	var out Outcome[string]
	var err error
	go func() {
		defer close(done)
		out, err = Call(context.Background(), "load", submitting[string](h), false)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Call blocked although await was false")
	}
	require.NoError(t, err)
	assert.False(t, out.Awaited)
	assert.Same(t, h, out.Handle)
	assert.False(t, h.waited.Load())
}

func TestCallWithoutAwaitDoesNotPoll(t *testing.T) {
	h := &pollingHandle{jobID: "job-2", result: map[string]int{"rows": 1}}

	out, err := Call(context.Background(), "query", submitting[map[string]int](h), false)
	require.NoError(t, err)
	assert.Nil(t, out.Value)
	assert.Equal(t, int32(0), h.polls.Load())
}

func TestCallRemoteFailureIsNormalized(t *testing.T) {
	providerErr := errors.New("Syntax error: Unexpected keyword FROM at [1:8]")
	h := &pollingHandle{jobID: "job-3", pollsLeft: 1, failure: providerErr}

	_, err := Call(context.Background(), "bigquery.query", submitting[map[string]int](h), true)
	require.Error(t, err)

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "bigquery.query", jobErr.Op)
	assert.Equal(t, "job-3", jobErr.JobID)
	assert.Contains(t, err.Error(), "Unexpected keyword FROM")
	assert.ErrorIs(t, err, providerErr)
}

func TestCallSubmissionErrorUnchangedForBothFlags(t *testing.T) {
	denied := status.Error(codes.PermissionDenied, "caller lacks bigquery.jobs.create")
	submit := func(context.Context) (Handle[string], error) { return nil, denied }

	for _, await := range []bool{true, false} {
		out, err := Call(context.Background(), "query", submit, await)
		require.Error(t, err)
		assert.Same(t, denied, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
		assert.Nil(t, out.Handle)

		var jobErr *JobError
		assert.False(t, errors.As(err, &jobErr))
	}
}

func TestCallTransportErrorDuringWaitPassesThrough(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "connection reset")
	h := handleFunc[int](func(context.Context) (int, error) { return 0, unavailable })

	_, err := Call(context.Background(), "query", submitting[int](h), true)
	assert.Same(t, unavailable, err)
}

func TestCallContextCancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, "load", submitting[string](&blockingHandle{}), true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type handleFunc[R any] func(context.Context) (R, error)

func (f handleFunc[R]) Wait(ctx context.Context) (R, error) { return f(ctx) }
