package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	resp *backend.JobStatusResponse
	err  error
}

// scriptedFetcher replays steps, repeating the last one.
type scriptedFetcher struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (f *scriptedFetcher) JobStatus(_ context.Context, _ string) (*backend.JobStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	return f.steps[i].resp, f.steps[i].err
}

func status(s types.JobStatus) step {
	return step{resp: &backend.JobStatusResponse{Status: s}}
}

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, Interval: time.Millisecond, Multiplier: 1}
}

func TestWaitForCompletion(t *testing.T) {
	score := 88.0
	completed := step{resp: &backend.JobStatusResponse{
		Status: types.JobCompleted,
		Result: &types.JobResult{FinalATSScore: &score},
	}}

	tests := []struct {
		name      string
		steps     []step
		attempts  int
		wantCalls int
		check     func(t *testing.T, result *types.JobResult, err error)
	}{
		{
			name:      "completes after running",
			steps:     []step{status(types.JobPending), status(types.JobRunning), completed},
			attempts:  10,
			wantCalls: 3,
			check: func(t *testing.T, result *types.JobResult, err error) {
				require.NoError(t, err)
				require.NotNil(t, result.FinalATSScore)
				assert.Equal(t, 88.0, *result.FinalATSScore)
			},
		},
		{
			name:      "completed without payload",
			steps:     []step{status(types.JobCompleted)},
			attempts:  10,
			wantCalls: 1,
			check: func(t *testing.T, result *types.JobResult, err error) {
				require.NoError(t, err)
				require.NotNil(t, result)
				assert.Nil(t, result.AIRecommendation)
			},
		},
		{
			name: "failed stops immediately",
			steps: []step{
				status(types.JobRunning),
				{resp: &backend.JobStatusResponse{Status: types.JobFailed, Error: "model crashed"}},
			},
			attempts:  10,
			wantCalls: 2,
			check: func(t *testing.T, _ *types.JobResult, err error) {
				var failed *JobFailedError
				require.ErrorAs(t, err, &failed)
				assert.Equal(t, "model crashed", failed.Message)
			},
		},
		{
			name:      "timeout after attempts",
			steps:     []step{status(types.JobRunning)},
			attempts:  5,
			wantCalls: 5,
			check: func(t *testing.T, _ *types.JobResult, err error) {
				var timeout *TimeoutError
				require.ErrorAs(t, err, &timeout)
				assert.Equal(t, 5, timeout.Attempts)
				assert.Nil(t, timeout.LastErr)
			},
		},
		{
			name: "transient errors consume attempts",
			steps: []step{
				{err: errors.New("502 bad gateway")},
				{err: errors.New("502 bad gateway")},
				completed,
			},
			attempts:  5,
			wantCalls: 3,
			check: func(t *testing.T, result *types.JobResult, err error) {
				require.NoError(t, err)
				assert.NotNil(t, result)
			},
		},
		{
			name:      "timeout keeps last error",
			steps:     []step{{err: errors.New("connection refused")}},
			attempts:  3,
			wantCalls: 3,
			check: func(t *testing.T, _ *types.JobResult, err error) {
				var timeout *TimeoutError
				require.ErrorAs(t, err, &timeout)
				assert.EqualError(t, timeout.LastErr, "connection refused")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{steps: tt.steps}
			var seen []Attempt
			p := New(fetcher, fastConfig(tt.attempts), nil)
			p.OnAttempt = func(a Attempt) { seen = append(seen, a) }

			result, err := p.WaitForCompletion(context.Background(), "job-1")

			tt.check(t, result, err)
			assert.Equal(t, tt.wantCalls, fetcher.calls)
			require.Len(t, seen, tt.wantCalls)
			for i, a := range seen {
				assert.Equal(t, i+1, a.Number)
				assert.Equal(t, "job-1", a.JobID)
			}
		})
	}
}

func TestWaitForCompletion_Cancelled(t *testing.T) {
	fetcher := &scriptedFetcher{steps: []step{status(types.JobRunning)}}
	p := New(fetcher, Config{MaxAttempts: 60, Interval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.WaitForCompletion(ctx, "job-1")
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Less(t, fetcher.calls, 60)
}

func TestConfig_MergeWithDefaults(t *testing.T) {
	got := Config{}.MergeWithDefaults()
	assert.Equal(t, DefaultConfig(), got)

	custom := Config{MaxAttempts: 3, Interval: 5 * time.Second, Multiplier: 2, MaxInterval: time.Second}.MergeWithDefaults()
	assert.Equal(t, 3, custom.MaxAttempts)
	assert.Equal(t, 5*time.Second, custom.MaxInterval, "max interval never below interval")
}

func TestNext(t *testing.T) {
	p := New(nil, Config{Interval: time.Second, Multiplier: 2, MaxInterval: 5 * time.Second}, nil)
	interval := time.Second
	var got []time.Duration
	for i := 0; i < 4; i++ {
		interval = p.next(interval)
		got = append(got, interval)
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}
