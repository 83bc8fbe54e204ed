package reveal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	names []types.Phase
	times []time.Time
}

func (r *recorder) emit(p types.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, p)
	r.times = append(r.times, time.Now())
}

func ready(context.Context) error { return nil }

func gate(ch <-chan struct{}) func(context.Context) error {
	return func(ctx context.Context) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func TestRun_ZeroDelaysRevealEverythingInOrder(t *testing.T) {
	rec := &recorder{}
	phases := Config{}.Phases(nil)

	outcomes, err := NewScheduler(nil, nil).Run(context.Background(), phases, rec.emit)

	require.NoError(t, err)
	assert.Equal(t, types.DefaultPhaseOrder, rec.names)
	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		assert.True(t, o.Revealed)
	}
}

func TestRun_HonoursDelays(t *testing.T) {
	rec := &recorder{}
	phases := []Phase{
		{Name: types.PhaseSkills},
		{Name: types.PhaseMatchAnalysis, Delay: 30 * time.Millisecond},
		{Name: types.PhaseSkillComparison, Delay: 30 * time.Millisecond},
	}

	start := time.Now()
	_, err := NewScheduler(nil, nil).Run(context.Background(), phases, rec.emit)
	require.NoError(t, err)

	require.Len(t, rec.times, 3)
	assert.Less(t, rec.times[0].Sub(start), 20*time.Millisecond)
	assert.GreaterOrEqual(t, rec.times[1].Sub(rec.times[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, rec.times[2].Sub(rec.times[1]), 30*time.Millisecond)
}

func TestRun_WaitsForData(t *testing.T) {
	rec := &recorder{}
	dataReady := make(chan struct{})
	phases := []Phase{
		{Name: types.PhaseSkills, Await: ready},
		{Name: types.PhaseSkillComparison, Await: gate(dataReady)},
		{Name: types.PhaseAIRecommendation},
	}

	done := make(chan struct{})
	go func() {
		_, _ = NewScheduler(nil, nil).Run(context.Background(), phases, rec.emit)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, []types.Phase{types.PhaseSkills}, rec.names, "comparison waits for its data")
	rec.mu.Unlock()

	close(dataReady)
	<-done
	assert.Equal(t, []types.Phase{types.PhaseSkills, types.PhaseSkillComparison, types.PhaseAIRecommendation}, rec.names)
}

func TestRun_SkipsUnavailable(t *testing.T) {
	rec := &recorder{}
	m := metrics.New()
	phases := []Phase{
		{Name: types.PhaseSkills},
		{Name: types.PhaseComponentAnalysis, Await: func(context.Context) error { return ErrUnavailable }},
		{Name: types.PhaseAIRecommendation, Await: func(context.Context) error { return errors.New("job failed") }},
	}

	outcomes, err := NewScheduler(nil, m).Run(context.Background(), phases, rec.emit)

	require.NoError(t, err)
	assert.Equal(t, []types.Phase{types.PhaseSkills}, rec.names)
	assert.ErrorIs(t, outcomes[1].Err, ErrUnavailable)
	assert.False(t, outcomes[2].Revealed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhasesRevealed.WithLabelValues("skills", "revealed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhasesRevealed.WithLabelValues("ai_recommendation", "skipped")))
}

func TestRun_Cancelled(t *testing.T) {
	rec := &recorder{}
	phases := []Phase{
		{Name: types.PhaseSkills},
		{Name: types.PhaseMatchAnalysis, Delay: time.Hour},
		{Name: types.PhaseSkillComparison},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	outcomes, err := NewScheduler(nil, nil).Run(ctx, phases, rec.emit)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, outcomes, 1)
	assert.Equal(t, []types.Phase{types.PhaseSkills}, rec.names)
}

func TestRun_CancelledWhileAwaiting(t *testing.T) {
	rec := &recorder{}
	never := make(chan struct{})
	phases := []Phase{{Name: types.PhaseSkillComparison, Await: gate(never)}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewScheduler(nil, nil).Run(ctx, phases, rec.emit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, rec.names)
}

func TestConfig_Phases(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Order = []types.Phase{types.PhaseSkills, types.PhaseAIRecommendation}
	awaited := false
	phases := cfg.Phases(map[types.Phase]func(context.Context) error{
		types.PhaseAIRecommendation: func(context.Context) error { awaited = true; return nil },
	})

	require.Len(t, phases, 2)
	assert.Equal(t, time.Duration(0), phases[0].Delay)
	assert.Nil(t, phases[0].Await)
	assert.Equal(t, 2*time.Second, phases[1].Delay)
	require.NoError(t, phases[1].Await(context.Background()))
	assert.True(t, awaited)
}
