package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/cache"
	"github.com/jonathan/ats-analyzer/internal/comparison"
	"github.com/jonathan/ats-analyzer/internal/events"
	"github.com/jonathan/ats-analyzer/internal/polling"
	"github.com/jonathan/ats-analyzer/internal/reveal"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []backend.AnalyzeRequest
	enhanced int
	// block, when set, holds Analyze until the context ends.
	block bool
	err   error
	rates map[string]float64
	jobID string
}

func (f *fakeBackend) Analyze(ctx context.Context, req backend.AnalyzeRequest) (*backend.AnalyzeResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, err, jobID := f.block, f.err, f.jobID
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, &backend.TransportError{Endpoint: backend.EndpointAnalyze, Message: "request aborted", Cause: ctx.Err()}
	}
	if err != nil {
		return nil, err
	}
	return &backend.AnalyzeResponse{
		JobID:    jobID,
		CVSkills: types.NewSkillSet([]string{"Python", "React", "PostgreSQL"}, []string{"Leadership"}, nil),
		JDSkills: types.NewSkillSet([]string{"Python", "React.js", "MySQL"}, []string{"Leadership"}, nil),
		Requirements: []types.Requirement{
			{Skill: "Python", Category: types.CategoryTechnical, Criticality: types.CriticalityEssential},
			{Skill: "React.js", Category: types.CategoryTechnical, Criticality: types.CriticalityPreferred},
			{Skill: "MySQL", Category: types.CategoryTechnical, Criticality: types.CriticalityEssential},
			{Skill: "Leadership", Category: types.CategorySoft, Criticality: types.CriticalityPreferred},
		},
	}, nil
}

func (f *fakeBackend) EnhancedScore(_ context.Context, _ backend.EnhancedScoreRequest) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enhanced++
	if f.rates == nil {
		return nil, &backend.TransportError{Endpoint: backend.EndpointEnhancedScore, StatusCode: 503}
	}
	return f.rates, nil
}

func (f *fakeBackend) analyzeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakePoller struct {
	result *types.JobResult
	err    error
	block  bool
}

func (f *fakePoller) WaitForCompletion(ctx context.Context, _ string) (*types.JobResult, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func fullJob() *types.JobResult {
	final := 84.0
	return &types.JobResult{
		FinalATSScore:     &final,
		ComponentAnalysis: &types.ATSScoreBreakdown{OverallScore: 84, Label: "Good"},
		AIRecommendation:  &types.AIRecommendation{Summary: "Add MySQL experience"},
	}
}

func newController(t *testing.T, be *fakeBackend, poller JobWaiter, c cache.Cache) *Controller {
	t.Helper()
	ctrl, err := New(Deps{
		Backend:  be,
		Comparer: comparison.NewClient(nil, nil, nil),
		Poller:   poller,
		Cache:    c,
		Reveal:   reveal.Config{Order: types.DefaultPhaseOrder},
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	return ctrl
}

func wait(t *testing.T, ctrl *Controller) types.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := ctrl.Wait(ctx)
	require.NoError(t, err, "controller never reached a terminal state")
	return state
}

// drain reads events until the subscription has been quiet for a moment.
func drain(sub *events.Subscription) []string {
	var phases []string
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return phases
			}
			phases = append(phases, ev.Phase)
		case <-time.After(100 * time.Millisecond):
			return phases
		}
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Deps{Comparer: comparison.NewClient(nil, nil, nil)})
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = New(Deps{Backend: &fakeBackend{}})
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPerformAnalysis_Validation(t *testing.T) {
	tests := []struct {
		name      string
		cvID      string
		jd        string
		wantField string
	}{
		{"empty jd", "cv1", "", "jd_text"},
		{"blank jd", "cv1", " \n\t ", "jd_text"},
		{"empty cv", "", "Go developer", "cv_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			be := &fakeBackend{}
			ctrl := newController(t, be, nil, nil)
			sub := ctrl.Subscribe()
			defer sub.Close()

			err := ctrl.PerformAnalysis(context.Background(), tt.cvID, tt.jd)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Equal(t, types.StateIdle, ctrl.State())
			assert.Nil(t, ctrl.Result())
			assert.Zero(t, be.analyzeCalls())
			assert.Empty(t, drain(sub))
		})
	}
}

func TestPerformAnalysis_FullRun(t *testing.T) {
	be := &fakeBackend{jobID: "job-1", rates: map[string]float64{"experience_alignment": 80}}
	mem := cache.NewMemory()
	ctrl := newController(t, be, &fakePoller{result: fullJob()}, mem)
	ctrl.deps.EnhancedScore = true
	sub := ctrl.Subscribe()
	defer sub.Close()

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "  Python and React.js  "))
	assert.Equal(t, types.StateCompleted, wait(t, ctrl))

	result := ctrl.Result()
	require.NotNil(t, result)
	assert.True(t, result.IsComplete())
	assert.Equal(t, types.DefaultPhaseOrder, result.RevealedPhases)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, 84.0, *result.FinalATSScore)
	assert.False(t, result.FromCache)
	assert.NotEmpty(t, result.SessionID)

	require.NotNil(t, result.Comparison)
	assert.Equal(t, types.SourceLocalFallback, result.Comparison.Source)
	assert.Equal(t, []string{"MySQL"}, result.Comparison.Summary.CriticalGaps)

	require.NotNil(t, result.MatchAnalysis)
	exp, ok := result.MatchAnalysis.Category("experience_alignment")
	require.True(t, ok)
	assert.True(t, exp.Available)
	assert.Equal(t, 1, be.enhanced)

	want := []string{events.Started, "skills", "match_analysis", "skill_comparison", "component_analysis", "ai_recommendation", events.Completed}
	assert.Equal(t, want, drain(sub))

	assert.Equal(t, 1, mem.Len(), "complete results are cached")
	assert.Equal(t, "Python and React.js", be.requests[0].JDText)
}

func TestPerformAnalysis_CacheHit(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	mem := cache.NewMemory()
	ctrl := newController(t, be, &fakePoller{result: fullJob()}, mem)

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	require.Equal(t, types.StateCompleted, wait(t, ctrl))
	first := ctrl.Result()

	sub := ctrl.Subscribe()
	defer sub.Close()
	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))

	assert.Equal(t, types.StateCompleted, ctrl.State(), "cache hit completes synchronously")
	assert.Equal(t, 1, be.analyzeCalls(), "no remote calls on a cache hit")

	result := ctrl.Result()
	assert.True(t, result.FromCache)
	assert.Zero(t, result.Elapsed)
	assert.NotEqual(t, first.SessionID, result.SessionID)
	assert.Equal(t, first.FinalATSScore, result.FinalATSScore)
	assert.Equal(t, types.DefaultPhaseOrder, result.RevealedPhases)
	assert.Equal(t, []string{events.CacheHit}, drain(sub), "a cache hit never announces a start")
}

func TestPerformAnalysis_ForceRerunBypassesCache(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	ctrl := newController(t, be, &fakePoller{result: fullJob()}, cache.NewMemory())

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	wait(t, ctrl)

	require.NoError(t, ctrl.RefreshAnalysis(context.Background(), WithForceRerun()))
	wait(t, ctrl)

	require.Equal(t, 2, be.analyzeCalls())
	assert.False(t, be.requests[0].ForceRerun)
	assert.True(t, be.requests[1].ForceRerun)
	assert.False(t, ctrl.Result().FromCache)
}

func TestRefreshAnalysis_WithoutPreviousRun(t *testing.T) {
	ctrl := newController(t, &fakeBackend{}, nil, nil)
	var vErr *ValidationError
	assert.ErrorAs(t, ctrl.RefreshAnalysis(context.Background()), &vErr)
	assert.Equal(t, types.StateIdle, ctrl.State())
}

func TestPerformAnalysis_PartialResultsAreNotCached(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	mem := cache.NewMemory()
	job := fullJob()
	job.AIRecommendation = nil
	ctrl := newController(t, be, &fakePoller{result: job}, mem)

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	assert.Equal(t, types.StateCompleted, wait(t, ctrl))

	assert.False(t, ctrl.Result().Revealed(types.PhaseAIRecommendation))
	assert.Zero(t, mem.Len())
}

func TestPerformAnalysis_BackendFailure(t *testing.T) {
	be := &fakeBackend{err: &backend.TransportError{Endpoint: backend.EndpointAnalyze, StatusCode: 500, Message: "boom"}}
	ctrl := newController(t, be, nil, nil)
	sub := ctrl.Subscribe()
	defer sub.Close()

	err := ctrl.PerformAnalysis(context.Background(), "cv1", "text1")

	var tErr *backend.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, types.StateError, ctrl.State())
	assert.Contains(t, ctrl.ErrorMessage(), "boom")
	assert.Equal(t, []string{events.Started, events.Failed}, drain(sub))

	snap := ctrl.Snapshot()
	assert.Equal(t, types.StateError, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestCancelAnalysis_ThenClear(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	ctrl := newController(t, be, &fakePoller{block: true}, nil)
	sub := ctrl.Subscribe()
	defer sub.Close()

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	require.Equal(t, types.StateLoading, ctrl.State())

	ctrl.CancelAnalysis()
	assert.Equal(t, types.StateCancelled, ctrl.State())
	assert.Nil(t, ctrl.Result(), "partial results are discarded")

	phases := drain(sub)
	require.NotEmpty(t, phases)
	assert.Equal(t, events.Cancelled, phases[len(phases)-1])
	assert.NotContains(t, phases, "component_analysis")

	// a second cancel is a no-op
	ctrl.CancelAnalysis()
	assert.Equal(t, types.StateCancelled, ctrl.State())

	ctrl.ClearResults()
	assert.Equal(t, types.StateIdle, ctrl.State())
	assert.Equal(t, []string{events.Cleared}, drain(sub), "no stale reveal after clearing")
}

func TestCancelAnalysis_DuringAnalyzeCall(t *testing.T) {
	be := &fakeBackend{block: true}
	ctrl := newController(t, be, nil, nil)

	done := make(chan error, 1)
	go func() { done <- ctrl.PerformAnalysis(context.Background(), "cv1", "text1") }()

	require.Eventually(t, func() bool { return be.analyzeCalls() == 1 }, time.Second, 5*time.Millisecond)
	ctrl.CancelAnalysis()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("PerformAnalysis did not return after cancel")
	}
	assert.Equal(t, types.StateCancelled, ctrl.State())
}

func TestCancelAnalysis_NoopOutsideLoading(t *testing.T) {
	ctrl := newController(t, &fakeBackend{jobID: "job-1"}, &fakePoller{result: fullJob()}, nil)
	ctrl.CancelAnalysis()
	assert.Equal(t, types.StateIdle, ctrl.State())

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	wait(t, ctrl)
	ctrl.CancelAnalysis()
	assert.Equal(t, types.StateCompleted, ctrl.State())
	assert.NotNil(t, ctrl.Result())
}

func TestPerformAnalysis_CallerContextCancelled(t *testing.T) {
	be := &fakeBackend{block: true}
	ctrl := newController(t, be, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := ctrl.PerformAnalysis(ctx, "cv1", "text1")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, types.StateCancelled, ctrl.State())
}

func TestPerformAnalysis_PollingTimeout(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	poller := &fakePoller{err: &polling.TimeoutError{JobID: "job-1", Attempts: 60}}
	ctrl := newController(t, be, poller, cache.NewMemory())
	sub := ctrl.Subscribe()
	defer sub.Close()

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	assert.Equal(t, types.StateCompleted, wait(t, ctrl))

	result := ctrl.Result()
	assert.Equal(t, []types.Phase{types.PhaseSkills, types.PhaseMatchAnalysis, types.PhaseSkillComparison}, result.RevealedPhases)
	assert.Nil(t, result.AIRecommendation)
	assert.Nil(t, ctrl.Err())

	phases := drain(sub)
	assert.NotContains(t, phases, "ai_recommendation")
	assert.Equal(t, events.Completed, phases[len(phases)-1])
}

func TestPerformAnalysis_NoJobID(t *testing.T) {
	ctrl := newController(t, &fakeBackend{}, &fakePoller{result: fullJob()}, nil)

	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "text1"))
	assert.Equal(t, types.StateCompleted, wait(t, ctrl))
	assert.False(t, ctrl.Result().HasPhase(types.PhaseComponentAnalysis))
}

func TestPerformAnalysis_SupersedesPreviousSession(t *testing.T) {
	be := &fakeBackend{jobID: "job-1"}
	poller := &switchPoller{}
	ctrl := newController(t, be, poller, nil)

	poller.setBlock(true)
	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "first"))
	first := ctrl.Result().SessionID

	poller.setBlock(false)
	require.NoError(t, ctrl.PerformAnalysis(context.Background(), "cv1", "second"))
	assert.Equal(t, types.StateCompleted, wait(t, ctrl))

	result := ctrl.Result()
	assert.NotEqual(t, first, result.SessionID)
	assert.Equal(t, types.DefaultPhaseOrder, result.RevealedPhases, "stale session never touches the new result")
}

type switchPoller struct {
	mu    sync.Mutex
	block bool
}

func (p *switchPoller) setBlock(b bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.block = b
}

func (p *switchPoller) WaitForCompletion(ctx context.Context, _ string) (*types.JobResult, error) {
	p.mu.Lock()
	block := p.block
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return fullJob(), nil
}

func TestWait_ContextEnds(t *testing.T) {
	ctrl := newController(t, &fakeBackend{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	state, err := ctrl.Wait(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, types.StateIdle, state)
}
