// Package analysis drives one CV-vs-JD analysis from request to completed,
// progressively revealed result.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/ats-analyzer/internal/ats"
	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/cache"
	"github.com/jonathan/ats-analyzer/internal/events"
	"github.com/jonathan/ats-analyzer/internal/ingestion"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/reveal"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// Backend is the part of the backend API the controller calls directly.
type Backend interface {
	Analyze(ctx context.Context, req backend.AnalyzeRequest) (*backend.AnalyzeResponse, error)
	EnhancedScore(ctx context.Context, req backend.EnhancedScoreRequest) (map[string]float64, error)
}

// Comparer produces the skill comparison. It never fails.
type Comparer interface {
	Compare(ctx context.Context, cv, jd types.SkillSet, jdText string) *types.ComparisonResult
}

// JobWaiter waits for the backend job of an analysis.
type JobWaiter interface {
	WaitForCompletion(ctx context.Context, jobID string) (*types.JobResult, error)
}

// Deps are the collaborators of a Controller. Backend and Comparer are
// required; the rest have working defaults.
type Deps struct {
	Backend    Backend
	Comparer   Comparer
	Poller     JobWaiter
	Cache      cache.Cache
	Calculator *ats.Calculator
	Scheduler  *reveal.Scheduler
	Reveal     reveal.Config
	// EnhancedScore asks the backend for the non-skill category rates.
	EnhancedScore bool
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Controller owns at most one analysis session at a time. Starting a new
// analysis supersedes the previous one. Safe for concurrent use.
type Controller struct {
	deps   Deps
	bus    *events.Bus
	logger *zap.Logger

	mu      sync.Mutex
	state   types.State
	gen     uint64
	session *session
	result  *types.AnalysisResult
	err     error
	changed chan struct{}

	lastCVID string
	lastJD   string
}

// session is the per-run bookkeeping guarded by the generation counter.
type session struct {
	id     string
	gen    uint64
	cancel context.CancelFunc
	start  time.Time
	logger *zap.Logger
}

// New creates an idle controller.
func New(deps Deps) (*Controller, error) {
	if deps.Backend == nil {
		return nil, &ConfigError{Message: "backend is required"}
	}
	if deps.Comparer == nil {
		return nil, &ConfigError{Message: "comparer is required"}
	}
	if deps.Calculator == nil {
		deps.Calculator = ats.NewCalculator(ats.DefaultConfig())
	}
	if deps.Scheduler == nil {
		deps.Scheduler = reveal.NewScheduler(deps.Logger, deps.Metrics)
	}
	if deps.Reveal.Delays == nil && len(deps.Reveal.Order) == 0 {
		deps.Reveal = reveal.DefaultConfig()
	}

	return &Controller{
		deps:    deps,
		bus:     events.NewBus(),
		logger:  logger.OrNop(deps.Logger),
		state:   types.StateIdle,
		changed: make(chan struct{}),
	}, nil
}

// PerformAnalysis starts an analysis of cvID against jdText. It returns once
// the result is served from the cache or the backend has extracted the
// skills; the remaining phases complete in the background. Invalid input
// returns a *ValidationError and leaves the controller untouched.
func (c *Controller) PerformAnalysis(ctx context.Context, cvID, jdText string, opts ...RunOption) error {
	req := types.AnalyzeRequest{CVID: cvID, JDText: jdText}
	if err := req.Validate(); err != nil {
		return validationError(err)
	}
	o := collectOptions(opts)

	sessCtx, sess := c.begin(ctx, req.CVID, req.JDText)
	log := sess.logger

	key := cache.Key(req.CVID, req.JDText)
	if !o.forceRerun && c.deps.Cache != nil {
		hit, ok, err := c.deps.Cache.Get(sessCtx, key)
		if err != nil {
			log.Warn("cache lookup failed", zap.Error(err))
		}
		if ok && c.serveCached(sess, hit) {
			return nil
		}
	}
	if !c.announce(sess) {
		return ErrCancelled
	}

	callCtx, stop := context.WithCancel(sessCtx)
	defer stop()
	defer context.AfterFunc(ctx, stop)()

	resp, err := c.deps.Backend.Analyze(callCtx, backend.AnalyzeRequest{
		CVID:       req.CVID,
		JDText:     ingestion.NormalizeJDText(req.JDText),
		ForceRerun: o.forceRerun,
	})
	if err != nil {
		switch {
		case sessCtx.Err() != nil:
			return ErrCancelled
		case ctx.Err() != nil:
			c.cancelSession(sess.gen)
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		c.fail(sess.gen, err)
		return fmt.Errorf("analysis request failed: %w", err)
	}

	ok := c.update(sess.gen, func(r *types.AnalysisResult) {
		r.JobID = resp.JobID
		r.Skills = &types.ExtractedSkills{CV: resp.CVSkills, JD: resp.JDSkills}
		r.Requirements = resp.Requirements
	})
	if !ok {
		return ErrCancelled
	}
	log.Info("skills extracted",
		zap.Int("cv_skills", resp.CVSkills.Len()),
		zap.Int("jd_skills", resp.JDSkills.Len()),
		zap.Int("requirements", len(resp.Requirements)),
		zap.String(logger.FieldJobID, resp.JobID))

	go c.run(sessCtx, sess, key, req, resp)
	return nil
}

// RefreshAnalysis re-runs the last analysis. Without WithForceRerun a cached
// result may be served.
func (c *Controller) RefreshAnalysis(ctx context.Context, opts ...RunOption) error {
	c.mu.Lock()
	cvID, jd := c.lastCVID, c.lastJD
	c.mu.Unlock()
	if cvID == "" || jd == "" {
		return &ValidationError{Message: "no previous analysis to refresh"}
	}
	return c.PerformAnalysis(ctx, cvID, jd, opts...)
}

// CancelAnalysis stops a loading analysis and discards its partial result.
// It does nothing in any other state.
func (c *Controller) CancelAnalysis() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != types.StateLoading {
		return
	}
	c.cancelLocked()
}

// ClearResults discards the session and returns the controller to idle,
// acknowledging a cancellation or failure.
func (c *Controller) ClearResults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := c.sessionIDLocked()
	c.discardLocked()
	c.err = nil
	c.setStateLocked(types.StateIdle)
	c.publishLocked(events.Event{Phase: events.Cleared, Message: "results cleared", SessionID: sessionID})
}

// discardLocked stops the session and drops its result without touching
// the state.
func (c *Controller) discardLocked() *session {
	sess := c.session
	c.gen++
	if sess != nil {
		sess.cancel()
	}
	c.session = nil
	c.result = nil
	return sess
}

// State returns the current lifecycle state.
func (c *Controller) State() types.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns a copy of the current, possibly partial, result.
func (c *Controller) Result() *types.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result.Clone()
}

// Err returns the failure of the last analysis, if it failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ErrorMessage returns the failure message, or "".
func (c *Controller) ErrorMessage() string {
	if err := c.Err(); err != nil {
		return err.Error()
	}
	return ""
}

// Snapshot returns state, result and error consistently.
func (c *Controller) Snapshot() types.AnalysisResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := types.AnalysisResponse{
		SessionID: c.sessionIDLocked(),
		State:     c.state,
		Result:    c.result.Clone(),
	}
	if c.err != nil {
		resp.Error = c.err.Error()
	}
	return resp
}

// Subscribe returns a subscription to progress events. Close it when done.
func (c *Controller) Subscribe() *events.Subscription {
	return c.bus.Subscribe()
}

// Wait blocks until the controller is in a terminal state or ctx ends.
func (c *Controller) Wait(ctx context.Context) (types.State, error) {
	for {
		c.mu.Lock()
		state, changed := c.state, c.changed
		c.mu.Unlock()
		if state.IsTerminal() {
			return state, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close cancels any running session and closes event subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == types.StateLoading {
		c.cancelLocked()
	} else {
		c.discardLocked()
	}
	c.mu.Unlock()
	c.bus.Close()
}

// begin supersedes the current session and starts a new one in Loading.
func (c *Controller) begin(ctx context.Context, cvID, jdText string) (context.Context, *session) {
	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.session.cancel()
	}
	c.gen++
	sess := &session{
		id:     uuid.NewString(),
		gen:    c.gen,
		cancel: cancel,
		start:  time.Now(),
	}
	sess.logger = c.logger.With(logger.SessionFields(sess.id, cvID, sess.gen)...)
	c.session = sess
	c.lastCVID, c.lastJD = cvID, jdText
	c.err = nil
	c.result = &types.AnalysisResult{
		SessionID:      sess.id,
		CVID:           cvID,
		JDFingerprint:  ingestion.Fingerprint(jdText),
		RevealedPhases: []types.Phase{},
		CreatedAt:      sess.start.UTC(),
	}
	c.setStateLocked(types.StateLoading)
	return sessCtx, sess
}

// announce publishes the started event once the session misses the cache.
// A cache hit publishes only cache_hit.
func (c *Controller) announce(sess *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != sess.gen {
		return false
	}
	c.publishLocked(events.Event{Phase: events.Started, Message: "analysis started"})
	sess.logger.Info("analysis started")
	return true
}

// serveCached completes the session from a cached result.
func (c *Controller) serveCached(sess *session, hit *types.AnalysisResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != sess.gen {
		return false
	}

	result := hit.Clone()
	result.SessionID = sess.id
	result.FromCache = true
	result.Elapsed = 0
	result.RevealedPhases = result.RevealedPhases[:0]
	for _, p := range c.deps.Reveal.Phases(nil) {
		if result.HasPhase(p.Name) {
			result.RevealedPhases = append(result.RevealedPhases, p.Name)
		}
	}
	c.result = result
	c.session = nil
	sess.cancel()

	c.setStateLocked(types.StateCompleted)
	c.publishLocked(events.Event{Phase: events.CacheHit, Message: "served from cache"})
	c.deps.Metrics.ObserveAnalysis("cache_hit", 0)
	sess.logger.Info("analysis served from cache")
	return true
}

// update applies fn to the result if gen is still current.
func (c *Controller) update(gen uint64, fn func(r *types.AnalysisResult)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.result == nil {
		return false
	}
	fn(c.result)
	return true
}

func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	sess := c.session
	c.err = err
	c.session = nil
	c.setStateLocked(types.StateError)
	c.publishLocked(events.Event{Phase: events.Failed, Message: err.Error(), IsError: true})
	if sess != nil {
		sess.cancel()
		c.deps.Metrics.ObserveAnalysis("error", time.Since(sess.start))
		sess.logger.Error("analysis failed", zap.Error(err))
	}
}

func (c *Controller) cancelSession(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.state == types.StateLoading {
		c.cancelLocked()
	}
}

func (c *Controller) cancelLocked() {
	sessionID := c.sessionIDLocked()
	sess := c.discardLocked()
	c.setStateLocked(types.StateCancelled)
	c.publishLocked(events.Event{Phase: events.Cancelled, Message: "analysis cancelled", SessionID: sessionID})
	if sess != nil {
		c.deps.Metrics.ObserveAnalysis("cancelled", time.Since(sess.start))
		sess.logger.Info("analysis cancelled")
	}
}

// complete caches the result when every phase has data, then finishes the
// session. A superseded session changes nothing.
func (c *Controller) complete(ctx context.Context, sess *session, key string) {
	c.mu.Lock()
	if c.gen != sess.gen || c.result == nil {
		c.mu.Unlock()
		return
	}
	elapsed := time.Since(sess.start)
	c.result.Elapsed = elapsed
	snapshot := c.result.Clone()
	c.mu.Unlock()

	if c.deps.Cache != nil && snapshot.IsComplete() {
		if err := c.deps.Cache.Put(ctx, key, snapshot); err != nil {
			sess.logger.Warn("failed to cache analysis", zap.Error(err))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != sess.gen {
		return
	}
	c.session = nil
	c.setStateLocked(types.StateCompleted)
	c.publishLocked(events.Event{Phase: events.Completed, Message: completionMessage(snapshot)})
	c.deps.Metrics.ObserveAnalysis("completed", elapsed)
	sess.logger.Info("analysis completed",
		zap.Duration("elapsed", elapsed),
		zap.Strings("revealed", phaseNames(snapshot.RevealedPhases)))
}

func (c *Controller) setStateLocked(s types.State) {
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller) publishLocked(ev events.Event) {
	if ev.SessionID == "" {
		ev.SessionID = c.sessionIDLocked()
	}
	ev.State = c.state
	c.bus.Publish(ev)
}

func (c *Controller) sessionIDLocked() string {
	if c.result != nil {
		return c.result.SessionID
	}
	if c.session != nil {
		return c.session.id
	}
	return ""
}

func validationError(err error) error {
	msg := err.Error()
	field := ""
	switch {
	case strings.Contains(msg, "CVID"):
		field = "cv_id"
		msg = "cv_id must be a non-empty string of at most 256 characters"
	case strings.Contains(msg, "JDText"):
		field = "jd_text"
		msg = "jd_text must be a non-empty job description"
	}
	return &ValidationError{Field: field, Message: msg, Cause: err}
}

func completionMessage(r *types.AnalysisResult) string {
	if r.IsComplete() {
		return "analysis completed"
	}
	missing := make([]string, 0)
	for _, p := range types.DefaultPhaseOrder {
		if !r.HasPhase(p) {
			missing = append(missing, string(p))
		}
	}
	return "analysis completed without " + strings.Join(missing, ", ")
}

func phaseNames(phases []types.Phase) []string {
	out := make([]string, len(phases))
	for i, p := range phases {
		out[i] = string(p)
	}
	return out
}
