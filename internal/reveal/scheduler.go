// Package reveal discloses analysis phases one at a time.
package reveal

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// ErrUnavailable marks a phase whose data will never arrive.
var ErrUnavailable = errors.New("phase data unavailable")

// Phase is one step of the reveal
type Phase struct {
	Name  types.Phase
	Delay time.Duration
	// Await blocks until the phase data is ready. Nil means ready.
	Await func(ctx context.Context) error
}

// Outcome records what happened to a phase
type Outcome struct {
	Phase    types.Phase
	Revealed bool
	Err      error
}

// Config holds the delay before each phase
type Config struct {
	Order  []types.Phase                 `json:"order" mapstructure:"order"`
	Delays map[types.Phase]time.Duration `json:"delays" mapstructure:"delays"`
}

// DefaultConfig reveals skills at once and every later phase two seconds
// after the previous one.
func DefaultConfig() Config {
	order := make([]types.Phase, len(types.DefaultPhaseOrder))
	copy(order, types.DefaultPhaseOrder)
	return Config{
		Order: order,
		Delays: map[types.Phase]time.Duration{
			types.PhaseSkills:            0,
			types.PhaseMatchAnalysis:     2 * time.Second,
			types.PhaseSkillComparison:   2 * time.Second,
			types.PhaseComponentAnalysis: 2 * time.Second,
			types.PhaseAIRecommendation:  2 * time.Second,
		},
	}
}

// Phases builds the phase list in configured order, taking each phase's
// readiness from await. Phases with no await entry are ready immediately.
func (c Config) Phases(await map[types.Phase]func(context.Context) error) []Phase {
	order := c.Order
	if len(order) == 0 {
		order = types.DefaultPhaseOrder
	}
	phases := make([]Phase, 0, len(order))
	for _, name := range order {
		phases = append(phases, Phase{Name: name, Delay: c.Delays[name], Await: await[name]})
	}
	return phases
}

// Scheduler runs the reveal loop.
type Scheduler struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a scheduler.
func NewScheduler(log *zap.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{logger: logger.OrNop(log), metrics: m}
}

// Run walks the phases in order. Each phase waits for its delay, counted
// from the previous phase, and for its data; then emit is called. A phase
// whose await fails is skipped and the loop moves on. Run returns the
// context error if ctx ends first; emit is never called after that.
func (s *Scheduler) Run(ctx context.Context, phases []Phase, emit func(types.Phase)) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(phases))
	for _, phase := range phases {
		outcome, err := s.step(ctx, phase)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)

		if !outcome.Revealed {
			s.logger.Info("phase skipped",
				zap.String(logger.FieldPhase, string(phase.Name)),
				zap.Error(outcome.Err))
			s.metrics.Phase(string(phase.Name), "skipped")
			continue
		}
		emit(phase.Name)
		s.metrics.Phase(string(phase.Name), "revealed")
	}
	return outcomes, nil
}

func (s *Scheduler) step(ctx context.Context, phase Phase) (Outcome, error) {
	outcome := Outcome{Phase: phase.Name}

	var timer <-chan time.Time
	if phase.Delay > 0 {
		t := time.NewTimer(phase.Delay)
		defer t.Stop()
		timer = t.C
	}

	if phase.Await != nil {
		if err := phase.Await(ctx); err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			outcome.Err = err
			return outcome, nil
		}
	}

	if timer != nil {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		case <-timer:
		}
	}
	if ctx.Err() != nil {
		return outcome, ctx.Err()
	}
	outcome.Revealed = true
	return outcome, nil
}
