package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/ats-analyzer/internal/ats"
	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/events"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/polling"
	"github.com/jonathan/ats-analyzer/internal/reveal"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run is the background half of a session: comparison and scoring, job
// polling and the reveal loop run concurrently, then the session completes.
func (c *Controller) run(ctx context.Context, sess *session, key string, req types.AnalyzeRequest, resp *backend.AnalyzeResponse) {
	defer sess.cancel()
	log := sess.logger
	comparison := newFuture[*types.ComparisonResult]()
	score := newFuture[*types.ATSScoreBreakdown]()
	job := newFuture[*types.JobResult]()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cmp := c.deps.Comparer.Compare(gctx, resp.CVSkills, resp.JDSkills, req.JDText)
		cmp.Recompute(types.EssentialSet(resp.Requirements))
		c.update(sess.gen, func(r *types.AnalysisResult) { r.Comparison = cmp.Clone() })
		comparison.set(cmp, nil)
		if cmp.IsFallback() {
			log.Info("comparison served by local matcher", zap.String("reason", cmp.FallbackReason))
		}

		breakdown := c.deps.Calculator.Calculate(c.rates(gctx, log, req, resp, cmp), ats.Outcomes(resp.Requirements, cmp))
		c.update(sess.gen, func(r *types.AnalysisResult) { r.MatchAnalysis = breakdown.Clone() })
		score.set(breakdown, nil)
		return nil
	})

	g.Go(func() error {
		result, err := c.waitForJob(gctx, log, resp.JobID)
		if err == nil {
			c.update(sess.gen, func(r *types.AnalysisResult) {
				r.ComponentAnalysis = result.ComponentAnalysis.Clone()
				if result.FinalATSScore != nil {
					final := *result.FinalATSScore
					r.FinalATSScore = &final
				}
				if result.AIRecommendation != nil {
					rec := *result.AIRecommendation
					r.AIRecommendation = &rec
				}
			})
		}
		job.set(result, err)
		return nil
	})

	g.Go(func() error {
		phases := c.deps.Reveal.Phases(map[types.Phase]func(context.Context) error{
			types.PhaseMatchAnalysis: func(ctx context.Context) error {
				_, err := score.wait(ctx)
				return err
			},
			types.PhaseSkillComparison: func(ctx context.Context) error {
				_, err := comparison.wait(ctx)
				return err
			},
			types.PhaseComponentAnalysis: func(ctx context.Context) error {
				result, err := job.wait(ctx)
				if err != nil {
					return err
				}
				if result.ComponentAnalysis == nil && result.FinalATSScore == nil {
					return reveal.ErrUnavailable
				}
				return nil
			},
			types.PhaseAIRecommendation: func(ctx context.Context) error {
				result, err := job.wait(ctx)
				if err != nil {
					return err
				}
				if result.AIRecommendation == nil {
					return reveal.ErrUnavailable
				}
				return nil
			},
		})
		_, err := c.deps.Scheduler.Run(gctx, phases, func(p types.Phase) {
			c.revealPhase(sess.gen, p)
		})
		return err
	})

	if err := g.Wait(); err != nil || ctx.Err() != nil {
		log.Debug("session stopped before completion", zap.Error(err))
		return
	}
	c.complete(ctx, sess, key)
}

// rates collects the category rates for the local score. The backend's
// enhanced rates fill the non-skill categories; without them the score
// rests on skill rates alone.
func (c *Controller) rates(ctx context.Context, log *zap.Logger, req types.AnalyzeRequest, resp *backend.AnalyzeResponse, cmp *types.ComparisonResult) map[string]float64 {
	local := ats.CategoryRates(cmp)
	if !c.deps.EnhancedScore {
		return local
	}
	extra, err := c.deps.Backend.EnhancedScore(ctx, backend.EnhancedScoreRequest{
		CVID:     req.CVID,
		JobID:    resp.JobID,
		CVSkills: resp.CVSkills,
		JDSkills: resp.JDSkills,
		JDText:   req.JDText,

		SkillComparison:   cmp,
		ExtractedKeywords: keywords(resp.JDSkills),
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("enhanced score unavailable, using skill rates only", zap.Error(err))
		}
		return local
	}
	return ats.MergeRates(local, extra)
}

func keywords(jd types.SkillSet) []string {
	out := make([]string, 0, jd.Len())
	for _, cat := range types.Categories {
		out = append(out, jd.Get(cat)...)
	}
	return out
}

// waitForJob polls the backend job. Without a job or a poller the job phases
// are unavailable.
func (c *Controller) waitForJob(ctx context.Context, log *zap.Logger, jobID string) (*types.JobResult, error) {
	if jobID == "" || c.deps.Poller == nil {
		return nil, reveal.ErrUnavailable
	}
	result, err := c.deps.Poller.WaitForCompletion(ctx, jobID)
	if err == nil {
		return result, nil
	}

	jlog := log.With(zap.String(logger.FieldJobID, jobID))
	var timeout *polling.TimeoutError
	var failed *polling.JobFailedError
	switch {
	case ctx.Err() != nil:
	case errors.As(err, &timeout):
		jlog.Warn("backend job timed out, completing with partial result", zap.Int("attempts", timeout.Attempts))
	case errors.As(err, &failed):
		jlog.Warn("backend job failed, completing with partial result", zap.String("reason", failed.Message))
	default:
		jlog.Warn("backend job unavailable", zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %w", reveal.ErrUnavailable, err)
}

func (c *Controller) revealPhase(gen uint64, p types.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.result == nil {
		return
	}
	if !c.result.Revealed(p) {
		c.result.RevealedPhases = append(c.result.RevealedPhases, p)
	}
	c.publishLocked(events.Event{Phase: string(p), Message: revealMessage(c.result, p)})
}

func revealMessage(r *types.AnalysisResult, p types.Phase) string {
	switch p {
	case types.PhaseSkills:
		return fmt.Sprintf("extracted %d CV skills and %d JD skills", r.Skills.CV.Len(), r.Skills.JD.Len())
	case types.PhaseMatchAnalysis:
		return fmt.Sprintf("estimated ATS score %.1f (%s)", r.MatchAnalysis.OverallScore, r.MatchAnalysis.Label)
	case types.PhaseSkillComparison:
		s := r.Comparison.Summary
		return fmt.Sprintf("%d of %d requirements matched (%.1f%%)", s.TotalMatches, s.TotalRequirements, s.MatchPercentage)
	case types.PhaseComponentAnalysis:
		if r.FinalATSScore != nil {
			return fmt.Sprintf("final ATS score %.1f", *r.FinalATSScore)
		}
		return "component analysis ready"
	case types.PhaseAIRecommendation:
		return "recommendations ready"
	default:
		return string(p) + " ready"
	}
}
