// Package polling waits for asynchronous backend jobs to finish.
package polling

import (
	"context"
	"math"
	"time"

	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// StatusFetcher reads the status of a backend job.
type StatusFetcher interface {
	JobStatus(ctx context.Context, jobID string) (*backend.JobStatusResponse, error)
}

// Config controls the polling schedule
type Config struct {
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts"`
	Interval    time.Duration `json:"interval" mapstructure:"interval"`
	// Multiplier grows the interval after each attempt. 1 keeps it fixed.
	Multiplier  float64       `json:"multiplier" mapstructure:"multiplier"`
	MaxInterval time.Duration `json:"max_interval" mapstructure:"max_interval"`
}

// DefaultConfig polls every 10 seconds, 60 times.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 60,
		Interval:    10 * time.Second,
		Multiplier:  1,
		MaxInterval: time.Minute,
	}
}

// MergeWithDefaults fills zero values from DefaultConfig.
func (c Config) MergeWithDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxInterval < c.Interval {
		c.MaxInterval = c.Interval
	}
	return c
}

// Attempt describes one status poll
type Attempt struct {
	JobID  string
	Number int
	Status types.JobStatus
	Err    error
}

// Poller polls a job until it reaches a terminal status.
type Poller struct {
	fetcher StatusFetcher
	config  Config
	logger  *zap.Logger

	// OnAttempt, when set, is called after every poll.
	OnAttempt func(Attempt)
}

// New creates a poller. Zero config values take their defaults.
func New(fetcher StatusFetcher, config Config, log *zap.Logger) *Poller {
	return &Poller{
		fetcher: fetcher,
		config:  config.MergeWithDefaults(),
		logger:  logger.OrNop(log),
	}
}

// Config returns the effective configuration.
func (p *Poller) Config() Config {
	return p.config
}

// WaitForCompletion waits one interval before each poll. It returns the job
// payload on completion, a *JobFailedError as soon as the job fails, a
// *TimeoutError once the attempts run out and the context error when ctx
// ends first. Status errors use up an attempt and polling carries on.
func (p *Poller) WaitForCompletion(ctx context.Context, jobID string) (*types.JobResult, error) {
	start := time.Now()
	interval := p.config.Interval
	log := p.logger.With(zap.String(logger.FieldJobID, jobID))

	var lastErr error
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		resp, err := p.fetcher.JobStatus(ctx, jobID)
		a := Attempt{JobID: jobID, Number: attempt, Err: err}
		if resp != nil {
			a.Status = resp.Status
		}
		if p.OnAttempt != nil {
			p.OnAttempt(a)
		}

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Warn("job status poll failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.config.MaxAttempts),
				zap.Error(err))
		case resp.Status == types.JobCompleted:
			log.Info("job completed", zap.Int("attempts", attempt), zap.Duration("elapsed", time.Since(start)))
			if resp.Result == nil {
				return &types.JobResult{}, nil
			}
			return resp.Result, nil
		case resp.Status == types.JobFailed:
			return nil, &JobFailedError{JobID: jobID, Message: resp.Error}
		default:
			lastErr = nil
			log.Debug("job still running", zap.Int("attempt", attempt), zap.String("status", string(resp.Status)))
		}

		interval = p.next(interval)
		timer.Reset(interval)
	}

	return nil, &TimeoutError{
		JobID:    jobID,
		Attempts: p.config.MaxAttempts,
		Elapsed:  time.Since(start),
		LastErr:  lastErr,
	}
}

func (p *Poller) next(interval time.Duration) time.Duration {
	grown := float64(interval) * p.config.Multiplier
	return time.Duration(math.Min(grown, float64(p.config.MaxInterval)))
}
