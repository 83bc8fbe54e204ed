// Package comparison obtains the semantic CV-vs-JD skill comparison from a
// remote matcher and falls back to the local matcher when that fails.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/matching"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/types"
	"go.uber.org/zap"
)

// Fallback reasons, also used as metric labels
const (
	ReasonNoTransport = "no_transport"
	ReasonNoSkills    = "no_requirements"
	ReasonTransport   = "transport"
	ReasonParse       = "parse"
	ReasonCancelled   = "cancelled"
)

// Client compares skill sets. It never fails: every problem with the remote
// matcher degrades to the local matcher.
type Client struct {
	transport Transport
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewClient creates a comparison client. A nil transport always uses the
// local matcher.
func NewClient(transport Transport, log *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		transport: transport,
		logger:    logger.OrNop(log),
		metrics:   m,
	}
}

// Compare returns the comparison of cv against jd.
func (c *Client) Compare(ctx context.Context, cv, jd types.SkillSet, jdText string) *types.ComparisonResult {
	if jd.IsEmpty() {
		return c.fallback(cv, jd, ReasonNoSkills, nil)
	}
	if c.transport == nil {
		return c.fallback(cv, jd, ReasonNoTransport, nil)
	}

	start := time.Now()
	body, err := c.transport.Compare(ctx, Request{CVSkills: cv, JDSkills: jd, JDText: jdText})
	if err != nil {
		reason := ReasonTransport
		if errors.Is(err, context.Canceled) {
			reason = ReasonCancelled
		}
		return c.fallback(cv, jd, reason, err)
	}

	result, err := Adapt(body, jd)
	if err != nil {
		return c.fallback(cv, jd, ReasonParse, err)
	}

	c.logger.Debug("remote skill comparison",
		zap.Int("requirements", result.Summary.TotalRequirements),
		zap.Int("matches", result.Summary.TotalMatches),
		zap.Duration("elapsed", time.Since(start)))
	return result
}

func (c *Client) fallback(cv, jd types.SkillSet, reason string, cause error) *types.ComparisonResult {
	result := matching.Compare(cv, jd)
	result.FallbackReason = reason
	if cause != nil {
		result.FallbackReason = fmt.Sprintf("%s: %v", reason, cause)
	}

	c.metrics.ComparisonFallback(reason)
	fields := []zap.Field{zap.String("reason", reason)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
		c.logger.Warn("skill comparison fell back to local matcher", fields...)
	} else {
		c.logger.Debug("skill comparison used local matcher", fields...)
	}
	return result
}
