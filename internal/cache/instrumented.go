package cache

import (
	"context"

	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/types"
)

// Instrumented records hit and miss counts for a wrapped cache.
type Instrumented struct {
	Cache
	kind    string
	metrics *metrics.Metrics
}

// NewInstrumented wraps c; kind labels the metrics (memory, redis, postgres).
func NewInstrumented(c Cache, kind string, m *metrics.Metrics) *Instrumented {
	return &Instrumented{Cache: c, kind: kind, metrics: m}
}

// Get implements Cache. Failed lookups are not counted.
func (i *Instrumented) Get(ctx context.Context, key string) (*types.AnalysisResult, bool, error) {
	result, ok, err := i.Cache.Get(ctx, key)
	if err == nil {
		i.metrics.CacheLookup(i.kind, ok)
	}
	return result, ok, err
}
