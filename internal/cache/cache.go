// Package cache stores completed analyses keyed by CV and job description.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jonathan/ats-analyzer/internal/ingestion"
	"github.com/jonathan/ats-analyzer/internal/types"
)

// Cache is a replace-only store of analysis results. Get never mutates the
// store and both methods copy results so callers never share state with it.
type Cache interface {
	Get(ctx context.Context, key string) (*types.AnalysisResult, bool, error)
	Put(ctx context.Context, key string, result *types.AnalysisResult) error
}

// Entry is one stored result
type Entry struct {
	Key       string                `json:"key"`
	Result    *types.AnalysisResult `json:"result"`
	CreatedAt time.Time             `json:"created_at"`
}

// Key derives the cache key for a CV and a job description. The JD text is
// normalized first so whitespace and markup differences hit the same entry.
func Key(cvID, jdText string) string {
	h := sha256.New()
	h.Write([]byte(cvID))
	h.Write([]byte{0})
	h.Write([]byte(ingestion.NormalizeJDText(jdText)))
	return hex.EncodeToString(h.Sum(nil))
}
