package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonathan/ats-analyzer/internal/types"
)

// EvictionPolicy picks entries to drop after an insert. Entries are passed
// oldest first.
type EvictionPolicy interface {
	Victims(entries []Entry) []string
}

// MaxEntries keeps at most n entries, dropping the oldest.
type MaxEntries int

// Victims implements EvictionPolicy.
func (n MaxEntries) Victims(entries []Entry) []string {
	excess := len(entries) - int(n)
	if n <= 0 || excess <= 0 {
		return nil
	}
	keys := make([]string, 0, excess)
	for _, e := range entries[:excess] {
		keys = append(keys, e.Key)
	}
	return keys
}

// MaxAge drops entries older than the given age.
type MaxAge struct {
	Age time.Duration
	Now func() time.Time
}

// Victims implements EvictionPolicy.
func (p MaxAge) Victims(entries []Entry) []string {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	cutoff := now().Add(-p.Age)
	var keys []string
	for _, e := range entries {
		if e.CreatedAt.Before(cutoff) {
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// Policies applies several policies and evicts the union of their victims.
type Policies []EvictionPolicy

// Victims implements EvictionPolicy.
func (ps Policies) Victims(entries []Entry) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, p := range ps {
		for _, key := range p.Victims(entries) {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// Memory is an in-process cache. Without a policy nothing is evicted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	policy  EvictionPolicy
	now     func() time.Time
}

// MemoryOption configures a Memory cache
type MemoryOption func(*Memory)

// WithEviction adds an eviction policy. Repeated options combine.
func WithEviction(p EvictionPolicy) MemoryOption {
	return func(m *Memory) {
		switch cur := m.policy.(type) {
		case nil:
			m.policy = p
		case Policies:
			m.policy = append(cur[:len(cur):len(cur)], p)
		default:
			m.policy = Policies{cur, p}
		}
	}
}

// WithClock overrides the clock used for entry timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-process cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) (*types.AnalysisResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return entry.Result.Clone(), true, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key string, result *types.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{Key: key, Result: result.Clone(), CreatedAt: m.now()}

	if m.policy != nil {
		for _, victim := range m.policy.Victims(m.sorted()) {
			delete(m.entries, victim)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) sorted() []Entry {
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}
