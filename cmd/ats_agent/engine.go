package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/ats-analyzer/internal/analysis"
	"github.com/jonathan/ats-analyzer/internal/ats"
	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/cache"
	"github.com/jonathan/ats-analyzer/internal/comparison"
	"github.com/jonathan/ats-analyzer/internal/config"
	"github.com/jonathan/ats-analyzer/internal/llm"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/polling"
	"github.com/jonathan/ats-analyzer/internal/reveal"
	"go.uber.org/zap"
)

// pinger is a cache whose connection can be checked.
type pinger interface {
	Ping(ctx context.Context) error
}

// engine holds the collaborators shared by every controller.
type engine struct {
	cfg        *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	backend    *backend.Client
	comparer   *comparison.Client
	poller     *polling.Poller
	cache      cache.Cache
	calculator *ats.Calculator
	scheduler  *reveal.Scheduler

	closers []func()
	ping    []pinger
}

// loadConfig reads and validates configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newEngine builds the shared collaborators from cfg. m may be nil.
func newEngine(ctx context.Context, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*engine, error) {
	e := &engine{
		cfg:        cfg,
		logger:     logger.OrNop(log),
		metrics:    m,
		calculator: ats.NewCalculator(cfg.Scoring),
	}
	e.scheduler = reveal.NewScheduler(e.logger, m)

	client, err := backend.NewClient(backend.Options{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		APIKey:    cfg.Backend.APIKey,
		UserAgent: cfg.Backend.UserAgent,
		Logger:    e.logger,
		Metrics:   m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	e.backend = client

	e.poller = polling.New(client, cfg.Polling, e.logger)
	e.poller.OnAttempt = func(polling.Attempt) { m.PollAttempt() }

	transport, err := e.transport(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.comparer = comparison.NewClient(transport, e.logger, m)

	store, err := e.newCache(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.cache = store

	return e, nil
}

// transport returns the configured comparison transport. Nil selects the
// local matcher.
func (e *engine) transport(ctx context.Context) (comparison.Transport, error) {
	switch e.cfg.Comparison.Transport {
	case config.TransportBackend:
		t := comparison.NewHTTPTransport(e.backend)
		t.SendPrompt = e.cfg.Comparison.SendPrompt
		return t, nil
	case config.TransportLLM:
		client, err := llm.NewClient(ctx, e.cfg.LLM.ModelConfig(), e.cfg.LLM.APIKey, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		e.closers = append(e.closers, func() { _ = client.Close() })
		return comparison.NewLLMTransport(client, llm.ModelTier(e.cfg.LLM.Tier)), nil
	default:
		return nil, nil
	}
}

// newCache opens the configured result cache. Nil disables caching.
func (e *engine) newCache(ctx context.Context) (cache.Cache, error) {
	cc := e.cfg.Cache
	var store cache.Cache
	switch cc.Type {
	case config.CacheMemory:
		var policies cache.Policies
		if cc.MaxEntries > 0 {
			policies = append(policies, cache.MaxEntries(cc.MaxEntries))
		}
		if cc.MaxAge > 0 {
			policies = append(policies, cache.MaxAge{Age: cc.MaxAge})
		}
		var opts []cache.MemoryOption
		if len(policies) > 0 {
			opts = append(opts, cache.WithEviction(policies))
		}
		store = cache.NewMemory(opts...)
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cc.Redis.Addr,
			Password: cc.Redis.Password,
			DB:       cc.Redis.DB,
			TTL:      cc.Redis.TTL,
			Prefix:   cc.Redis.Prefix,
			Logger:   e.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		e.closers = append(e.closers, func() { _ = r.Close() })
		e.ping = append(e.ping, r)
		store = r
	case config.CachePostgres:
		p, err := cache.ConnectPostgres(ctx, cc.DatabaseURL, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		e.closers = append(e.closers, p.Close)
		e.ping = append(e.ping, p)
		store = p
	default:
		return nil, nil
	}
	return cache.NewInstrumented(store, cc.Type, e.metrics), nil
}

// NewController builds a controller over the shared collaborators.
func (e *engine) NewController() (*analysis.Controller, error) {
	return analysis.New(analysis.Deps{
		Backend:       e.backend,
		Comparer:      e.comparer,
		Poller:        e.poller,
		Cache:         e.cache,
		Calculator:    e.calculator,
		Scheduler:     e.scheduler,
		Reveal:        e.cfg.Reveal,
		EnhancedScore: e.cfg.Backend.EnhancedScore,
		Logger:        e.logger,
		Metrics:       e.metrics,
	})
}

// Ready pings the network caches.
func (e *engine) Ready(ctx context.Context) error {
	var errs []error
	for _, p := range e.ping {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases cache connections and the LLM client.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}
