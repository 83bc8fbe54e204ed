// Package config loads engine configuration from a config file, ATS_*
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/ats-analyzer/internal/ats"
	"github.com/jonathan/ats-analyzer/internal/backend"
	"github.com/jonathan/ats-analyzer/internal/llm"
	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/polling"
	"github.com/jonathan/ats-analyzer/internal/reveal"
	"github.com/jonathan/ats-analyzer/internal/server/ratelimit"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override: cache.redis.addr is read
// from ATS_CACHE_REDIS_ADDR.
const EnvPrefix = "ATS"

// Comparison transports
const (
	TransportBackend = "backend"
	TransportLLM     = "llm"
	TransportNone    = "none"
)

// Cache backends
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
	CacheNone     = "none"
)

// Config is the full engine configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Comparison ComparisonConfig `mapstructure:"comparison"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Polling    polling.Config   `mapstructure:"polling"`
	Reveal     reveal.Config    `mapstructure:"reveal"`
	Scoring    ats.Config       `mapstructure:"scoring"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  ratelimit.Config `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	// Sessions finished for longer than SessionTTL are dropped.
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// BackendConfig configures the remote analysis service.
type BackendConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	EnhancedScore bool          `mapstructure:"enhanced_score"`
}

// ComparisonConfig selects how semantic skill comparison is performed.
type ComparisonConfig struct {
	Transport  string `mapstructure:"transport"`
	SendPrompt bool   `mapstructure:"send_prompt"`
}

// LLMConfig configures the model used by the llm transport.
type LLMConfig struct {
	Provider    string            `mapstructure:"provider"`
	APIKey      string            `mapstructure:"api_key"`
	Temperature float32           `mapstructure:"temperature"`
	Tier        string            `mapstructure:"tier"`
	Models      map[string]string `mapstructure:"models"`
}

// CacheConfig selects and configures the result cache.
type CacheConfig struct {
	Type        string        `mapstructure:"type"`
	MaxEntries  int           `mapstructure:"max_entries"`
	MaxAge      time.Duration `mapstructure:"max_age"`
	DatabaseURL string        `mapstructure:"database_url"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

// RedisConfig configures the redis cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Options converts the section for logger.New.
func (c LoggingConfig) Options() logger.Options {
	return logger.Options{Level: c.Level, Format: c.Format, OutputPath: c.OutputPath}
}

// ModelConfig converts the section for llm.NewClient.
func (c LLMConfig) ModelConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if c.Provider != "" {
		cfg.Provider = llm.Provider(c.Provider)
	}
	if c.Temperature > 0 {
		cfg.Temperature = c.Temperature
	}
	for tier, model := range c.Models {
		if model != "" {
			cfg = cfg.WithModel(llm.ModelTier(tier), model)
		}
	}
	return cfg
}

// Load reads configuration. path may be empty, in which case config.yaml or
// config.json is looked up in the working directory and ./config; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The llm transport also honours the conventional Gemini variable.
	if err := v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.MergeWithDefaults()
	return &cfg, nil
}

// Default returns the configuration built from defaults alone, ignoring
// config files and the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	cfg.MergeWithDefaults()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.session_ttl", time.Hour)

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout", backend.DefaultTimeout)
	v.SetDefault("backend.user_agent", backend.DefaultUserAgent)
	v.SetDefault("backend.enhanced_score", true)

	v.SetDefault("comparison.transport", TransportBackend)
	v.SetDefault("comparison.send_prompt", false)

	llmDefaults := llm.DefaultConfig()
	v.SetDefault("llm.provider", string(llmDefaults.Provider))
	v.SetDefault("llm.temperature", llmDefaults.Temperature)
	v.SetDefault("llm.tier", string(llm.TierStandard))
	for tier, model := range llmDefaults.Models {
		v.SetDefault("llm.models."+string(tier), model)
	}

	v.SetDefault("cache.type", CacheMemory)
	v.SetDefault("cache.max_entries", 500)
	v.SetDefault("cache.max_age", 24*time.Hour)
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", 24*time.Hour)
	v.SetDefault("cache.redis.prefix", "ats:analysis:")

	pollDefaults := polling.DefaultConfig()
	v.SetDefault("polling.max_attempts", pollDefaults.MaxAttempts)
	v.SetDefault("polling.interval", pollDefaults.Interval)
	v.SetDefault("polling.multiplier", pollDefaults.Multiplier)
	v.SetDefault("polling.max_interval", pollDefaults.MaxInterval)

	revealDefaults := reveal.DefaultConfig()
	order := make([]string, 0, len(revealDefaults.Order))
	for _, p := range revealDefaults.Order {
		order = append(order, string(p))
		v.SetDefault("reveal.delays."+string(p), revealDefaults.Delays[p])
	}
	v.SetDefault("reveal.order", order)

	scoring := ats.DefaultConfig()
	v.SetDefault("scoring.essential_small_set_size", scoring.EssentialSmallSetSize)
	v.SetDefault("scoring.essential_points_small", scoring.EssentialPointsSmall)
	v.SetDefault("scoring.essential_points_large", scoring.EssentialPointsLarge)
	v.SetDefault("scoring.essential_bonus_cap", scoring.EssentialBonusCap)
	v.SetDefault("scoring.essential_penalty_rate", scoring.EssentialPenaltyRate)
	v.SetDefault("scoring.max_penalty_fraction", scoring.MaxPenaltyFraction)
	v.SetDefault("scoring.preferred_points", scoring.PreferredPoints)
	v.SetDefault("scoring.preferred_bonus_cap", scoring.PreferredBonusCap)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stderr")

	rl := ratelimit.DefaultConfig()
	v.SetDefault("ratelimit.enabled", rl.Enabled)
	v.SetDefault("ratelimit.default_limit", rl.DefaultLimit)
	v.SetDefault("ratelimit.default_window", rl.DefaultWindow)
	v.SetDefault("ratelimit.cleanup_interval", rl.CleanupInterval)
	v.SetDefault("ratelimit.idle_ttl", rl.IdleTTL)
	v.SetDefault("ratelimit.whitelist", []string{})
	v.SetDefault("ratelimit.blacklist", []string{})
}

// MergeWithDefaults fills the list-valued sections that have no viper
// defaults: scoring weights and bands, rate limit endpoints and polling bounds.
func (c *Config) MergeWithDefaults() {
	c.Scoring.MergeWithDefaults()
	c.Polling = c.Polling.MergeWithDefaults()
	if len(c.RateLimit.Endpoints) == 0 {
		c.RateLimit.Endpoints = ratelimit.DefaultEndpointConfigs()
	}
	if len(c.Reveal.Order) == 0 {
		c.Reveal = reveal.DefaultConfig()
	}
	if c.Reveal.Delays == nil {
		c.Reveal.Delays = make(map[types.Phase]time.Duration)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return &Error{Field: "server.addr", Message: "is required"}
	}

	if c.Backend.BaseURL == "" {
		return &Error{Field: "backend.base_url", Message: "is required"}
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return &Error{Field: "backend.base_url", Message: fmt.Sprintf("invalid URL %q", c.Backend.BaseURL)}
	}
	if c.Backend.Timeout <= 0 {
		return &Error{Field: "backend.timeout", Message: "must be positive"}
	}

	switch c.Comparison.Transport {
	case TransportBackend, TransportNone:
	case TransportLLM:
		if c.LLM.APIKey == "" {
			return &Error{Field: "llm.api_key", Message: "is required for the llm transport"}
		}
	default:
		return &Error{Field: "comparison.transport", Message: fmt.Sprintf("unknown transport %q", c.Comparison.Transport)}
	}

	switch c.Cache.Type {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return &Error{Field: "cache.redis.addr", Message: "is required for the redis cache"}
		}
	case CachePostgres:
		if c.Cache.DatabaseURL == "" {
			return &Error{Field: "cache.database_url", Message: "is required for the postgres cache"}
		}
	default:
		return &Error{Field: "cache.type", Message: fmt.Sprintf("unknown cache type %q", c.Cache.Type)}
	}
	if c.Cache.MaxEntries < 0 {
		return &Error{Field: "cache.max_entries", Message: "must be non-negative"}
	}

	if c.Polling.MaxAttempts <= 0 {
		return &Error{Field: "polling.max_attempts", Message: "must be positive"}
	}
	if c.Polling.Interval <= 0 {
		return &Error{Field: "polling.interval", Message: "must be positive"}
	}

	seen := make(map[types.Phase]bool, len(c.Reveal.Order))
	for _, p := range c.Reveal.Order {
		if !types.ValidPhase(p) {
			return &Error{Field: "reveal.order", Message: fmt.Sprintf("unknown phase %q", p)}
		}
		if seen[p] {
			return &Error{Field: "reveal.order", Message: fmt.Sprintf("duplicate phase %q", p)}
		}
		seen[p] = true
	}
	for p, d := range c.Reveal.Delays {
		if d < 0 {
			return &Error{Field: "reveal.delays", Message: fmt.Sprintf("delay for %q must be non-negative", p)}
		}
	}

	if err := c.Scoring.Validate(); err != nil {
		return &Error{Field: "scoring", Message: "invalid scoring configuration", Cause: err}
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return &Error{Field: "logging.level", Message: fmt.Sprintf("invalid level %q", c.Logging.Level)}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return &Error{Field: "logging.format", Message: fmt.Sprintf("invalid format %q", c.Logging.Format)}
	}

	if err := c.RateLimit.Validate(); err != nil {
		return &Error{Field: "ratelimit", Message: "invalid rate limit configuration", Cause: err}
	}
	return nil
}
