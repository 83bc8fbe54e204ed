package ratelimit

import (
	"fmt"
	"net/http"
	"time"
)

// EndpointConfig is the limit for one route.
type EndpointConfig struct {
	// Path is an exact path, a prefix ending in "/", or a pattern where "*"
	// matches one path segment ("/analyses/*/refresh").
	Path   string        `json:"path" mapstructure:"path"`
	Method string        `json:"method" mapstructure:"method"`
	Limit  int           `json:"limit" mapstructure:"limit"` // requests per window, 0 is unlimited
	Window time.Duration `json:"window" mapstructure:"window"`
	Burst  int           `json:"burst" mapstructure:"burst"` // defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	DefaultLimit  int           `json:"default_limit" mapstructure:"default_limit"`
	DefaultWindow time.Duration `json:"default_window" mapstructure:"default_window"`
	// Limiters idle for longer than IdleTTL are dropped every CleanupInterval.
	CleanupInterval time.Duration    `json:"cleanup_interval" mapstructure:"cleanup_interval"`
	IdleTTL         time.Duration    `json:"idle_ttl" mapstructure:"idle_ttl"`
	Whitelist       []string         `json:"whitelist" mapstructure:"whitelist"`
	Blacklist       []string         `json:"blacklist" mapstructure:"blacklist"`
	Endpoints       []EndpointConfig `json:"endpoints" mapstructure:"endpoints"`
}

// DefaultConfig limits analysis creation and refresh per client and leaves
// reads on a generous global default.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Endpoints:       DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the limits for the routes that start work on
// the backend.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/analyses", Method: http.MethodPost, Limit: 60, Window: time.Hour, Burst: 10},
		{Path: "/analyses/*/refresh", Method: http.MethodPost, Limit: 60, Window: time.Hour, Burst: 10},
	}
}

// Validate checks limits and windows.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DefaultLimit < 0 {
		return fmt.Errorf("ratelimit: default_limit must be non-negative")
	}
	if c.DefaultLimit > 0 && c.DefaultWindow <= 0 {
		return fmt.Errorf("ratelimit: default_window must be positive")
	}
	for _, e := range c.Endpoints {
		if e.Path == "" || e.Method == "" {
			return fmt.Errorf("ratelimit: endpoint requires path and method")
		}
		if e.Limit > 0 && e.Window <= 0 {
			return fmt.Errorf("ratelimit: endpoint %s %s: window must be positive", e.Method, e.Path)
		}
	}
	return nil
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		if v != "" {
			set[v] = true
		}
	}
	return set
}
