package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited is returned for the health and metrics probes.
var unlimited = &EndpointConfig{}

// MatchEndpoint finds the endpoint configuration for a request. Exact paths
// win over patterns, patterns over prefixes. Returns nil when nothing matches.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if method == http.MethodGet && (path == "/health" || path == "/metrics") {
		return unlimited
	}

	for i := range configs {
		if configs[i].Method == method && configs[i].Path == path {
			return &configs[i]
		}
	}
	for i := range configs {
		if configs[i].Method == method && strings.Contains(configs[i].Path, "*") && matchSegments(configs[i].Path, path) {
			return &configs[i]
		}
	}
	for i := range configs {
		p := configs[i].Path
		if configs[i].Method == method && strings.HasSuffix(p, "/") && strings.HasPrefix(path, p) {
			return &configs[i]
		}
	}
	return nil
}

func matchSegments(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] == "*" {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
