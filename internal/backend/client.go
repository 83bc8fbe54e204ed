// Package backend is the HTTP client for the remote analysis service: skills
// extraction, semantic skill comparison, enhanced scoring and job status.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"go.uber.org/zap"
)

// DefaultTimeout is the ceiling for a single backend request.
const DefaultTimeout = 120 * time.Second

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "ats-analyzer/1.0"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 8 << 20

// Endpoint paths
const (
	EndpointAnalyze       = "/analyze"
	EndpointCompareSkills = "/compare-skills"
	EndpointEnhancedScore = "/ats/enhanced-score"
	endpointJobStatus     = "/jobs/%s/status"
)

// Options configures the backend client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	APIKey     string
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client talks to the analysis backend over HTTP
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	apiKey    string
	userAgent string
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewClient creates a backend client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		apiKey:    opts.APIKey,
		userAgent: userAgent,
		logger:    logger.OrNop(opts.Logger),
		metrics:   opts.Metrics,
	}, nil
}

// do sends a request and returns the response body for 2xx statuses.
func (c *Client) do(ctx context.Context, method, endpoint, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &TransportError{Endpoint: endpoint, Message: "failed to encode request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(endpoint, "error", time.Since(start))
		msg := "HTTP request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, &TransportError{Endpoint: endpoint, Message: msg, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.metrics.ObserveBackend(endpoint, strconv.Itoa(resp.StatusCode), elapsed)
	c.logger.Debug("backend request",
		zap.String(logger.FieldEndpoint, endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorDetail(data),
		}
	}
	return data, nil
}

// errorDetail pulls a message out of an error body.
// maxDetailBytes bounds the plain-text error detail kept from a response.
const maxDetailBytes = 200

func errorDetail(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, s := range []string{payload.Error, payload.Detail, payload.Message} {
			if s != "" {
				return s
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxDetailBytes {
		cut := maxDetailBytes
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	if text == "" {
		return "unexpected status"
	}
	return text
}

func decode(endpoint string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ParseError{Endpoint: endpoint, Message: "invalid JSON response", Cause: err}
	}
	return nil
}
