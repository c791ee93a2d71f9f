// Package client provides the owner-lookup client backed by the Gemini
// generateContent REST API with search grounding, request pacing, a shared
// upstream cooldown, result caching and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/owner-enricher/pkg/cache"
	"github.com/Sternrassler/owner-enricher/pkg/lookup"
	"github.com/Sternrassler/owner-enricher/pkg/ratelimit"
	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// Prometheus metrics for upstream operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_upstream_requests_total",
		Help: "Total upstream model requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enricher_upstream_request_duration_seconds",
		Help:    "Upstream model request duration in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
	})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_upstream_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "enricher_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

const (
	// DefaultModel supports search grounding at the lowest cost.
	DefaultModel = "gemini-2.5-flash"

	// DefaultBaseURL is the public generative language endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	maxErrorBody = 64 << 10
)

// Client looks up business owners. It implements lookup.Looker.
type Client struct {
	httpClient *http.Client
	tracker    *ratelimit.Tracker
	pacer      *ratelimit.Pacer
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

var _ lookup.Looker = (*Client)(nil)

// Config holds the client configuration.
type Config struct {
	// Redis client for the result cache and the shared cooldown.
	// Optional: nil keeps cooldown state in process and disables caching.
	Redis *redis.Client

	// APIKey for the generative language API (REQUIRED)
	APIKey string

	Model   string
	BaseURL string

	// Pacing
	RequestRPS float64 // Requests per second across all workers, 0 = unlimited
	Burst      int

	// Caching
	CacheTTL time.Duration // 0 disables caching

	// Retry
	MaxRetries int // extra attempts for server, rate limit and network failures

	HTTPTimeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redis *redis.Client, apiKey string) Config {
	return Config{
		Redis:       redis,
		APIKey:      apiKey,
		Model:       DefaultModel,
		BaseURL:     DefaultBaseURL,
		RequestRPS:  2,
		Burst:       1,
		CacheTTL:    24 * time.Hour,
		MaxRetries:  2,
		HTTPTimeout: 45 * time.Second,
	}
}

// New creates a new lookup client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.RequestRPS < 0 {
		return nil, fmt.Errorf("request_rps must be >= 0 (got %v)", cfg.RequestRPS)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 45 * time.Second
	}

	logger := log.With().Str("component", "lookup-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		tracker: ratelimit.NewTracker(cfg.Redis, logger),
		pacer:   ratelimit.NewPacer(cfg.RequestRPS, cfg.Burst),
		config:  cfg,
		logger:  logger,
	}

	if cfg.Redis != nil && cfg.CacheTTL > 0 {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// Lookup investigates one business. Every failure is reported through the
// returned Result.
func (c *Client) Lookup(ctx context.Context, r record.Record) lookup.Result {
	logger := c.logger.With().Str("record_id", r.ID).Logger()

	// Step 1: Check Cache
	key := cache.KeyFor(r, c.config.Model)
	if res, ok := c.fromCache(ctx, key, logger); ok {
		return res
	}

	prompt, err := buildPrompt(r)
	if err != nil {
		return lookup.OtherError(fmt.Errorf("build prompt: %w", err))
	}

	// Step 2: Ask the model, retrying transient failures
	var text string
	err = retryWithBackoff(ctx, logger, c.config.MaxRetries+1, func() error {
		var callErr error
		text, callErr = c.generate(ctx, prompt)
		return callErr
	}, classOf)

	if errors.Is(err, ErrNoAnswer) {
		// nothing to remember: a blocked answer may clear on the next run
		logger.Debug().Msg("Model returned no answer")
		return lookup.NotFound()
	}
	if err != nil {
		class := classOf(err)
		if class == ErrorClassAuth {
			logger.Error().Err(err).Msg("Upstream rejected the API key")
			return lookup.CredentialError(err)
		}
		logger.Warn().Err(err).Str("error_class", string(class)).Msg("Lookup failed")
		return lookup.OtherError(err)
	}

	// Step 3: Interpret the answer
	owner, found := parseOwner(text)
	var res lookup.Result
	if found {
		res = lookup.Success(owner)
	} else {
		res = lookup.NotFound()
	}

	c.toCache(ctx, key, owner, found, logger)
	return res
}

// generate performs one generateContent call and returns the model's text.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if err := c.awaitCooldown(ctx); err != nil {
		return "", err
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return "", &LookupError{ErrorClass: ErrorClassNetwork, Message: "waiting for request slot", Err: err}
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		Tools:    []tool{{GoogleSearch: &struct{}{}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.config.BaseURL, c.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-goog-api-key", c.config.APIKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return "", &LookupError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.tracker.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record upstream cooldown")
	}

	if resp.StatusCode >= 400 {
		return "", c.classifyResponse(resp)
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassParse)).Inc()
		return "", &LookupError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassParse, Message: "decode response", Err: err}
	}

	text := gen.text()
	if text == "" {
		return "", &LookupError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassParse,
			Message:    fmt.Sprintf("%d candidates without text", len(gen.Candidates)),
			Err:        ErrNoAnswer,
		}
	}
	return text, nil
}

// classifyResponse builds a LookupError from an error response.
func (c *Client) classifyResponse(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := resp.Status
	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error.Message != "" {
		message = payload.Error.Message
	} else if len(data) > 0 {
		message = strings.TrimSpace(string(data))
	}

	errClass := classifyStatus(resp.StatusCode, message)
	upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()

	c.logger.Warn().
		Int("status_code", resp.StatusCode).
		Str("error_class", string(errClass)).
		Msg("Upstream request error")

	return &LookupError{
		StatusCode: resp.StatusCode,
		ErrorClass: errClass,
		Message:    message,
	}
}

// awaitCooldown blocks while an upstream cooldown is active.
func (c *Client) awaitCooldown(ctx context.Context) error {
	for {
		allowed, err := c.tracker.ShouldAllowRequest(ctx)
		if err != nil {
			// fail open: a broken Redis must not stop lookups
			c.logger.Warn().Err(err).Msg("Cooldown check failed")
			return nil
		}
		if allowed {
			return nil
		}

		wait := 100 * time.Millisecond
		if state, err := c.tracker.GetState(ctx); err == nil && state.Remaining() > 0 {
			wait = state.Remaining()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &LookupError{ErrorClass: ErrorClassRateLimit, Message: "upstream cooldown", Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (c *Client) fromCache(ctx context.Context, key cache.CacheKey, logger zerolog.Logger) (lookup.Result, bool) {
	if c.cache == nil {
		return lookup.Result{}, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
		return lookup.Result{}, false
	}

	logger.Debug().Str("outcome", string(entry.Outcome)).Msg("Cache hit")
	if entry.Outcome == cache.OutcomeFound {
		return lookup.Success(entry.Owner), true
	}
	return lookup.NotFound(), true
}

func (c *Client) toCache(ctx context.Context, key cache.CacheKey, owner record.Enrichment, found bool, logger zerolog.Logger) {
	if c.cache == nil {
		return
	}

	entry := cache.NewEntry(cache.OutcomeNotFound, record.Enrichment{}, c.config.CacheTTL)
	if found {
		entry = cache.NewEntry(cache.OutcomeFound, owner, c.config.CacheTTL)
	}
	if err := c.cache.Set(ctx, key, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache answer")
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}
