package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for cooldown tracking.
var (
	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enricher_rate_limit_cooldowns_total",
		Help: "Total number of upstream cooldowns recorded",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enricher_rate_limit_blocks_total",
		Help: "Total number of requests refused during an upstream cooldown",
	})
)

// Tracker records upstream cooldowns and gates requests while one is
// active. With a nil Redis client the state is kept in process.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger

	mu    sync.Mutex
	local CooldownState
}

// NewTracker creates a new cooldown tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState returns the current cooldown state. A missing Redis key means no
// cooldown.
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	if t.redis == nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		state := t.local
		return &state, nil
	}

	data, err := t.redis.Get(ctx, RedisKeyCooldown).Bytes()
	if err == redis.Nil {
		return &CooldownState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cooldown state: %w", err)
	}

	var state CooldownState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse cooldown state: %w", err)
	}
	return &state, nil
}

// UpdateFromResponse records a cooldown when the upstream answered 429 or
// 503. Other status codes are ignored.
func (t *Tracker) UpdateFromResponse(ctx context.Context, statusCode int, headers http.Header) error {
	if statusCode != http.StatusTooManyRequests && statusCode != http.StatusServiceUnavailable {
		return nil
	}

	wait := parseRetryAfter(headers.Get("Retry-After"), time.Now())
	now := time.Now()
	state := CooldownState{
		Until:      now.Add(wait),
		StatusCode: statusCode,
		LastUpdate: now,
	}

	if t.redis == nil {
		t.mu.Lock()
		if state.Until.After(t.local.Until) {
			t.local = state
		}
		t.mu.Unlock()
	} else {
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal cooldown state: %w", err)
		}
		if err := t.redis.Set(ctx, RedisKeyCooldown, data, wait).Err(); err != nil {
			return fmt.Errorf("store cooldown state in redis: %w", err)
		}
	}

	cooldownsTotal.Inc()
	t.logger.Warn().
		Int("status_code", statusCode).
		Dur("cooldown", wait).
		Time("until", state.Until).
		Msg("Upstream asked to slow down - cooling off")
	return nil
}

// ShouldAllowRequest reports whether a request may be sent now.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get rate limit state: %w", err)
	}

	if state.Active() {
		t.logger.Debug().
			Dur("remaining", state.Remaining()).
			Msg("Upstream cooldown active - refusing request")
		blocksTotal.Inc()
		return false, nil
	}
	return true, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultCooldown
	}

	var d time.Duration
	if secs, err := strconv.Atoi(v); err == nil {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		d = at.Sub(now)
	} else {
		return DefaultCooldown
	}

	if d <= 0 {
		return time.Second
	}
	if d > MaxCooldown {
		return MaxCooldown
	}
	return d
}
