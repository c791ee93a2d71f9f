// Package ratelimit keeps the enricher from overwhelming the lookup service.
// A Pacer spaces requests from all workers with a token bucket, and a
// Tracker records upstream "slow down" answers (HTTP 429/503 with
// Retry-After) as a cooldown shared through Redis, so every process using
// the same API key backs off together.
package ratelimit

import (
	"time"
)

// Redis key for the shared cooldown state.
const RedisKeyCooldown = "enricher:rate_limit:cooldown"

// DefaultCooldown applies when the upstream asks us to slow down without a
// usable Retry-After header.
const DefaultCooldown = 30 * time.Second

// MaxCooldown caps any Retry-After value.
const MaxCooldown = 10 * time.Minute

// CooldownState is the upstream back-off window.
type CooldownState struct {
	// Until is when requests may resume. Zero means no cooldown.
	Until time.Time `json:"until"`

	// StatusCode is the upstream status that started the cooldown.
	StatusCode int `json:"status_code"`

	// LastUpdate is when this state was recorded.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether requests should currently be held back.
func (s *CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// Remaining returns the time left in the cooldown, or 0.
func (s *CooldownState) Remaining() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}
