package cache

import (
	"time"

	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// Outcome is the kind of answer held by a cache entry.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
)

// CacheEntry represents a cached lookup answer.
type CacheEntry struct {
	Outcome Outcome `json:"outcome"`

	// Owner is empty for OutcomeNotFound.
	Owner record.Enrichment `json:"owner"`

	// Expires is when the entry becomes stale
	Expires time.Time `json:"expires"`

	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry that expires after ttl.
func NewEntry(outcome Outcome, owner record.Enrichment, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Outcome:  outcome,
		Owner:    owner,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Valid reports whether the entry holds a usable answer.
func (e *CacheEntry) Valid() bool {
	switch e.Outcome {
	case OutcomeFound:
		return e.Owner.FirstName != ""
	case OutcomeNotFound:
		return true
	}
	return false
}
