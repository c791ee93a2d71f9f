package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{name: "missing", value: "", expected: DefaultCooldown},
		{name: "seconds", value: "12", expected: 12 * time.Second},
		{name: "zero seconds", value: "0", expected: time.Second},
		{name: "http date", value: now.Add(45 * time.Second).Format(http.TimeFormat), expected: 45 * time.Second},
		{name: "garbage", value: "soon", expected: DefaultCooldown},
		{name: "capped", value: "86400", expected: MaxCooldown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value, now); got != tt.expected {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestTracker_LocalCooldown(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	ctx := context.Background()

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if !allowed {
		t.Fatal("fresh tracker should allow requests")
	}

	headers := http.Header{}
	headers.Set("Retry-After", "60")
	if err := tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, headers); err != nil {
		t.Fatalf("UpdateFromResponse() error = %v", err)
	}

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest() error = %v", err)
	}
	if allowed {
		t.Error("request allowed during cooldown")
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", state.StatusCode)
	}
}

func TestTracker_IgnoresOtherStatuses(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	ctx := context.Background()

	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError} {
		if err := tracker.UpdateFromResponse(ctx, status, http.Header{}); err != nil {
			t.Fatalf("UpdateFromResponse(%d) error = %v", status, err)
		}
	}

	allowed, _ := tracker.ShouldAllowRequest(ctx)
	if !allowed {
		t.Error("non-throttling statuses must not start a cooldown")
	}
}

func TestTracker_ShorterCooldownDoesNotShrinkLocalWindow(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	ctx := context.Background()

	long := http.Header{}
	long.Set("Retry-After", "120")
	short := http.Header{}
	short.Set("Retry-After", "1")

	_ = tracker.UpdateFromResponse(ctx, http.StatusTooManyRequests, long)
	_ = tracker.UpdateFromResponse(ctx, http.StatusServiceUnavailable, short)

	state, _ := tracker.GetState(ctx)
	if state.Remaining() < 100*time.Second {
		t.Errorf("Remaining() = %v, want the longer cooldown kept", state.Remaining())
	}
}
