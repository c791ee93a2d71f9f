package ratelimit

import (
	"testing"
	"time"
)

func TestCooldownState_Active(t *testing.T) {
	tests := []struct {
		name     string
		until    time.Time
		expected bool
	}{
		{name: "zero state", until: time.Time{}, expected: false},
		{name: "future", until: time.Now().Add(time.Minute), expected: true},
		{name: "past", until: time.Now().Add(-time.Second), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &CooldownState{Until: tt.until}
			if got := s.Active(); got != tt.expected {
				t.Errorf("Active() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCooldownState_Remaining(t *testing.T) {
	past := &CooldownState{Until: time.Now().Add(-time.Minute)}
	if got := past.Remaining(); got != 0 {
		t.Errorf("Remaining() for past cooldown = %v, want 0", got)
	}

	future := &CooldownState{Until: time.Now().Add(time.Minute)}
	if got := future.Remaining(); got <= 50*time.Second || got > time.Minute {
		t.Errorf("Remaining() = %v, want ~1m", got)
	}
}
