package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("RealClock.Since() = %v, expected >= 1s", d)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	clock.Advance(5 * time.Second)
	if got := clock.Since(start); got != 5*time.Second {
		t.Errorf("Since() after Advance = %v, want 5s", got)
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", got, later)
	}
}

func TestStopwatch(t *testing.T) {
	clock := NewMockClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sw := StartStopwatch(clock)

	if got := sw.Seconds(); got != 0 {
		t.Errorf("Seconds() at start = %f, want 0", got)
	}

	clock.Advance(1500 * time.Millisecond)
	if got := sw.Seconds(); got != 1.5 {
		t.Errorf("Seconds() = %f, want 1.5", got)
	}
}

func TestStopwatch_NilClock(t *testing.T) {
	sw := StartStopwatch(nil)
	if sw.Seconds() < 0 {
		t.Error("Seconds() should not be negative")
	}
}

// Compile-time interface checks
var (
	_ Clock = RealClock{}
	_ Clock = (*MockClock)(nil)
)
