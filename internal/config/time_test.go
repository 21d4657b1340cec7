package config

import (
	"testing"
	"time"
)

func TestDefaultAutoCleanup(t *testing.T) {
	cfg := DefaultAutoCleanup()
	if !cfg.Enabled || cfg.Interval != 300 {
		t.Fatalf("DefaultAutoCleanup returned %+v, want enabled every 300s", cfg)
	}
}

func TestIntervalDuration(t *testing.T) {
	cfg := AutoCleanup{Enabled: true, Interval: 90}

	t.Run("defaults to seconds", func(t *testing.T) {
		if got := cfg.IntervalDuration(0); got != 90*time.Second {
			t.Fatalf("IntervalDuration returned %s, want 1m30s", got)
		}
	})

	t.Run("honours a custom unit", func(t *testing.T) {
		if got := cfg.IntervalDuration(time.Millisecond); got != 90*time.Millisecond {
			t.Fatalf("IntervalDuration returned %s, want 90ms", got)
		}
	})
}
