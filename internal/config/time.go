package config

import (
	"math"
	"time"

	"iplog/internal/domain"
)

// AutoCleanup is the sweep schedule as stored: an on/off switch and the
// cadence in whole seconds.
type AutoCleanup struct {
	Enabled  bool `json:"enabled"`
	Interval int  `json:"interval"`
}

func DefaultAutoCleanup() AutoCleanup {
	return AutoCleanup{
		Enabled:  domain.DefaultAutoCleanupEnabled,
		Interval: domain.DefaultAutoCleanupInterval,
	}
}

// IntervalDuration converts the stored cadence using unit as one "second".
// A non-positive unit means time.Second.
func (a AutoCleanup) IntervalDuration(unit time.Duration) time.Duration {
	if unit <= 0 {
		unit = time.Second
	}
	if int64(a.Interval) > math.MaxInt64/int64(unit) {
		return math.MaxInt64
	}
	return time.Duration(a.Interval) * unit
}
