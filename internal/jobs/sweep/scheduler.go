// Package sweep runs the background expiry sweep. A Scheduler owns at most one
// timer; Restart tears it down and re-arms it from freshly read settings.
package sweep

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"iplog/internal/config"
	"iplog/internal/domain"
	"iplog/internal/metrics"
)

const (
	fallbackIntervalSeconds = domain.DefaultAutoCleanupInterval
	defaultTickTimeout      = 30 * time.Second
)

// Sweeper deletes every record expired under the current TTL.
type Sweeper interface {
	SweepExpired(ctx context.Context, trigger string) (int64, error)
}

// Guard lets a tick run only when no other instance is sweeping the same
// store. ran is false when the sweep was skipped.
type Guard interface {
	RunExclusive(ctx context.Context, fn func(context.Context) error) (ran bool, err error)
}

type SettingsSource interface {
	AutoCleanup(ctx context.Context) (config.AutoCleanup, error)
}

type Scheduler struct {
	sweeper     Sweeper
	settings    SettingsSource
	guard       Guard
	base        context.Context
	now         func() time.Time
	unit        time.Duration
	tickTimeout time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration

	// unix nanoseconds of the next tick, 0 while stopped
	nextSweep atomic.Int64
	ticks     atomic.Uint64
}

type Option func(*Scheduler)

// WithBaseContext bounds the lifetime of every timer the scheduler arms.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Scheduler) {
		if ctx != nil {
			s.base = ctx
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIntervalUnit sets the real duration of one configured interval
// second. Tests shrink it to milliseconds.
func WithIntervalUnit(unit time.Duration) Option {
	return func(s *Scheduler) {
		if unit > 0 {
			s.unit = unit
		}
	}
}

func WithGuard(guard Guard) Option {
	return func(s *Scheduler) {
		s.guard = guard
	}
}

func WithTickTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.tickTimeout = timeout
		}
	}
}

func New(sweeper Sweeper, settings SettingsSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		sweeper:     sweeper,
		settings:    settings,
		base:        context.Background(),
		now:         time.Now,
		unit:        time.Second,
		tickTimeout: defaultTickTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reads the auto-cleanup settings and arms the timer when enabled. Any
// timer already running is stopped first. When the settings cannot be read
// the scheduler runs on the fallback interval instead of staying idle.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := s.settings.AutoCleanup(ctx)
	if err != nil {
		log.Error("Failed to read auto cleanup settings, using fallback interval",
			"error", err, "interval_seconds", fallbackIntervalSeconds)
		cfg = config.AutoCleanup{Enabled: true, Interval: fallbackIntervalSeconds}
	}

	if !cfg.Enabled {
		s.publishNext(time.Time{})
		log.Info("Auto cleanup is disabled")
		return
	}

	interval := cfg.IntervalDuration(s.unit)
	if interval <= 0 {
		interval = config.AutoCleanup{Interval: fallbackIntervalSeconds}.IntervalDuration(s.unit)
	}

	runCtx, cancel := context.WithCancel(s.base)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.interval = interval

	s.publishNext(s.now().Add(interval))
	go s.run(runCtx, interval, done)

	log.Info("Auto cleanup started", "interval", interval)
}

// Restart tears down the active timer, if any, and starts again with the
// settings as they are now. It is the only way a settings change reaches a
// running scheduler. It blocks until an in-flight tick finishes, at most the
// tick timeout.
func (s *Scheduler) Restart(ctx context.Context) {
	s.Start(ctx)
}

// Stop cancels the active timer and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.publishNext(time.Time{})
}

func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.interval = 0
}

// Running reports whether a timer is armed. A loop that ended because the
// base context was cancelled no longer counts.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Interval is the cadence captured at the last start, 0 while stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// NextSweepTimestamp returns the time of the scheduled tick, or the zero
// time when the scheduler is stopped or was never started.
func (s *Scheduler) NextSweepTimestamp() time.Time {
	n := s.nextSweep.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Ticks counts completed tick attempts, failed ones included.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	defer s.publishNext(time.Time{})

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
			s.tick(ctx)
			s.publishNext(s.now().Add(interval))
			timer.Reset(interval)
		}
	}
}

// tick runs one sweep. It is detached from ctx cancellation so a restart
// never aborts a sweep halfway; Stop waits for it instead.
func (s *Scheduler) tick(ctx context.Context) {
	defer s.ticks.Add(1)

	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.tickTimeout)
	defer cancel()

	start := time.Now()
	var removed int64
	sweep := func(ctx context.Context) error {
		var err error
		removed, err = s.sweeper.SweepExpired(ctx, metrics.TriggerScheduler)
		return err
	}

	var err error
	if s.guard != nil {
		var ran bool
		ran, err = s.guard.RunExclusive(tickCtx, sweep)
		if err == nil && !ran {
			log.Debug("Scheduled cleanup skipped, another instance holds the sweep lock")
			return
		}
	} else {
		err = sweep(tickCtx)
	}
	if err != nil {
		log.Error("Scheduled cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		log.Info("Scheduled cleanup completed", "removed", removed, "duration", time.Since(start))
	}
}

func (s *Scheduler) publishNext(at time.Time) {
	if at.IsZero() {
		s.nextSweep.Store(0)
		metrics.NextSweepTimestamp.Set(0)
		return
	}
	s.nextSweep.Store(at.UnixNano())
	metrics.NextSweepTimestamp.Set(float64(at.UnixNano()) / float64(time.Second))
}

// RemainingSeconds is max(0, floor((next-now)/1s)).
func RemainingSeconds(next, now time.Time) int64 {
	if next.IsZero() {
		return 0
	}
	remaining := next.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(remaining / time.Second)
}
