package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"iplog/internal/domain"
)

// Store is the raw key/value backend the settings live in.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Settings exposes the typed view of the config table: the record TTL and
// the auto-cleanup schedule.
type Settings struct {
	store Store
}

func NewSettings(store Store) *Settings {
	return &Settings{store: store}
}

// Get is the raw accessor; ok is false when the key has never been set.
func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.Get(ctx, key)
}

func (s *Settings) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, key, value)
}

// Timeout returns the TTL in seconds, or the default when the key is unset.
func (s *Settings) Timeout(ctx context.Context) (int, error) {
	raw, ok, err := s.store.Get(ctx, domain.ConfigKeyTimeout)
	if err != nil {
		return 0, err
	}
	if !ok {
		return domain.DefaultTimeoutSeconds, nil
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.WrapStorage("parse timeout", err)
	}
	return seconds, nil
}

func (s *Settings) SetTimeout(ctx context.Context, seconds int) error {
	if err := ValidateTimeout(seconds); err != nil {
		return err
	}
	return s.store.Set(ctx, domain.ConfigKeyTimeout, strconv.Itoa(seconds))
}

// AutoCleanup reads the sweep schedule. Missing keys fall back to the
// defaults instead of failing.
func (s *Settings) AutoCleanup(ctx context.Context) (AutoCleanup, error) {
	cfg := DefaultAutoCleanup()

	enabled, ok, err := s.store.Get(ctx, domain.ConfigKeyAutoCleanupEnabled)
	if err != nil {
		return AutoCleanup{}, err
	}
	if ok {
		cfg.Enabled = strings.TrimSpace(enabled) == "true"
	}

	interval, ok, err := s.store.Get(ctx, domain.ConfigKeyAutoCleanupInterval)
	if err != nil {
		return AutoCleanup{}, err
	}
	if ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(interval))
		if err != nil {
			return AutoCleanup{}, domain.WrapStorage("parse auto cleanup interval", err)
		}
		cfg.Interval = parsed
	}

	return cfg, nil
}

// SetAutoCleanup persists both keys. The two writes are independent; the
// scheduler only observes them on its next restart.
func (s *Settings) SetAutoCleanup(ctx context.Context, enabled bool, interval int) error {
	if err := ValidateAutoCleanupInterval(interval); err != nil {
		return err
	}
	if err := s.store.Set(ctx, domain.ConfigKeyAutoCleanupEnabled, strconv.FormatBool(enabled)); err != nil {
		return err
	}
	return s.store.Set(ctx, domain.ConfigKeyAutoCleanupInterval, strconv.Itoa(interval))
}

func ValidateTimeout(seconds int) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: timeout must be a positive integer, got %d", domain.ErrInvalidInput, seconds)
	}
	if seconds > domain.MaxTimeoutSeconds {
		return fmt.Errorf("%w: timeout must not exceed %d seconds, got %d",
			domain.ErrInvalidInput, domain.MaxTimeoutSeconds, seconds)
	}
	return nil
}

func ValidateAutoCleanupInterval(interval int) error {
	if interval < domain.MinAutoCleanupInterval {
		return fmt.Errorf("%w: cleanup interval must be an integer >= %d seconds, got %d",
			domain.ErrInvalidInput, domain.MinAutoCleanupInterval, interval)
	}
	if interval > domain.MaxAutoCleanupInterval {
		return fmt.Errorf("%w: cleanup interval must not exceed %d seconds, got %d",
			domain.ErrInvalidInput, domain.MaxAutoCleanupInterval, interval)
	}
	return nil
}
