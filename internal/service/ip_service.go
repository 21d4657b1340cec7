package service

import (
	"context"
	"time"

	"iplog/internal/api/dto"
	"iplog/internal/domain"
	"iplog/internal/expiry"
	"iplog/internal/metrics"

	"github.com/charmbracelet/log"
)

// RecordStore is the durable table of IP records.
type RecordStore interface {
	AddIP(ctx context.Context, ip string) (domain.IPRecord, bool, error)
	Exists(ctx context.Context, ip string) (*domain.IPRecord, error)
	List(ctx context.Context) ([]domain.IPRecord, error)
	DeleteByID(ctx context.Context, id uint64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context, ttlSeconds int, now time.Time) (int64, error)
}

// TimeoutSource yields the TTL currently in force.
type TimeoutSource interface {
	Timeout(ctx context.Context) (int, error)
}

type CountryLookup interface {
	Country(ip string) string
}

type IPService struct {
	records  RecordStore
	settings TimeoutSource
	geo      CountryLookup
	now      func() time.Time
}

type Option func(*IPService)

func WithClock(now func() time.Time) Option {
	return func(s *IPService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCountryLookup annotates list results with a country code.
func WithCountryLookup(geo CountryLookup) Option {
	return func(s *IPService) {
		s.geo = geo
	}
}

func NewIPService(records RecordStore, settings TimeoutSource, opts ...Option) *IPService {
	s := &IPService{
		records:  records,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddIP ensures ip is tracked. Adding an address that is already present is
// not an error: the existing record is returned with existed set.
func (s *IPService) AddIP(ctx context.Context, ip string) (domain.IPRecord, bool, error) {
	if err := domain.ValidateIPv4(ip); err != nil {
		return domain.IPRecord{}, false, err
	}

	record, existed, err := s.records.AddIP(ctx, ip)
	if err != nil {
		return domain.IPRecord{}, false, err
	}
	if !existed {
		metrics.RecordsAddedTotal.Inc()
		log.Debug("IP record added", "ip", record.IP, "id", record.ID)
	}
	return record, existed, nil
}

// CheckIP reports the record for ip regardless of its age.
func (s *IPService) CheckIP(ctx context.Context, ip string) (*domain.IPRecord, error) {
	return s.records.Exists(ctx, ip)
}

// ListIPs sweeps expired records and returns the survivors newest first,
// each with the expiry derived from the TTL in force right now.
func (s *IPService) ListIPs(ctx context.Context) ([]dto.IPRecordWithExpiry, error) {
	ttl, err := s.settings.Timeout(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := s.sweep(ctx, ttl, now, metrics.TriggerList); err != nil {
		return nil, err
	}

	records, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]dto.IPRecordWithExpiry, 0, len(records))
	for _, record := range records {
		expiresAt := expiry.ExpiresAt(record.CreatedAt, ttl)
		if expiry.IsExpired(expiresAt, now) {
			continue
		}
		item := dto.IPRecordWithExpiry{
			ID:        record.ID,
			IP:        record.IP,
			CreatedAt: record.CreatedAt,
			ExpiresAt: expiresAt,
		}
		if s.geo != nil {
			item.Country = s.geo.Country(record.IP)
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *IPService) DeleteIP(ctx context.Context, id uint64) (bool, error) {
	return s.records.DeleteByID(ctx, id)
}

func (s *IPService) ClearAll(ctx context.Context) (int64, error) {
	count, err := s.records.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	log.Info("IP records cleared", "removed", count)
	return count, nil
}

// SweepExpired removes every record whose expiry under the current TTL has
// passed. trigger labels the caller in metrics.
func (s *IPService) SweepExpired(ctx context.Context, trigger string) (int64, error) {
	ttl, err := s.settings.Timeout(ctx)
	if err != nil {
		metrics.ObserveSweep(trigger, 0, err)
		return 0, err
	}
	return s.sweep(ctx, ttl, s.now(), trigger)
}

func (s *IPService) sweep(ctx context.Context, ttl int, now time.Time, trigger string) (int64, error) {
	removed, err := s.records.DeleteExpired(ctx, ttl, now)
	metrics.ObserveSweep(trigger, removed, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Info("Expired IP records removed", "removed", removed, "trigger", trigger)
	}
	return removed, nil
}
