package database

import (
	"context"
	"errors"
	"time"

	"iplog/internal/domain"
	"iplog/internal/expiry"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore keeps IP records in the ip_records table. Uniqueness of the
// ip column is enforced by the schema, so concurrent inserts of the same
// address collapse into one row.
type RecordStore struct {
	db  *gorm.DB
	now func() time.Time
}

type RecordStoreOption func(*RecordStore)

// WithRecordClock overrides the clock used to stamp created_at.
func WithRecordClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRecordStore(db *gorm.DB, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RecordStore) conn(ctx context.Context) (*gorm.DB, error) {
	if s == nil || s.db == nil {
		return nil, domain.ErrDatabaseNotInitialised
	}
	if ctx != nil {
		return s.db.WithContext(ctx), nil
	}
	return s.db, nil
}

// AddIP inserts ip unless it is already present. The returned bool is true
// when the record existed before the call; the existing row is returned
// unchanged in that case.
func (s *RecordStore) AddIP(ctx context.Context, ip string) (domain.IPRecord, bool, error) {
	if err := domain.ValidateIPv4(ip); err != nil {
		return domain.IPRecord{}, false, err
	}

	db, err := s.conn(ctx)
	if err != nil {
		return domain.IPRecord{}, false, err
	}

	existing, err := s.findByIP(db, ip)
	if err != nil {
		return domain.IPRecord{}, false, err
	}
	if existing != nil {
		return *existing, true, nil
	}

	record := domain.IPRecord{
		IP:        ip,
		CreatedAt: s.now().UTC(),
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}},
		DoNothing: true,
	}).Create(&record)
	if res.Error != nil {
		return domain.IPRecord{}, false, storageErr("insert ip record", res.Error)
	}

	if res.RowsAffected == 0 {
		// Lost the race against a concurrent insert of the same address.
		existing, err := s.findByIP(db, ip)
		if err != nil {
			return domain.IPRecord{}, false, err
		}
		if existing == nil {
			return domain.IPRecord{}, false, storageErr("insert ip record", errors.New("conflicting row vanished"))
		}
		return *existing, true, nil
	}

	return record, false, nil
}

// Exists looks ip up without applying any TTL. A nil record means absent.
func (s *RecordStore) Exists(ctx context.Context, ip string) (*domain.IPRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	return s.findByIP(db, ip)
}

func (s *RecordStore) findByIP(db *gorm.DB, ip string) (*domain.IPRecord, error) {
	var record domain.IPRecord
	err := db.Where("ip = ?", ip).Limit(1).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("lookup ip record", err)
	}
	return &record, nil
}

// List returns every record, newest first.
func (s *RecordStore) List(ctx context.Context) ([]domain.IPRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var records []domain.IPRecord
	if err := db.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, storageErr("list ip records", err)
	}
	return records, nil
}

func (s *RecordStore) DeleteByID(ctx context.Context, id uint64) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}

	res := db.Where("id = ?", id).Delete(&domain.IPRecord{})
	if res.Error != nil {
		return false, storageErr("delete ip record", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *RecordStore) DeleteAll(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.IPRecord{})
	if res.Error != nil {
		return 0, storageErr("clear ip records", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExpired removes every record with created_at + ttl < now in a single
// statement. Rows inserted after now carry a later created_at and can never
// match the cutoff.
func (s *RecordStore) DeleteExpired(ctx context.Context, ttlSeconds int, now time.Time) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := expiry.Cutoff(ttlSeconds, now).UTC()
	res := db.Where("created_at < ?", cutoff).Delete(&domain.IPRecord{})
	if res.Error != nil {
		return 0, storageErr("delete expired ip records", res.Error)
	}
	return res.RowsAffected, nil
}
