package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"iplog/internal/domain"
	"iplog/internal/expiry"

	"github.com/redis/go-redis/v9"
)

var (
	// KEYS: index, seq, created. ARGV: ip, created_at (unix micros), record prefix.
	addScript = redis.NewScript(`
local existing = redis.call("HGET", KEYS[1], ARGV[1])
if existing then
	return {0, existing}
end
local id = redis.call("INCR", KEYS[2])
redis.call("HSET", KEYS[1], ARGV[1], id)
redis.call("ZADD", KEYS[3], ARGV[2], id)
redis.call("HSET", ARGV[3] .. id, "ip", ARGV[1], "created_at", ARGV[2])
return {1, tostring(id)}`)

	// KEYS: index, created. ARGV: id, record prefix.
	deleteScript = redis.NewScript(`
local key = ARGV[2] .. ARGV[1]
local ip = redis.call("HGET", key, "ip")
if not ip then
	return 0
end
redis.call("HDEL", KEYS[1], ip)
redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("DEL", key)
return 1`)

	// KEYS: index, created. ARGV: max score (exclusive bound string), record prefix.
	deleteRangeScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
for _, id in ipairs(ids) do
	local key = ARGV[2] .. id
	local ip = redis.call("HGET", key, "ip")
	if ip then
		redis.call("HDEL", KEYS[1], ip)
	end
	redis.call("DEL", key)
	redis.call("ZREM", KEYS[2], id)
end
return #ids`)
)

// RecordStore keeps IP records as one hash per record, an ip->id index hash
// and a sorted set of ids scored by creation time in microseconds.
type RecordStore struct {
	client redis.Cmdable
	keys   keys
	now    func() time.Time
}

type RecordStoreOption func(*RecordStore)

func WithPrefix(prefix string) RecordStoreOption {
	return func(s *RecordStore) {
		s.keys = newKeys(prefix)
	}
}

func WithRecordClock(now func() time.Time) RecordStoreOption {
	return func(s *RecordStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRecordStore(client redis.Cmdable, opts ...RecordStoreOption) *RecordStore {
	s := &RecordStore{
		client: client,
		keys:   newKeys(defaultPrefix),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RecordStore) AddIP(ctx context.Context, ip string) (domain.IPRecord, bool, error) {
	if err := domain.ValidateIPv4(ip); err != nil {
		return domain.IPRecord{}, false, err
	}

	opCtx, cancel := opContext(ctx)
	defer cancel()

	created := s.now().UTC().Truncate(time.Microsecond)
	res, err := addScript.Run(opCtx, s.client,
		[]string{s.keys.index, s.keys.seq, s.keys.created},
		ip, created.UnixMicro(), s.keys.record,
	).Slice()
	if err != nil {
		return domain.IPRecord{}, false, storageErr("insert ip record", err)
	}
	if len(res) != 2 {
		return domain.IPRecord{}, false, storageErr("insert ip record", fmt.Errorf("unexpected script reply %v", res))
	}

	id, err := parseID(res[1])
	if err != nil {
		return domain.IPRecord{}, false, storageErr("insert ip record", err)
	}

	inserted, _ := res[0].(int64)
	if inserted == 1 {
		return domain.IPRecord{ID: id, IP: ip, CreatedAt: created}, false, nil
	}

	record, err := s.load(opCtx, id)
	if err != nil {
		return domain.IPRecord{}, false, err
	}
	if record == nil {
		return domain.IPRecord{}, false, storageErr("insert ip record", errors.New("indexed record is missing"))
	}
	return *record, true, nil
}

func (s *RecordStore) Exists(ctx context.Context, ip string) (*domain.IPRecord, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	raw, err := s.client.HGet(opCtx, s.keys.index, ip).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, storageErr("lookup ip record", err)
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, storageErr("lookup ip record", err)
	}
	return s.load(opCtx, id)
}

// List returns every record, newest first.
func (s *RecordStore) List(ctx context.Context) ([]domain.IPRecord, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	ids, err := s.client.ZRevRange(opCtx, s.keys.created, 0, -1).Result()
	if err != nil {
		return nil, storageErr("list ip records", err)
	}
	if len(ids) == 0 {
		return []domain.IPRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, raw := range ids {
		cmds[i] = pipe.HGetAll(opCtx, s.keys.record+raw)
	}
	if _, err := pipe.Exec(opCtx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, storageErr("list ip records", err)
	}

	records := make([]domain.IPRecord, 0, len(ids))
	for i, raw := range ids {
		fields, err := cmds[i].Result()
		if err != nil || len(fields) == 0 {
			// Removed between the range read and the fetch.
			continue
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, storageErr("list ip records", err)
		}
		record, err := decodeRecord(id, fields)
		if err != nil {
			return nil, storageErr("list ip records", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *RecordStore) DeleteByID(ctx context.Context, id uint64) (bool, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	n, err := deleteScript.Run(opCtx, s.client,
		[]string{s.keys.index, s.keys.created},
		strconv.FormatUint(id, 10), s.keys.record,
	).Int64()
	if err != nil {
		return false, storageErr("delete ip record", err)
	}
	return n > 0, nil
}

func (s *RecordStore) DeleteAll(ctx context.Context) (int64, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	n, err := deleteRangeScript.Run(opCtx, s.client,
		[]string{s.keys.index, s.keys.created},
		"+inf", s.keys.record,
	).Int64()
	if err != nil {
		return 0, storageErr("clear ip records", err)
	}
	return n, nil
}

// DeleteExpired removes every record created strictly before now - ttl.
func (s *RecordStore) DeleteExpired(ctx context.Context, ttlSeconds int, now time.Time) (int64, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	cutoff := expiry.Cutoff(ttlSeconds, now).UnixMicro()
	n, err := deleteRangeScript.Run(opCtx, s.client,
		[]string{s.keys.index, s.keys.created},
		"("+strconv.FormatInt(cutoff, 10), s.keys.record,
	).Int64()
	if err != nil {
		return 0, storageErr("delete expired ip records", err)
	}
	return n, nil
}

func (s *RecordStore) load(ctx context.Context, id uint64) (*domain.IPRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.recordKey(id)).Result()
	if err != nil {
		return nil, storageErr("load ip record", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	record, err := decodeRecord(id, fields)
	if err != nil {
		return nil, storageErr("load ip record", err)
	}
	return &record, nil
}

func decodeRecord(id uint64, fields map[string]string) (domain.IPRecord, error) {
	micros, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return domain.IPRecord{}, fmt.Errorf("record %d: created_at: %w", id, err)
	}
	return domain.IPRecord{
		ID:        id,
		IP:        fields["ip"],
		CreatedAt: time.UnixMicro(micros).UTC(),
	}, nil
}

func parseID(v any) (uint64, error) {
	switch id := v.(type) {
	case string:
		return strconv.ParseUint(id, 10, 64)
	case int64:
		return uint64(id), nil
	default:
		return 0, fmt.Errorf("unexpected id type %T", v)
	}
}
