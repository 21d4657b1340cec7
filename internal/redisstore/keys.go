// Package redisstore keeps IP records and settings in Redis. Multi-key
// mutations run as Lua scripts so each operation is atomic, matching the
// single-statement guarantees of the SQL store.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"iplog/internal/domain"
)

const (
	defaultPrefix  = "iplog:"
	redisOpTimeout = 5 * time.Second
)

type keys struct {
	seq     string
	index   string
	created string
	record  string
	config  string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return keys{
		seq:     prefix + "ip:seq",
		index:   prefix + "ip:index",
		created: prefix + "ip:created",
		record:  prefix + "ip:record:",
		config:  prefix + "config",
	}
}

func (k keys) recordKey(id uint64) string {
	return k.record + strconv.FormatUint(id, 10)
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, redisOpTimeout)
}

func storageErr(op string, err error) error {
	return domain.WrapStorage(op, err)
}
