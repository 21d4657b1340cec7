// Package expiry holds the single definition of when a record expires. The
// sweep predicate and the expiry shown in list results both derive from it.
package expiry

import (
	"math"
	"time"
)

const maxSeconds = math.MaxInt64 / int64(time.Second)

// TTL converts seconds to a duration, saturating instead of wrapping for
// values beyond time.Duration's range.
func TTL(seconds int) time.Duration {
	switch {
	case int64(seconds) > maxSeconds:
		return math.MaxInt64
	case int64(seconds) < -maxSeconds:
		return math.MinInt64 + 1
	}
	return time.Duration(seconds) * time.Second
}

// ExpiresAt returns createdAt + ttlSeconds.
func ExpiresAt(createdAt time.Time, ttlSeconds int) time.Time {
	return createdAt.Add(TTL(ttlSeconds))
}

// IsExpired reports whether expiresAt lies strictly before now.
func IsExpired(expiresAt, now time.Time) bool {
	return expiresAt.Before(now)
}

// Cutoff is the creation time below which a record is expired at now:
// createdAt + ttl < now  <=>  createdAt < now - ttl.
func Cutoff(ttlSeconds int, now time.Time) time.Time {
	return now.Add(-TTL(ttlSeconds))
}
