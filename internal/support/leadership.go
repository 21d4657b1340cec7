package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeadershipTTL   = 45 * time.Second
	renewalTimeout         = 5 * time.Second
	minRenewalInterval     = time.Second
	defaultRenewalFraction = 3
)

var (
	leaderCounter atomic.Uint64

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)
)

// LeaderLock is a Redis lease held for the duration of a single job run, so
// instances sharing one Redis never run that job at the same time.
type LeaderLock struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewLeaderLock(client redis.Cmdable, key string, ttl time.Duration) *LeaderLock {
	if ttl <= 0 {
		ttl = DefaultLeadershipTTL
	}
	return &LeaderLock{client: client, key: key, ttl: ttl}
}

// RunExclusive acquires the lease, runs fn and releases it. When another
// holder owns the lease fn is not called and ran is false. The context given
// to fn is cancelled if the lease is lost while fn runs.
func (l *LeaderLock) RunExclusive(ctx context.Context, fn func(context.Context) error) (ran bool, err error) {
	if fn == nil {
		return false, errors.New("support: leader run function cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	value := generateLeaderID()
	ok, err := l.client.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("support: leader lock %s: %w", l.key, err)
	}
	if !ok {
		return false, nil
	}

	session := newLeaderSession(ctx, l.client, l.key, value, l.ttl)
	defer session.Close()

	log.Debug("leader lock: acquired", "key", l.key)
	return true, fn(session.ctx)
}

type leaderSession struct {
	client    redis.Cmdable
	key       string
	value     string
	ttl       time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	stopRenew chan struct{}
	closeOnce sync.Once
}

func newLeaderSession(ctx context.Context, client redis.Cmdable, key, value string, ttl time.Duration) *leaderSession {
	sessionCtx, cancel := context.WithCancel(ctx)
	session := &leaderSession{
		client:    client,
		key:       key,
		value:     value,
		ttl:       ttl,
		ctx:       sessionCtx,
		cancel:    cancel,
		stopRenew: make(chan struct{}),
	}
	go session.renewLoop()
	return session
}

func (ls *leaderSession) Close() {
	ls.closeOnce.Do(func() {
		close(ls.stopRenew)
		ls.cancel()
		if err := ls.releaseLock(); err != nil {
			log.Warn("leader lock: release failed", "key", ls.key, "error", err)
		}
	})
}

func (ls *leaderSession) renewLoop() {
	interval := ls.ttl / defaultRenewalFraction
	if interval < minRenewalInterval {
		interval = minRenewalInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ls.stopRenew:
			return
		case <-ls.ctx.Done():
			return
		case <-ticker.C:
			if err := ls.renewLock(); err != nil {
				log.Warn("leader lock: renewal failed", "key", ls.key, "error", err)
				ls.cancel()
				return
			}
		}
	}
}

func (ls *leaderSession) renewLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	res, err := renewScript.Run(ctx, ls.client, []string{ls.key}, ls.value, ls.ttl.Milliseconds()).Result()
	if err != nil {
		return err
	}

	if updated, ok := res.(int64); ok && updated == 0 {
		return errors.New("lock lost")
	}

	return nil
}

func (ls *leaderSession) releaseLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), renewalTimeout)
	defer cancel()

	_, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.value).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func generateLeaderID() string {
	host, _ := os.Hostname()
	counter := leaderCounter.Add(1)
	return fmt.Sprintf("%s-%d-%d-%d", host, os.Getpid(), time.Now().UnixNano(), counter)
}
