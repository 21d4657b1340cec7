package redisstore

import (
	"context"
	"errors"

	"iplog/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ConfigStore keeps settings in a single hash.
type ConfigStore struct {
	client redis.Cmdable
	key    string
}

func NewConfigStore(client redis.Cmdable, prefix string) *ConfigStore {
	return &ConfigStore{client: client, key: newKeys(prefix).config}
}

func (s *ConfigStore) Get(ctx context.Context, key string) (string, bool, error) {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	value, err := s.client.HGet(opCtx, s.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, storageErr("read config", err)
	}
	return value, true, nil
}

func (s *ConfigStore) Set(ctx context.Context, key, value string) error {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	if err := s.client.HSet(opCtx, s.key, key, value).Err(); err != nil {
		return storageErr("write config", err)
	}
	return nil
}

// SeedDefaults writes each default setting that has no value yet.
func (s *ConfigStore) SeedDefaults(ctx context.Context) error {
	opCtx, cancel := opContext(ctx)
	defer cancel()

	pipe := s.client.TxPipeline()
	for _, entry := range domain.DefaultConfigEntries() {
		pipe.HSetNX(opCtx, s.key, entry.Key, entry.Value)
	}
	if _, err := pipe.Exec(opCtx); err != nil {
		return storageErr("seed config", err)
	}
	return nil
}
