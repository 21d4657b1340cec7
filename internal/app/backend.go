package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"iplog/internal/config"
	"iplog/internal/database"
	"iplog/internal/jobs/sweep"
	"iplog/internal/redisstore"
	"iplog/internal/service"
	"iplog/internal/support"
)

const backendRedis = "redis"

type backend struct {
	records service.RecordStore
	config  config.Store
	// guard is set for shared backends where several instances may sweep.
	guard sweep.Guard
	close func() error
}

// openBackend connects the record and config stores selected by --store and
// seeds the default settings that are still missing.
func openBackend(ctx context.Context, args *Arguments) (*backend, error) {
	kind := strings.ToLower(strings.TrimSpace(args.Store))

	switch kind {
	case backendRedis:
		client, err := support.GetRedisClient(ctx, args.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to get redis client: %w", err)
		}
		cfgStore := redisstore.NewConfigStore(client, args.RedisPrefix)
		if err := cfgStore.SeedDefaults(ctx); err != nil {
			_ = support.CloseRedisClient()
			return nil, fmt.Errorf("failed to seed default settings: %w", err)
		}
		log.Info("Using redis store", "prefix", args.RedisPrefix)
		return &backend{
			records: redisstore.NewRecordStore(client, redisstore.WithPrefix(args.RedisPrefix)),
			config:  cfgStore,
			guard:   support.NewLeaderLock(client, args.RedisPrefix+"sweep:lock", support.DefaultLeadershipTTL),
			close:   support.CloseRedisClient,
		}, nil

	case "", database.DriverSQLite, database.DriverPostgres:
		dialector, err := database.OpenDialector(kind, args.SQLitePath)
		if err != nil {
			return nil, err
		}
		db, err := database.SetupDB(database.WithDialector(dialector))
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database: get sql.DB: %w", err)
		}
		if kind == "" {
			kind = database.DriverSQLite
		}
		log.Info("Using database store", "driver", kind)
		return &backend{
			records: database.NewRecordStore(db),
			config:  database.NewConfigStore(db),
			close:   sqlDB.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", args.Store)
	}
}
