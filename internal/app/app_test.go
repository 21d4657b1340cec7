package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"iplog/internal/config"
	"iplog/internal/support"
)

func TestParseArgumentsDefaults(t *testing.T) {
	for _, env := range []string{"ADDR", "STORE_BACKEND", "SQLITE_PATH", "REDIS_URL", "REDIS_PREFIX", "GEOLITE_COUNTRY_DB", "STATIC_DIR", "LOG_LEVEL"} {
		t.Setenv(env, "")
		_ = os.Unsetenv(env)
	}

	args, err := parseArguments(nil)
	if err != nil {
		t.Fatalf("parseArguments: %v", err)
	}
	if args.Addr != ":3001" {
		t.Fatalf("addr = %q, want :3001", args.Addr)
	}
	if args.Store != "sqlite" {
		t.Fatalf("store = %q, want sqlite", args.Store)
	}
	if args.SQLitePath != "data/iplog.db" {
		t.Fatalf("sqlite path = %q, want data/iplog.db", args.SQLitePath)
	}
	if args.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", args.LogLevel)
	}
}

func TestParseArgumentsEnvAndFlags(t *testing.T) {
	t.Setenv("ADDR", ":8080")
	t.Setenv("STORE_BACKEND", "redis")

	args, err := parseArguments([]string{"--addr", ":9090"})
	if err != nil {
		t.Fatalf("parseArguments: %v", err)
	}
	if args.Addr != ":9090" {
		t.Fatalf("flag should win over env, got %q", args.Addr)
	}
	if args.Store != "redis" {
		t.Fatalf("store = %q, want redis from env", args.Store)
	}
}

func TestOpenBackendSQLite(t *testing.T) {
	ctx := context.Background()
	args := &Arguments{Store: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "iplog.db")}

	stores, err := openBackend(ctx, args)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}
	t.Cleanup(func() {
		_ = stores.close()
	})

	timeout, err := config.NewSettings(stores.config).Timeout(ctx)
	if err != nil || timeout != 3600 {
		t.Fatalf("seeded timeout = (%d, %v), want (3600, nil)", timeout, err)
	}
	if _, _, err := stores.records.AddIP(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("add ip: %v", err)
	}
	if stores.guard != nil {
		t.Fatalf("a local sqlite store needs no sweep lease")
	}
}

func TestOpenBackendRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Cleanup(func() {
		_ = support.CloseRedisClient()
	})

	ctx := context.Background()
	args := &Arguments{Store: "redis", RedisURL: "redis://" + mr.Addr(), RedisPrefix: "test:"}

	stores, err := openBackend(ctx, args)
	if err != nil {
		t.Fatalf("openBackend: %v", err)
	}

	cleanup, err := config.NewSettings(stores.config).AutoCleanup(ctx)
	if err != nil {
		t.Fatalf("auto cleanup: %v", err)
	}
	if !cleanup.Enabled || cleanup.Interval != 300 {
		t.Fatalf("seeded auto cleanup = %+v", cleanup)
	}
	if !mr.Exists("test:config") {
		t.Fatalf("expected settings under the configured prefix")
	}
	if stores.guard == nil {
		t.Fatalf("redis backend should guard sweeps with a shared lease")
	}
}

func TestOpenBackendUnsupported(t *testing.T) {
	_, err := openBackend(context.Background(), &Arguments{Store: "mongo"})
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported backend error, got %v", err)
	}
}
