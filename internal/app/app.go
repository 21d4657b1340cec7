package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"iplog/internal/app/server"
	"iplog/internal/app/version"
	"iplog/internal/config"
	"iplog/internal/geolite"
	"iplog/internal/jobs/sweep"
	"iplog/internal/metrics"
	"iplog/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Arguments struct {
	Addr        string `arg:"--addr,env:ADDR" default:":3001" help:"address to serve the API on."`
	Store       string `arg:"--store,env:STORE_BACKEND" default:"sqlite" help:"storage backend: sqlite, postgres or redis."`
	SQLitePath  string `arg:"--sqlite-path,env:SQLITE_PATH" default:"data/iplog.db" help:"path of the sqlite database file."`
	RedisURL    string `arg:"--redis-url,env:REDIS_URL" default:"redis://localhost:6379" help:"redis connection URL for the redis backend."`
	RedisPrefix string `arg:"--redis-prefix,env:REDIS_PREFIX" default:"iplog:" help:"key prefix used by the redis backend."`
	GeoLitePath string `arg:"--geolite-path,env:GEOLITE_COUNTRY_DB" help:"optional GeoLite2-Country database used to annotate listed IPs."`
	StaticDir   string `arg:"--static-dir,env:STATIC_DIR" help:"directory of a built frontend to serve on non-API paths."`
	LogLevel    string `arg:"--log-level,env:LOG_LEVEL" default:"info" help:"minimum log level: debug, info, warn or error."`
}

func (Arguments) Description() string {
	return "iplog records IP addresses that expire after a configurable time-to-live."
}

// Run parses argv, wires the stores, the sweep scheduler and the HTTP API and
// blocks until SIGINT/SIGTERM or a fatal server error.
func Run(argv []string) error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	args, err := parseArguments(argv)
	if err != nil {
		if errors.Is(err, arg.ErrHelp) {
			return nil
		}
		return err
	}

	level, err := log.ParseLevel(strings.ToLower(args.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", args.LogLevel, err)
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, args)
}

func parseArguments(argv []string) (*Arguments, error) {
	args := &Arguments{}
	parser, err := arg.NewParser(arg.Config{Program: "iplog"}, args)
	if err != nil {
		return nil, err
	}
	if err := parser.Parse(argv); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			parser.WriteHelp(os.Stdout)
		}
		return nil, err
	}
	return args, nil
}

func run(ctx context.Context, args *Arguments) error {
	stores, err := openBackend(ctx, args)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.close(); err != nil {
			log.Warn("error closing store", "backend", args.Store, "error", err)
		}
	}()

	svcOpts := []service.Option{}
	if args.GeoLitePath != "" {
		lookup, err := geolite.Open(args.GeoLitePath)
		if err != nil {
			log.Warn("GeoLite country database unavailable, list results stay unannotated", "path", args.GeoLitePath, "error", err)
		} else {
			defer lookup.Close()
			svcOpts = append(svcOpts, service.WithCountryLookup(lookup))
		}
	}

	metrics.Register()

	settings := config.NewSettings(stores.config)
	ips := service.NewIPService(stores.records, settings, svcOpts...)

	g, ctx := errgroup.WithContext(ctx)

	schedOpts := []sweep.Option{sweep.WithBaseContext(ctx)}
	if stores.guard != nil {
		schedOpts = append(schedOpts, sweep.WithGuard(stores.guard))
	}
	scheduler := sweep.New(ips, settings, schedOpts...)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var opts []server.Option
	if args.StaticDir != "" {
		opts = append(opts, server.WithStaticDir(args.StaticDir))
	}
	srv := &http.Server{
		Addr:              args.Addr,
		Handler:           server.New(ips, settings, scheduler, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("Starting HTTP server", "addr", args.Addr, "store", args.Store, "version", version.Get().BuildVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server terminated: %w", err)
	}
	log.Info("Gracefully shutdown")
	return nil
}
