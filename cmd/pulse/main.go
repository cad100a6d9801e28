package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aevon-lab/pulse/internal/auth"
	corecfg "github.com/aevon-lab/pulse/internal/core/config"
	"github.com/aevon-lab/pulse/internal/core/storage"
	"github.com/aevon-lab/pulse/internal/core/storage/memory"
	"github.com/aevon-lab/pulse/internal/core/storage/postgres"
	"github.com/aevon-lab/pulse/internal/ingestion"
	"github.com/aevon-lab/pulse/internal/migrations"
	"github.com/aevon-lab/pulse/internal/projection"
	"github.com/aevon-lab/pulse/internal/ratelimit"
	"github.com/aevon-lab/pulse/internal/retention"
	"github.com/aevon-lab/pulse/internal/server"
)

// eventStore is what the process needs from a storage backend.
type eventStore interface {
	storage.EventStore
	server.HealthChecker
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", "pulse.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"addr", cfg.Server.Addr(),
		"storage", cfg.Storage.Type,
		"ratelimit_backend", cfg.RateLimit.Backend,
		"retention_ttl", cfg.Retention.TTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The writer outlives the server so batches accepted by in-flight
	// requests during shutdown are still written.
	writerCtx, stopWriter := context.WithCancel(context.Background())
	defer stopWriter()

	// 2. Initialize Storage
	store, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize event store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 3. Initialize Auth
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		slog.Error("Failed to initialize token manager", "error", err)
		os.Exit(1)
	}
	resolver := auth.NewResolver(tokens)

	// 4. Initialize Admission Limiters
	limiters, err := newLimiters(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}
	defer limiters.close()

	// 5. Initialize Ingestion (background writer + endpoint)
	writer := ingestion.NewWriter(store, ingestion.WriterOptions{
		QueueSize:       cfg.Ingestion.QueueSize,
		Workers:         cfg.Ingestion.Workers,
		WriteTimeout:    cfg.Ingestion.WriteTimeout,
		DrainTimeout:    cfg.Ingestion.DrainTimeout,
		BreakerFailures: uint32(cfg.Ingestion.BreakerFailures),
		BreakerCooldown: cfg.Ingestion.BreakerCooldown,
	})
	ingestionSvc := ingestion.NewService(writer, ingestion.Options{
		MaxBodySizeMB: cfg.Server.MaxBodySizeMB,
		MaxBatchSize:  cfg.Ingestion.MaxBatchSize,
	})

	// 6. Initialize Projection (query API)
	projectionSvc := projection.NewService(store)

	// 7. Initialize Server
	srv := server.New(cfg.Server.Addr(), store, cfg.Server.Mode)

	analytics := srv.Engine.Group("/analytics", auth.AppIdentityGate(cfg.Auth.AppID), resolver.Middleware())
	ingestionSvc.RegisterRoutes(analytics, limiters.ingestion)

	// The general limiter runs before the principal checks so guests are
	// counted against their own allowance.
	admin := analytics.Group("")
	if limiters.enabled {
		admin.Use(ratelimit.Middleware(
			ratelimit.PolicyGeneral,
			ratelimit.GeneralRule(limiters.guest, limiters.authenticated, auth.Identity),
		))
	}
	admin.Use(auth.RequirePrincipal(), auth.RequireRole(cfg.Auth.AdminRole))
	projectionSvc.RegisterRoutes(admin)

	// 8. Start Background Workers
	var wg sync.WaitGroup
	runBackground := func(ctx context.Context, name string, start func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := start(ctx); err != nil {
				slog.Error("Background worker stopped with error", "worker", name, "error", err)
			}
		}()
	}

	runBackground(writerCtx, "writer", writer.Start)
	for _, janitor := range limiters.janitors {
		j := janitor
		runBackground(ctx, "limiter-janitor", func(ctx context.Context) error {
			j.Run(ctx, cfg.RateLimit.SweepInterval)
			return nil
		})
	}
	if cfg.Retention.Enabled {
		reaper := retention.NewReaper(store, retention.Options{
			TTL:       cfg.Retention.TTL,
			Interval:  cfg.Retention.Interval,
			BatchSize: cfg.Retention.BatchSize,
		})
		runBackground(ctx, "reaper", reaper.Start)
	} else {
		slog.Info("Retention reaper disabled by config")
	}

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
		cancel()
	}

	// Run has returned, so no handler can enqueue any more. The writer
	// drains its queue before the store is closed.
	cancel()
	stopWriter()
	wg.Wait()
	slog.Info("Shutdown complete")
}

// openStore selects the configured backend. The returned func releases it.
func openStore(cfg *corecfg.Config) (eventStore, func(), error) {
	if cfg.Storage.Type == "memory" {
		slog.Warn("Using in-memory event store; events are lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(db, cfg.Database.AutoMigrate); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	adapter, err := postgres.NewAdapterFromDB(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return adapter, func() {
		if err := adapter.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}, nil
}

type limiterSet struct {
	enabled       bool
	ingestion     ratelimit.Admitter
	guest         ratelimit.Admitter
	authenticated ratelimit.Admitter
	janitors      []*ratelimit.SlidingWindow
	redis         *redis.Client
}

func (l *limiterSet) close() {
	if l.redis != nil {
		if err := l.redis.Close(); err != nil {
			slog.Error("Failed to close redis client", "error", err)
		}
	}
}

// newLimiters builds the ingestion and general admitters on the configured
// backend. With rate limiting disabled every admitter is nil.
func newLimiters(ctx context.Context, cfg *corecfg.Config) (*limiterSet, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		slog.Warn("Rate limiting disabled by config")
		return &limiterSet{}, nil
	}

	if rl.Backend == "redis" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		prefix := cfg.Redis.KeyPrefix
		return &limiterSet{
			enabled:       true,
			ingestion:     ratelimit.NewRedisWindow(client, prefix+"ingestion:", rl.IngestionLimit, rl.IngestionWindow),
			guest:         ratelimit.NewRedisWindow(client, prefix+"general:guest:", rl.GeneralGuestLimit, rl.GeneralWindow),
			authenticated: ratelimit.NewRedisWindow(client, prefix+"general:auth:", rl.GeneralAuthLimit, rl.GeneralWindow),
			redis:         client,
		}, nil
	}

	ingestionWindow := ratelimit.NewSlidingWindow(rl.IngestionLimit, rl.IngestionWindow)
	guest := ratelimit.NewSlidingWindow(rl.GeneralGuestLimit, rl.GeneralWindow)
	authenticated := ratelimit.NewSlidingWindow(rl.GeneralAuthLimit, rl.GeneralWindow)
	return &limiterSet{
		enabled:       true,
		ingestion:     ingestionWindow,
		guest:         guest,
		authenticated: authenticated,
		janitors:      []*ratelimit.SlidingWindow{ingestionWindow, guest, authenticated},
	}, nil
}

// issueToken implements `pulse token`, which mints a bearer token for local
// testing of the analytics endpoints.
func issueToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", "pulse.yaml", "Path to configuration file")
	subject := fs.String("sub", "", "Principal id to embed (required)")
	role := fs.String("role", "admin", "Role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("token: -sub is required")
	}

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(*subject, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
