// Command astaauth serves the authentication API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/internal/config"
	"github.com/projectatlas/astaauth/internal/logger"
	"github.com/projectatlas/astaauth/internal/telemetry"
	"github.com/projectatlas/astaauth/server"
	"github.com/projectatlas/astaauth/store/memory"
	"github.com/projectatlas/astaauth/store/postgres"
	"github.com/projectatlas/astaauth/store/redisstore"
)

var buildVersion = "dev"

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "set-active" {
		err = setActive(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "astaauth: %v\n", err)
		os.Exit(1)
	}
}

// setActive enables or disables one account in the configured store:
//
//	astaauth set-active -id 7 -active=false
func setActive(args []string) error {
	fs := flag.NewFlagSet("set-active", flag.ContinueOnError)
	id := fs.Int64("id", 0, "user id")
	active := fs.Bool("active", false, "new is_active value")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("set-active: -id must be positive")
	}

	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, "astaauth")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	engine, err := astaauth.New().
		WithConfig(cfg.Engine()).
		WithCredentialStore(store).
		WithAuditSink(astaauth.NewLoggerSink(log)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.SetActive(ctx, *id, *active); err != nil {
		return fmt.Errorf("set-active %d: %w", *id, err)
	}
	log.Info().Int64("user_id", *id).Bool("active", *active).Msg("account status updated")
	return nil
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}, "astaauth")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	builder := astaauth.New().
		WithConfig(cfg.Engine()).
		WithCredentialStore(store)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(astaauth.NewLoggerSink(log))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}

	for _, w := range engine.Lint() {
		log.Warn().Str("code", w.Code).Str("severity", w.Severity.String()).Msg(w.Message)
	}

	var pipeline *telemetry.Pipeline
	if cfg.OTLPEndpoint != "" {
		pipeline, err = telemetry.Start(ctx, telemetry.Config{
			ServiceName:    "astaauth",
			ServiceVersion: buildVersion,
			Environment:    cfg.Environment,
			Endpoint:       cfg.OTLPEndpoint,
			Insecure:       cfg.OTLPInsecure,
			Interval:       cfg.OTLPInterval,
		}, engine)
		if err != nil {
			return err
		}
		log.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("otlp metrics enabled")
	}

	srv := server.New(server.Config{
		Addr:            cfg.HTTPAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, engine, log)

	serveErr := srv.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := engine.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("audit flush incomplete")
	}
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown")
	}

	return serveErr
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (astaauth.CredentialStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		if cfg.MigrationsAuto {
			runner, err := postgres.NewRunner(cfg.DatabaseURL, log)
			if err != nil {
				return nil, nil, err
			}
			if err := runner.Up(ctx); err != nil {
				return nil, nil, err
			}
		}
		store, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("using postgres credential store")
		return store, store.Close, nil

	case config.BackendRedis:
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis credential store")
		return redisstore.New(rdb, redisstore.WithPrefix(cfg.RedisPrefix)), func() { _ = rdb.Close() }, nil

	default:
		log.Warn().Msg("using in-memory credential store; accounts are lost on restart")
		return memory.New(), func() {}, nil
	}
}
