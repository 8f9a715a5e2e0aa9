package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"consentstate/internal/audit"
	"consentstate/internal/consentstate/handler"
	"consentstate/internal/consentstate/metrics"
	"consentstate/internal/consentstate/service"
	"consentstate/internal/consentstate/store"
	"consentstate/internal/platform/config"
	"consentstate/internal/platform/database"
	"consentstate/internal/platform/health"
	"consentstate/internal/platform/kafka/producer"
	"consentstate/internal/platform/logger"
	"consentstate/internal/platform/redis"
	"consentstate/internal/policy"
	httptransport "consentstate/internal/transport/http"
	"consentstate/pkg/platform/circuit"
	"consentstate/pkg/platform/middleware/request"
	"consentstate/pkg/platform/middleware/visitor"
)

const redisStatsInterval = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/consentstate.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	policyHash, err := policy.CurrentHash(cfg.Policy.Hash, cfg.Policy.File)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing consentstate",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"storage_backend", cfg.Storage.Backend,
		"storage_key", cfg.Storage.Key,
		"policy_hash", policyHash,
	)

	g, gctx := errgroup.WithContext(ctx)
	healthHandler := health.New(cfg.Environment)
	storeMetrics := metrics.New()

	backend, cleanup, err := buildStore(gctx, g, cfg, log, healthHandler)
	if err != nil {
		return err
	}
	defer cleanup()

	breaker := circuit.New(cfg.Storage.Backend,
		circuit.WithFailureThreshold(cfg.Storage.BreakerFailures),
		circuit.WithCooldown(cfg.Storage.BreakerCooldown),
	)
	consentStore := store.NewResilient(
		store.NewInstrumented(backend, cfg.Storage.Backend, storeMetrics),
		breaker,
		store.WithResilientLogger(log),
		store.WithResilientMetrics(storeMetrics),
	)

	auditor, closeAudit, err := buildAuditor(cfg, log, healthHandler)
	if err != nil {
		return err
	}
	defer closeAudit()

	svc := service.New(consentStore, service.Config{
		StorageKey: cfg.Storage.Key,
		PolicyHash: policyHash,
	},
		service.WithLogger(log),
		service.WithMetrics(storeMetrics),
		service.WithAuditor(auditor),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:  log,
		Consent: handler.New(svc, log),
		Health:  healthHandler,
		Visitor: visitor.Config{
			CookieName:   cfg.Visitor.CookieName,
			CookieMaxAge: cfg.Visitor.CookieMaxAge,
			Secure:       cfg.Visitor.SecureCookie || cfg.IsProduction(),
		},
		RequestMetrics: request.NewMetrics(),
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// buildStore opens the configured backend and registers its readiness check.
// The returned cleanup closes whatever was opened.
func buildStore(ctx context.Context, g *errgroup.Group, cfg config.Server, log *slog.Logger, hh *health.Handler) (store.Store, func(), error) {
	noop := func() {}

	switch cfg.Storage.Backend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		hh.RegisterCheck("redis", client.Health)
		g.Go(func() error {
			return client.RunPoolStatsRecorder(ctx, redisStatsInterval)
		})
		log.Info("using redis consent store", "record_ttl", cfg.Storage.RecordTTL)
		return store.NewRedis(client.Client, cfg.Storage.RecordTTL), func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", "error", err)
			}
		}, nil

	case config.BackendPostgres:
		pool, err := database.New(ctx, database.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("connect database: %w", err)
		}
		if cfg.Database.RunMigrations {
			if err := database.Migrate(ctx, pool.DB()); err != nil {
				pool.Close() //nolint:errcheck // best-effort cleanup on init failure
				return nil, noop, fmt.Errorf("migrate database: %w", err)
			}
		}
		hh.RegisterCheck("postgres", pool.Health)
		log.Info("using postgres consent store")
		return store.NewPostgres(pool.DB()), func() {
			if err := pool.Close(); err != nil {
				log.Warn("failed to close database pool", "error", err)
			}
		}, nil

	case config.BackendSQLite:
		st, err := store.NewSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite store: %w", err)
		}
		hh.RegisterCheck("sqlite", st.DB().PingContext)
		log.Info("using sqlite consent store", "path", cfg.Storage.SQLitePath)
		return st, func() {
			if err := st.Close(); err != nil {
				log.Warn("failed to close sqlite store", "error", err)
			}
		}, nil

	default:
		log.Warn("using in-memory consent store; records are lost on restart")
		return store.NewInMemory(), noop, nil
	}
}

// buildAuditor publishes audit events to Kafka when brokers are configured,
// otherwise to the structured log.
func buildAuditor(cfg config.Server, log *slog.Logger, hh *health.Handler) (*audit.Publisher, func(), error) {
	var sink audit.Store = audit.NewLogStore(log)
	closeProducer := func() {}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		pcfg := producer.DefaultConfig()
		pcfg.Brokers = cfg.Audit.KafkaBrokers
		p, err := producer.New(pcfg, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create audit producer: %w", err)
		}
		hh.RegisterCheck("kafka", p.Health)
		sink = audit.NewKafkaSink(p, cfg.Audit.Topic)
		closeProducer = func() {
			if err := p.Close(); err != nil {
				log.Warn("failed to close audit producer", "error", err)
			}
		}
		log.Info("publishing audit events to kafka", "topic", cfg.Audit.Topic)
	}

	publisher := audit.NewPublisher(sink,
		audit.WithAsyncBuffer(cfg.Audit.BufferSize),
		audit.WithPublisherLogger(log),
	)
	return publisher, func() {
		publisher.Close()
		closeProducer()
	}, nil
}
