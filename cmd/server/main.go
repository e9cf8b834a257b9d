package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"veris/internal/audit"
	auditmetrics "veris/internal/audit/metrics"
	auditpostgres "veris/internal/audit/store/postgres"
	"veris/internal/eventbus"
	eventmetrics "veris/internal/eventbus/metrics"
	eventpostgres "veris/internal/eventbus/store/postgres"
	"veris/internal/platform/config"
	"veris/internal/platform/httpserver"
	"veris/internal/platform/logger"
	platformredis "veris/internal/platform/redis"
	httptransport "veris/internal/transport/http"
	"veris/pkg/platform/middleware/identity"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business operations live in internal packages and are exercised as a
// library; the HTTP surface here is operational only.
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres", "error", err)
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping postgres", "error", err)
		return err
	}

	auditLog := audit.NewLog(auditpostgres.New(db),
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
	)

	busOpts := []eventbus.Option{
		eventbus.WithLogger(log),
		eventbus.WithMetrics(eventmetrics.New()),
		eventbus.WithDriftThreshold(cfg.DriftThreshold),
	}

	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			return err
		}
		defer redisClient.Close()
		busOpts = append(busOpts, eventbus.WithCache(eventbus.NewCache(redisClient.Client, 0, log)))
		log.Info("idempotency cache enabled")
	}

	var forwarder *eventbus.Forwarder
	if len(cfg.KafkaBrokers) > 0 {
		forwarder, err = eventbus.NewForwarder(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			return err
		}
		defer forwarder.Close()
		busOpts = append(busOpts, eventbus.WithSink(forwarder))
		log.Info("event forwarding enabled", "topic", cfg.KafkaTopic)
	}

	bus := eventbus.New(eventpostgres.New(db), busOpts...)

	verifier := identity.NewHMACVerifier(cfg.JWTSigningKey)
	handler := httptransport.NewHandler(bus, auditLog, db, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, verifier))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting veris", "addr", cfg.Addr, "smart_mode", cfg.SmartMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		return err
	}
	log.Info("shutdown complete")
	return nil
}
