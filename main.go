package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"taskboard-api/api"
	"taskboard-api/config"
	"taskboard-api/domain"
	"taskboard-api/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	board := storage.NewBoard(domain.DefaultColumns())
	if cfg.SeedSampleData {
		if _, err := storage.SeedSampleTasks(context.Background(), board); err != nil {
			logger.Fatalf("seed: %v", err)
		}
		logger.WithField("tasks", board.Len()).Info("sample tasks loaded")
	}

	deps := api.Deps{Logger: logger}

	if cfg.RedisConnectionString != "" {
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc := redis.NewClient(redisOpts)
		defer rc.Close()
		deps.Idempotency = api.NewRedisIdempotency(rc, cfg.IdempotencyTTL)
	}

	var pub api.Publisher = api.LogPublisher{Logger: logger}
	if cfg.PublishEvents() {
		qp, err := storage.NewQueuePublisher(cfg.StorageConnectionString, cfg.EventsQueue)
		if err != nil {
			logger.Fatalf("events queue: %v", err)
		}
		if err := qp.EnsureQueue(context.Background()); err != nil {
			logger.Fatalf("create events queue: %v", err)
		}
		pub = qp
	}
	deps.Events = api.NewDispatcher(pub, api.DispatcherConfig{
		Workers:        cfg.EventWorkers,
		Buffer:         cfg.EventBuffer,
		PublishTimeout: cfg.EventTimeout,
		HandoffTimeout: cfg.EventHandoffTimeout,
	}, logger)

	e := api.NewServer(api.ServerConfig{
		FrontendOrigins: cfg.FrontendOrigins,
		BodyLimit:       cfg.BodyLimit,
	}, board, deps)
	if cfg.Pprof {
		pprof.Register(e)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("taskboard api listening")
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	deps.Events.Close()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("tracer shutdown")
	}
	logger.WithFields(log.Fields{
		"dropped": deps.Events.Dropped(),
		"failed":  deps.Events.Failed(),
	}).Info("event dispatcher stopped")
}
