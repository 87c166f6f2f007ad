package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"rumbo/internal/archive"
	httpapi "rumbo/internal/http"
	"rumbo/internal/platform/config"
	"rumbo/internal/platform/httpserver"
	"rumbo/internal/platform/joblock"
	"rumbo/internal/platform/logger"
	"rumbo/internal/platform/postgres"
	"rumbo/internal/platform/redis"
	trackinghandler "rumbo/internal/tracking/handler"
	trackingmetrics "rumbo/internal/tracking/metrics"
	"rumbo/internal/tracking/service"
	"rumbo/internal/tracking/store/history"
	"rumbo/internal/tracking/store/live"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	db, err := postgres.Open(cfg.Postgres.URL)
	if err != nil {
		log.Error("postgres setup failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		log.Error("postgres migration failed", "error", err)
		os.Exit(1)
	}

	liveStore := live.NewRedis(redisClient.Client)
	historyStore := history.NewPostgres(db, log)

	trackingService, err := service.New(liveStore, historyStore, log, trackingmetrics.New())
	if err != nil {
		log.Error("tracking service setup failed", "error", err)
		os.Exit(1)
	}

	runner := archive.NewRunner(liveStore, historyStore, log)
	scheduler, err := archive.NewScheduler(runner, joblock.NewRedis(redisClient.Client), log, cfg.Archive)
	if err != nil {
		log.Error("archive scheduler setup failed", "error", err)
		os.Exit(1)
	}

	var archiveHandler *archive.Handler
	if cfg.Archive.Worker {
		scheduler.Start()
		archiveHandler = archive.NewHandler(scheduler, log)
	}

	router := httpapi.NewRouter(
		trackinghandler.New(trackingService, log),
		archiveHandler,
		map[string]httpapi.HealthCheck{
			"redis":    redisClient.Health,
			"postgres": db.PingContext,
		},
	)
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting rumbo tracking server", "addr", cfg.Addr, "archive_worker", cfg.Archive.Worker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		if cfg.Archive.Worker {
			<-scheduler.Stop().Done()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
