package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/notism-go/config"
	"github.com/oksasatya/notism-go/internal/container"
	pginfra "github.com/oksasatya/notism-go/internal/infrastructure/postgres"
	"github.com/oksasatya/notism-go/internal/worker"
	"github.com/oksasatya/notism-go/pkg/helpers"
	"github.com/oksasatya/notism-go/pkg/metrics"
)

func main() {
	once := flag.Bool("once", false, "run a single cleanup cycle and exit")
	metricsAddr := flag.String("metrics-addr", ":9102", "address serving /metrics while looping; empty disables it")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := helpers.NewLogger(cfg.AppName+"-token-cleanup", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptionsFrom(cfg, "token-cleanup"))
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	c, err := container.New(cfg, logger, container.Infra{Pool: pool})
	if err != nil {
		logger.Fatalf("failed to build services: %v", err)
	}

	w := worker.NewTokenCleanupWorker(c.Cleanup, cfg.TokenCleanupInterval(), logger)
	if *once {
		if _, err := w.RunOnce(ctx); err != nil {
			logger.Fatalf("cleanup failed: %v", err)
		}
		return
	}
	if *metricsAddr != "" {
		srv := metrics.NewServer(*metricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Infof("token cleanup running every %s", cfg.TokenCleanupInterval())
	w.Run(ctx)
	logger.Info("token cleanup stopped")
}
