package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erdincayar/klinik-asistan-sub000/internal/app/bootstrap"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/observability/metrics"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// The worker consumes the SQS inbound queue and runs the scheduled jobs.
// Deployments on the in-memory queue run these inside cmd/api instead.
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.UseMemoryQueue {
		logger.Error("worker requires USE_MEMORY_QUEUE=false; the API runs background jobs in memory mode")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.NewAssistantMetrics(reg)

	app, closeDeps, err := bootstrap.Build(ctx, cfg, m, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer closeDeps()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("klinik-asistan worker started", "queue", cfg.InboundQueueURL)
	if err := app.RunBackground(ctx); err != nil {
		logger.Error("background jobs failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}
