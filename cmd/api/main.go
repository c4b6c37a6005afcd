package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erdincayar/klinik-asistan-sub000/internal/api/router"
	"github.com/erdincayar/klinik-asistan-sub000/internal/app/bootstrap"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/observability/metrics"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting klinik-asistan API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	metricsHandler, assistantMetrics := setupMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, closeDeps, err := bootstrap.Build(ctx, cfg, assistantMetrics, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer closeDeps()

	// The in-memory queue only reaches consumers in this process, so the
	// background jobs run here instead of in cmd/worker.
	background := make(chan struct{})
	if cfg.UseMemoryQueue {
		go func() {
			defer close(background)
			_ = app.RunBackground(ctx)
		}()
	} else {
		close(background)
	}

	r := router.New(app.RouterConfig(metricsHandler))

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	cancel()
	<-background

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the assistant collectors on a private registry
// alongside the Go and process collectors.
func setupMetrics() (http.Handler, *metrics.AssistantMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewAssistantMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
