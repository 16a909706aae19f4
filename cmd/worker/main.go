package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/fitscore/internal/bootstrap"
	"github.com/kirillkom/fitscore/internal/config"
	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/observability/logging"
	"github.com/kirillkom/fitscore/internal/observability/metrics"
)

const queueGroup = "fitscore-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.NATSURL == "" {
		logger.Error("worker_disabled", "reason", "NATS_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := bootstrap.NewEventBus(cfg, bootstrap.NewExecutor(cfg))
	if err != nil {
		logger.Error("event_bus_init_failed", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", bus.Subject(), "queue_group", queueGroup)
	err = bus.SubscribeReportRecorded(ctx, queueGroup, func(_ context.Context, event domain.ReportRecordedEvent) error {
		workerMetrics.ObserveReport(string(event.Status), event.Score)
		if !event.Timestamp.IsZero() {
			workerMetrics.ObserveEventLag("worker", time.Since(event.Timestamp))
		}
		logger.Info("report_recorded",
			"report_id", event.ReportID,
			"user_id", event.UserID,
			"score", event.Score,
			"status", event.Status,
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
