package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verilens/verilens/internal/bootstrap"
	"github.com/verilens/verilens/internal/config"
	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/observability/logging"
	"github.com/verilens/verilens/internal/observability/metrics"
)

// The worker consumes analysis.completed events and writes the audit trail:
// verdict, confidence and the stage report of every finished analysis, with
// an own metrics endpoint for alerting on verdict drift.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", workerMetrics.Handler())
		logger.Info("worker metrics listening", slog.String("port", cfg.WorkerMetricsPort))
		if err := http.ListenAndServe(":"+cfg.WorkerMetricsPort, mux); err != nil {
			logger.Error("worker metrics server failed", slog.Any("error", err))
		}
	}()

	logger.Info("worker subscribed", slog.String("subject", cfg.NATSSubject))
	err = app.Queue.SubscribeAnalysisCompleted(ctx, func(handlerCtx context.Context, analysisID string) error {
		auditCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		workerMetrics.StartAudit()
		start := time.Now()
		auditErr := audit(auditCtx, app, logger, workerMetrics, analysisID)
		workerMetrics.FinishAudit("worker", time.Since(start), auditErr)
		return auditErr
	})
	if err != nil {
		logger.Error("worker subscribe failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func audit(ctx context.Context, app *bootstrap.App, logger *slog.Logger, metricsSink *metrics.WorkerMetrics, analysisID string) error {
	result, err := app.Repo.GetForAudit(ctx, analysisID)
	if err != nil {
		return fmt.Errorf("audit %s: %w", analysisID, err)
	}

	metricsSink.ObserveEventLag("worker", time.Since(result.CreatedAt))

	warnings := 0
	for _, stage := range result.Stages {
		if stage.Status != domain.StagePass {
			warnings++
		}
	}

	logger.Info("analysis audited",
		slog.String("analysis_id", result.ID),
		slog.String("media_type", string(result.FileType)),
		slog.String("verdict", string(result.Verdict)),
		slog.Int("confidence", result.Confidence),
		slog.Int("stages", len(result.Stages)),
		slog.Int("stage_warnings", warnings),
		slog.Duration("event_lag", time.Since(result.CreatedAt)),
	)
	return nil
}
