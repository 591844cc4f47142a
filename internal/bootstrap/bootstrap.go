package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/verilens/verilens/internal/config"
	"github.com/verilens/verilens/internal/core/ports"
	"github.com/verilens/verilens/internal/core/usecase"
	"github.com/verilens/verilens/internal/infrastructure/ingest"
	"github.com/verilens/verilens/internal/infrastructure/llm/gemini"
	"github.com/verilens/verilens/internal/infrastructure/preview"
	"github.com/verilens/verilens/internal/infrastructure/queue/nats"
	"github.com/verilens/verilens/internal/infrastructure/report/xlsx"
	"github.com/verilens/verilens/internal/infrastructure/repository/postgres"
	"github.com/verilens/verilens/internal/infrastructure/storage/localfs"
	"github.com/verilens/verilens/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.ResultRepository
	AnalyzeUC ports.AnalysisRunner
	ResultsUC ports.ResultReader

	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAnalysisRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	scratch, err := localfs.New(cfg.ScratchPath)
	if err != nil {
		return nil, fmt.Errorf("init scratch store: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	previewGen := preview.New(scratch, preview.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		MaxEdge:     cfg.PreviewMaxEdge,
		Logger:      logger,
	})
	ingestor := ingest.New(previewGen, ingest.Config{
		MaxBytes:     cfg.MaxUploadBytes,
		FetchTimeout: cfg.FetchTimeout,
		HTTPClient:   &http.Client{},
		Logger:       logger,
	})
	gateway := gemini.New(cfg.GeminiURL, cfg.GeminiAPIKey, cfg.GeminiModel, gemini.Config{
		TimeoutImage:  cfg.ModelTimeoutImage,
		TimeoutAV:     cfg.ModelTimeoutAV,
		MaxConcurrent: cfg.ModelMaxConcurrent,
		RatePerSecond: cfg.ModelRatePerSecond,
	})

	serverMetrics := metrics.NewHTTPServerMetrics("api")

	analyzeUC := usecase.NewAnalyzeUseCase(ingestor, gateway, repo, queue, serverMetrics, logger)
	resultsUC := usecase.NewResultsUseCase(repo, xlsx.New())

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		AnalyzeUC: analyzeUC,
		ResultsUC: resultsUC,
		Metrics:   serverMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
