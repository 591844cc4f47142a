package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/core/ports"
)

var errMissingUser = errors.New("user id required")

// PipelineMetrics receives pipeline-level measurements. A nil value disables
// instrumentation.
type PipelineMetrics interface {
	ObservePassDuration(pass string, mediaType domain.MediaType, d time.Duration)
	RecordVerdict(verdict domain.Verdict, mediaType domain.MediaType)
	RecordParseDefects(n int)
	RecordPipelineFailure(stage string)
}

// AnalyzeUseCase runs the dual-pass pipeline: ingest, neutral observation,
// forensic examination, normalization, persistence, event publication.
type AnalyzeUseCase struct {
	ingestor ports.MediaIngestor
	gateway  ports.ModelGateway
	repo     ports.ResultRepository
	queue    ports.MessageQueue
	metrics  PipelineMetrics
	logger   *slog.Logger
}

func NewAnalyzeUseCase(
	ingestor ports.MediaIngestor,
	gateway ports.ModelGateway,
	repo ports.ResultRepository,
	queue ports.MessageQueue,
	metrics PipelineMetrics,
	logger *slog.Logger,
) *AnalyzeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeUseCase{
		ingestor: ingestor,
		gateway:  gateway,
		repo:     repo,
		queue:    queue,
		metrics:  metrics,
		logger:   logger,
	}
}

func (uc *AnalyzeUseCase) AnalyzeUpload(ctx context.Context, userID string, lang domain.Language, filename string, size int64, body io.Reader) (*domain.AnalysisResult, error) {
	asset, err := uc.ingestor.FromUpload(ctx, filename, size, body)
	if err != nil {
		uc.failStage("media_ingestion")
		return nil, err
	}
	return uc.run(ctx, domain.AnalysisRequest{
		Media:    asset,
		UserID:   userID,
		Language: lang,
		Origin:   domain.OriginUpload,
	})
}

func (uc *AnalyzeUseCase) AnalyzeURL(ctx context.Context, userID string, lang domain.Language, rawURL string) (*domain.AnalysisResult, error) {
	asset, err := uc.ingestor.FromURL(ctx, rawURL)
	if err != nil {
		uc.failStage("media_ingestion")
		return nil, err
	}
	return uc.run(ctx, domain.AnalysisRequest{
		Media:    asset,
		UserID:   userID,
		Language: lang,
		Origin:   domain.OriginURL,
	})
}

func (uc *AnalyzeUseCase) run(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if req.UserID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze", errMissingUser)
	}
	if !domain.ValidLanguage(req.Language) {
		req.Language = domain.LanguageEnglish
	}
	media := req.Media

	log := uc.logger.With(
		slog.String("user_id", req.UserID),
		slog.String("file_name", media.FileName),
		slog.String("media_type", string(media.Type)),
		slog.Int64("size", media.Size),
	)

	// Pass 1: neutral observation. A model failure here aborts the pipeline;
	// nothing is persisted for a run that produced no verdict.
	obsStart := time.Now()
	obsRaw, err := uc.gateway.Observe(ctx, media, req.Language)
	if err != nil {
		uc.failStage("observation_pass")
		log.Error("observation pass failed", slog.Any("error", err))
		return nil, err
	}
	uc.passDone("observe", media.Type, time.Since(obsStart))

	observations, obsDefects := parseObservations(obsRaw)

	// Pass 2: forensic examination conditioned on the pass-1 report.
	examStart := time.Now()
	forensicRaw, err := uc.gateway.Examine(ctx, media, observations, req.Language)
	if err != nil {
		uc.failStage("forensic_pass")
		log.Error("forensic pass failed", slog.Any("error", err))
		return nil, err
	}
	uc.passDone("examine", media.Type, time.Since(examStart))

	report := parseForensicResponse(forensicRaw)
	ensureNarrative(&report)

	result := uc.assemble(req, report, observations, obsDefects)

	if err := uc.repo.Create(ctx, result); err != nil {
		uc.failStage("persistence")
		log.Error("persist analysis failed", slog.Any("error", err))
		return nil, err
	}

	// The analysis already succeeded from the caller's perspective; event
	// publication is best effort.
	if uc.queue != nil {
		if err := uc.queue.PublishAnalysisCompleted(ctx, result.ID); err != nil {
			log.Warn("publish analysis.completed failed", slog.Any("error", err))
		}
	}

	if uc.metrics != nil {
		uc.metrics.RecordVerdict(result.Verdict, media.Type)
		uc.metrics.RecordParseDefects(len(report.Defects) + len(obsDefects))
	}
	log.Info("analysis completed",
		slog.String("analysis_id", result.ID),
		slog.String("verdict", string(result.Verdict)),
		slog.Int("confidence", result.Confidence),
		slog.Int("defects", len(report.Defects)+len(obsDefects)),
	)
	return result, nil
}

func (uc *AnalyzeUseCase) assemble(req domain.AnalysisRequest, report parsedReport, observations []string, obsDefects []Defect) *domain.AnalysisResult {
	media := req.Media

	records := []stageRecord{
		{name: "media_ingestion"},
		{name: "observation_pass", defects: obsDefects},
		{name: "forensic_pass"},
		{name: "response_parsing", defects: report.Defects},
	}

	technical := report.Technical
	technical.RawObservations = observations

	result := &domain.AnalysisResult{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		FileType:       media.Type,
		FileName:       media.FileName,
		FileSize:       media.Size,
		Verdict:        report.Verdict,
		Confidence:     report.Confidence,
		Language:       req.Language,
		Summary:        report.Summary,
		Recommendation: report.Recommendation,
		ForensicNotes:  report.ForensicNotes,
		Indicators:     report.Indicators,
		Annotations:    report.Annotations,
		Technical:      technical,
		Stages:         mergeStages(report, records),
		MediaDuration:  media.Duration,
		CreatedAt:      time.Now().UTC(),
	}
	if len(media.Preview) > 0 {
		result.Preview = base64.StdEncoding.EncodeToString(media.Preview)
		result.PreviewType = media.PreviewMime
	}
	return result
}

func (uc *AnalyzeUseCase) passDone(pass string, mediaType domain.MediaType, d time.Duration) {
	if uc.metrics != nil {
		uc.metrics.ObservePassDuration(pass, mediaType, d)
	}
}

func (uc *AnalyzeUseCase) failStage(stage string) {
	if uc.metrics != nil {
		uc.metrics.RecordPipelineFailure(stage)
	}
}
