package ports

import (
	"context"
	"io"

	"github.com/verilens/verilens/internal/core/domain"
)

// AnalysisRunner is the inbound contract for the dual-pass pipeline.
type AnalysisRunner interface {
	AnalyzeUpload(ctx context.Context, userID string, lang domain.Language, filename string, size int64, body io.Reader) (*domain.AnalysisResult, error)
	AnalyzeURL(ctx context.Context, userID string, lang domain.Language, rawURL string) (*domain.AnalysisResult, error)
}

// ResultReader is the inbound read model over stored results.
type ResultReader interface {
	Get(ctx context.Context, id, ownerID string) (*domain.AnalysisResult, error)
	History(ctx context.Context, ownerID string, limit, offset int) ([]domain.AnalysisResult, int, error)
	Stats(ctx context.Context, ownerID string) (domain.Stats, error)
	Share(ctx context.Context, id, ownerID string) (string, error)
	Shared(ctx context.Context, shareID string) (*domain.AnalysisResult, error)
	Compare(ctx context.Context, ownerID string, ids []string) ([]domain.AnalysisResult, error)
	Delete(ctx context.Context, id, ownerID string) error
	ExportHistory(ctx context.Context, ownerID string) ([]byte, error)
}
