package ports

import (
	"context"
	"io"

	"github.com/verilens/verilens/internal/core/domain"
)

// ResultRepository is the narrow contract over the persistence collaborator.
// All operations except GetByShareID are owner-scoped; cross-user access fails
// with domain.ErrForbidden, missing records with domain.ErrNotFound.
type ResultRepository interface {
	Create(ctx context.Context, result *domain.AnalysisResult) error
	GetByID(ctx context.Context, id, ownerID string) (*domain.AnalysisResult, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.AnalysisResult, int, error)
	// AssignShareID sets the share id only when none exists and returns the
	// effective token, so repeated calls never mint a second one.
	AssignShareID(ctx context.Context, id, ownerID, shareID string) (string, error)
	// GetByShareID is the public-access path and intentionally skips owner
	// scoping.
	GetByShareID(ctx context.Context, shareID string) (*domain.AnalysisResult, error)
	// GetForAudit loads a result without owner scoping for internal
	// consumers of completion events.
	GetForAudit(ctx context.Context, id string) (*domain.AnalysisResult, error)
	Delete(ctx context.Context, id, ownerID string) error
	Stats(ctx context.Context, ownerID string) (domain.Stats, error)
}

// MediaIngestor turns an upload or a remote URL into a validated MediaAsset
// with preview and duration attached.
type MediaIngestor interface {
	FromUpload(ctx context.Context, filename string, size int64, body io.Reader) (*domain.MediaAsset, error)
	FromURL(ctx context.Context, rawURL string) (*domain.MediaAsset, error)
}

// ModelGateway is the boundary to the external AI capability. Each call is an
// independent request; pass-2 carries the pass-1 observations inline.
type ModelGateway interface {
	Observe(ctx context.Context, media *domain.MediaAsset, lang domain.Language) (string, error)
	Examine(ctx context.Context, media *domain.MediaAsset, observations []string, lang domain.Language) (string, error)
}

// PreviewGenerator derives the preview artifact and, for audio/video, the
// duration. Implementations fill the asset in place.
type PreviewGenerator interface {
	Derive(ctx context.Context, asset *domain.MediaAsset) error
}

// ScratchStore spools transient media to disk for subprocess-based tooling.
// Subprocesses read the file by the path Save returns.
type ScratchStore interface {
	Save(ctx context.Context, key string, data io.Reader) (string, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes analysis lifecycle events.
type MessageQueue interface {
	PublishAnalysisCompleted(ctx context.Context, analysisID string) error
	SubscribeAnalysisCompleted(ctx context.Context, handler func(context.Context, string) error) error
}

// ReportExporter renders a set of results into a downloadable workbook.
type ReportExporter interface {
	HistoryWorkbook(results []domain.AnalysisResult) ([]byte, error)
}
