package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/verilens/verilens/internal/core/domain"
	"github.com/verilens/verilens/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	exportLimit         = 1000
)

// ResultsUseCase is the read model over stored analyses plus the share and
// export operations.
type ResultsUseCase struct {
	repo     ports.ResultRepository
	exporter ports.ReportExporter
}

func NewResultsUseCase(repo ports.ResultRepository, exporter ports.ReportExporter) *ResultsUseCase {
	return &ResultsUseCase{repo: repo, exporter: exporter}
}

func (uc *ResultsUseCase) Get(ctx context.Context, id, ownerID string) (*domain.AnalysisResult, error) {
	return uc.repo.GetByID(ctx, id, ownerID)
}

func (uc *ResultsUseCase) History(ctx context.Context, ownerID string, limit, offset int) ([]domain.AnalysisResult, int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uc.repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (uc *ResultsUseCase) Stats(ctx context.Context, ownerID string) (domain.Stats, error) {
	return uc.repo.Stats(ctx, ownerID)
}

// Share mints a share token for the result, or returns the existing one. The
// repository resolves the race between concurrent mints; whichever token lands
// first wins and every caller sees it.
func (uc *ResultsUseCase) Share(ctx context.Context, id, ownerID string) (string, error) {
	return uc.repo.AssignShareID(ctx, id, ownerID, uuid.NewString())
}

func (uc *ResultsUseCase) Shared(ctx context.Context, shareID string) (*domain.AnalysisResult, error) {
	return uc.repo.GetByShareID(ctx, shareID)
}

// Compare loads the named results for side-by-side display. Every id must
// resolve and belong to the caller; comparison needs at least two subjects.
func (uc *ResultsUseCase) Compare(ctx context.Context, ownerID string, ids []string) ([]domain.AnalysisResult, error) {
	if len(ids) < 2 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "compare",
			errors.New("at least two analysis ids required"))
	}
	results := make([]domain.AnalysisResult, 0, len(ids))
	for _, id := range ids {
		r, err := uc.repo.GetByID(ctx, id, ownerID)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", id, err)
		}
		results = append(results, *r)
	}
	return results, nil
}

func (uc *ResultsUseCase) Delete(ctx context.Context, id, ownerID string) error {
	return uc.repo.Delete(ctx, id, ownerID)
}

// ExportHistory renders the caller's recent analyses into a workbook.
func (uc *ResultsUseCase) ExportHistory(ctx context.Context, ownerID string) ([]byte, error) {
	results, _, err := uc.repo.ListByOwner(ctx, ownerID, exportLimit, 0)
	if err != nil {
		return nil, err
	}
	return uc.exporter.HistoryWorkbook(results)
}
