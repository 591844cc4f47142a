package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/verilens/verilens/internal/core/domain"
)

func seedResult(repo *fakeRepo, id, owner string, verdict domain.Verdict) *domain.AnalysisResult {
	r := &domain.AnalysisResult{
		ID:        id,
		UserID:    owner,
		FileType:  domain.MediaImage,
		FileName:  id + ".jpg",
		Verdict:   verdict,
		CreatedAt: time.Now().UTC(),
	}
	_ = repo.Create(context.Background(), r)
	return r
}

func TestShareIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	uc := NewResultsUseCase(repo, nil)

	first, err := uc.Share(context.Background(), "a1", "user-1")
	if err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	second, err := uc.Share(context.Background(), "a1", "user-1")
	if err != nil {
		t.Fatalf("Share() second call error = %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("share tokens differ: %q vs %q", first, second)
	}

	shared, err := uc.Shared(context.Background(), first)
	if err != nil {
		t.Fatalf("Shared() error = %v", err)
	}
	if shared.ID != "a1" {
		t.Fatalf("shared lookup resolved %q", shared.ID)
	}
}

func TestShareRejectsForeignResult(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	uc := NewResultsUseCase(repo, nil)

	if _, err := uc.Share(context.Background(), "a1", "user-2"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCompareRequiresTwoIDs(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	uc := NewResultsUseCase(repo, nil)

	if _, err := uc.Compare(context.Background(), "user-1", []string{"a1"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCompareFailsOnUnresolvedID(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	uc := NewResultsUseCase(repo, nil)

	if _, err := uc.Compare(context.Background(), "user-1", []string{"a1", "missing"}); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompareReturnsAllSubjects(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	seedResult(repo, "a2", "user-1", domain.VerdictLikelyFake)
	uc := NewResultsUseCase(repo, nil)

	results, err := uc.Compare(context.Background(), "user-1", []string{"a1", "a2"})
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(results) != 2 || results[1].Verdict != domain.VerdictLikelyFake {
		t.Fatalf("results = %+v", results)
	}
}

func TestHistoryDefaultsAndCaps(t *testing.T) {
	repo := newFakeRepo()
	uc := NewResultsUseCase(repo, nil)

	if _, _, err := uc.History(context.Background(), "user-1", 0, -5); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if _, _, err := uc.History(context.Background(), "user-1", 10_000, 0); err != nil {
		t.Fatalf("History() with oversized limit error = %v", err)
	}
}

func TestDeleteScopedToOwner(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	uc := NewResultsUseCase(repo, nil)

	if err := uc.Delete(context.Background(), "a1", "user-2"); !domain.IsKind(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := uc.Delete(context.Background(), "a1", "user-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := uc.Get(context.Background(), "a1", "user-1"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

type fakeExporter struct {
	rendered int
	err      error
}

func (f *fakeExporter) HistoryWorkbook(results []domain.AnalysisResult) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rendered = len(results)
	return []byte("workbook"), nil
}

func TestExportHistoryRendersOwnerResults(t *testing.T) {
	repo := newFakeRepo()
	seedResult(repo, "a1", "user-1", domain.VerdictAuthentic)
	seedResult(repo, "a2", "user-1", domain.VerdictSuspicious)
	seedResult(repo, "b1", "user-2", domain.VerdictAuthentic)
	exporter := &fakeExporter{}
	uc := NewResultsUseCase(repo, exporter)

	data, err := uc.ExportHistory(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ExportHistory() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty workbook")
	}
	if exporter.rendered != 2 {
		t.Fatalf("exporter received %d results, want 2", exporter.rendered)
	}
}

func TestExportHistoryPropagatesExporterError(t *testing.T) {
	repo := newFakeRepo()
	uc := NewResultsUseCase(repo, &fakeExporter{err: errors.New("render failed")})
	if _, err := uc.ExportHistory(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}
