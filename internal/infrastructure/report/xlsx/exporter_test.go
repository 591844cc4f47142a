package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/verilens/verilens/internal/core/domain"
)

func TestHistoryWorkbookRendersRows(t *testing.T) {
	exporter := New()
	data, err := exporter.HistoryWorkbook([]domain.AnalysisResult{
		{
			FileName:   "photo.jpg",
			FileType:   domain.MediaImage,
			Verdict:    domain.VerdictLikelyFake,
			Confidence: 87,
			Summary:    "Synthetic.",
			Technical:  domain.TechnicalDetails{ConsistencyScore: 30},
			Indicators: []domain.Indicator{{Name: "Halo"}},
			CreatedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			FileName:   "voice.mp3",
			FileType:   domain.MediaAudio,
			Verdict:    domain.VerdictAuthentic,
			Confidence: 93,
			CreatedAt:  time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("HistoryWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if rows[0][3] != "Verdict" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][1] != "photo.jpg" || rows[1][3] != "likely_fake" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][3] != "authentic" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestHistoryWorkbookEmptyHistory(t *testing.T) {
	data, err := New().HistoryWorkbook(nil)
	if err != nil {
		t.Fatalf("HistoryWorkbook() error = %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
