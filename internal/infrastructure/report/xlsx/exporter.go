package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/verilens/verilens/internal/core/domain"
)

const sheetName = "Analysis History"

// Exporter renders stored analyses into a spreadsheet for offline review.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) HistoryWorkbook(results []domain.AnalysisResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headers := []string{"Date", "File Name", "Type", "Verdict", "Confidence", "Consistency", "Indicators", "Summary"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E8E8E8"}},
	})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(sheetName, "A1", last, headerStyle)
	}

	for i, r := range results {
		row := i + 2
		values := []any{
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.FileName,
			string(r.FileType),
			string(r.Verdict),
			r.Confidence,
			r.Technical.ConsistencyScore,
			len(r.Indicators),
			r.Summary,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "B", 32)
	_ = f.SetColWidth(sheetName, "H", "H", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}
