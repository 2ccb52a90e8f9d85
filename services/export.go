package services

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportService renders the index inventory as an XLSX workbook for
// offline review of what is searchable.
type ExportService struct {
	documents *DocumentService
}

func NewExportService(documents *DocumentService) *ExportService {
	return &ExportService{documents: documents}
}

// InventoryXLSX builds a one-sheet workbook listing every indexed point.
func (s *ExportService) InventoryXLSX(ctx context.Context) (*bytes.Buffer, error) {
	entries, err := s.documents.List(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Inventory"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Vector ID", "Kind", "Document ID", "Filename", "Content Type", "Preview", "Chunk", "Chunk Index", "Total Chunks"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, e := range entries {
		values := []any{
			e.VectorID,
			e.Kind,
			e.DocumentID,
			e.Filename,
			e.ContentType,
			e.Preview,
			strconv.FormatBool(e.IsChunk),
			e.ChunkIndex,
			e.TotalChunks,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	meta := "Export"
	if _, err := f.NewSheet(meta); err == nil {
		f.SetCellValue(meta, "A1", "Exported At")
		f.SetCellValue(meta, "B1", time.Now().UTC().Format(time.RFC3339))
		f.SetCellValue(meta, "A2", "Total Points")
		f.SetCellValue(meta, "B2", len(entries))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return &buf, nil
}

// ExportFilename is the suggested download name for the workbook.
func (s *ExportService) ExportFilename() string {
	return fmt.Sprintf("index-inventory-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
}
