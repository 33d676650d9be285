package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

// Source is the subset of the repository the report reads.
type Source interface {
	ListChunks(ctx context.Context) ([]entity.Chunk, error)
	ListLogs(ctx context.Context, limit int) ([]entity.LogRecord, error)
}

// Service produces XLSX reports of persisted chunk records and the activity log.
type Service struct {
	src    Source
	logger *slog.Logger
}

func NewService(src Source, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{src: src, logger: logger}
}

const (
	chunkSheet   = "Chunks"
	logSheet     = "Activity"
	previewRunes = 140
)

// ChunksXLSX returns a workbook with one row per chunk and a second sheet
// holding the activity log, newest first.
func (s *Service) ChunksXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	chunks, err := s.src.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	logs, err := s.src.ListLogs(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	// the default sheet becomes the chunk sheet
	if err := f.SetSheetName("Sheet1", chunkSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(logSheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(chunkSheet)
	f.SetActiveSheet(idx)

	writeRow(f, chunkSheet, 1, "Chunk", "Status", "Model", "Source Chars", "Result Chars", "Range", "Error", "Result Preview")
	for i, c := range chunks {
		writeRow(f, chunkSheet, i+2,
			c.ID,
			string(c.Status),
			c.ModelUsed,
			len([]rune(c.SourceText)),
			len([]rune(c.ResultText)),
			fmt.Sprintf("%d-%d", c.Start, c.End),
			c.Error,
			truncate(c.ResultText, previewRunes),
		)
	}
	_ = f.SetColWidth(chunkSheet, "A", "A", 8)
	_ = f.SetColWidth(chunkSheet, "B", "B", 12)
	_ = f.SetColWidth(chunkSheet, "C", "C", 32)
	_ = f.SetColWidth(chunkSheet, "D", "F", 14)
	_ = f.SetColWidth(chunkSheet, "G", "G", 40)
	_ = f.SetColWidth(chunkSheet, "H", "H", 80)

	writeRow(f, logSheet, 1, "Timestamp", "Level", "Message", "Model")
	for i, l := range logs {
		writeRow(f, logSheet, i+2, l.Timestamp.UTC().Format(time.RFC3339), string(l.Level), l.Message, l.ModelUsed)
	}
	_ = f.SetColWidth(logSheet, "A", "A", 22)
	_ = f.SetColWidth(logSheet, "C", "C", 80)
	_ = f.SetColWidth(logSheet, "D", "D", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"chunks", len(chunks),
		"logs", len(logs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
