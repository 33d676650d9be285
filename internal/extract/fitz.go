package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// FitzExtractor reads the text layer with MuPDF.
type FitzExtractor struct {
	logger *slog.Logger
}

func NewFitzExtractor(logger *slog.Logger) *FitzExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FitzExtractor{logger: logger}
}

// Extract reads pages in order. A page that cannot be read is marked in the
// output and extraction continues.
func (e *FitzExtractor) Extract(ctx context.Context, data []byte, onPage ProgressFunc) (Result, error) {
	start := time.Now()
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Result{}, common.ExtractionError("open document", err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			e.logger.Warn("extract.fitz.close_error", "error", err)
		}
	}()

	total := doc.NumPage()
	if total == 0 {
		return Result{}, common.ExtractionError("document has no pages", nil)
	}

	var b strings.Builder
	var warns []string
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		text, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("extract.fitz.page_failed", "page", i+1, "error", err)
			warns = append(warns, fmt.Sprintf("page %d: %v", i+1, err))
			writeFailedPage(&b, i+1)
		} else {
			writePage(&b, i+1, normalizePage(text))
		}
		report(onPage, i+1, total)
	}

	res := Result{
		Text:     b.String(),
		Pages:    total,
		Method:   MethodFitz,
		Duration: time.Since(start),
		Warnings: warns,
	}
	e.logger.Info("extract.fitz.ok", "pages", total, "chars", len(res.Text), "warnings", len(warns), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}
