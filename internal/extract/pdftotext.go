package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// PdftotextExtractor shells out to poppler's pdftotext.
type PdftotextExtractor struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPdftotextExtractor(bin string, logger *slog.Logger) *PdftotextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if bin == "" {
		bin = "pdftotext"
	}
	return &PdftotextExtractor{bin: bin, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner.
func (e *PdftotextExtractor) WithRunner(r Runner) *PdftotextExtractor {
	e.runner = r
	return e
}

func (e *PdftotextExtractor) Extract(ctx context.Context, data []byte, onPage ProgressFunc) (Result, error) {
	start := time.Now()
	if len(data) == 0 {
		return Result{}, common.ExtractionError("empty document", nil)
	}

	tmp, err := os.CreateTemp("", "cogniflow-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Warn("extract.pdftotext.cleanup_error", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp file: %w", err)
	}

	// pdftotext -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.bin, "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return Result{}, common.ExtractionError(strings.TrimSpace(string(errb)), err)
	}

	// form feed separates pages and terminates the last one
	pages := strings.Split(strings.TrimSuffix(string(out), "\f"), "\f")
	if len(pages) == 1 && strings.TrimSpace(pages[0]) == "" {
		return Result{}, common.ExtractionError("no text layer found", nil)
	}

	var b strings.Builder
	for i, p := range pages {
		writePage(&b, i+1, normalizePage(p))
		report(onPage, i+1, len(pages))
	}

	res := Result{
		Text:     b.String(),
		Pages:    len(pages),
		Method:   MethodPdftotext,
		Duration: time.Since(start),
	}
	e.logger.Info("extract.pdftotext.ok", "pages", res.Pages, "chars", len(res.Text), "duration_ms", res.Duration.Milliseconds())
	return res, nil
}
