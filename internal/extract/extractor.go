package extract

import (
	"log/slog"

	"github.com/joseph-ayodele/cogniflow/internal/common"
)

// New returns the extractor named by cfg.Backend.
func New(cfg common.ExtractConfig, logger *slog.Logger) (TextExtractor, error) {
	switch cfg.Backend {
	case "", MethodFitz:
		return NewFitzExtractor(logger), nil
	case MethodPdftotext:
		return NewPdftotextExtractor(cfg.Pdftotext, logger), nil
	default:
		return nil, common.ConfigErrorf("unknown extract backend %q", cfg.Backend)
	}
}
