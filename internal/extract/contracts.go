package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TextExtractor turns a PDF document into page-framed plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, onPage ProgressFunc) (Result, error)
}

// ProgressFunc is called after each page with pages done and the page total.
type ProgressFunc func(done, total int)

type Result struct {
	Text     string
	Pages    int
	Method   string // "fitz" | "pdftotext"
	Duration time.Duration
	Warnings []string
}

const (
	MethodFitz      = "fitz"
	MethodPdftotext = "pdftotext"
)

// writePage appends one page in the framed layout. Pages are numbered from 1.
func writePage(b *strings.Builder, page int, text string) {
	fmt.Fprintf(b, "--- Page %d ---\n%s\n\n", page, text)
}

func writeFailedPage(b *strings.Builder, page int) {
	fmt.Fprintf(b, "--- Page %d (Error: Could not extract content) ---\n\n", page)
}

// normalizePage collapses the line layout of a page into single spaces.
func normalizePage(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func report(fn ProgressFunc, done, total int) {
	if fn != nil {
		fn(done, total)
	}
}
