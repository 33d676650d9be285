package render

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/joseph-ayodele/cogniflow/internal/assemble"
)

const (
	defaultFontSize   = 12
	defaultLineHeight = 1.5
	defaultMargin     = 25
	pageNumberSize    = 9
)

// PDF renders plain text onto Letter pages in Times, wrapping lines to the
// width between the margins.
type PDF struct {
	logger *slog.Logger
}

func NewPDF(logger *slog.Logger) *PDF {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDF{logger: logger}
}

func (p *PDF) Render(text string, style assemble.Style) ([]byte, error) {
	style = withDefaults(style)

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(style.Margin, style.Margin, style.Margin)
	doc.SetAutoPageBreak(false, style.Margin)
	doc.SetFont("Times", "", style.FontSize)
	// core fonts are cp1252
	tr := doc.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := doc.GetPageSize()
	width := pageW - 2*style.Margin

	lines := wrap(doc, tr(text), width)
	for i, pos := range layout(len(lines), style, pageH) {
		if pos.page > doc.PageNo() {
			if doc.PageNo() > 0 {
				p.footer(doc, style, pageW, pageH)
			}
			doc.AddPage()
		}
		if lines[i] != "" {
			doc.Text(style.Margin, pos.baseline, lines[i])
		}
	}
	if doc.PageNo() == 0 {
		doc.AddPage()
	}
	p.footer(doc, style, pageW, pageH)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	p.logger.Debug("render.pdf.ok", "pages", doc.PageCount(), "lines", len(lines), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (p *PDF) footer(doc *fpdf.Fpdf, style assemble.Style, pageW, pageH float64) {
	if !style.PageNumbers {
		return
	}
	label := fmt.Sprintf("Page %d", doc.PageNo())
	doc.SetFontSize(pageNumberSize)
	doc.Text(pageW-style.Margin-doc.GetStringWidth(label), pageH-style.Margin/2, label)
	doc.SetFontSize(style.FontSize)
}

// position is where one wrapped line lands: a 1-based page and the y of its
// baseline.
type position struct {
	page     int
	baseline float64
}

// layout places n lines top to bottom. The first baseline sits one font size
// below the top margin; a line whose baseline would cross the bottom margin
// moves to the next page.
func layout(n int, style assemble.Style, pageH float64) []position {
	top := style.Margin + style.FontSize
	step := style.FontSize * style.LineHeight
	bottom := pageH - style.Margin

	out := make([]position, 0, n)
	page, y := 1, top
	for i := 0; i < n; i++ {
		if y > bottom && y > top {
			page++
			y = top
		}
		out = append(out, position{page: page, baseline: y})
		y += step
	}
	return out
}

// wrap splits on explicit newlines first so blank lines between chunks
// survive. text must already be translated to cp1252: SplitLines measures
// single bytes against the core font width table.
func wrap(doc *fpdf.Fpdf, text string, width float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if strings.TrimSpace(para) == "" {
			out = append(out, "")
			continue
		}
		for _, line := range doc.SplitLines([]byte(para), width) {
			out = append(out, string(line))
		}
	}
	return out
}

func withDefaults(s assemble.Style) assemble.Style {
	if s.FontSize <= 0 {
		s.FontSize = defaultFontSize
	}
	if s.LineHeight <= 0 {
		s.LineHeight = defaultLineHeight
	}
	if s.Margin < 0 {
		s.Margin = defaultMargin
	}
	return s
}
