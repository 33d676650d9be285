package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cogniflow/internal/assemble"
)

func countPages(pdf []byte) int {
	return bytes.Count(pdf, []byte("/Type /Page\n"))
}

func TestRender_ProducesPDF(t *testing.T) {
	out, err := NewPDF(nil).Render("Hello there.\n\nSecond paragraph.", assemble.Style{FontSize: 12, LineHeight: 1.5, Margin: 25})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 1, countPages(out))
}

func TestRender_PaginatesLongText(t *testing.T) {
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	text := strings.Repeat(para+"\n\n", 30)
	style := assemble.Style{FontSize: 12, LineHeight: 1.5, Margin: 25}

	small, err := NewPDF(nil).Render(text, style)
	require.NoError(t, err)
	style.FontSize = 24
	large, err := NewPDF(nil).Render(text, style)
	require.NoError(t, err)

	assert.Greater(t, countPages(small), 1)
	assert.Greater(t, countPages(large), countPages(small))
}

func TestWithDefaults(t *testing.T) {
	got := withDefaults(assemble.Style{Margin: -1})
	assert.Equal(t, assemble.Style{FontSize: 12, LineHeight: 1.5, Margin: 25}, got)
}

func TestRender_NonASCIIText(t *testing.T) {
	texts := []string{
		"café au lait",
		"it’s a “quote” — dash",
		strings.Repeat("Résumé naïveté façade – déjà vu… ", 200),
	}
	for _, text := range texts {
		var out []byte
		var err error
		require.NotPanics(t, func() {
			out, err = NewPDF(nil).Render(text, assemble.Style{})
		})
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	}
}

func TestRender_EmptyTextStillHasAPage(t *testing.T) {
	out, err := NewPDF(nil).Render("", assemble.Style{})
	require.NoError(t, err)
	assert.Equal(t, 1, countPages(out))
}

func TestLayout_BaselinesStayInsideMargins(t *testing.T) {
	style := assemble.Style{FontSize: 12, LineHeight: 1.5, Margin: 25}
	const pageH = 792.0

	positions := layout(100, style, pageH)
	require.Len(t, positions, 100)
	assert.Equal(t, position{page: 1, baseline: 37}, positions[0])
	assert.Equal(t, 55.0, positions[1].baseline)

	for i, pos := range positions {
		assert.GreaterOrEqual(t, pos.baseline, style.Margin+style.FontSize, "line %d", i)
		assert.LessOrEqual(t, pos.baseline, pageH-style.Margin, "line %d", i)
		if i > 0 && pos.page != positions[i-1].page {
			assert.Equal(t, positions[i-1].page+1, pos.page)
			assert.Equal(t, 37.0, pos.baseline)
		}
	}
	assert.Greater(t, positions[99].page, 1)
}
