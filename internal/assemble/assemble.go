package assemble

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

const separator = "\n\n"

// Style is the page layout of the rendered document. Sizes are in points.
type Style struct {
	FontSize    float64
	LineHeight  float64 // multiple of FontSize
	Margin      float64
	PageNumbers bool
}

// Renderer paginates plain text into a document.
type Renderer interface {
	Render(text string, style Style) ([]byte, error)
}

// Text joins the results of completed chunks in ascending id order. Chunks
// that are not completed are skipped.
func Text(chunks []entity.Chunk) (string, error) {
	done := make([]entity.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Status == constants.ChunkStatusCompleted {
			done = append(done, c)
		}
	}
	if len(done) == 0 {
		return "", common.NewAppError(common.CodeAssembly, "no completed chunks", common.ErrNothingToAssemble)
	}
	slices.SortFunc(done, func(a, b entity.Chunk) int { return a.ID - b.ID })

	parts := make([]string, len(done))
	for i, c := range done {
		parts[i] = c.ResultText
	}
	return strings.Join(parts, separator), nil
}

type Assembler struct {
	renderer Renderer
}

func NewAssembler(r Renderer) *Assembler {
	return &Assembler{renderer: r}
}

// Document assembles the completed chunks and renders them.
func (a *Assembler) Document(chunks []entity.Chunk, style Style) ([]byte, error) {
	text, err := Text(chunks)
	if err != nil {
		return nil, err
	}
	out, err := a.renderer.Render(text, style)
	if err != nil {
		return nil, common.NewAppError(common.CodeAssembly, "render document", err)
	}
	return out, nil
}

// OutputName derives the output file name from the source document name.
func OutputName(documentName string) string {
	base := filepath.Base(strings.TrimSpace(documentName))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	return fmt.Sprintf("%s%s.pdf", constants.OutputPrefix, base)
}
