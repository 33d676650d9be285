// Package chunker splits extracted document text into ordered, overlapping chunks.
package chunker

import (
	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/common"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

// CharsPerToken approximates token counts from character counts.
const CharsPerToken = 4

// Split walks text in windows of targetTokens*CharsPerToken runes. Each window
// after the first starts overlapTokens*CharsPerToken runes before the previous
// window's end; the last window stops at the end of the text. Ids run 1..N.
func Split(text string, targetTokens, overlapTokens int) ([]entity.Chunk, error) {
	if targetTokens <= 0 {
		return nil, common.ConfigErrorf("chunk size must be positive, got %d", targetTokens)
	}
	if overlapTokens < 0 {
		return nil, common.ConfigErrorf("chunk overlap must not be negative, got %d", overlapTokens)
	}
	if overlapTokens >= targetTokens {
		return nil, common.ConfigErrorf("chunk overlap (%d) must be smaller than chunk size (%d)", overlapTokens, targetTokens)
	}

	runes := []rune(text)
	size := targetTokens * CharsPerToken
	overlap := overlapTokens * CharsPerToken

	var chunks []entity.Chunk
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))
		chunks = append(chunks, entity.Chunk{
			ID:         len(chunks) + 1,
			Status:     constants.ChunkStatusPending,
			SourceText: string(runes[start:end]),
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}
