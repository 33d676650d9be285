package chunker

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/common"
)

func TestSplit_DocumentedExample(t *testing.T) {
	text := strings.Repeat("a", 44000)

	chunks, err := Split(text, 10000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].ID)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 40000, chunks[0].End)
	assert.Len(t, chunks[0].SourceText, 40000)

	assert.Equal(t, 2, chunks[1].ID)
	assert.Equal(t, 39200, chunks[1].Start)
	assert.Equal(t, 44000, chunks[1].End)
	assert.Len(t, chunks[1].SourceText, 4800)

	for _, c := range chunks {
		assert.Equal(t, constants.ChunkStatusPending, c.Status)
		assert.Empty(t, c.ResultText)
	}
}

func TestSplit_CoverageAndOverlap(t *testing.T) {
	cases := []struct {
		name            string
		length          int
		target, overlap int
	}{
		{"single window", 10, 5, 1},
		{"exact multiple", 80, 5, 0},
		{"overlapping", 1000, 25, 5},
		{"max overlap", 333, 3, 2},
		{"short text", 3, 100, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := strings.Repeat("x", tc.length)
			chunks, err := Split(text, tc.target, tc.overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			overlap := tc.overlap * CharsPerToken
			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, tc.length, chunks[len(chunks)-1].End)
			for i, c := range chunks {
				assert.Equal(t, i+1, c.ID)
				assert.Equal(t, c.End-c.Start, len([]rune(c.SourceText)))
				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				assert.Equal(t, overlap, prev.End-c.Start, "chunk %d overlap", c.ID)
				assert.Greater(t, c.End, prev.End, "chunk %d must advance", c.ID)
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 400)

	a, err := Split(text, 100, 10)
	require.NoError(t, err)
	b, err := Split(text, 100, 10)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("chunking is not deterministic (-first +second):\n%s", diff)
	}
}

func TestSplit_MultibyteRunesStayIntact(t *testing.T) {
	text := strings.Repeat("é中🙂", 10)

	chunks, err := Split(text, 2, 1)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, string([]rune(text)[c.Start:c.End]), c.SourceText)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	chunks, err := Split("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_InvalidSizes(t *testing.T) {
	for _, tc := range []struct{ target, overlap int }{
		{0, 0},
		{-1, 0},
		{10, -1},
		{10, 10},
		{10, 11},
	} {
		_, err := Split("some text", tc.target, tc.overlap)
		require.Error(t, err, "target=%d overlap=%d", tc.target, tc.overlap)
		assert.ErrorIs(t, err, common.ErrConfiguration)
	}
}
