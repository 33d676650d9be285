package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkError_MatchesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("%w: all 2 models failed", ErrAllModelsExhausted)
	var err error = &ChunkError{ChunkID: 4, Err: cause}

	assert.ErrorIs(t, err, ErrChunkFailed)
	assert.ErrorIs(t, err, ErrAllModelsExhausted)
	assert.Equal(t, cause.Error(), err.Error())

	var ce *ChunkError
	assert.True(t, errors.As(fmt.Errorf("settle: %w", err), &ce))
	assert.Equal(t, 4, ce.ChunkID)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", ErrAllModelsExhausted)))
	assert.False(t, IsRetryable(ConfigError("no key")))
	assert.False(t, IsRetryable(&ChunkError{ChunkID: 1, Err: ErrTransport}))
}
