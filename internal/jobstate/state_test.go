package jobstate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cogniflow/constants"
	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

func pending(ids ...int) []entity.Chunk {
	out := make([]entity.Chunk, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.Chunk{ID: id, Status: constants.ChunkStatusPending, SourceText: "t"})
	}
	return out
}

func mustReduce(t *testing.T, j *entity.Job, evs ...Event) *entity.Job {
	t.Helper()
	for _, ev := range evs {
		var err error
		j, err = Reduce(j, ev)
		require.NoError(t, err, "event %s", EventName(ev))
	}
	return j
}

func TestReduce_HappyPath(t *testing.T) {
	id := uuid.New()
	j := mustReduce(t, nil, Start{ID: id, Name: "book.pdf", Size: 42})
	assert.Equal(t, constants.JobStatusAnalyzing, j.Status)
	assert.Equal(t, 0.0, j.Progress)
	assert.Equal(t, "Initializing...", j.Stage)

	j = mustReduce(t, j, ExtractionProgress{Fraction: 0.5})
	assert.Equal(t, 25.0, j.Progress)

	j = mustReduce(t, j, Ready{Chunks: pending(1, 2, 3, 4)})
	assert.Equal(t, constants.JobStatusReady, j.Status)
	assert.Equal(t, 50.0, j.Progress)
	assert.Equal(t, "Ready to process 4 chunks", j.Stage)

	j = mustReduce(t, j,
		StartProcessing{},
		ChunkStarted{ID: 1},
		ChunkCompleted{ID: 1, Text: "one", Model: "m1"},
		ChunkStarted{ID: 2},
		ChunkFailed{ID: 2, Err: errors.New("boom")},
	)
	assert.Equal(t, constants.JobStatusProcessing, j.Status)
	assert.Equal(t, 62.5, j.Progress)
	assert.Equal(t, "1/4 processed (failed: 1)", j.Stage)
	assert.Equal(t, "one", j.Chunks[0].ResultText)
	assert.Equal(t, "m1", j.Chunks[0].ModelUsed)
	assert.Equal(t, "boom", j.Chunks[1].Error)

	j = mustReduce(t, j,
		ChunkCompleted{ID: 3, Text: "three", Model: "m1"},
		ChunkCompleted{ID: 4, Text: "four", Model: "m2"},
		Finish{},
	)
	assert.Equal(t, constants.JobStatusError, j.Status)
	assert.Equal(t, "Completed with 1 errors", j.Error)
	assert.Equal(t, 87.5, j.Progress)
}

func TestReduce_FinishWithoutFailuresCompletes(t *testing.T) {
	j := mustReduce(t, nil,
		Start{ID: uuid.New()},
		Ready{Chunks: pending(1)},
		StartProcessing{},
		ChunkCompleted{ID: 1, Text: "x", Model: "m"},
		Finish{},
	)
	assert.Equal(t, constants.JobStatusCompleted, j.Status)
	assert.Equal(t, 100.0, j.Progress)
	assert.Empty(t, j.Error)
}

func TestReduce_ExtractionProgressIsMonotonicAndClamped(t *testing.T) {
	j := mustReduce(t, nil, Start{ID: uuid.New()}, ExtractionProgress{Fraction: 0.8})
	j = mustReduce(t, j, ExtractionProgress{Fraction: 0.2})
	assert.Equal(t, 40.0, j.Progress)
	j = mustReduce(t, j, ExtractionProgress{Fraction: 7})
	assert.Equal(t, 50.0, j.Progress)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	j := mustReduce(t, nil, Start{ID: uuid.New()}, Ready{Chunks: pending(1, 2)}, StartProcessing{})
	before := j.Clone()

	_ = mustReduce(t, j, ChunkCompleted{ID: 2, Text: "x", Model: "m"})
	if diff := cmp.Diff(before, j); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestReduce_IllegalTransitions(t *testing.T) {
	id := uuid.New()
	analyzing := mustReduce(t, nil, Start{ID: id})
	ready := mustReduce(t, analyzing, Ready{Chunks: pending(1)})
	completed := mustReduce(t, ready, StartProcessing{}, ChunkCompleted{ID: 1, Text: "x"}, Finish{})

	cases := []struct {
		name string
		job  *entity.Job
		ev   Event
	}{
		{"no job", nil, StartProcessing{}},
		{"pause while ready", ready, Pause{}},
		{"resume while ready", ready, Resume{}},
		{"finish while ready", ready, Finish{}},
		{"chunk result while ready", ready, ChunkCompleted{ID: 1}},
		{"process while analyzing", analyzing, StartProcessing{}},
		{"ready twice", ready, Ready{}},
		{"process after completion", completed, StartProcessing{}},
		{"unknown chunk", mustReduce(t, ready, StartProcessing{}), ChunkStarted{ID: 99}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Reduce(tc.job, tc.ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestReduce_PauseResumeAndDrain(t *testing.T) {
	j := mustReduce(t, nil,
		Start{ID: uuid.New()},
		Ready{Chunks: pending(1, 2)},
		StartProcessing{},
		ChunkStarted{ID: 1},
		Pause{},
	)
	assert.Equal(t, constants.JobStatusPaused, j.Status)

	// in-flight work still lands while paused
	j = mustReduce(t, j, ChunkCompleted{ID: 1, Text: "x", Model: "m"})
	assert.Equal(t, constants.JobStatusPaused, j.Status)
	assert.Equal(t, "Paused", j.Stage)
	assert.Equal(t, 75.0, j.Progress)

	j = mustReduce(t, j, Resume{})
	assert.Equal(t, constants.JobStatusProcessing, j.Status)
	assert.Equal(t, "1/2 processed (failed: 0)", j.Stage)
}

func TestReduce_RestoreRequeuesInFlightChunks(t *testing.T) {
	chunks := []entity.Chunk{
		{ID: 1, Status: constants.ChunkStatusCompleted, ResultText: "a"},
		{ID: 2, Status: constants.ChunkStatusProcessing},
		{ID: 3, Status: constants.ChunkStatusFailed, Error: "x"},
		{ID: 4, Status: constants.ChunkStatusPending},
	}
	j := mustReduce(t, nil, Restore{ID: uuid.New(), Name: "doc.pdf", Chunks: chunks})

	assert.Equal(t, constants.JobStatusReady, j.Status)
	assert.Equal(t, 62.5, j.Progress)
	assert.Equal(t, constants.ChunkStatusPending, j.Chunks[1].Status)
	assert.Equal(t, constants.ChunkStatusProcessing, chunks[1].Status)
}

func TestReduce_ResetClearsJob(t *testing.T) {
	j, err := Reduce(mustReduce(t, nil, Start{ID: uuid.New()}), Reset{})
	require.NoError(t, err)
	assert.Nil(t, j)
}
