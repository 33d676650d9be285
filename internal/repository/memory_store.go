package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/joseph-ayodele/cogniflow/internal/entity"
)

// MemoryStore is an in-process Store with the same semantics as SQLStore.
type MemoryStore struct {
	mu       sync.Mutex
	settings []byte
	document *entity.Document
	logs     []entity.LogRecord
	chunks   map[int]entity.Chunk
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[int]entity.Chunk)}
}

func (m *MemoryStore) LoadSettings(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.settings), nil
}

func (m *MemoryStore) SaveSettings(_ context.Context, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = slices.Clone(raw)
	return nil
}

func (m *MemoryStore) LoadDocument(context.Context) (*entity.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.document == nil {
		return nil, nil
	}
	doc := *m.document
	return &doc, nil
}

func (m *MemoryStore) SaveDocument(_ context.Context, doc entity.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.document = &doc
	return nil
}

func (m *MemoryStore) AddLog(_ context.Context, rec entity.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, rec)
	return nil
}

func (m *MemoryStore) ListLogs(_ context.Context, limit int) ([]entity.LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.logs)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b entity.LogRecord) int { return b.Timestamp.Compare(a.Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SaveChunk(_ context.Context, c entity.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c.ID] = c
	return nil
}

func (m *MemoryStore) SaveChunks(_ context.Context, chunks []entity.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[int]entity.Chunk, len(chunks))
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemoryStore) ListChunks(context.Context) ([]entity.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.Chunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b entity.Chunk) int { return a.ID - b.ID })
	return out, nil
}

func (m *MemoryStore) ClearChunks(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[int]entity.Chunk)
	return nil
}

func (m *MemoryStore) ClearAll(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = nil
	m.document = nil
	m.logs = nil
	m.chunks = make(map[int]entity.Chunk)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
