package vectorstore

import (
	"context"
	"sort"
)

// MemStore is an in-memory Store used by tests and by deployments that
// want to embed a small catalog without standing up Postgres. It applies
// the same ordering/tie-break contract as PGStore.
type MemStore struct {
	hits map[string][]Hit // query text -> precomputed hits, for deterministic tests
}

func NewMemStore(hits map[string][]Hit) *MemStore {
	return &MemStore{hits: hits}
}

func (m *MemStore) Search(_ context.Context, text string, k int) ([]Hit, error) {
	hits := m.hits[text]
	out := make([]Hit, len(hits))
	copy(out, hits)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ModelName < out[j].ModelName
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
