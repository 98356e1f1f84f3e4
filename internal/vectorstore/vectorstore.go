// Package vectorstore implements component B: approximate nearest-neighbor
// search over a fixed embedding per SKU. The core only reads; population is
// an ingestion-layer concern out of scope for this module (SPEC_FULL §6).
package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Hit is one ranked result of Search.
type Hit struct {
	ModelName string
	Score     float64
}

// Store is the vector search contract consumed by the retrieval planner (H).
type Store interface {
	Search(ctx context.Context, text string, k int) ([]Hit, error)
}

// Embedder turns free text into the fixed-dimension vector space the store
// was populated in. The embedding model is fixed at construction per
// §4.B; no runtime switching.
type Embedder interface {
	Embed(text string) []float32
}

// PGStore is a pgvector-backed Store using cosine distance.
type PGStore struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func New(pool *pgxpool.Pool, embedder Embedder) *PGStore {
	return &PGStore{pool: pool, embedder: embedder}
}

// Search returns up to k hits ordered by decreasing similarity, with a
// deterministic ascending-name tie-break. Query-time failures are
// non-fatal: callers treat an error as "skip enrichment" per §7
// VectorUnavailable.
func (s *PGStore) Search(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(s.embedder.Embed(text))

	rows, err := s.pool.Query(ctx, `
		SELECT model_name, 1 - (embedding <=> $1) AS score
		FROM sku_embeddings
		ORDER BY embedding <=> $1, model_name ASC
		LIMIT $2
	`, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ModelName, &h.Score); err != nil {
			return nil, fmt.Errorf("vectorstore: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vectorstore: iterate hits: %w", err)
	}

	// Defensive re-sort: enforces the documented tie-break even if the
	// driver or a future backend doesn't preserve ORDER BY ties exactly.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ModelName < hits[j].ModelName
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// HashEmbedder is a deterministic, dependency-free Embedder: it buckets
// character bigrams into a fixed-size vector. It exists so the module has
// a usable default without depending on a hosted embeddings API that is
// out of scope for this core; production deployments are expected to
// supply a real Embedder alongside their ingestion pipeline.
type HashEmbedder struct {
	Dims int
}

func NewHashEmbedder(dims int) HashEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return HashEmbedder{Dims: dims}
}

func (h HashEmbedder) Embed(text string) []float32 {
	out := make([]float32, h.Dims)
	runes := []rune(text)
	for i := 0; i+1 < len(runes); i++ {
		bucket := (int(runes[i])*31 + int(runes[i+1])) % h.Dims
		if bucket < 0 {
			bucket += h.Dims
		}
		out[bucket]++
	}
	var norm float32
	for _, v := range out {
		norm += v * v
	}
	if norm == 0 {
		return out
	}
	inv := float32(1)
	for i := range out {
		out[i] = out[i] / sqrt32(norm) * inv
	}
	return out
}

func sqrt32(v float32) float32 {
	// Newton's method; avoids pulling in math.Sqrt's float64 round-trip
	// for a vector this small.
	if v == 0 {
		return 0
	}
	x := v
	for i := 0; i < 8; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}
