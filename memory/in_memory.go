package memory

import (
	"context"
	"math"
	"sort"
	"sync"
)

// InMemoryStore is a naive process-local vector store: linear scan with
// cosine similarity. Suitable only for tests and prototypes; swap for the
// chromem or qdrant sub-packages for real retrieval.
//
// Concurrency: protected by RWMutex. Records are copied on write and read.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record // collection -> id -> record
}

// NewInMemoryStore creates an empty in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string]map[string]Record)}
}

// Upsert implements Store.
func (s *InMemoryStore) Upsert(_ context.Context, collection string, records ...Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]Record)
		s.collections[collection] = col
	}
	for _, rec := range records {
		vec := make([]float32, len(rec.Vector))
		copy(vec, rec.Vector)
		rec.Vector = vec
		col[rec.ID] = rec
	}
	return nil
}

// Search implements Store via exhaustive cosine scoring.
func (s *InMemoryStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[collection]
	if !ok {
		return []Match{}, nil
	}
	matches := make([]Match, 0, len(col))
	for _, rec := range col {
		matches = append(matches, Match{Record: rec, Score: CosineSimilarity(vector, rec.Vector)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, collection string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(col, id)
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 for
// mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
