// Package chromem implements memory.Store on philippgille/chromem-go for
// embedded vector storage. It requires no external services: vectors live in
// memory with optional gzip-compressed file persistence, which makes it the
// recommended store for zero-config deployments and single-process agents.
//
// Limitations: single-process only and memory-bound. For production scale
// prefer the qdrant sub-package.
package chromem

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/kernelmesh/kernelmesh/memory"
)

// Store implements memory.Store backed by a chromem database.
type Store struct {
	db *chromem.DB

	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

// Options configures the chromem store.
type Options struct {
	// PersistPath enables file persistence when non-empty. The directory is
	// created if needed.
	PersistPath string

	// Compress enables gzip compression for persisted segments.
	Compress bool
}

// New creates a chromem-backed store. With no options the store is purely
// in-memory.
func New(optFns ...func(o *Options)) (*Store, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	var db *chromem.DB
	var err error
	if opts.PersistPath != "" {
		db, err = chromem.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistent chromem db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &Store{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

// collection returns (creating if necessary) the named chromem collection.
// Embeddings are always supplied by the caller, so the embedding func is a
// guard that rejects accidental text-only inserts.
func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, rejectImplicitEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

func rejectImplicitEmbedding(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("records must carry precomputed vectors")
}

// Upsert implements memory.Store.
func (s *Store) Upsert(ctx context.Context, collection string, records ...memory.Record) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Vector,
			Metadata:  stringifyMetadata(rec.Metadata),
		})
	}
	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Search implements memory.Store. The result count is clamped to the
// collection size since chromem rejects oversized queries.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]memory.Match, error) {
	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if n := c.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return []memory.Match{}, nil
	}
	results, err := c.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}
	matches := make([]memory.Match, 0, len(results))
	for _, res := range results {
		matches = append(matches, memory.Match{
			Record: memory.Record{
				ID:       res.ID,
				Text:     res.Content,
				Vector:   res.Embedding,
				Metadata: anyifyMetadata(res.Metadata),
			},
			Score: res.Similarity,
		})
	}
	return matches, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

func stringifyMetadata(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func anyifyMetadata(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
