// Package memory defines the vector memory contracts used for semantic
// recall: a Store persists embedded records grouped in named collections and
// answers nearest-neighbour queries; a SemanticStore pairs a Store with an
// Embedder so callers work purely in text.
//
// Concrete stores live in sub-packages (chromem for embedded zero-dependency
// storage, qdrant for an external vector database). The in-memory brute-force
// store in this package is intended for tests and prototypes.
package memory

import "context"

// Record is one embedded memory entry.
type Record struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is a search hit with its similarity score (higher is closer).
type Match struct {
	Record
	Score float32 `json:"score"`
}

// Store persists embedded records and answers nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Upsert adds or replaces records in the collection, creating the
	// collection on first use.
	Upsert(ctx context.Context, collection string, records ...Record) error

	// Search returns up to limit records closest to the query vector,
	// ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error)

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, ids ...string) error
}

// Embedder is the minimal embedding surface SemanticStore needs. It is
// satisfied by service.Embedder; redeclared here to keep this package free of
// upward dependencies.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticStore pairs a vector store with an embedder providing a text-in /
// text-out recall surface.
type SemanticStore struct {
	store    Store
	embedder Embedder
}

// NewSemanticStore wires a store and embedder together.
func NewSemanticStore(store Store, embedder Embedder) *SemanticStore {
	return &SemanticStore{store: store, embedder: embedder}
}

// Save embeds the texts and upserts one record per text. Record IDs must be
// provided in parallel with texts.
func (s *SemanticStore) Save(ctx context.Context, collection string, ids, texts []string, metadata []map[string]any) error {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	records := make([]Record, len(texts))
	for i := range texts {
		rec := Record{ID: ids[i], Text: texts[i], Vector: vectors[i]}
		if metadata != nil {
			rec.Metadata = metadata[i]
		}
		records[i] = rec
	}
	return s.store.Upsert(ctx, collection, records...)
}

// Recall embeds the query and returns the closest stored records.
func (s *SemanticStore) Recall(ctx context.Context, collection, query string, limit int) ([]Match, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, collection, vectors[0], limit)
}
