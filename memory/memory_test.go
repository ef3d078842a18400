package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectors[text]
	}
	return out, nil
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// Degenerate inputs score zero rather than NaN.
	assert.Equal(t, float32(0), CosineSimilarity(nil, nil))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestInMemoryStoreSearchOrdering(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	err := store.Upsert(ctx, "facts",
		Record{ID: "a", Text: "north", Vector: []float32{0, 1}},
		Record{ID: "b", Text: "east", Vector: []float32{1, 0}},
		Record{ID: "c", Text: "northeast", Vector: []float32{1, 1}},
	)
	require.NoError(t, err)

	matches, err := store.Search(ctx, "facts", []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestInMemoryStoreUpsertReplaces(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "facts", Record{ID: "a", Text: "old", Vector: []float32{1, 0}}))
	require.NoError(t, store.Upsert(ctx, "facts", Record{ID: "a", Text: "new", Vector: []float32{1, 0}}))

	matches, err := store.Search(ctx, "facts", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "facts",
		Record{ID: "a", Vector: []float32{1, 0}},
		Record{ID: "b", Vector: []float32{0, 1}},
	))
	require.NoError(t, store.Delete(ctx, "facts", "a", "missing"))

	matches, err := store.Search(ctx, "facts", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestInMemoryStoreUnknownCollection(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	matches, err := store.Search(ctx, "nope", []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.NoError(t, store.Delete(ctx, "nope", "a"))
}

func TestSemanticStoreSaveAndRecall(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"the sky is blue":    {0, 1},
		"grass is green":     {1, 0},
		"what color is sky?": {0.1, 0.9},
	}}
	sem := NewSemanticStore(NewInMemoryStore(), embedder)
	ctx := context.Background()

	err := sem.Save(ctx, "facts",
		[]string{"sky", "grass"},
		[]string{"the sky is blue", "grass is green"},
		[]map[string]any{{"topic": "weather"}, {"topic": "lawn"}},
	)
	require.NoError(t, err)

	matches, err := sem.Recall(ctx, "facts", "what color is sky?", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sky", matches[0].ID)
	assert.Equal(t, "the sky is blue", matches[0].Text)
	assert.Equal(t, "weather", matches[0].Metadata["topic"])
}
