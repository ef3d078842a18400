package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh/artifact"
)

func TestInMemoryStoreSaveAndGet(t *testing.T) {
	store := artifact.NewInMemoryStore()

	data := []byte("report contents")
	require.NoError(t, store.Save("s1", "report.txt", data))

	got, err := store.Get("s1", "report.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Stored bytes are isolated from caller buffers.
	data[0] = 'X'
	got, err = store.Get("s1", "report.txt")
	require.NoError(t, err)
	assert.Equal(t, byte('r'), got[0])
}

func TestInMemoryStoreGetMissing(t *testing.T) {
	store := artifact.NewInMemoryStore()
	_, err := store.Get("s1", "nope")
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestInMemoryStoreListAndDelete(t *testing.T) {
	store := artifact.NewInMemoryStore()
	require.NoError(t, store.Save("s1", "b", []byte("2")))
	require.NoError(t, store.Save("s1", "a", []byte("1")))

	// Listings are sorted regardless of insertion order.
	ids, err := store.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, store.Delete("s1", "a"))
	assert.ErrorIs(t, store.Delete("s1", "a"), artifact.ErrNotFound)

	ids, err = store.List("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)
}
