package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/session"
)

func TestInMemoryStoreGetCreatesLazily(t *testing.T) {
	store := session.NewInMemoryStore()

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.GetEvents())
}

func TestInMemoryStoreAppendEvent(t *testing.T) {
	store := session.NewInMemoryStore()

	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("inv-1", "hi")))
	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.GetEvents(), 1)

	// Returned sessions are clones; mutating them must not leak back.
	sess.AddEvent(core.NewMessageEvent("assistant", "extra"))
	again, err := store.Get("s1")
	require.NoError(t, err)
	assert.Len(t, again.GetEvents(), 1)
}

func TestInMemoryStoreApplyDelta(t *testing.T) {
	store := session.NewInMemoryStore()

	require.NoError(t, store.ApplyDelta("s1", map[string]any{"step": "draft"}))
	require.NoError(t, store.ApplyDelta("s1", map[string]any{"step": "review", "round": 2}))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	v, ok := sess.GetState("step")
	require.True(t, ok)
	assert.Equal(t, "review", v)
}

func TestInMemoryStoreCreateResets(t *testing.T) {
	store := session.NewInMemoryStore()
	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("inv-1", "hi")))

	_, err := store.Create("s1")
	require.NoError(t, err)
	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, sess.GetEvents())
}
