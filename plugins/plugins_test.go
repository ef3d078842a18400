package plugins_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/memory"
	"github.com/kernelmesh/kernelmesh/plugins"
	"github.com/kernelmesh/kernelmesh/service"
)

func TestStatePluginRoundTrip(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(plugins.NewStatePlugin()))
	ctx := context.Background()
	withSession := func(o *kernelmesh.InvokeOptions) { o.SessionID = "s1" }

	_, err := k.InvokeFunction(ctx, "state", "set_state", map[string]any{"key": "topic", "value": "go"}, withSession)
	require.NoError(t, err)

	result, err := k.InvokeFunction(ctx, "state", "get_state", map[string]any{"key": "topic"}, withSession)
	require.NoError(t, err)
	out := result.Value.(map[string]any)
	assert.Equal(t, true, out["exists"])
	assert.Equal(t, "go", out["value"])

	// The write was committed to the session store.
	sess, err := k.SessionStore().Get("s1")
	require.NoError(t, err)
	v, ok := sess.GetState("topic")
	require.True(t, ok)
	assert.Equal(t, "go", v)
}

func TestStatePluginMissingKey(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(plugins.NewStatePlugin()))

	result, err := k.InvokeFunction(context.Background(), "state", "get_state", map[string]any{"key": "nope"})
	require.NoError(t, err)
	out := result.Value.(map[string]any)
	assert.Equal(t, false, out["exists"])
}

func TestStatePluginArtifacts(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(plugins.NewStatePlugin()))
	ctx := context.Background()
	withSession := func(o *kernelmesh.InvokeOptions) { o.SessionID = "s1" }

	_, err := k.InvokeFunction(ctx, "state", "save_artifact",
		map[string]any{"artifact_id": "notes", "content": "remember this"}, withSession)
	require.NoError(t, err)

	result, err := k.InvokeFunction(ctx, "state", "load_artifact",
		map[string]any{"artifact_id": "notes"}, withSession)
	require.NoError(t, err)
	out := result.Value.(map[string]any)
	assert.Equal(t, "remember this", out["content"])

	result, err = k.InvokeFunction(ctx, "state", "list_artifacts", map[string]any{}, withSession)
	require.NoError(t, err)
	out = result.Value.(map[string]any)
	assert.Equal(t, []string{"notes"}, out["artifacts"])
}

func TestMemoryPluginSaveAndRecall(t *testing.T) {
	store := memory.NewSemanticStore(memory.NewInMemoryStore(), service.NewMockEmbedder(16))
	k := kernelmesh.New(kernelmesh.WithPlugin(plugins.NewMemoryPlugin(store, "facts")))
	ctx := context.Background()

	_, err := k.InvokeFunction(ctx, "memory", "save",
		map[string]any{"content": "the launch is on friday", "id": "m1"})
	require.NoError(t, err)
	_, err = k.InvokeFunction(ctx, "memory", "save",
		map[string]any{"content": "lunch menu has pasta"})
	require.NoError(t, err)

	result, err := k.InvokeFunction(ctx, "memory", "recall",
		map[string]any{"query": "the launch is on friday", "limit": float64(1)})
	require.NoError(t, err)
	out := result.Value.(map[string]any)
	results := out["results"].([]map[string]any)
	require.Len(t, results, 1)
	assert.Equal(t, "m1", results[0]["id"])
	assert.Equal(t, "the launch is on friday", results[0]["text"])
}
