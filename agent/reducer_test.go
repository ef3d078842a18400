package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/service"
)

func TestTruncationReducer(t *testing.T) {
	r, err := NewTruncationReducer("gpt-4", 20)
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}

	contents := []core.Content{
		core.TextContent("user", "first message with quite a few words in it"),
		core.TextContent("assistant", "second message, also fairly long in tokens"),
		core.TextContent("user", "short"),
		core.TextContent("assistant", "ok"),
	}

	reduced, err := r.Reduce(context.Background(), contents)
	require.NoError(t, err)
	require.NotEmpty(t, reduced)
	assert.Less(t, len(reduced), len(contents))
	// Recency wins: the tail survives.
	assert.Equal(t, "ok", reduced[len(reduced)-1].JoinedText())
}

func TestTruncationReducerDropsLeadingToolResult(t *testing.T) {
	r, err := NewTruncationReducer("gpt-4", 25)
	if err != nil {
		t.Skipf("token encoding unavailable: %v", err)
	}

	contents := []core.Content{
		core.TextContent("user", "a very long opening message that should definitely not fit into the small budget we chose here"),
		{Role: "assistant", Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "c1", Name: "math.add"}}}},
		{Role: "tool", Parts: []core.Part{core.FunctionResultPart{FunctionResult: core.FunctionResult{ID: "c1", Name: "math.add", Value: 5}}}},
		core.TextContent("assistant", "the sum is five"),
		core.TextContent("user", "thanks"),
	}

	reduced, err := r.Reduce(context.Background(), contents)
	require.NoError(t, err)
	require.NotEmpty(t, reduced)
	assert.NotEqual(t, "tool", reduced[0].Role)
}

func TestSummarizationReducerBelowTrigger(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	r := NewSummarizationReducer(mock, 10, 4)

	contents := []core.Content{
		core.TextContent("user", "hello"),
		core.TextContent("assistant", "hi"),
	}
	reduced, err := r.Reduce(context.Background(), contents)
	require.NoError(t, err)
	assert.Equal(t, contents, reduced)
}

func TestSummarizationReducerCompressesOldHistory(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	r := NewSummarizationReducer(mock, 4, 2)

	contents := []core.Content{
		core.TextContent("user", "my name is Ada"),
		core.TextContent("assistant", "nice to meet you Ada"),
		core.TextContent("user", "I work on compilers"),
		core.TextContent("assistant", "interesting"),
		core.TextContent("user", "what was my name?"),
		core.TextContent("assistant", "Ada"),
	}

	reduced, err := r.Reduce(context.Background(), contents)
	require.NoError(t, err)
	require.Len(t, reduced, 3)
	assert.Equal(t, "system", reduced[0].Role)
	assert.Contains(t, reduced[0].JoinedText(), "Summary of the conversation")
	assert.Equal(t, "what was my name?", reduced[1].JoinedText())
	assert.Equal(t, "Ada", reduced[2].JoinedText())
}
