package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/plugin"
	"github.com/kernelmesh/kernelmesh/service"
	"github.com/kernelmesh/kernelmesh/session"
)

func newTestKernel(t *testing.T, model service.ChatModel) *kernelmesh.Kernel {
	t.Helper()
	mathPlugin, err := plugin.New("math", "arithmetic helpers",
		plugin.NewNativeFunction("add", "Add two numbers",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "number"},
					"b": map[string]any{"type": "number"},
				},
				"required": []string{"a", "b"},
			},
			func(_ *core.InvocationContext, args map[string]any) (any, error) {
				return args["a"].(float64) + args["b"].(float64), nil
			},
		),
	)
	require.NoError(t, err)

	return kernelmesh.New(
		kernelmesh.WithChatModel("", model),
		kernelmesh.WithPlugin(mathPlugin),
	)
}

func TestChatAgentSimpleTurn(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	mock.AddResponse("hello", "hi there")
	kernel := newTestKernel(t, mock)

	a := New(kernel, "assistant")
	thread, err := NewThread(session.NewInMemoryStore())
	require.NoError(t, err)

	content, err := a.Invoke(context.Background(), thread, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", content.JoinedText())

	history, err := thread.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestChatAgentToolLoop(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	mock.QueueToolCall(core.FunctionCall{
		ID:        "call-1",
		Name:      "math.add",
		Arguments: `{"a": 2, "b": 3}`,
	})
	kernel := newTestKernel(t, mock)

	a := New(kernel, "assistant")
	thread, err := NewThread(session.NewInMemoryStore())
	require.NoError(t, err)

	events, err := a.Run(context.Background(), thread, "what is 2+3?")
	require.NoError(t, err)

	var functionResults []core.FunctionResult
	var finalText string
	for ev := range events {
		functionResults = append(functionResults, ev.GetFunctionResults()...)
		if ev.IsFinalResponse() && ev.Content != nil {
			finalText = ev.Content.JoinedText()
		}
	}

	require.Len(t, functionResults, 1)
	assert.Equal(t, "call-1", functionResults[0].ID)
	assert.Equal(t, "math.add", functionResults[0].Name)
	assert.Equal(t, float64(5), functionResults[0].Value)
	assert.Empty(t, functionResults[0].Error)
	assert.NotEmpty(t, finalText)
}

func TestChatAgentUnknownFunction(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	mock.QueueToolCall(core.FunctionCall{
		ID:   "call-1",
		Name: "math.divide",
	})
	kernel := newTestKernel(t, mock)

	a := New(kernel, "assistant")
	thread, err := NewThread(session.NewInMemoryStore())
	require.NoError(t, err)

	events, err := a.Run(context.Background(), thread, "divide something")
	require.NoError(t, err)

	var functionResults []core.FunctionResult
	for ev := range events {
		functionResults = append(functionResults, ev.GetFunctionResults()...)
	}

	// The lookup failure flows back to the model as a tool error instead of
	// aborting the run.
	require.Len(t, functionResults, 1)
	assert.Contains(t, functionResults[0].Error, "FUNCTION_NOT_FOUND")
}

func TestChatAgentIterationBudget(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	kernel := newTestKernel(t, mock)

	// Queue more tool calls than the agent may take turns for. The mock emits
	// queued calls only while no results are present, so force a tiny budget.
	a := New(kernel, "assistant", func(o *Options) { o.MaxIterations = 0 })
	thread, err := NewThread(session.NewInMemoryStore())
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), thread, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no final response")
}

func TestExecuteCallsCancelledContext(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	kernel := newTestKernel(t, mock)
	a := New(kernel, "assistant")
	thread, err := NewThread(session.NewInMemoryStore())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := make(chan core.Event, 4)
	calls := []core.FunctionCall{
		{ID: "call-1", Name: "math.add", Arguments: `{"a": 1, "b": 2}`},
		{ID: "call-2", Name: "math.add", Arguments: `{"a": 3, "b": 4}`},
	}
	_, err = a.executeCalls(ctx, core.NewID(), thread, calls, events)
	require.NoError(t, err)
	close(events)

	var results []core.FunctionResult
	for ev := range events {
		results = append(results, ev.GetFunctionResults()...)
	}
	require.Len(t, results, 2)
	// Undispatched calls keep their identity and report the cancellation.
	assert.Equal(t, "call-1", results[0].ID)
	assert.Equal(t, "math.add", results[0].Name)
	assert.Contains(t, results[0].Error, "context canceled")
	assert.Equal(t, "call-2", results[1].ID)
	assert.Contains(t, results[1].Error, "not executed")
}

func TestThreadResume(t *testing.T) {
	store := session.NewInMemoryStore()
	thread, err := NewThread(store)
	require.NoError(t, err)
	require.NoError(t, thread.AddUserMessage("remember me"))

	resumed, err := ResumeThread(store, thread.ID())
	require.NoError(t, err)
	history, err := resumed.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "remember me", history[0].JoinedText())
}
