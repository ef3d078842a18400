package kernelmesh_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/plugin"
	"github.com/kernelmesh/kernelmesh/service"
)

func newMathPlugin(t *testing.T) *plugin.Plugin {
	t.Helper()
	add := plugin.NewNativeFunction(
		"add",
		"Add two numbers",
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
	)
	return plugin.MustNew("math", "Arithmetic helpers", add)
}

func TestInvokeFunction(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(newMathPlugin(t)))

	result, err := k.InvokeFunction(context.Background(), "math", "add", map[string]any{"a": float64(2), "b": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, "math.add", result.Name)
	assert.Equal(t, float64(5), result.Value)
	assert.Empty(t, result.Error)
}

func TestInvokeFunctionLookupErrors(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(newMathPlugin(t)))

	_, err := k.InvokeFunction(context.Background(), "physics", "add", nil)
	assert.Equal(t, core.ErrCodePluginNotFound, core.KernelErrorCode(err))

	_, err = k.InvokeFunction(context.Background(), "math", "subtract", nil)
	assert.Equal(t, core.ErrCodeFunctionNotFound, core.KernelErrorCode(err))
}

func TestInvokeFunctionFilters(t *testing.T) {
	var order []string
	first := func(ictx *core.InvocationContext, call core.FunctionCall, next func() (*core.FunctionResult, error)) (*core.FunctionResult, error) {
		order = append(order, "first:"+call.Name)
		return next()
	}
	second := func(_ *core.InvocationContext, _ core.FunctionCall, next func() (*core.FunctionResult, error)) (*core.FunctionResult, error) {
		order = append(order, "second")
		return next()
	}

	k := kernelmesh.New(
		kernelmesh.WithPlugin(newMathPlugin(t)),
		kernelmesh.WithFilter(first),
		kernelmesh.WithFilter(second),
	)

	_, err := k.InvokeFunction(context.Background(), "math", "add", map[string]any{"a": float64(1), "b": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:math.add", "second"}, order)
}

func TestInvokeFunctionFilterShortCircuit(t *testing.T) {
	blocked := func(_ *core.InvocationContext, call core.FunctionCall, _ func() (*core.FunctionResult, error)) (*core.FunctionResult, error) {
		return &core.FunctionResult{Name: call.Name, Error: "denied"}, nil
	}
	k := kernelmesh.New(kernelmesh.WithPlugin(newMathPlugin(t)), kernelmesh.WithFilter(blocked))

	result, err := k.InvokeFunction(context.Background(), "math", "add", map[string]any{"a": float64(1), "b": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, "denied", result.Error)
}

func TestInvokeFunctionCommitsStateDelta(t *testing.T) {
	counter := plugin.NewNativeFunction("bump", "", map[string]any{"type": "object"},
		func(ictx *core.InvocationContext, _ map[string]any) (any, error) {
			n := 0
			if v, ok := ictx.GetState("count"); ok {
				n = int(v.(float64))
			}
			ictx.SetState("count", float64(n+1))
			return n + 1, nil
		})
	k := kernelmesh.New(kernelmesh.WithPlugin(plugin.MustNew("state", "", counter)))

	withSession := func(o *kernelmesh.InvokeOptions) { o.SessionID = "s1" }
	_, err := k.InvokeFunction(context.Background(), "state", "bump", nil, withSession)
	require.NoError(t, err)
	result, err := k.InvokeFunction(context.Background(), "state", "bump", nil, withSession)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)

	sess, err := k.SessionStore().Get("s1")
	require.NoError(t, err)
	v, ok := sess.GetState("count")
	require.True(t, ok)
	assert.Equal(t, float64(2), v)
}

func TestToolDefinitions(t *testing.T) {
	k := kernelmesh.New(kernelmesh.WithPlugin(newMathPlugin(t)))

	defs := k.ToolDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "math.add", defs[0].Function.Name)
	assert.Equal(t, "Add two numbers", defs[0].Function.Description)

	assert.Empty(t, k.ToolDefinitions("unknown"))
}

func TestChatModelResolution(t *testing.T) {
	m := service.NewMockChatModel("mock", "test")
	k := kernelmesh.New(kernelmesh.WithChatModel("chat", m))

	// A sole registered model doubles as the default.
	got, err := k.ChatModel("")
	require.NoError(t, err)
	assert.Same(t, m, got)

	got, err = k.ChatModel("chat")
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = k.ChatModel("other")
	assert.Equal(t, core.ErrCodeServiceNotFound, core.KernelErrorCode(err))

	// With several models the default must be explicit.
	k.RegisterChatModel("backup", service.NewMockChatModel("backup", "test"))
	_, err = k.ChatModel("")
	assert.Equal(t, core.ErrCodeServiceNotFound, core.KernelErrorCode(err))
}

func TestSplitQualifiedName(t *testing.T) {
	p, f := kernelmesh.SplitQualifiedName("math.add")
	assert.Equal(t, "math", p)
	assert.Equal(t, "add", f)

	p, f = kernelmesh.SplitQualifiedName("solo")
	assert.Empty(t, p)
	assert.Equal(t, "solo", f)

	p, f = kernelmesh.SplitQualifiedName("ns.sub.fn")
	assert.Equal(t, "ns", p)
	assert.Equal(t, "sub.fn", f)
}
