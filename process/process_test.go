package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoStep(name string) *FuncStep {
	return NewFuncStep(name, map[string]StepFunction{
		"run": {
			Parameters: []string{"input"},
			Handler: func(_ *StepContext, args map[string]any) (any, error) {
				return args["input"], nil
			},
		},
	})
}

func TestBuilderBuildsValidDefinition(t *testing.T) {
	b := NewBuilder("pipeline")
	b.AddStep("echo", echoStep("echo")).
		OnFunctionResult("run").
		EmitExternal("Echoed").
		StopProcess()
	b.OnInputEvent("Start").SendEventTo("echo", "run", "input")

	def, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "pipeline", def.Name)
	assert.Equal(t, []string{"echo"}, def.StepIDs())
	require.Len(t, def.Input["Start"], 1)
	assert.Equal(t, TargetStep, def.Input["Start"][0].Kind)
}

func TestBuilderRejectsDuplicateStep(t *testing.T) {
	b := NewBuilder("pipeline")
	b.AddStep("echo", echoStep("echo"))
	b.AddStep("echo", echoStep("echo"))

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step id")
}

func TestValidateRejectsDanglingTargets(t *testing.T) {
	cases := []struct {
		name    string
		target  Target
		wantErr string
	}{
		{"unknown step", FunctionTarget("missing", "run", "input"), "not defined"},
		{"unknown function", FunctionTarget("echo", "nope", "input"), "no function"},
		{"unknown parameter", FunctionTarget("echo", "run", "nope"), "no parameter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBuilder("pipeline")
			b.AddStep("echo", echoStep("echo"))
			b.OnInputEvent("Start").add(tc.target)

			_, err := b.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateRejectsEmptyProcess(t *testing.T) {
	_, err := NewBuilder("empty").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestResultAndErrorEventIDs(t *testing.T) {
	assert.Equal(t, "a.run.OnResult", ResultEventID("a", "run"))
	assert.Equal(t, "a.run.OnError", ErrorEventID("a", "run"))
}
