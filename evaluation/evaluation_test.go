package evaluation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernelmesh/kernelmesh"
	"github.com/kernelmesh/kernelmesh/agent"
	"github.com/kernelmesh/kernelmesh/evaluation"
	"github.com/kernelmesh/kernelmesh/service"
	"github.com/kernelmesh/kernelmesh/session"
)

func TestKeywordEvaluator(t *testing.T) {
	ev := evaluation.NewKeywordEvaluator("Paris", "capital")

	score, err := ev.Evaluate(context.Background(), evaluation.Case{}, "The capital of France is paris.")
	require.NoError(t, err)
	assert.True(t, score.Pass)
	assert.Equal(t, 1.0, score.Value)

	score, err = ev.Evaluate(context.Background(), evaluation.Case{}, "It is Lyon.")
	require.NoError(t, err)
	assert.False(t, score.Pass)
	assert.Equal(t, 0.0, score.Value)
	assert.Contains(t, score.Reason, "Paris")
}

func TestSimilarityEvaluator(t *testing.T) {
	ev := evaluation.NewSimilarityEvaluator(service.NewMockEmbedder(32), 0.99)

	// Identical texts embed identically.
	score, err := ev.Evaluate(context.Background(), evaluation.Case{Expected: "the sky is blue"}, "the sky is blue")
	require.NoError(t, err)
	assert.True(t, score.Pass)
	assert.InDelta(t, 1.0, score.Value, 0.001)

	score, err = ev.Evaluate(context.Background(), evaluation.Case{Expected: "the sky is blue"}, "quarterly revenue grew")
	require.NoError(t, err)
	assert.False(t, score.Pass)
}

func TestRunGradesAgentResponses(t *testing.T) {
	mock := service.NewMockChatModel("mock", "test")
	mock.AddResponse("What is the capital of France?", "The capital of France is Paris.")
	mock.AddResponse("What is 2+2?", "It is five.")
	kernel := kernelmesh.New(kernelmesh.WithChatModel("", mock))
	a := agent.New(kernel, "assistant")

	cases := []evaluation.Case{
		{Name: "capital", Input: "What is the capital of France?", Expected: "Paris"},
		{Name: "math", Input: "What is 2+2?", Expected: "four"},
	}
	report, err := evaluation.Run(context.Background(), a, session.NewInMemoryStore(), keywordPerCase{}, cases)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "The capital of France is Paris.", report.Results[0].Actual)
	assert.True(t, report.Results[0].Score.Pass)
	assert.False(t, report.Results[1].Score.Pass)
	assert.Equal(t, 1, report.Passed())
	assert.Equal(t, 0.5, report.PassRate())
}

// keywordPerCase treats each case's Expected text as the required keyword.
type keywordPerCase struct{}

func (keywordPerCase) Evaluate(ctx context.Context, c evaluation.Case, actual string) (evaluation.Score, error) {
	return evaluation.NewKeywordEvaluator(c.Expected).Evaluate(ctx, c, actual)
}
