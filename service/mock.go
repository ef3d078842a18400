package service

import (
	"context"
	"fmt"

	"github.com/kernelmesh/kernelmesh/core"
)

// MockChatModel is a lightweight in-memory ChatModel useful for tests.
// Canned completions are matched on the text of the last content; unmatched
// prompts receive a deterministic fallback. Queued tool calls are emitted
// once, before any text responses, to drive function calling paths.
type MockChatModel struct {
	info      Info
	responses map[string]string
	toolCalls []core.FunctionCall
}

// NewMockChatModel constructs a MockChatModel with tool support enabled.
func NewMockChatModel(name, provider string) *MockChatModel {
	return &MockChatModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockChatModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// QueueToolCall schedules a function call to be emitted on the next Generate
// that does not already contain a result for it.
func (m *MockChatModel) QueueToolCall(fc core.FunctionCall) {
	m.toolCalls = append(m.toolCalls, fc)
}

// Generate implements ChatModel; emits optional streaming char chunks then a
// final response, or a queued tool call.
func (m *MockChatModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		// Pending tool calls take priority unless the conversation already
		// carries their results.
		if len(m.toolCalls) > 0 && !hasFunctionResults(req.Contents) {
			fc := m.toolCalls[0]
			m.toolCalls = m.toolCalls[1:]
			respCh <- Response{
				Partial: false,
				Content: core.Content{
					Role:  "assistant",
					Parts: []core.Part{core.FunctionCallPart{FunctionCall: fc}},
				},
				FinishReason: "tool_calls",
			}
			return
		}

		last := req.Contents[len(req.Contents)-1]
		inputText := last.JoinedText()
		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}
		respCh <- Response{
			Partial:      false,
			Content:      core.TextContent("assistant", full),
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements ChatModel.
func (m *MockChatModel) Info() Info { return m.info }

func hasFunctionResults(contents []core.Content) bool {
	for _, c := range contents {
		for _, p := range c.Parts {
			if _, ok := p.(core.FunctionResultPart); ok {
				return true
			}
		}
	}
	return false
}

// MockEmbedder deterministically hashes text into fixed-size vectors.
// Identical inputs map to identical vectors, which is enough for store tests.
type MockEmbedder struct {
	Dim int
}

// NewMockEmbedder creates a MockEmbedder producing vectors of the given size.
func NewMockEmbedder(dim int) *MockEmbedder { return &MockEmbedder{Dim: dim} }

// Embed implements Embedder.
func (m *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, m.Dim)
		for j, r := range t {
			v[j%m.Dim] += float32(r) / 1000
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions implements Embedder.
func (m *MockEmbedder) Dimensions() int { return m.Dim }
