package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/service"
)

// HistoryReducer trims conversation history before it is sent to a model.
// Implementations must never reorder surviving contents.
type HistoryReducer interface {
	Reduce(ctx context.Context, contents []core.Content) ([]core.Content, error)
}

// TruncationReducer drops the oldest contents until the history fits a token
// budget. Counting uses tiktoken; non-OpenAI models are approximated with the
// cl100k_base encoding, which is close enough for budget enforcement.
type TruncationReducer struct {
	maxTokens int
	encoding  *tiktoken.Tiktoken
}

// NewTruncationReducer creates a reducer with the given token budget. The
// model name selects the encoding, falling back to cl100k_base for unknown
// models.
func NewTruncationReducer(model string, maxTokens int) (*TruncationReducer, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get token encoding: %w", err)
		}
	}
	return &TruncationReducer{maxTokens: maxTokens, encoding: encoding}, nil
}

// Reduce implements HistoryReducer. It keeps the most recent contents that fit
// the budget and never lets the surviving history start with a tool result,
// which providers reject without the preceding tool call.
func (r *TruncationReducer) Reduce(_ context.Context, contents []core.Content) ([]core.Content, error) {
	if len(contents) == 0 {
		return contents, nil
	}

	// Per-message overhead mirrors OpenAI's documented counting format.
	const tokensPerMessage = 3

	total := 0
	start := len(contents)
	for i := len(contents) - 1; i >= 0; i-- {
		cost := tokensPerMessage + len(r.encoding.Encode(contents[i].JoinedText(), nil, nil))
		if total+cost > r.maxTokens {
			break
		}
		total += cost
		start = i
	}

	for start < len(contents) && contents[start].Role == "tool" {
		start++
	}
	return contents[start:], nil
}

// TokenCount returns the token count of a single text under this reducer's
// encoding.
func (r *TruncationReducer) TokenCount(text string) int {
	return len(r.encoding.Encode(text, nil, nil))
}

// SummarizationReducer compresses older history into a single summary message
// once the conversation exceeds a trigger length. The most recent messages are
// passed through untouched.
type SummarizationReducer struct {
	model        service.ChatModel
	triggerCount int
	keepRecent   int
}

// NewSummarizationReducer creates a reducer that summarizes once the history
// exceeds triggerCount contents, keeping the last keepRecent verbatim.
func NewSummarizationReducer(model service.ChatModel, triggerCount, keepRecent int) *SummarizationReducer {
	if triggerCount < keepRecent {
		triggerCount = keepRecent
	}
	return &SummarizationReducer{model: model, triggerCount: triggerCount, keepRecent: keepRecent}
}

// Reduce implements HistoryReducer.
func (r *SummarizationReducer) Reduce(ctx context.Context, contents []core.Content) ([]core.Content, error) {
	if len(contents) <= r.triggerCount {
		return contents, nil
	}

	cut := len(contents) - r.keepRecent
	for cut < len(contents) && contents[cut].Role == "tool" {
		cut++
	}
	older := contents[:cut]
	recent := contents[cut:]

	summary, err := r.summarize(ctx, older)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize history: %w", err)
	}

	reduced := make([]core.Content, 0, len(recent)+1)
	reduced = append(reduced, core.TextContent("system", "Summary of the conversation so far: "+summary))
	reduced = append(reduced, recent...)
	return reduced, nil
}

// summarize asks the model for a compact summary of the transcript.
func (r *SummarizationReducer) summarize(ctx context.Context, contents []core.Content) (string, error) {
	var transcript strings.Builder
	for _, c := range contents {
		text := c.JoinedText()
		if text == "" {
			continue
		}
		transcript.WriteString(c.Role)
		transcript.WriteString(": ")
		transcript.WriteString(text)
		transcript.WriteString("\n")
	}

	req := service.Request{
		Instructions: "Summarize the following conversation concisely, preserving facts, decisions and open tasks.",
		Contents:     []core.Content{core.TextContent("user", transcript.String())},
	}
	respCh, errCh := r.model.Generate(ctx, req)

	var summary string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", err
			}
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				return summary, nil
			}
			if !resp.Partial {
				summary = resp.Content.JoinedText()
			}
		}
	}
}
