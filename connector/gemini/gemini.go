// Package gemini provides a service.ChatModel backed by the Google Gemini API
// via the official google.golang.org/genai SDK, with streaming and function
// calling.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kernelmesh/kernelmesh/core"
	"github.com/kernelmesh/kernelmesh/service"
	"github.com/kernelmesh/kernelmesh/telemetry"
)

// Options configures the Gemini chat model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int32
	APIKey          string
}

// ChatModel wraps the Gemini API behind the generic service.ChatModel interface.
type ChatModel struct {
	client *genai.Client
	opts   Options
}

// NewChatModel creates a new Gemini chat model. The API key falls back to the
// GEMINI_API_KEY environment variable when not set explicitly.
func NewChatModel(ctx context.Context, optFns ...func(o *Options)) (*ChatModel, error) {
	opts := Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &ChatModel{client: client, opts: opts}, nil
}

// NewChatModelFromClient creates a Gemini chat model from an existing client.
func NewChatModelFromClient(client *genai.Client, optFns ...func(o *Options)) *ChatModel {
	opts := Options{
		Model:           "gemini-2.0-flash",
		Temperature:     0.7,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ChatModel{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (m *ChatModel) Generate(ctx context.Context, req service.Request) (<-chan service.Response, <-chan error) {
	out := make(chan service.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents, system := buildContents(req)
		config := m.buildConfig(req, system)

		if req.Stream {
			m.handleStreaming(ctx, contents, config, out, errCh)
			return
		}

		resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
		telemetry.ObserveModelCall("gemini", m.opts.Model, err)
		if err != nil {
			errCh <- fmt.Errorf("gemini api error: %w", err)
			return
		}
		final, err := parseResponse(resp)
		if err != nil {
			errCh <- err
			return
		}
		out <- *final
	}()

	return out, errCh
}

// handleStreaming forwards text deltas as partial responses and aggregates
// text and function calls into a final response.
func (m *ChatModel) handleStreaming(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	out chan<- service.Response,
	errCh chan<- error,
) {
	var textBuilder strings.Builder
	var calls []core.FunctionCall
	seen := map[string]bool{}
	finish := "stop"
	var usage *service.TokenUsage

	for resp, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
		if err != nil {
			telemetry.ObserveModelCall("gemini", m.opts.Model, err)
			errCh <- fmt.Errorf("gemini streaming error: %w", err)
			return
		}
		if resp.UsageMetadata != nil {
			usage = &service.TokenUsage{
				PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
				CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			}
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		candidate := resp.Candidates[0]
		if candidate.FinishReason != "" {
			finish = mapFinishReason(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				textBuilder.WriteString(part.Text)
				out <- service.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: part.Text}},
					},
				}
			}
			if fc := part.FunctionCall; fc != nil {
				call := toFunctionCall(fc)
				// Gemini may repeat a call across chunks with empty IDs.
				if seen[call.ID] {
					continue
				}
				seen[call.ID] = true
				calls = append(calls, call)
				out <- service.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.FunctionCallPart{FunctionCall: call}},
					},
				}
			}
		}
	}
	telemetry.ObserveModelCall("gemini", m.opts.Model, nil)

	finalParts := make([]core.Part, 0, len(calls)+1)
	if textBuilder.Len() > 0 {
		finalParts = append(finalParts, core.TextPart{Text: textBuilder.String()})
	}
	for _, call := range calls {
		finalParts = append(finalParts, core.FunctionCallPart{FunctionCall: call})
	}
	out <- service.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: finalParts},
		Usage:        usage,
		FinishReason: finish,
	}
}

// buildContents converts normalized contents into genai contents plus an
// optional system instruction content.
func buildContents(req service.Request) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	var systemTexts []string
	if req.Instructions != "" {
		systemTexts = append(systemTexts, req.Instructions)
	}

	var contents []*genai.Content
	for _, c := range req.Contents {
		if c.Role == "system" {
			if text := c.JoinedText(); text != "" {
				systemTexts = append(systemTexts, text)
			}
			continue
		}
		if content := toContent(c); content != nil {
			contents = append(contents, content)
		}
	}

	if len(systemTexts) > 0 {
		system = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: strings.Join(systemTexts, "\n\n")}},
		}
	}
	return contents, system
}

// toContent converts one normalized content into a genai content.
func toContent(c core.Content) *genai.Content {
	var parts []*genai.Part
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				parts = append(parts, &genai.Part{Text: part.Text})
			}
		case core.FunctionCallPart:
			args := map[string]any{}
			if part.FunctionCall.Arguments != "" {
				_ = json.Unmarshal([]byte(part.FunctionCall.Arguments), &args)
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: args,
				},
			})
		case core.FunctionResultPart:
			response := map[string]any{}
			if part.FunctionResult.Error != "" {
				response["error"] = part.FunctionResult.Error
			} else {
				response["result"] = part.FunctionResult.Value
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResult.ID,
					Name:     part.FunctionResult.Name,
					Response: response,
				},
			})
		case core.DataPart:
			if data, err := json.Marshal(part.Data); err == nil {
				parts = append(parts, &genai.Part{Text: string(data)})
			}
		case core.FilePart:
			mimeType := ""
			if part.File.MimeType != nil {
				mimeType = *part.File.MimeType
			}
			if part.File.URI != "" {
				parts = append(parts, &genai.Part{
					FileData: &genai.FileData{
						MIMEType: mimeType,
						FileURI:  part.File.URI,
					},
				})
			} else if part.File.Bytes != "" {
				if data, err := base64.StdEncoding.DecodeString(part.File.Bytes); err == nil {
					parts = append(parts, &genai.Part{
						InlineData: &genai.Blob{
							MIMEType: mimeType,
							Data:     data,
						},
					})
				}
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}

	role := genai.RoleUser
	if c.Role == "assistant" || c.Role == "model" {
		role = genai.RoleModel
	}
	return &genai.Content{Role: role, Parts: parts}
}

// buildConfig creates the generation config including tool declarations.
func (m *ChatModel) buildConfig(req service.Request, system *genai.Content) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(m.opts.Temperature)),
		MaxOutputTokens:   m.opts.MaxOutputTokens,
	}
	if len(req.Tools) == 0 {
		return config
	}
	tools := make([]*genai.Tool, 0, len(req.Tools))
	for _, tdef := range req.Tools {
		tools = append(tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name:        tdef.Function.Name,
					Description: tdef.Function.Description,
					Parameters:  toGenaiSchema(tdef.Function.Parameters),
				},
			},
		})
	}
	config.Tools = tools
	return config
}

// toGenaiSchema converts a JSON schema object to a genai schema.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	switch required := schema["required"].(type) {
	case []string:
		s.Required = required
	case []any:
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}

// parseResponse converts a Gemini response into a final service response.
func parseResponse(resp *genai.GenerateContentResponse) (*service.Response, error) {
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from gemini")
	}
	candidate := resp.Candidates[0]

	var parts []core.Part
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				parts = append(parts, core.TextPart{Text: part.Text})
			}
			if part.FunctionCall != nil {
				parts = append(parts, core.FunctionCallPart{FunctionCall: toFunctionCall(part.FunctionCall)})
			}
		}
	}

	out := &service.Response{
		Partial:      false,
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: mapFinishReason(candidate.FinishReason),
	}
	if resp.UsageMetadata != nil {
		out.Usage = &service.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// toFunctionCall converts a genai function call, assigning an ID when the API
// omits one so downstream result matching stays possible.
func toFunctionCall(fc *genai.FunctionCall) core.FunctionCall {
	args := "{}"
	if len(fc.Args) > 0 {
		if data, err := json.Marshal(fc.Args); err == nil {
			args = string(data)
		}
	}
	id := fc.ID
	if id == "" {
		id = core.NewID()
	}
	return core.FunctionCall{ID: id, Name: fc.Name, Arguments: args}
}

func mapFinishReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop, "":
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return strings.ToLower(string(reason))
	}
}

// Info returns metadata describing this Gemini chat model implementation.
func (m *ChatModel) Info() service.Info {
	return service.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
