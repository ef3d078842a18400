package core

import (
	"encoding/json"
	"fmt"
)

// Parts are a closed interface set, so Content carries a custom JSON codec:
// each part is wrapped in a tagged envelope ({"type": "text", ...}) allowing
// durable stores (Redis sessions, process checkpoints) to round-trip events
// without losing part identity.

const (
	partTypeText           = "text"
	partTypeData           = "data"
	partTypeFile           = "file"
	partTypeFunctionCall   = "function_call"
	partTypeFunctionResult = "function_result"
)

type partEnvelope struct {
	Type           string         `json:"type"`
	Text           string         `json:"text,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	File           *FileRef       `json:"file,omitempty"`
	FunctionCall   *FunctionCall  `json:"function_call,omitempty"`
	FunctionResult *FunctionResult `json:"function_result,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type contentJSON struct {
	Role  string         `json:"role,omitempty"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON implements json.Marshaler for Content.
func (c Content) MarshalJSON() ([]byte, error) {
	out := contentJSON{Role: c.Role, Parts: make([]partEnvelope, 0, len(c.Parts))}
	for _, p := range c.Parts {
		var env partEnvelope
		switch part := p.(type) {
		case TextPart:
			env = partEnvelope{Type: partTypeText, Text: part.Text, Metadata: part.Metadata}
		case DataPart:
			env = partEnvelope{Type: partTypeData, Data: part.Data, Metadata: part.Metadata}
		case FilePart:
			f := part.File
			env = partEnvelope{Type: partTypeFile, File: &f, Metadata: part.Metadata}
		case FunctionCallPart:
			fc := part.FunctionCall
			env = partEnvelope{Type: partTypeFunctionCall, FunctionCall: &fc, Metadata: part.Metadata}
		case FunctionResultPart:
			fr := part.FunctionResult
			env = partEnvelope{Type: partTypeFunctionResult, FunctionResult: &fr, Metadata: part.Metadata}
		default:
			return nil, fmt.Errorf("unknown content part type %T", p)
		}
		out.Parts = append(out.Parts, env)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Content.
func (c *Content) UnmarshalJSON(data []byte) error {
	var in contentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Role = in.Role
	c.Parts = make([]Part, 0, len(in.Parts))
	for _, env := range in.Parts {
		switch env.Type {
		case partTypeText:
			c.Parts = append(c.Parts, TextPart{Text: env.Text, Metadata: env.Metadata})
		case partTypeData:
			c.Parts = append(c.Parts, DataPart{Data: env.Data, Metadata: env.Metadata})
		case partTypeFile:
			var f FileRef
			if env.File != nil {
				f = *env.File
			}
			c.Parts = append(c.Parts, FilePart{File: f, Metadata: env.Metadata})
		case partTypeFunctionCall:
			var fc FunctionCall
			if env.FunctionCall != nil {
				fc = *env.FunctionCall
			}
			c.Parts = append(c.Parts, FunctionCallPart{FunctionCall: fc, Metadata: env.Metadata})
		case partTypeFunctionResult:
			var fr FunctionResult
			if env.FunctionResult != nil {
				fr = *env.FunctionResult
			}
			c.Parts = append(c.Parts, FunctionResultPart{FunctionResult: fr, Metadata: env.Metadata})
		default:
			return fmt.Errorf("unknown content part type %q", env.Type)
		}
	}
	return nil
}
