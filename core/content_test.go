package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinedText(t *testing.T) {
	c := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "Hello, "},
			DataPart{Data: map[string]any{"ignored": true}},
			TextPart{Text: "world"},
		},
	}
	assert.Equal(t, "Hello, world", c.JoinedText())
}

func TestContentJSONRoundTrip(t *testing.T) {
	mime := "image/png"
	name := "chart.png"
	original := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "here you go", Metadata: map[string]any{"lang": "en"}},
			DataPart{Data: map[string]any{"score": 0.9}},
			FilePart{File: FileRef{Bytes: "aGVsbG8=", MimeType: &mime, Name: &name}},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "call-1", Name: "math.add", Arguments: `{"a":1,"b":2}`}},
			FunctionResultPart{FunctionResult: FunctionResult{ID: "call-1", Name: "math.add", Value: float64(3)}},
		},
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Len(t, decoded.Parts, 5)
	assert.Equal(t, "assistant", decoded.Role)

	tp, ok := decoded.Parts[0].(TextPart)
	require.True(t, ok)
	assert.Equal(t, "here you go", tp.Text)
	assert.Equal(t, "en", tp.Metadata["lang"])

	dp, ok := decoded.Parts[1].(DataPart)
	require.True(t, ok)
	assert.Equal(t, 0.9, dp.Data["score"])

	fp, ok := decoded.Parts[2].(FilePart)
	require.True(t, ok)
	assert.Equal(t, "aGVsbG8=", fp.File.Bytes)
	require.NotNil(t, fp.File.MimeType)
	assert.Equal(t, "image/png", *fp.File.MimeType)

	fc, ok := decoded.Parts[3].(FunctionCallPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", fc.FunctionCall.ID)
	assert.Equal(t, "math.add", fc.FunctionCall.Name)

	fr, ok := decoded.Parts[4].(FunctionResultPart)
	require.True(t, ok)
	assert.Equal(t, float64(3), fr.FunctionResult.Value)
}

func TestContentUnmarshalUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"parts":[{"type":"hologram"}]}`), &c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content part type")
}
