package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FilePart is a file attachment segment.
type FilePart struct {
	File     FileRef // File metadata / reference
	Metadata map[string]any
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// FileRef describes an attached file either inlined (base64) or by URI.
type FileRef struct {
	Bytes    string  // Base64 encoded contents (if inlined)
	MimeType *string // Optional MIME type
	Name     *string // Original filename hint
	URI      string  // External retrieval URI (if not inlined)
}

// FunctionCall describes a kernel function invocation request surfaced by a
// chat model or authored by an agent.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Optional stable id (can be supplied later)
	Name      string `json:"name"`                // Fully qualified function name (plugin.function)
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResult describes the outcome of a function call. It doubles as the
// return value of Kernel.InvokeFunction and as the payload of a
// FunctionResultPart in conversational content.
type FunctionResult struct {
	ID    string `json:"id,omitempty"`    // Matches originating FunctionCall ID
	Name  string `json:"name"`            // Fully qualified function name
	Value any    `json:"value,omitempty"` // Successful result (any JSON-serializable shape)
	Error string `json:"error,omitempty"` // Populated on failure
}

// FunctionResultPart wraps a FunctionResult as a content part.
type FunctionResultPart struct {
	FunctionResult FunctionResult
	Metadata       map[string]any
}

// isPart implements the Part interface for FunctionResultPart.
func (FunctionResultPart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, tool, system,...)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// TextContent is a convenience constructor for single text part content.
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// JoinedText concatenates all text parts in order.
func (c Content) JoinedText() string {
	var out string
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
