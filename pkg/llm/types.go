package llm

// Message roles. RoleFunction is accepted as a legacy alias for RoleTool.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
)

// PartKind tags the variants of a message content part.
type PartKind string

const (
	// PartText is plain text content.
	PartText PartKind = "text"

	// PartImage references an image, either by URL or as a
	// "data:<mime>;base64,<payload>" data URI.
	PartImage PartKind = "image"

	// PartFile references an attached file by URL or data URI. Providers
	// that cannot ingest the file's MIME type substitute a descriptive
	// text placeholder.
	PartFile PartKind = "file"
)

// Part is one typed element of a multi-part message content list.
type Part struct {
	// Kind selects the variant. Exactly the fields relevant to that variant
	// are set; the rest are zero.
	Kind PartKind

	// Text is the content for PartText parts.
	Text string

	// URL is the image or file location for PartImage/PartFile parts. May be
	// a data URI carrying inline base64 content.
	URL string

	// MediaType is the declared MIME type of a file part (e.g.,
	// "application/pdf", "audio/webm"). Empty for text parts.
	MediaType string

	// Name is an optional display name for a file part.
	Name string
}

// Message represents a single message in an LLM conversation.
//
// Content carries plain text; Parts carries an ordered multi-part body. When
// Parts is non-empty it takes precedence and Content is ignored.
type Message struct {
	Role       string
	Content    string
	Parts      []Part
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// Text returns the textual content of the message: Content when Parts is
// empty, otherwise the concatenation of all text parts.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// SystemMessage constructs a system-role text message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage constructs a user-role text message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// ToolCall represents a tool/function invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned identifier for this call.
	ID string `json:"id"`

	// Type is always "function" for current providers.
	Type string `json:"type"`

	// Function names the tool and carries its JSON-encoded arguments.
	Function FunctionCall `json:"function"`
}

// FunctionCall is the name/arguments pair inside a ToolCall.
type FunctionCall struct {
	Name string `json:"name"`

	// Arguments is a JSON-encoded object string, exactly as the model
	// produced it.
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string

	// Parameters is the JSON Schema describing the tool's input.
	Parameters map[string]any
}

// ResponseFormatKind selects the requested output shape.
type ResponseFormatKind string

const (
	ResponseFormatText ResponseFormatKind = "text"

	// ResponseFormatJSON asks the model for a raw JSON reply. Transports
	// without a native structured-output toggle enforce this instructionally
	// (an appended system-prompt demand), so callers MUST still parse the
	// reply defensively.
	ResponseFormatJSON ResponseFormatKind = "json_object"
)

// ResponseFormat is an optional structured-output request.
type ResponseFormat struct {
	Kind ResponseFormatKind
}

// Request carries everything a provider needs to produce a completion.
// Messages must be non-empty; a zero-value Request is invalid.
type Request struct {
	// Messages is the ordered conversation. System-role messages may appear
	// anywhere; providers hoist them into the vendor's system slot.
	Messages []Message

	// Tools is the set of tool definitions offered to the model. May be nil.
	Tools []ToolDefinition

	// ResponseFormat optionally requests structured output. Nil means free
	// text.
	ResponseFormat *ResponseFormat

	// MaxTokens caps completion length. Zero means the provider default.
	MaxTokens int

	// Temperature controls randomness in [0.0, 2.0]. Zero means the
	// provider default.
	Temperature float64
}

// Usage holds normalized token accounting for one request/response pair.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResultMessage is the assistant message inside a Result choice.
type ResultMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Choice pairs a result message with the reason generation stopped.
// FinishReason is "stop", "tool_calls", or the vendor's value passed through.
type Choice struct {
	Message      ResultMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// Result is the vendor-neutral completion envelope. Providers build it once
// from the raw vendor response; it is never mutated afterwards.
type Result struct {
	ID      string   `json:"id"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Text returns the content of the first choice, or "" when the result carries
// no choices. Convenience for the common single-choice case.
func (r *Result) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// FirstToolCalls returns the tool calls of the first choice, or nil.
func (r *Result) FirstToolCalls() []ToolCall {
	if r == nil || len(r.Choices) == 0 {
		return nil
	}
	return r.Choices[0].Message.ToolCalls
}
