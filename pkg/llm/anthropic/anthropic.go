// Package anthropic provides an llm.Provider backed by the Anthropic Messages
// API. It translates the vendor-neutral request shape into Anthropic's wire
// format and normalizes the response back, so no other package in the
// repository ever sees Anthropic-specific JSON.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitchline-ai/pitchline/pkg/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	messagesPath     = "/v1/messages"
	apiVersion       = "2023-06-01"
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
)

// jsonInstruction is appended to the system prompt when the caller requests a
// JSON response format. The Messages API has no structured-output toggle for
// this request shape, so enforcement is instructional only; callers must
// defensively parse the reply.
const jsonInstruction = "You must respond with raw JSON only. Do not include any explanatory prose, markdown, or code fences around the JSON."

// documentMediaTypes lists the MIME types the Messages API ingests as native
// document blocks. Anything else becomes a descriptive text placeholder.
var documentMediaTypes = map[string]bool{
	"application/pdf": true,
}

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithModel sets the model identifier (e.g., "claude-sonnet-4-5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithMaxTokens sets the default max_tokens bound applied when a request does
// not specify its own.
func WithMaxTokens(n int) Option {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to set a timeout or to point
// tests at an httptest server transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements llm.Provider against the Anthropic Messages API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// New creates a new Provider. The API key is validated here, at construction,
// so a missing credential fails fast rather than on the first call.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- wire types ----

// wireRequest is the JSON body POSTed to /v1/messages.
type wireRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

// wireBlock is a tagged union over the Messages API content block kinds used
// by this adapter: text, image, document, tool_use, and tool_result.
type wireBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *wireSource `json:"source,omitempty"`

	// tool_use fields (assistant history replay).
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result fields.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

// wireSource is the image/document source union: base64 or url.
type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// wireResponse is the JSON body of a successful /v1/messages response.
type wireResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// APIError is returned for non-2xx transport responses. It carries the
// upstream status and body verbatim so callers can log the diagnostic.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic: api error %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// ---- Complete ----

// Complete implements llm.Provider. It issues exactly one POST to the
// configured messages endpoint; there are no retries.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	wreq, err := p.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}

	body, err := json.Marshal(wreq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: post messages: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	return parseResponse(respBody), nil
}

// ---- request translation ----

// buildRequest translates a vendor-neutral llm.Request into the Anthropic
// wire shape. Pure; exercised directly by tests.
func (p *Provider) buildRequest(req llm.Request) (*wireRequest, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}

	var systemParts []string
	var messages []wireMessage

	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			// All system messages collapse into the dedicated system slot,
			// preserving order.
			systemParts = append(systemParts, m.Text())

		case llm.RoleUser:
			messages = append(messages, wireMessage{
				Role:    "user",
				Content: convertParts(m),
			})

		case llm.RoleAssistant:
			messages = append(messages, wireMessage{
				Role:    "assistant",
				Content: convertAssistant(m),
			})

		case llm.RoleTool, llm.RoleFunction:
			// Tool results travel as user-role tool_result blocks.
			messages = append(messages, wireMessage{
				Role: "user",
				Content: []wireBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Text(),
				}},
			})

		default:
			return nil, fmt.Errorf("unknown message role %q", m.Role)
		}
	}

	system := strings.Join(systemParts, "\n\n")
	if req.ResponseFormat != nil && req.ResponseFormat.Kind == llm.ResponseFormatJSON {
		if system != "" {
			system += "\n\n"
		}
		system += jsonInstruction
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.maxTokens
	}

	wreq := &wireRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		wreq.Temperature = &t
	}
	for _, td := range req.Tools {
		schema := td.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		wreq.Tools = append(wreq.Tools, wireTool{
			Name:        td.Name,
			Description: td.Description,
			InputSchema: schema,
		})
	}
	return wreq, nil
}

// convertParts translates a user message body into content blocks.
func convertParts(m llm.Message) []wireBlock {
	if len(m.Parts) == 0 {
		return []wireBlock{{Type: "text", Text: m.Content}}
	}

	blocks := make([]wireBlock, 0, len(m.Parts))
	for _, part := range m.Parts {
		switch part.Kind {
		case llm.PartText:
			blocks = append(blocks, wireBlock{Type: "text", Text: part.Text})

		case llm.PartImage:
			blocks = append(blocks, imageBlock(part))

		case llm.PartFile:
			blocks = append(blocks, fileBlock(part))
		}
	}
	return blocks
}

// convertAssistant translates an assistant message, replaying any tool calls
// as tool_use blocks so multi-turn tool conversations round-trip.
func convertAssistant(m llm.Message) []wireBlock {
	var blocks []wireBlock
	if text := m.Text(); text != "" {
		blocks = append(blocks, wireBlock{Type: "text", Text: text})
	}
	for _, tc := range m.ToolCalls {
		input := json.RawMessage(tc.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, wireBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	if len(blocks) == 0 {
		blocks = []wireBlock{{Type: "text", Text: ""}}
	}
	return blocks
}

// imageBlock builds an image content block. Data URIs are decomposed into
// inline base64 sources; everything else is passed as a URL source.
func imageBlock(part llm.Part) wireBlock {
	if mediaType, data, ok := parseDataURI(part.URL); ok {
		return wireBlock{
			Type: "image",
			Source: &wireSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      data,
			},
		}
	}
	return wireBlock{
		Type:   "image",
		Source: &wireSource{Type: "url", URL: part.URL},
	}
}

// fileBlock builds a document block for supported document types; anything
// else (audio in particular, which the transport cannot ingest) degrades to a
// descriptive text placeholder.
func fileBlock(part llm.Part) wireBlock {
	if documentMediaTypes[part.MediaType] {
		if _, data, ok := parseDataURI(part.URL); ok {
			return wireBlock{
				Type: "document",
				Source: &wireSource{
					Type:      "base64",
					MediaType: part.MediaType,
					Data:      data,
				},
			}
		}
		return wireBlock{
			Type:   "document",
			Source: &wireSource{Type: "url", URL: part.URL},
		}
	}

	name := part.Name
	if name == "" {
		name = "attachment"
	}
	return wireBlock{
		Type: "text",
		Text: fmt.Sprintf("[file %s of type %s attached; content not directly readable]", name, part.MediaType),
	}
}

// parseDataURI splits a "data:<mime>;base64,<payload>" URI into its media
// type and base64 payload. Returns ok=false for anything else.
func parseDataURI(uri string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(uri, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), payload, true
}

// ---- response normalization ----

// parseResponse converts a raw Messages API response body into the
// vendor-neutral result envelope. Malformed payloads degrade to an empty
// result rather than an error; downstream callers already apply fallbacks.
func parseResponse(body []byte) *llm.Result {
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &llm.Result{
			Created: time.Now().Unix(),
			Choices: []llm.Choice{{
				Message:      llm.ResultMessage{Role: llm.RoleAssistant},
				FinishReason: "stop",
			}},
		}
	}

	var text strings.Builder
	var toolCalls []llm.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args := "{}"
			if len(block.Input) > 0 {
				args = string(block.Input)
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: llm.FunctionCall{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	usage := llm.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

	return &llm.Result{
		ID:      resp.ID,
		Created: time.Now().Unix(),
		Model:   resp.Model,
		Choices: []llm.Choice{{
			Message: llm.ResultMessage{
				Role:      llm.RoleAssistant,
				Content:   text.String(),
				ToolCalls: toolCalls,
			},
			FinishReason: mapStopReason(resp.StopReason),
		}},
		Usage: usage,
	}
}

// mapStopReason normalizes Anthropic stop reasons: end_turn becomes "stop",
// tool_use becomes "tool_calls", and any other value passes through.
func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "":
		return "stop"
	case "tool_use":
		return "tool_calls"
	default:
		return reason
	}
}
