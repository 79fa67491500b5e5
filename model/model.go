package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/canopyai/canopy/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// Request captures the normalized model input produced by the engine.
//
// Tools and Grounding are mutually exclusive on the wire; the engine
// enforces the exclusion before a request is built, so adapters may treat a
// request carrying both as a programming error.
type Request struct {
	Model        string            `json:"model"`        // Resolved model identifier
	Instructions string            `json:"instructions"` // System instruction
	Contents     []core.Content    `json:"contents"`     // Accumulated conversation turns
	Tools        []ToolDefinition  `json:"tools,omitempty"`
	Grounding    bool              `json:"grounding,omitempty"` // Attach the grounding directive
}

// GroundingSource is one citation produced by a grounded response.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Response is the normalized result of one conversational generation call.
// Content may interleave text, function call and inline media parts.
type Response struct {
	Content          core.Content      `json:"content"`
	GroundingSources []GroundingSource `json:"grounding_sources,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Provider          string `json:"provider"` // "gemini", "openai", "anthropic", ...
	SupportsTools     bool   `json:"supports_tools"`
	SupportsGrounding bool   `json:"supports_grounding"`
}

// Model is the minimal interface required to drive one conversational
// generation round trip.
type Model interface {
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// SchemaToMap converts a JSON schema into its generic map form for SDKs that
// take schemas as loosely typed maps.
func SchemaToMap(s *jsonschema.Schema) map[string]any {
	if s == nil {
		return map[string]any{"type": "object"}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// consumed in FIFO order; once the queue is drained every call returns a
// plain text echo of the last user content. Safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	queue    []mockStep
	Requests []*Request // Every request seen, in order
}

type mockStep struct {
	resp *Response
	err  error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(provider string) *MockModel {
	return &MockModel{info: Info{Provider: provider, SupportsTools: true}}
}

// SetInfo overrides the advertised model metadata.
func (m *MockModel) SetInfo(info Info) { m.info = info }

// EnqueueText queues a plain text response.
func (m *MockModel) EnqueueText(text string) {
	m.queue = append(m.queue, mockStep{resp: &Response{Content: core.NewTextContent("model", text)}})
}

// EnqueueResponse queues an arbitrary response.
func (m *MockModel) EnqueueResponse(resp *Response) {
	m.queue = append(m.queue, mockStep{resp: resp})
}

// EnqueueFunctionCall queues a response containing a single function call.
func (m *MockModel) EnqueueFunctionCall(id, name, args string) {
	m.queue = append(m.queue, mockStep{resp: &Response{Content: core.Content{
		Role: "model",
		Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        id,
			Name:      name,
			Arguments: args,
		}}},
	}}})
}

// EnqueueError queues a failing generation attempt.
func (m *MockModel) EnqueueError(err error) {
	m.queue = append(m.queue, mockStep{err: err})
}

// Generate implements Model.
func (m *MockModel) Generate(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)

	if len(m.queue) > 0 {
		step := m.queue[0]
		m.queue = m.queue[1:]
		if step.err != nil {
			return nil, step.err
		}
		return step.resp, nil
	}

	var lastText string
	if len(req.Contents) > 0 {
		lastText = req.Contents[len(req.Contents)-1].Text()
	}
	return &Response{Content: core.NewTextContent("model", fmt.Sprintf("Mock response to: %s", lastText))}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
