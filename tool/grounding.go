package tool

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// GroundingToolID is the registry identifier conventionally used for the
// native web-search grounding capability.
const GroundingToolID = "google_search_grounding"

// groundingTool is structurally different from every other tool: it has no
// executable and no function declaration usable for function calling. Its
// presence in an agent's resolved tool set toggles the grounding directive
// on outbound requests instead.
type groundingTool struct{}

// NewGroundingTool constructs the native grounding marker tool.
func NewGroundingTool() Tool { return groundingTool{} }

func (groundingTool) Name() string { return GroundingToolID }

func (groundingTool) Description() string {
	return "Ground responses in live web search results with citations."
}

// Parameters returns nil: grounding carries no function declaration.
func (groundingTool) Parameters() *jsonschema.Schema { return nil }

// Call always fails: grounding is a request directive, not a callable.
func (groundingTool) Call(context.Context, map[string]any) (any, error) {
	return nil, NewError(GroundingToolID, "grounding is not directly callable", "NOT_CALLABLE")
}

// IsGrounding reports whether t is the native grounding marker.
func IsGrounding(t Tool) bool {
	_, ok := t.(groundingTool)
	return ok
}
