// Package tool implements the function / tool calling subsystem that lets
// agents invoke structured capabilities (APIs, computations, side-effects)
// with schema validated arguments and consistent error handling. It also
// defines the native grounding marker tool and the registry that resolves an
// agent's declared tool identifiers into an executable set.
package tool

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool defines the interface for extending agent capabilities with external
// functions.
//
// Tools are registered with the Registry under an identifier and referenced
// by agent nodes through that identifier. The declaration name (Name) is
// what the model sees and calls.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define a proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the function declaration name exposed to models
	// (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool
	// does. It is provided to the model to guide tool selection.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	// A nil schema means the tool takes no function-call arguments (the
	// grounding marker returns nil).
	Parameters() *jsonschema.Schema

	// Call executes the tool with decoded arguments. The returned value
	// must be JSON-serializable.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// Error represents errors that occur during tool execution.
type Error struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewError creates a new Error with the specified details.
func NewError(tool, message, code string) *Error {
	return &Error{Tool: tool, Message: message, Code: code}
}
