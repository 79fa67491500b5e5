package tool

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a
// Canopy tool.
//
// Responsibilities:
//   - Holds a JSON Schema describing the accepted arguments
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *Error with consistent
//     codes: VALIDATION_ERROR for schema mismatches, EXECUTION_ERROR when
//     the wrapped function fails (custom codes preserved if the function
//     returns *Error directly)
//
// A FunctionTool has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  *jsonschema.Schema
	resolved    *jsonschema.Resolved
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and
// function. The schema is resolved eagerly so malformed schemas surface at
// construction time rather than mid-conversation.
func NewFunctionTool(
	name, description string,
	parameters *jsonschema.Schema,
	fn func(ctx context.Context, args map[string]any) (any, error),
) (*FunctionTool, error) {
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	if parameters != nil {
		resolved, err := parameters.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("tool %s: invalid parameter schema: %w", name, err)
		}
		t.resolved = resolved
	}
	return t, nil
}

// MustNewFunctionTool is like NewFunctionTool but panics on schema errors.
// Intended for statically declared tools.
func MustNewFunctionTool(
	name, description string,
	parameters *jsonschema.Schema,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	t, err := NewFunctionTool(name, description, parameters, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// NewFunctionToolFor derives the parameter schema from the ArgType struct.
// It is a convenience for simple argument containers.
func NewFunctionToolFor[ArgType any](
	name, description string,
	fn func(ctx context.Context, args map[string]any) (any, error),
) (*FunctionTool, error) {
	schema, err := jsonschema.For[ArgType](nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: schema inference failed: %w", name, err)
	}
	return NewFunctionTool(name, description, schema, fn)
}

// Name returns the declaration name used in function calls and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to
// models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() *jsonschema.Schema { return t.parameters }

// Call validates the provided args against the declared schema then invokes
// the underlying function. Validation or execution failures are wrapped (or
// passed through) as *Error for uniform downstream handling.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if t.resolved != nil {
		if err := t.resolved.Validate(args); err != nil {
			return nil, &Error{
				Tool:    t.name,
				Message: fmt.Sprintf("parameter validation failed: %v", err),
				Code:    "VALIDATION_ERROR",
			}
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*Error); ok {
			return nil, toolErr
		}
		return nil, &Error{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return result, nil
}
