package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"a": {Type: "number"},
			"b": {Type: "number"},
		},
		Required: []string{"a", "b"},
	}
}

func TestFunctionToolCall(t *testing.T) {
	add, err := NewFunctionTool("add", "adds two numbers", addSchema(),
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})
	require.NoError(t, err)

	out, err := add.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})

	require.NoError(t, err)
	assert.Equal(t, 5.0, out)
}

func TestFunctionToolValidation(t *testing.T) {
	add := MustNewFunctionTool("add", "adds", addSchema(),
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil })

	_, err := add.Call(context.Background(), map[string]any{"a": 1.0})

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "add", toolErr.Tool)
}

func TestFunctionToolWrapsExecutionErrors(t *testing.T) {
	boom := MustNewFunctionTool("boom", "fails", nil,
		func(_ context.Context, _ map[string]any) (any, error) {
			return nil, errors.New("backend down")
		})

	_, err := boom.Call(context.Background(), nil)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend down")
}

func TestFunctionToolPreservesCustomErrors(t *testing.T) {
	custom := NewError("custom", "no access", "PERMISSION_DENIED")
	tl := MustNewFunctionTool("custom", "fails", nil,
		func(_ context.Context, _ map[string]any) (any, error) { return nil, custom })

	_, err := tl.Call(context.Background(), nil)

	var toolErr *Error
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "PERMISSION_DENIED", toolErr.Code)
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("add", MustNewFunctionTool("add", "adds", nil,
		func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }))

	rs, err := r.Resolve([]string{"add", GroundingToolID})

	require.NoError(t, err)
	assert.True(t, rs.Grounding)
	require.Len(t, rs.Executables, 1)

	got, ok := rs.Lookup("add")
	assert.True(t, ok)
	assert.Equal(t, "add", got.Name())

	_, ok = rs.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistryResolveUnregistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve([]string{"ghost"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ghost" is not registered`)
}

func TestGroundingToolIsMarkerOnly(t *testing.T) {
	g := NewGroundingTool()

	assert.True(t, IsGrounding(g))
	assert.Nil(t, g.Parameters())

	_, err := g.Call(context.Background(), nil)
	require.Error(t, err)
}
