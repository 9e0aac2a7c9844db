package tool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erni-gruppe/building-agents/core"
)

func newTestContext() *Context {
	return NewContext(core.NewProjectContext(), "call_test", nil)
}

func echoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}
}

func TestFunctionTool_Call(t *testing.T) {
	tool := NewFunctionTool("echo", "Echoes input.", echoSchema(),
		func(tc *Context, args map[string]any) (string, error) {
			return "echo: " + args["text"].(string), nil
		})

	assert.Equal(t, "echo", tool.Name())
	assert.Equal(t, "Echoes input.", tool.Description())

	result, err := tool.Call(newTestContext(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", result)
}

func TestFunctionTool_MissingRequiredArgument(t *testing.T) {
	tool := NewFunctionTool("echo", "Echoes input.", echoSchema(),
		func(tc *Context, args map[string]any) (string, error) {
			t.Fatal("function must not run on invalid args")
			return "", nil
		})

	_, err := tool.Call(newTestContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionTool_WrapsExecutionError(t *testing.T) {
	tool := NewFunctionTool("boom", "Always fails.", map[string]any{"type": "object"},
		func(tc *Context, args map[string]any) (string, error) {
			return "", errors.New("backend unavailable")
		})

	_, err := tool.Call(newTestContext(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend unavailable")
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	orig := NewToolError("boom", "quota exceeded", "RATE_LIMITED")
	tool := NewFunctionTool("boom", "Always fails.", map[string]any{"type": "object"},
		func(tc *Context, args map[string]any) (string, error) {
			return "", orig
		})

	_, err := tool.Call(newTestContext(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Same(t, orig, toolErr)
}

func TestToolError_Error(t *testing.T) {
	withCode := NewToolError("echo", "bad input", "VALIDATION_ERROR")
	assert.Equal(t, "tool error [VALIDATION_ERROR] in echo: bad input", withCode.Error())

	withoutCode := &ToolError{Tool: "echo", Message: "bad input"}
	assert.Equal(t, "tool error in echo: bad input", withoutCode.Error())
}
