// Package tool implements the function calling subsystem that lets agents
// invoke structured business capabilities with schema-validated arguments and
// consistent error handling. Tools are the only code permitted to mutate the
// shared ProjectContext during a turn.
package tool

import (
	"fmt"

	"github.com/erni-gruppe/building-agents/core"
	"github.com/erni-gruppe/building-agents/internal/util"
	"github.com/erni-gruppe/building-agents/logging"
)

// Context carries the per-turn execution scope handed to a tool: the mutable
// project context, the id of the originating function call and a logger.
type Context struct {
	Project        *core.ProjectContext
	FunctionCallID string
	Logger         logging.Logger
}

// NewContext builds a tool execution context. A nil logger is replaced with
// a no-op.
func NewContext(project *core.ProjectContext, functionCallID string, logger logging.Logger) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{Project: project, FunctionCallID: functionCallID, Logger: logger}
}

// Tool defines a named capability an agent can call. Implementations must be
// safe for concurrent use and must never panic on bad input; argument
// problems surface as descriptive result strings or *ToolError values which
// the runner renders into the tool output.
type Tool interface {
	// Name returns the unique identifier used in function call declarations.
	Name() string

	// Description is the natural language description exposed to models.
	Description() string

	// Parameters returns a minimal JSON schema describing the arguments.
	Parameters() map[string]any

	// Call executes the tool. The string result is returned verbatim to the
	// model and surfaced as the tool_output event content.
	Call(tc *Context, args map[string]any) (string, error)
}

// ValidationError re-exports the shared parameter validation error type.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}
