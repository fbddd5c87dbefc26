// Package tool implements the function / tool calling subsystem that lets
// agents act on the memory layers, search the web and dispatch sub-agents,
// with consistent error handling and schema metadata for model guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/logging"
	"github.com/lorekeep/lorekeep/memory"
	"github.com/lorekeep/lorekeep/search"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools have access to a ToolContext carrying the calling agent's handle, its
// task, the memory layers and the dispatch callback. Every memory operation a
// tool performs flows through the layer façade, so the caller's role
// permissions always apply.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and ToolContext.
	Call(toolCtx *ToolContext, args map[string]interface{}) (interface{}, error)
}

// SpawnFunc dispatches a sub-agent on behalf of the calling agent and blocks
// until the child completes, returning its final output. Depth and
// permission checks are the dispatcher's responsibility.
type SpawnFunc func(ctx context.Context, caller *core.AgentHandle, role core.Role, task string) (string, error)

// ToolContextParams collects the collaborators bound into a ToolContext.
type ToolContextParams struct {
	Ctx            context.Context
	Caller         *core.AgentHandle
	TaskID         string
	Scope          core.Scope
	Layers         *memory.Layers
	Search         search.Client
	Spawn          SpawnFunc
	Logger         logging.Logger
	FunctionCallID string
}

// ToolContext is the per-call environment handed to a tool. It binds the
// calling agent's identity and scope so tools cannot escape the caller's
// permissions.
type ToolContext struct {
	ctx            context.Context
	caller         *core.AgentHandle
	taskID         string
	scope          core.Scope
	layers         *memory.Layers
	search         search.Client
	spawn          SpawnFunc
	logger         logging.Logger
	functionCallID string
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(p ToolContextParams) *ToolContext {
	logger := p.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            p.Ctx,
		caller:         p.Caller,
		taskID:         p.TaskID,
		scope:          p.Scope,
		layers:         p.Layers,
		search:         p.Search,
		spawn:          p.Spawn,
		logger:         logger,
		functionCallID: p.FunctionCallID,
	}
}

// Context returns the cancellation context of the enclosing dispatch.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Caller returns the handle of the agent making this call.
func (tc *ToolContext) Caller() *core.AgentHandle { return tc.caller }

// TaskID returns the task the calling agent is working on.
func (tc *ToolContext) TaskID() string { return tc.taskID }

// Scope returns the caller's Canon scope.
func (tc *ToolContext) Scope() core.Scope { return tc.scope }

// Layers returns the permission-guarded memory façade.
func (tc *ToolContext) Layers() *memory.Layers { return tc.layers }

// Search returns the web search client, or nil when unbound.
func (tc *ToolContext) Search() search.Client { return tc.search }

// Logger returns the logger for this call.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// FunctionCallID correlates the model's request with this execution.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Dispatch spawns a sub-agent and blocks until it completes.
func (tc *ToolContext) Dispatch(role core.Role, task string) (string, error) {
	if tc.spawn == nil {
		return "", fmt.Errorf("dispatch is not available in this context")
	}
	return tc.spawn(tc.ctx, tc.caller, role, task)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// stringArg extracts a required non-empty string argument.
func stringArg(args map[string]interface{}, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required field %q", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("field %q must be a non-empty string", key)
	}
	return s, nil
}

// floatArg extracts an optional numeric argument, returning def when absent.
func floatArg(args map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("field %q must be a number", key)
	}
}
