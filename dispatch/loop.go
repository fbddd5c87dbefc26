package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/model"
	"github.com/lorekeep/lorekeep/tool"
)

// toolsetFor assembles the tools a role may call. Every role gets the memory
// tools; web_search goes to the roles allowed to reach outside; delegation
// tools differ between the orchestrator and the specialists.
func (r *Router) toolsetFor(role core.Role) map[string]tool.Tool {
	tools := map[string]tool.Tool{}
	add := func(t tool.Tool) { tools[t.Name()] = t }

	add(tool.NewWriteToBufferTool())
	add(tool.NewWriteToScratchTool())
	add(tool.NewWriteToTaskMemoryTool())
	add(tool.NewReadCanonTool())

	switch role {
	case core.RoleOrchestrator:
		add(tool.NewWebSearchTool())
		add(tool.NewResearchAgentTool())
		add(tool.NewCodeAgentTool())
		add(tool.NewDataAgentTool())
		add(tool.NewWritingAgentTool())
		add(tool.NewSubOrchestratorTool())
	case core.RoleResearch:
		add(tool.NewWebSearchTool())
		add(tool.NewSpawnSubAgentTool())
	default:
		add(tool.NewSpawnSubAgentTool())
	}
	return tools
}

var dispatchToolNames = map[string]bool{
	"research_agent":         true,
	"code_agent":             true,
	"data_agent":             true,
	"writing_agent":          true,
	"spawn_sub_orchestrator": true,
	"spawn_sub_agent":        true,
}

func anyDispatchCall(calls []core.FunctionCall) bool {
	for _, c := range calls {
		if dispatchToolNames[c.Name] {
			return true
		}
	}
	return false
}

func toolDefinitions(tools map[string]tool.Tool) []model.ToolDefinition {
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// runLoop drives the model for one agent until it answers in plain text,
// executing requested tool calls between turns. Model errors and the
// iteration bound terminate this dispatch only.
func (r *Router) runLoop(ctx context.Context, node *Result, handle *core.AgentHandle, taskID string, scope core.Scope, tools map[string]tool.Tool) (string, error) {
	memoryContext, err := r.layers.BuildContext(ctx, taskID, handle, scope, r.limits)
	if err != nil {
		return "", fmt.Errorf("build memory context: %w", err)
	}

	prompt := "Your task: " + node.Task
	if memoryContext != "" {
		prompt = memoryContext + "\n\n" + prompt
	}
	contents := []core.Content{core.NewUserContent(prompt)}

	req := model.Request{
		Instructions: InstructionsFor(handle.Role),
		Tools:        toolDefinitions(tools),
	}
	m := r.modelFor(handle.Role)

	node.setState(StateInvoked)

	for i := 0; i < r.maxIterations; i++ {
		req.Contents = contents

		resp, err := r.invoke(ctx, m, req)
		if err != nil {
			return "", fmt.Errorf("model turn %d: %w: %v", i+1, core.ErrInferenceFailure, err)
		}

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			return resp.Content.Text(), nil
		}

		delegating := anyDispatchCall(calls)
		if delegating {
			node.setState(StateDelegated)
		}
		responses := r.executeCalls(ctx, node, handle, taskID, scope, tools, calls)
		if delegating {
			node.setState(StateInvoked)
		}

		contents = append(contents, resp.Content, core.NewToolContent(responses...))
	}

	return "", fmt.Errorf("no final answer after %d model turns: %w", r.maxIterations, core.ErrInferenceFailure)
}

// invoke runs one model turn under the concurrency bound. The slot is held
// for the inference call only, never while a dispatch waits on its children,
// so deep trees cannot starve each other.
func (r *Router) invoke(ctx context.Context, m model.Model, req model.Request) (model.Response, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return model.Response{}, fmt.Errorf("acquire invocation slot: %w", err)
	}
	defer r.sem.Release(1)
	return m.Invoke(ctx, req)
}

// executeCalls runs one turn's tool calls concurrently and returns responses
// in request order. A failing call yields an error response for the model to
// react to; it never aborts its siblings.
func (r *Router) executeCalls(ctx context.Context, node *Result, handle *core.AgentHandle, taskID string, scope core.Scope, tools map[string]tool.Tool, calls []core.FunctionCall) []core.FunctionResponse {
	responses := make([]core.FunctionResponse, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call core.FunctionCall) {
			defer wg.Done()
			responses[i] = r.executeCall(ctx, node, handle, taskID, scope, tools, call)
		}(i, call)
	}
	wg.Wait()

	return responses
}

func (r *Router) executeCall(ctx context.Context, node *Result, handle *core.AgentHandle, taskID string, scope core.Scope, tools map[string]tool.Tool, call core.FunctionCall) core.FunctionResponse {
	resp := core.FunctionResponse{ID: call.ID, Name: call.Name}

	t, ok := tools[call.Name]
	if !ok {
		resp.Error = fmt.Sprintf("unknown tool %q", call.Name)
		return resp
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			resp.Error = fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
			return resp
		}
	}

	tc := tool.NewToolContext(tool.ToolContextParams{
		Ctx:            ctx,
		Caller:         handle,
		TaskID:         taskID,
		Scope:          scope,
		Layers:         r.layers,
		Search:         r.searchClient,
		Spawn:          r.spawnFor(node, taskID),
		Logger:         r.logger,
		FunctionCallID: call.ID,
	})

	r.logger.Debug("tool.call", "tool", call.Name, "agent_id", handle.ID, "role", handle.Role.String())

	result, err := t.Call(tc, args)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Response = result
	return resp
}
