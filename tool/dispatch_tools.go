package tool

import (
	"fmt"

	"github.com/lorekeep/lorekeep/core"
)

// spawnAgentTool dispatches a sub-agent of a fixed role. One instance exists
// per specialist role so the model sees them as distinct capabilities.
type spawnAgentTool struct {
	name        string
	role        core.Role
	description string
}

func newSpawnAgentTool(name string, role core.Role, description string) Tool {
	return &spawnAgentTool{name: name, role: role, description: description}
}

// NewResearchAgentTool dispatches a research specialist.
func NewResearchAgentTool() Tool {
	return newSpawnAgentTool("research_agent", core.RoleResearch,
		"Delegate a research task to a specialist with web search access. "+
			"Describe exactly what should be found out.")
}

// NewCodeAgentTool dispatches a coding specialist.
func NewCodeAgentTool() Tool {
	return newSpawnAgentTool("code_agent", core.RoleCode,
		"Delegate a programming task to a coding specialist. "+
			"Describe the code to write or analyze.")
}

// NewDataAgentTool dispatches a data analysis specialist.
func NewDataAgentTool() Tool {
	return newSpawnAgentTool("data_agent", core.RoleData,
		"Delegate a data analysis task to a data specialist. "+
			"Describe the data and the analysis needed.")
}

// NewWritingAgentTool dispatches a writing specialist.
func NewWritingAgentTool() Tool {
	return newSpawnAgentTool("writing_agent", core.RoleWriting,
		"Delegate a writing task to a writing specialist. "+
			"Describe the document to produce and its audience.")
}

// NewSubOrchestratorTool dispatches a nested orchestrator that can itself
// coordinate specialists. Use for subproblems needing their own breakdown.
func NewSubOrchestratorTool() Tool {
	return newSpawnAgentTool("spawn_sub_orchestrator", core.RoleOrchestrator,
		"Delegate a complex subproblem to a sub-orchestrator that will break it "+
			"down and coordinate its own specialists. Use sparingly; dispatch depth is limited.")
}

func (t *spawnAgentTool) Name() string { return t.name }

func (t *spawnAgentTool) Description() string { return t.description }

func (t *spawnAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{"type": "string", "description": "Complete, self-contained task description"},
		},
		"required": []string{"task"},
	}
}

func (t *spawnAgentTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	task, err := stringArg(args, "task")
	if err != nil {
		return nil, err
	}
	output, err := tc.Dispatch(t.role, task)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// spawnSubAgentTool lets a specialist delegate to another role chosen at
// call time.
type spawnSubAgentTool struct{}

// NewSpawnSubAgentTool constructs the generic delegation tool.
func NewSpawnSubAgentTool() Tool { return &spawnSubAgentTool{} }

func (t *spawnSubAgentTool) Name() string { return "spawn_sub_agent" }

func (t *spawnSubAgentTool) Description() string {
	return "Delegate a subtask to another specialist (research, code, data or writing). " +
		"Use only when the subtask clearly needs a different specialty than yours."
}

func (t *spawnSubAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"role": map[string]any{
				"type":        "string",
				"enum":        []string{"research", "code", "data", "writing"},
				"description": "Specialist role to dispatch",
			},
			"task": map[string]any{"type": "string", "description": "Complete, self-contained task description"},
		},
		"required": []string{"role", "task"},
	}
}

func (t *spawnSubAgentTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	roleStr, err := stringArg(args, "role")
	if err != nil {
		return nil, err
	}
	role, err := core.ParseRole(roleStr)
	if err != nil {
		return nil, err
	}
	if !role.Specialist() {
		return nil, fmt.Errorf("role %q cannot be dispatched via spawn_sub_agent", roleStr)
	}
	task, err := stringArg(args, "task")
	if err != nil {
		return nil, err
	}
	return tc.Dispatch(role, task)
}
