package tool

import (
	"fmt"
	"sort"

	"github.com/lorekeep/lorekeep/memory"
)

// writeToBufferTool records an unverified claim for later curation.
type writeToBufferTool struct{}

// NewWriteToBufferTool constructs the buffer append tool.
func NewWriteToBufferTool() Tool { return &writeToBufferTool{} }

func (t *writeToBufferTool) Name() string { return "write_to_buffer" }

func (t *writeToBufferTool) Description() string {
	return "Record a factual claim you discovered. Claims are unverified until the curator " +
		"reviews them; include the canon key the claim targets (e.g. facts/deploy_date), " +
		"the source, and your confidence from 0 to 1."
}

func (t *writeToBufferTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key":        map[string]any{"type": "string", "description": "Target canon key, namespaced as namespace/name"},
			"claim":      map[string]any{"type": "string", "description": "The factual claim"},
			"source":     map[string]any{"type": "string", "description": "Where the claim came from (URL, computation, reasoning)"},
			"confidence": map[string]any{"type": "number", "description": "Confidence from 0 to 1"},
		},
		"required": []string{"key", "claim"},
	}
}

func (t *writeToBufferTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	key, err := stringArg(args, "key")
	if err != nil {
		return nil, err
	}
	claim, err := stringArg(args, "claim")
	if err != nil {
		return nil, err
	}
	source, _ := args["source"].(string)
	confidence, err := floatArg(args, "confidence", 0.5)
	if err != nil {
		return nil, err
	}

	entry, err := tc.Layers().AppendBuffer(tc.Context(), memory.BufferEntry{
		TaskID:     tc.TaskID(),
		AgentID:    tc.Caller().ID,
		Role:       tc.Caller().Role,
		Key:        key,
		Claim:      claim,
		Source:     source,
		Confidence: confidence,
	}, tc.Caller().Role)
	if err != nil {
		return nil, err
	}
	return map[string]any{"recorded": true, "id": entry.ID, "status": string(entry.Status)}, nil
}

// writeToScratchTool appends to the caller's private notes.
type writeToScratchTool struct{}

// NewWriteToScratchTool constructs the scratch note tool.
func NewWriteToScratchTool() Tool { return &writeToScratchTool{} }

func (t *writeToScratchTool) Name() string { return "write_to_scratch" }

func (t *writeToScratchTool) Description() string {
	return "Save a private working note for yourself. Nobody else can read it; it is " +
		"discarded when the task closes."
}

func (t *writeToScratchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The note content"},
		},
		"required": []string{"content"},
	}
}

func (t *writeToScratchTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	if err := tc.Layers().WriteScratch(tc.Context(), tc.Caller(), tc.TaskID(), content); err != nil {
		return nil, err
	}
	return map[string]any{"saved": true}, nil
}

// writeToTaskMemoryTool appends to the shared mission narrative.
type writeToTaskMemoryTool struct{}

// NewWriteToTaskMemoryTool constructs the task narrative tool.
func NewWriteToTaskMemoryTool() Tool { return &writeToTaskMemoryTool{} }

func (t *writeToTaskMemoryTool) Name() string { return "write_to_task_memory" }

func (t *writeToTaskMemoryTool) Description() string {
	return "Share a progress update or finding with every agent on this task. Use for " +
		"information teammates need, not for private working notes."
}

func (t *writeToTaskMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The update to share"},
		},
		"required": []string{"content"},
	}
}

func (t *writeToTaskMemoryTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	content, err := stringArg(args, "content")
	if err != nil {
		return nil, err
	}
	err = tc.Layers().AppendTaskMemory(tc.Context(), tc.TaskID(), memory.TaskEntry{
		AgentID: tc.Caller().ID,
		Content: content,
	}, tc.Caller().Role)
	if err != nil {
		return nil, err
	}
	return map[string]any{"shared": true}, nil
}

// readCanonTool reads verified truth within the caller's scope.
type readCanonTool struct{}

// NewReadCanonTool constructs the canon read tool.
func NewReadCanonTool() Tool { return &readCanonTool{} }

func (t *readCanonTool) Name() string { return "read_canon" }

func (t *readCanonTool) Description() string {
	return "Read verified facts from canon. Omit keys to list everything your role can see."
}

func (t *readCanonTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keys": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Specific canon keys to read; omit for all visible entries",
			},
		},
	}
}

func (t *readCanonTool) Call(tc *ToolContext, args map[string]any) (any, error) {
	var keys []string
	if raw, ok := args["keys"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("field \"keys\" must be an array of strings")
		}
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("field \"keys\" must be an array of strings")
			}
			keys = append(keys, s)
		}
	}

	entries, err := tc.Layers().ReadCanonSlice(tc.Context(), keys, tc.Caller().Role, tc.Scope())
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(entries))
	sorted := make([]string, 0, len(entries))
	for k := range entries {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		e := entries[k]
		out = append(out, map[string]any{
			"key":        e.Key,
			"value":      e.Value,
			"confidence": e.Confidence,
			"version":    e.Version,
		})
	}
	return out, nil
}
