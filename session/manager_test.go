package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/curator"
	"github.com/lorekeep/lorekeep/dispatch"
	"github.com/lorekeep/lorekeep/memory"
	"github.com/lorekeep/lorekeep/model"
)

// scriptedModel answers with one round of memory tool calls, then a final
// text turn.
func scriptedModel() *model.MockModel {
	m := model.NewMockModel("test", "mock")
	m.SetHandler(func(_ context.Context, req model.Request) (model.Response, error) {
		last := req.Contents[len(req.Contents)-1]
		if last.Role == "tool" {
			return model.TextResponse("mission accomplished"), nil
		}
		return model.ToolCallResponse(
			core.FunctionCall{
				ID:        "c1",
				Name:      "write_to_buffer",
				Arguments: `{"key":"facts/answer","claim":"the answer is 42","source":"computation","confidence":0.9}`,
			},
			core.FunctionCall{
				ID:        "c2",
				Name:      "write_to_scratch",
				Arguments: `{"content":"double-check the arithmetic"}`,
			},
		), nil
	})
	return m
}

func newTestManager(t *testing.T, m model.Model) (*Manager, *memory.Layers) {
	t.Helper()
	layers := memory.NewLayers(memory.NewInMemoryStore())
	router := dispatch.New(m, layers)
	cur := curator.New(layers)
	return NewManager(layers, router, cur), layers
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	mgr, layers := newTestManager(t, scriptedModel())

	sess, err := mgr.Open(ctx, "task-1", "answer everything")
	require.NoError(t, err)
	assert.False(t, sess.Closed())

	tree, err := mgr.Dispatch(ctx, "task-1", "answer everything")
	require.NoError(t, err)
	assert.True(t, tree.Completed())
	assert.Equal(t, "mission accomplished", tree.Output)

	summary, err := mgr.Close(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "task-1", summary.TaskID)
	assert.Equal(t, 1, summary.Curation.Promoted)
	require.Len(t, summary.Trees, 1)

	// the confident claim reached canon
	entries, err := layers.ReadCanonSlice(ctx, []string{"facts/answer"}, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	require.Contains(t, entries, "facts/answer")
	assert.Equal(t, "the answer is 42", entries["facts/answer"].Value)
}

func TestManagerSeedsCanonOnOpen(t *testing.T) {
	ctx := context.Background()
	mgr, layers := newTestManager(t, scriptedModel())

	_, err := mgr.Open(ctx, "task-1", "prompt")
	require.NoError(t, err)

	entries, err := layers.ReadCanonSlice(ctx, nil, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Contains(t, entries, "identity/system")
	assert.Contains(t, entries, "standards/memory_rules")
}

func TestManagerRejectsClosedSession(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, scriptedModel())

	_, err := mgr.Open(ctx, "task-1", "prompt")
	require.NoError(t, err)
	_, err = mgr.Close(ctx, "task-1")
	require.NoError(t, err)

	_, err = mgr.Dispatch(ctx, "task-1", "more work")
	assert.True(t, errors.Is(err, core.ErrSessionClosed))

	_, err = mgr.Close(ctx, "task-1")
	assert.True(t, errors.Is(err, core.ErrSessionClosed))

	_, err = mgr.Open(ctx, "task-1", "again")
	assert.True(t, errors.Is(err, core.ErrSessionClosed))
}

func TestManagerUnknownTask(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, scriptedModel())

	_, err := mgr.Close(ctx, "never-opened")
	assert.True(t, errors.Is(err, core.ErrUnknownTask))

	_, err = mgr.Dispatch(ctx, "never-opened", "work")
	assert.True(t, errors.Is(err, core.ErrUnknownTask))
}

func TestManagerDoubleOpen(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, scriptedModel())

	_, err := mgr.Open(ctx, "task-1", "prompt")
	require.NoError(t, err)
	_, err = mgr.Open(ctx, "task-1", "prompt")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrSessionClosed))
}

func TestManagerCloseClearsScratch(t *testing.T) {
	ctx := context.Background()
	mgr, layers := newTestManager(t, scriptedModel())

	_, err := mgr.Open(ctx, "task-1", "prompt")
	require.NoError(t, err)
	tree, err := mgr.Dispatch(ctx, "task-1", "prompt")
	require.NoError(t, err)

	agent := &core.AgentHandle{ID: tree.ID, Role: core.RoleOrchestrator}
	notes, err := layers.ReadScratch(ctx, agent, tree.ID, "task-1")
	require.NoError(t, err)
	require.Len(t, notes, 1)

	_, err = mgr.Close(ctx, "task-1")
	require.NoError(t, err)

	notes, err = layers.ReadScratch(ctx, agent, tree.ID, "task-1")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestManagerTaskMemoryReadableAfterClose(t *testing.T) {
	ctx := context.Background()
	mgr, layers := newTestManager(t, scriptedModel())

	_, err := mgr.Open(ctx, "task-1", "prompt")
	require.NoError(t, err)
	_, err = mgr.Dispatch(ctx, "task-1", "prompt")
	require.NoError(t, err)
	_, err = mgr.Close(ctx, "task-1")
	require.NoError(t, err)

	entries, err := layers.ReadTaskMemory(ctx, "task-1", core.RoleOrchestrator)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Content, "Final output: mission accomplished")

	// but appends are refused once archived
	err = layers.AppendTaskMemory(ctx, "task-1", memory.TaskEntry{AgentID: "x", Content: "late"}, core.RoleOrchestrator)
	assert.True(t, errors.Is(err, core.ErrSessionClosed))
}
