package lorekeep

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/config"
	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/dispatch"
	"github.com/lorekeep/lorekeep/memory"
	"github.com/lorekeep/lorekeep/model"
	"github.com/lorekeep/lorekeep/search"
)

func TestRunTaskPlainAnswer(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.SetHandler(func(_ context.Context, _ model.Request) (model.Response, error) {
		return model.TextResponse("nothing to delegate"), nil
	})

	lk := New(m)
	result, err := lk.RunTask(context.Background(), "trivial question")
	require.NoError(t, err)

	assert.Equal(t, "nothing to delegate", result.Output)
	assert.True(t, result.Tree.Completed())
	assert.Zero(t, result.Curation.Promoted)
	assert.NotEmpty(t, result.TaskID)
}

func TestRunTaskEndToEnd(t *testing.T) {
	orch := model.NewMockModel("orch", "mock")
	orch.SetHandler(func(_ context.Context, req model.Request) (model.Response, error) {
		last := req.Contents[len(req.Contents)-1]
		if last.Role == "tool" {
			return model.TextResponse("Go 1.0 shipped in 2012."), nil
		}
		return model.ToolCallResponse(core.FunctionCall{
			ID:        "c1",
			Name:      "research_agent",
			Arguments: `{"task":"find the Go 1.0 release year"}`,
		}), nil
	})

	research := model.NewMockModel("research", "mock")
	research.SetHandler(func(_ context.Context, req model.Request) (model.Response, error) {
		last := req.Contents[len(req.Contents)-1]
		if last.Role == "tool" {
			return model.TextResponse("Go 1.0 was released in March 2012."), nil
		}
		return model.ToolCallResponse(
			core.FunctionCall{
				ID:        "c2",
				Name:      "web_search",
				Arguments: `{"query":"Go 1.0 release year"}`,
			},
			core.FunctionCall{
				ID:        "c3",
				Name:      "write_to_buffer",
				Arguments: `{"key":"facts/go_release","claim":"Go 1.0 was released in March 2012","source":"https://go.dev/blog/go1","confidence":0.9}`,
			},
		), nil
	})

	searchClient := &search.StaticClient{
		Fallback: []search.Result{
			{Title: "Go 1 is released", URL: "https://go.dev/blog/go1", Snippet: "March 2012"},
		},
	}

	lk := New(orch,
		WithModelFor(core.RoleResearch, research),
		WithSearch(searchClient),
	)

	result, err := lk.RunTask(context.Background(), "when did Go 1.0 ship")
	require.NoError(t, err)

	assert.Equal(t, "Go 1.0 shipped in 2012.", result.Output)
	require.Len(t, result.Tree.Children, 1)
	assert.Equal(t, core.RoleResearch, result.Tree.Children[0].Role)
	assert.Equal(t, 1, result.Curation.Promoted)

	// the promoted claim is canon now, available to future tasks
	entries, err := lk.Layers().ReadCanonSlice(context.Background(), []string{"facts/go_release"}, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	require.Contains(t, entries, "facts/go_release")
	assert.Equal(t, "Go 1.0 was released in March 2012", entries["facts/go_release"].Value)
	assert.Equal(t, int64(1), entries["facts/go_release"].Version)
}

func TestRunTaskFailedDispatchStillCloses(t *testing.T) {
	m := model.NewMockModel("test", "mock")
	m.SetHandler(func(_ context.Context, _ model.Request) (model.Response, error) {
		return model.ToolCallResponse(core.FunctionCall{ID: "c1", Name: "read_canon"}), nil
	})

	lk := New(m, func(o *Options) { o.MaxIterations = 2 })
	result, err := lk.RunTask(context.Background(), "stall forever")
	require.NoError(t, err)

	assert.Equal(t, dispatch.StateFailed, result.Tree.State)
	assert.Empty(t, result.Output)

	// the session is archived despite the failure
	_, err = lk.Sessions().Dispatch(context.Background(), result.TaskID, "again")
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestCanonPersistsAcrossTasks(t *testing.T) {
	store := memory.NewInMemoryStore()

	var sawCanon bool
	m := model.NewMockModel("test", "mock")
	m.SetHandler(func(_ context.Context, req model.Request) (model.Response, error) {
		if len(req.Contents) > 0 && strings.Contains(req.Contents[0].Text(), "facts/team_name") {
			sawCanon = true
		}
		return model.TextResponse("ok"), nil
	})

	lk := New(m, WithStore(store))

	_, err := lk.Layers().WriteCanon(context.Background(), memory.CanonEntry{
		Key: "facts/team_name", Value: "lorekeep", Confidence: 1.0, LastUpdatedBy: "setup",
	}, core.RoleOrchestrator, 0)
	require.NoError(t, err)

	_, err = lk.RunTask(context.Background(), "first task")
	require.NoError(t, err)
	assert.True(t, sawCanon)
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.ConfidenceFloor = 0.6
	cfg.ChildTimeout = 30 * time.Second

	opt, err := FromConfig(cfg)
	require.NoError(t, err)

	var opts Options
	opts.CuratorConfig.MaxCanonRetries = 3
	opt(&opts)
	assert.Equal(t, 0.6, opts.CuratorConfig.ConfidenceFloor)
	assert.Equal(t, 3, opts.CuratorConfig.MaxCanonRetries)
	assert.Equal(t, 30*time.Second, opts.ChildTimeout)
	assert.NotNil(t, opts.Logger)
	assert.Nil(t, opts.Store) // no redis address keeps the default store
}

func TestFromConfigRejectsInvalid(t *testing.T) {
	cfg := config.Config{InstanceName: "x", MaxConcurrent: 0, MaxIterations: 1}
	_, err := FromConfig(cfg)
	assert.Error(t, err)
}
