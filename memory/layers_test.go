package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/core"
)

func newTestLayers() *Layers {
	return NewLayers(NewInMemoryStore())
}

func TestLayersCanonWriteRestricted(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	entry := CanonEntry{Key: "facts/sky", Value: "blue", Confidence: 0.9, LastUpdatedBy: "agent-1"}

	for _, role := range []core.Role{core.RoleResearch, core.RoleCode, core.RoleData, core.RoleWriting} {
		_, err := l.WriteCanon(ctx, entry, role, 0)
		require.ErrorIs(t, err, core.ErrPermissionDenied, "role %s", role)
	}

	installed, err := l.WriteCanon(ctx, entry, core.RoleCurator, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), installed.Version)
	assert.False(t, installed.UpdatedAt.IsZero())

	_, err = l.WriteCanon(ctx, entry, core.RoleOrchestrator, 1)
	require.NoError(t, err)
}

func TestLayersReadCanonSliceScoped(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()

	for _, e := range []CanonEntry{
		{Key: "identity/system", Value: "who we are"},
		{Key: "facts/sky", Value: "blue"},
		{Key: "decisions/arch", Value: "layered"},
	} {
		_, err := l.WriteCanon(ctx, e, core.RoleCurator, 0)
		require.NoError(t, err)
	}

	// Research scope excludes the decisions namespace.
	got, err := l.ReadCanonSlice(ctx, nil, core.RoleResearch, core.RoleResearch.DefaultScope())
	require.NoError(t, err)
	assert.Contains(t, got, "identity/system")
	assert.Contains(t, got, "facts/sky")
	assert.NotContains(t, got, "decisions/arch")

	// Orchestrator's scope covers everything.
	got, err = l.ReadCanonSlice(ctx, nil, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Missing keys are skipped, never an error.
	got, err = l.ReadCanonSlice(ctx, []string{"facts/sky", "facts/missing"}, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLayersBufferOpenAppendRestrictedStatus(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()

	// Every role may append claims.
	e, err := l.AppendBuffer(ctx, BufferEntry{TaskID: "t1", AgentID: "a1", Role: core.RoleWriting, Key: "facts/x", Claim: "x holds"}, core.RoleWriting)
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, BufferPending, e.Status)
	assert.False(t, e.Timestamp.IsZero())

	// Status transitions are a curation-only operation.
	err = l.SetBufferStatus(ctx, e.ID, BufferPromoted, core.RoleResearch)
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	require.NoError(t, l.SetBufferStatus(ctx, e.ID, BufferPromoted, core.RoleCurator))
}

func TestLayersBufferAppendAlwaysEntersPending(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()

	// A caller-supplied terminal status is discarded: entries are born
	// pending and only curation moves them on.
	e, err := l.AppendBuffer(ctx, BufferEntry{TaskID: "t1", AgentID: "a1", Role: core.RoleResearch, Key: "facts/x", Claim: "x holds", Status: BufferPromoted}, core.RoleResearch)
	require.NoError(t, err)
	assert.Equal(t, BufferPending, e.Status)

	got, err := l.ReadBuffer(ctx, BufferFilter{TaskID: "t1"}, core.RoleCurator)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, BufferPending, got[0].Status)
}

func TestLayersScratchOwnership(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	owner := core.NewRootHandle(core.RoleResearch)
	other := core.NewRootHandle(core.RoleOrchestrator)

	require.NoError(t, l.WriteScratch(ctx, owner, "t1", "private thought"))

	notes, err := l.ReadScratch(ctx, owner, owner.ID, "t1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, owner.ID, notes[0].AgentID)

	// Even the orchestrator cannot read another agent's scratch.
	_, err = l.ReadScratch(ctx, other, owner.ID, "t1")
	require.ErrorIs(t, err, core.ErrPermissionDenied)
}

func TestLayersClearScratchOnlyOwn(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	owner := core.NewRootHandle(core.RoleResearch)
	other := core.NewRootHandle(core.RoleOrchestrator)

	require.NoError(t, l.WriteScratch(ctx, owner, "t1", "private thought"))

	// Clearing is scoped to the caller's own handle; another agent's notes
	// survive it.
	require.NoError(t, l.ClearScratch(ctx, other, "t1"))
	notes, err := l.ReadScratch(ctx, owner, owner.ID, "t1")
	require.NoError(t, err)
	require.Len(t, notes, 1)

	require.NoError(t, l.ClearScratch(ctx, owner, "t1"))
	notes, err = l.ReadScratch(ctx, owner, owner.ID, "t1")
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestLayersDisputeRestricted(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	d := DisputeRecord{TaskID: "t1", CanonKey: "facts/x", BufferID: "b1", IncomingClaim: "no", ExistingVersion: 3}

	_, err := l.FileDispute(ctx, d, core.RoleResearch)
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	filed, err := l.FileDispute(ctx, d, core.RoleCurator)
	require.NoError(t, err)
	assert.NotEmpty(t, filed.ID)
	assert.Equal(t, DisputeOpen, filed.Status)

	// Disputes are readable by everyone.
	got, err := l.ReadDisputes(ctx, DisputeFilter{TaskID: "t1"}, core.RoleWriting)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, l.ResolveDispute(ctx, filed.ID, "kept canon", core.RoleOrchestrator))

	// A dispute filed with a pre-set status still starts open.
	preset, err := l.FileDispute(ctx, DisputeRecord{TaskID: "t1", CanonKey: "facts/y", BufferID: "b2", IncomingClaim: "maybe", Status: DisputeResolved}, core.RoleCurator)
	require.NoError(t, err)
	assert.Equal(t, DisputeOpen, preset.Status)
}

func TestLayersBuildContextOrderAndCaps(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	caller := core.NewRootHandle(core.RoleOrchestrator)

	require.NoError(t, l.Store().OpenTask(ctx, "t1", "investigate"))
	require.NoError(t, l.AppendTaskMemory(ctx, "t1", TaskEntry{AgentID: "a0", Content: "mission started"}, core.RoleOrchestrator))

	_, err := l.WriteCanon(ctx, CanonEntry{Key: "facts/sky", Value: "blue"}, core.RoleCurator, 0)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := l.AppendBuffer(ctx, BufferEntry{TaskID: "t1", AgentID: "a1", Role: core.RoleResearch, Key: "facts/x", Claim: strings.Repeat("c", i+1)}, core.RoleResearch)
		require.NoError(t, err)
	}
	require.NoError(t, l.WriteScratch(ctx, caller, "t1", "my note"))

	out, err := l.BuildContext(ctx, "t1", caller, core.ScopeAll(), ContextLimits{})
	require.NoError(t, err)

	taskIdx := strings.Index(out, "TASK MEMORY")
	canonIdx := strings.Index(out, "CANON")
	bufIdx := strings.Index(out, "BUFFER")
	scratchIdx := strings.Index(out, "SCRATCH")
	require.True(t, taskIdx >= 0 && canonIdx >= 0 && bufIdx >= 0 && scratchIdx >= 0, "all sections present:\n%s", out)
	assert.Less(t, taskIdx, canonIdx)
	assert.Less(t, canonIdx, bufIdx)
	assert.Less(t, bufIdx, scratchIdx)

	// Buffer section is capped at the default limit.
	assert.Equal(t, DefaultContextLimits.MaxBuffer, strings.Count(out, "[tentative|"))
	assert.Contains(t, out, "tentative")
}

func TestLayersBuildContextEmpty(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()
	caller := core.NewRootHandle(core.RoleResearch)

	require.NoError(t, l.Store().OpenTask(ctx, "t1", "quiet"))
	out, err := l.BuildContext(ctx, "t1", caller, caller.Role.DefaultScope(), ContextLimits{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLayersSeedCanon(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()

	require.NoError(t, l.SeedCanon(ctx, "system"))

	got, err := l.ReadCanonSlice(ctx, nil, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Contains(t, got, "identity/system")
	assert.Contains(t, got, "standards/memory_rules")

	// Seeding twice leaves versions untouched.
	require.NoError(t, l.SeedCanon(ctx, "system"))
	again, err := l.ReadCanonSlice(ctx, nil, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Equal(t, got["identity/system"].Version, again["identity/system"].Version)
}

func TestLayersSummary(t *testing.T) {
	ctx := context.Background()
	l := newTestLayers()

	_, err := l.WriteCanon(ctx, CanonEntry{Key: "facts/a", Value: "v"}, core.RoleCurator, 0)
	require.NoError(t, err)
	_, err = l.AppendBuffer(ctx, BufferEntry{TaskID: "t1", Claim: "c"}, core.RoleData)
	require.NoError(t, err)

	sum, err := l.Summary(ctx)
	require.NoError(t, err)
	assert.Contains(t, sum, "canon:1")
	assert.Contains(t, sum, "1 pending")
}
