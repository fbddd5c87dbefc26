package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/memory"
)

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := New(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, mr
}

func TestNew(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		store, _ := setupTestStore(t)
		assert.NotNil(t, store)
		assert.Equal(t, "test-instance", store.instanceName)
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestCanonCAS(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	t.Run("creates at version 1", func(t *testing.T) {
		installed, err := store.CompareAndSwapCanon(ctx, memory.CanonEntry{Key: "facts/go", Value: "compiled", Confidence: 0.9}, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), installed.Version)
	})

	t.Run("rejects stale expected version", func(t *testing.T) {
		_, err := store.CompareAndSwapCanon(ctx, memory.CanonEntry{Key: "facts/go", Value: "stale"}, 0)
		require.ErrorIs(t, err, core.ErrVersionConflict)
	})

	t.Run("bumps version on update", func(t *testing.T) {
		updated, err := store.CompareAndSwapCanon(ctx, memory.CanonEntry{Key: "facts/go", Value: "native code", Confidence: 0.95}, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Version)
	})

	t.Run("reads survive reconnect", func(t *testing.T) {
		got, err := store.ReadCanon(ctx, nil)
		require.NoError(t, err)
		require.Contains(t, got, "facts/go")
		assert.Equal(t, "native code", got["facts/go"].Value)
		assert.Equal(t, int64(2), got["facts/go"].Version)
	})

	t.Run("missing keys are skipped", func(t *testing.T) {
		got, err := store.ReadCanon(ctx, []string{"facts/go", "facts/none"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestBufferLifecycle(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	e := memory.BufferEntry{ID: "b1", TaskID: "t1", AgentID: "a1", Role: core.RoleResearch, Key: "facts/x", Claim: "x holds", Status: memory.BufferPending}
	require.NoError(t, store.AppendBuffer(ctx, e))

	err := store.AppendBuffer(ctx, e)
	require.ErrorIs(t, err, core.ErrStorageFailure)

	require.NoError(t, store.AppendBuffer(ctx, memory.BufferEntry{ID: "b2", TaskID: "t2", Status: memory.BufferPending}))

	got, err := store.ReadBuffer(ctx, memory.BufferFilter{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)

	require.NoError(t, store.SetBufferStatus(ctx, "b1", memory.BufferDisputed))

	err = store.SetBufferStatus(ctx, "b1", memory.BufferPromoted)
	require.Error(t, err)

	err = store.SetBufferStatus(ctx, "missing", memory.BufferPromoted)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestDisputeLifecycle(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	d := memory.DisputeRecord{ID: "d1", TaskID: "t1", CanonKey: "facts/x", BufferID: "b1", IncomingClaim: "no", ExistingVersion: 2, Status: memory.DisputeOpen}
	require.NoError(t, store.AppendDispute(ctx, d))

	open, err := store.ReadDisputes(ctx, memory.DisputeFilter{Status: memory.DisputeOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, store.ResolveDispute(ctx, "d1", "kept existing"))

	err = store.ResolveDispute(ctx, "d1", "again")
	require.Error(t, err)

	resolved, err := store.ReadDisputes(ctx, memory.DisputeFilter{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, memory.DisputeResolved, resolved[0].Status)
	assert.Equal(t, "kept existing", resolved[0].Resolution)
}

func TestScratch(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteScratch(ctx, memory.ScratchNote{AgentID: "a1", TaskID: "t1", Content: "first"}))
	require.NoError(t, store.WriteScratch(ctx, memory.ScratchNote{AgentID: "a1", TaskID: "t1", Content: "second"}))
	require.NoError(t, store.WriteScratch(ctx, memory.ScratchNote{AgentID: "a2", TaskID: "t1", Content: "other"}))

	notes, err := store.ReadScratch(ctx, "a1", "t1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Content)

	require.NoError(t, store.ClearScratch(ctx, "a1", "t1"))
	notes, err = store.ReadScratch(ctx, "a1", "t1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	notes, err = store.ReadScratch(ctx, "a2", "t1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestTaskLifecycle(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	err := store.AppendTask(ctx, "t1", memory.TaskEntry{AgentID: "a1", Content: "early"})
	require.ErrorIs(t, err, core.ErrUnknownTask)

	require.NoError(t, store.OpenTask(ctx, "t1", "find the answer"))

	err = store.OpenTask(ctx, "t1", "again")
	require.Error(t, err)
	assert.False(t, errors.Is(err, core.ErrSessionClosed))

	require.NoError(t, store.AppendTask(ctx, "t1", memory.TaskEntry{AgentID: "a1", Content: "first"}))
	require.NoError(t, store.AppendTask(ctx, "t1", memory.TaskEntry{AgentID: "a2", Content: "second"}))

	rec, err := store.ReadTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "find the answer", rec.Prompt)
	require.Len(t, rec.Entries, 2)
	assert.Equal(t, "first", rec.Entries[0].Content)

	require.NoError(t, store.ArchiveTask(ctx, "t1"))
	require.NoError(t, store.ArchiveTask(ctx, "t1")) // idempotent

	err = store.AppendTask(ctx, "t1", memory.TaskEntry{AgentID: "a1", Content: "late"})
	require.ErrorIs(t, err, core.ErrSessionClosed)

	err = store.OpenTask(ctx, "t1", "reopen")
	require.ErrorIs(t, err, core.ErrSessionClosed)

	rec, err = store.ReadTask(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, rec.Archived)
	assert.Len(t, rec.Entries, 2)
}

func TestLayersOverRedisStore(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	layers := memory.NewLayers(store)

	require.NoError(t, layers.SeedCanon(ctx, "system"))

	got, err := layers.ReadCanonSlice(ctx, nil, core.RoleOrchestrator, core.ScopeAll())
	require.NoError(t, err)
	assert.Contains(t, got, "identity/system")
	assert.Contains(t, got, "standards/memory_rules")

	_, err = layers.WriteCanon(ctx, memory.CanonEntry{Key: "facts/sky", Value: "blue"}, core.RoleResearch, 0)
	require.ErrorIs(t, err, core.ErrPermissionDenied)
}
