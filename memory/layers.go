package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lorekeep/lorekeep/arbiter"
	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/logging"
)

// LayersOptions configures the Layers façade.
type LayersOptions struct {
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Layers is the policy-enforcing façade over a Store. Every operation checks
// the arbiter table (and, for scratch, ownership) before delegating, so
// callers can only reach the store through their role's permissions.
type Layers struct {
	store  Store
	logger logging.Logger
}

// NewLayers wraps a store with the arbiter-guarded layer operations.
func NewLayers(store Store, optFns ...func(o *LayersOptions)) *Layers {
	opts := LayersOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Layers{store: store, logger: opts.Logger}
}

// Store exposes the underlying store for lifecycle management (session
// open/archive) that is not a role-gated layer operation.
func (l *Layers) Store() Store { return l.store }

func (l *Layers) permit(verb arbiter.Verb, layer arbiter.Layer, role core.Role) error {
	if !arbiter.Permit(verb, layer, role) {
		return fmt.Errorf("role %s may not %s %s: %w", role, verb, layer, core.ErrPermissionDenied)
	}
	return nil
}

// ReadCanonSlice returns the Canon entries for keys that both exist and fall
// inside the caller's scope. Missing keys are skipped, never an error. A nil
// keys slice reads the whole scoped view.
func (l *Layers) ReadCanonSlice(ctx context.Context, keys []string, role core.Role, scope core.Scope) (map[string]CanonEntry, error) {
	if err := l.permit(arbiter.VerbRead, arbiter.LayerCanon, role); err != nil {
		return nil, err
	}
	all, err := l.store.ReadCanon(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]CanonEntry, len(all))
	for k, e := range all {
		if scope.Allows(k) {
			out[k] = e
		}
	}
	return out, nil
}

// WriteCanon atomically installs a new version of entry.Key, permitted only
// for the Orchestrator and Curator roles. expectedVersion 0 creates the key.
// On core.ErrVersionConflict callers must re-run their conflict check with a
// fresh read before retrying.
func (l *Layers) WriteCanon(ctx context.Context, entry CanonEntry, role core.Role, expectedVersion int64) (CanonEntry, error) {
	if err := l.permit(arbiter.VerbWrite, arbiter.LayerCanon, role); err != nil {
		return CanonEntry{}, err
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = nowUTC()
	}
	installed, err := l.store.CompareAndSwapCanon(ctx, entry, expectedVersion)
	if err != nil {
		return CanonEntry{}, err
	}
	l.logger.Info("canon.write", "key", installed.Key, "version", installed.Version, "by", installed.LastUpdatedBy)
	return installed, nil
}

// AppendBuffer records an unverified claim. Open to every role; content is
// never a reason for rejection. Missing id and timestamp fields are filled
// in, and the status is always pending on entry: only curation moves an
// entry to a terminal status.
func (l *Layers) AppendBuffer(ctx context.Context, e BufferEntry, role core.Role) (BufferEntry, error) {
	if err := l.permit(arbiter.VerbAppend, arbiter.LayerBuffer, role); err != nil {
		return BufferEntry{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = nowUTC()
	}
	e.Status = BufferPending
	if err := l.store.AppendBuffer(ctx, e); err != nil {
		return BufferEntry{}, err
	}
	l.logger.Debug("buffer.append", "id", e.ID, "task", e.TaskID, "key", e.Key, "agent", e.AgentID)
	return e, nil
}

// ReadBuffer returns matching entries. All results are implicitly tentative.
func (l *Layers) ReadBuffer(ctx context.Context, f BufferFilter, role core.Role) ([]BufferEntry, error) {
	if err := l.permit(arbiter.VerbRead, arbiter.LayerBuffer, role); err != nil {
		return nil, err
	}
	return l.store.ReadBuffer(ctx, f)
}

// SetBufferStatus transitions one entry toward a terminal curation state.
// Restricted to the curation-capable roles.
func (l *Layers) SetBufferStatus(ctx context.Context, id string, to BufferStatus, role core.Role) error {
	if err := l.permit(arbiter.VerbWrite, arbiter.LayerBuffer, role); err != nil {
		return err
	}
	return l.store.SetBufferStatus(ctx, id, to)
}

// FileDispute records a conflict between a buffer claim and existing Canon.
// Missing id and timestamp fields are filled in; a new dispute always starts
// open.
func (l *Layers) FileDispute(ctx context.Context, d DisputeRecord, role core.Role) (DisputeRecord, error) {
	if err := l.permit(arbiter.VerbAppend, arbiter.LayerDispute, role); err != nil {
		return DisputeRecord{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = DisputeOpen
	if d.CreatedAt.IsZero() {
		d.CreatedAt = nowUTC()
	}
	if err := l.store.AppendDispute(ctx, d); err != nil {
		return DisputeRecord{}, err
	}
	l.logger.Warn("dispute.filed", "id", d.ID, "key", d.CanonKey, "canon_version", d.ExistingVersion, "buffer", d.BufferID)
	return d, nil
}

// ReadDisputes returns matching dispute records.
func (l *Layers) ReadDisputes(ctx context.Context, f DisputeFilter, role core.Role) ([]DisputeRecord, error) {
	if err := l.permit(arbiter.VerbRead, arbiter.LayerDispute, role); err != nil {
		return nil, err
	}
	return l.store.ReadDisputes(ctx, f)
}

// ResolveDispute settles an open dispute with an explicit resolution note.
func (l *Layers) ResolveDispute(ctx context.Context, id, resolution string, role core.Role) error {
	if err := l.permit(arbiter.VerbWrite, arbiter.LayerDispute, role); err != nil {
		return err
	}
	return l.store.ResolveDispute(ctx, id, resolution)
}

// WriteScratch appends a note to the caller's own scratch space. Ownership is
// by construction: the note is stored under the caller's handle id.
func (l *Layers) WriteScratch(ctx context.Context, caller *core.AgentHandle, taskID, content string) error {
	if err := l.permit(arbiter.VerbAppend, arbiter.LayerScratch, caller.Role); err != nil {
		return err
	}
	return l.store.WriteScratch(ctx, ScratchNote{
		AgentID:   caller.ID,
		TaskID:    taskID,
		Content:   content,
		Timestamp: nowUTC(),
	})
}

// ReadScratch returns scratch notes for (agentID, taskID). Any caller other
// than the owning agent is denied regardless of role.
func (l *Layers) ReadScratch(ctx context.Context, caller *core.AgentHandle, agentID, taskID string) ([]ScratchNote, error) {
	if err := l.permit(arbiter.VerbRead, arbiter.LayerScratch, caller.Role); err != nil {
		return nil, err
	}
	if caller.ID != agentID {
		return nil, fmt.Errorf("scratch of agent %s is private: %w", agentID, core.ErrPermissionDenied)
	}
	return l.store.ReadScratch(ctx, agentID, taskID)
}

// ClearScratch drops the caller's own scratch for one task. Like the other
// scratch operations, ownership is by construction: only notes stored under
// the caller's handle id are removed. Used on session close, when the owning
// agent's participation ends.
func (l *Layers) ClearScratch(ctx context.Context, caller *core.AgentHandle, taskID string) error {
	if err := l.permit(arbiter.VerbWrite, arbiter.LayerScratch, caller.Role); err != nil {
		return err
	}
	return l.store.ClearScratch(ctx, caller.ID, taskID)
}

// AppendTaskMemory adds to the shared narrative of an open task.
func (l *Layers) AppendTaskMemory(ctx context.Context, taskID string, e TaskEntry, role core.Role) error {
	if err := l.permit(arbiter.VerbAppend, arbiter.LayerTaskMemory, role); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = nowUTC()
	}
	return l.store.AppendTask(ctx, taskID, e)
}

// ReadTaskMemory returns the ordered narrative of a task, open or archived.
func (l *Layers) ReadTaskMemory(ctx context.Context, taskID string, role core.Role) ([]TaskEntry, error) {
	if err := l.permit(arbiter.VerbRead, arbiter.LayerTaskMemory, role); err != nil {
		return nil, err
	}
	rec, err := l.store.ReadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return rec.Entries, nil
}
