package memory

import "context"

// Store is the storage contract for all five layers. Implementations provide
// mechanics only (atomic appends, compare-and-swap canon versions, ordered
// task narratives) and no permission policy; that belongs to Layers.
//
// Concurrency contract:
//   - Buffer and Dispute appends never block each other and never corrupt
//     prior entries.
//   - CompareAndSwapCanon is atomic over the read-check-write of one key:
//     of two concurrent swaps against the same expected version exactly one
//     succeeds, the other receives core.ErrVersionConflict.
//   - AppendTask calls for the same task are serialized so the narrative
//     order seen by later readers is a real order.
//
// Transient failures are reported wrapping core.ErrStorageFailure.
type Store interface {
	// ReadCanon returns the entries for the requested keys, silently
	// skipping keys with no entry. A nil keys slice returns every entry.
	ReadCanon(ctx context.Context, keys []string) (map[string]CanonEntry, error)

	// CompareAndSwapCanon installs entry at version expectedVersion+1 iff
	// the stored version for entry.Key equals expectedVersion
	// (expectedVersion 0 means "no entry exists yet"). Returns the installed
	// entry, or core.ErrVersionConflict without mutating anything.
	CompareAndSwapCanon(ctx context.Context, entry CanonEntry, expectedVersion int64) (CanonEntry, error)

	// AppendBuffer adds an entry to the buffer log. Content is never a
	// reason for rejection.
	AppendBuffer(ctx context.Context, e BufferEntry) error

	// ReadBuffer returns entries matching the filter in append order.
	ReadBuffer(ctx context.Context, f BufferFilter) ([]BufferEntry, error)

	// SetBufferStatus transitions one entry's status. Illegal transitions
	// (anything not pending -> terminal) fail; unknown ids return
	// core.ErrNotFound.
	SetBufferStatus(ctx context.Context, id string, to BufferStatus) error

	// AppendDispute adds a record to the dispute log.
	AppendDispute(ctx context.Context, d DisputeRecord) error

	// ReadDisputes returns records matching the filter in append order.
	ReadDisputes(ctx context.Context, f DisputeFilter) ([]DisputeRecord, error)

	// ResolveDispute marks an open dispute resolved with the given note.
	ResolveDispute(ctx context.Context, id, resolution string) error

	// WriteScratch appends a private note for (n.AgentID, n.TaskID).
	WriteScratch(ctx context.Context, n ScratchNote) error

	// ReadScratch returns the notes for one (agent, task) pair in order.
	ReadScratch(ctx context.Context, agentID, taskID string) ([]ScratchNote, error)

	// ClearScratch removes the notes for one (agent, task) pair.
	ClearScratch(ctx context.Context, agentID, taskID string) error

	// OpenTask creates an empty task memory. Opening an archived task fails
	// with core.ErrSessionClosed.
	OpenTask(ctx context.Context, taskID, prompt string) error

	// AppendTask adds an entry to an open task's narrative. Unknown tasks
	// fail with core.ErrUnknownTask, archived ones with
	// core.ErrSessionClosed.
	AppendTask(ctx context.Context, taskID string, e TaskEntry) error

	// ReadTask returns the task record. Archived tasks remain readable.
	ReadTask(ctx context.Context, taskID string) (TaskRecord, error)

	// ArchiveTask marks the task read-only. Idempotent.
	ArchiveTask(ctx context.Context, taskID string) error
}
