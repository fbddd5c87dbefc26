package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/lorekeep/lorekeep/core"
)

// InMemoryStore is a process-local Store. It is safe for concurrent access
// and is the default for development and tests; production deployments
// typically supply redisstore.Store or another durable implementation.
type InMemoryStore struct {
	mu       sync.RWMutex
	canon    map[string]CanonEntry
	buffer   []BufferEntry
	bufIdx   map[string]int // buffer id -> slice position
	disputes []DisputeRecord
	dispIdx  map[string]int
	scratch  map[string][]ScratchNote // "agentID/taskID" -> notes
	tasks    map[string]*TaskRecord
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		canon:   make(map[string]CanonEntry),
		bufIdx:  make(map[string]int),
		dispIdx: make(map[string]int),
		scratch: make(map[string][]ScratchNote),
		tasks:   make(map[string]*TaskRecord),
	}
}

// ReadCanon returns entries for the requested keys; nil keys means all.
func (s *InMemoryStore) ReadCanon(_ context.Context, keys []string) (map[string]CanonEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CanonEntry)
	if keys == nil {
		for k, e := range s.canon {
			out[k] = e
		}
		return out, nil
	}
	for _, k := range keys {
		if e, ok := s.canon[k]; ok {
			out[k] = e
		}
	}
	return out, nil
}

// CompareAndSwapCanon performs the serialized read-check-write version bump.
func (s *InMemoryStore) CompareAndSwapCanon(_ context.Context, entry CanonEntry, expectedVersion int64) (CanonEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if existing, ok := s.canon[entry.Key]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return CanonEntry{}, fmt.Errorf("canon key %q at version %d, expected %d: %w",
			entry.Key, current, expectedVersion, core.ErrVersionConflict)
	}

	entry.Version = expectedVersion + 1
	s.canon[entry.Key] = entry
	return entry, nil
}

// AppendBuffer adds an entry to the buffer log.
func (s *InMemoryStore) AppendBuffer(_ context.Context, e BufferEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.bufIdx[e.ID]; dup {
		return fmt.Errorf("buffer entry %q already exists: %w", e.ID, core.ErrStorageFailure)
	}
	s.bufIdx[e.ID] = len(s.buffer)
	s.buffer = append(s.buffer, e)
	return nil
}

// ReadBuffer returns matching entries in append order.
func (s *InMemoryStore) ReadBuffer(_ context.Context, f BufferFilter) ([]BufferEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []BufferEntry
	for _, e := range s.buffer {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetBufferStatus transitions one entry's status, enforcing legality.
func (s *InMemoryStore) SetBufferStatus(_ context.Context, id string, to BufferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.bufIdx[id]
	if !ok {
		return fmt.Errorf("buffer entry %q: %w", id, core.ErrNotFound)
	}
	from := s.buffer[i].Status
	if !from.CanTransition(to) {
		return fmt.Errorf("buffer entry %q: illegal status transition %s -> %s", id, from, to)
	}
	s.buffer[i].Status = to
	return nil
}

// AppendDispute adds a record to the dispute log.
func (s *InMemoryStore) AppendDispute(_ context.Context, d DisputeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.dispIdx[d.ID]; dup {
		return fmt.Errorf("dispute %q already exists: %w", d.ID, core.ErrStorageFailure)
	}
	s.dispIdx[d.ID] = len(s.disputes)
	s.disputes = append(s.disputes, d)
	return nil
}

// ReadDisputes returns matching records in append order.
func (s *InMemoryStore) ReadDisputes(_ context.Context, f DisputeFilter) ([]DisputeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []DisputeRecord
	for _, d := range s.disputes {
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ResolveDispute marks an open dispute resolved.
func (s *InMemoryStore) ResolveDispute(_ context.Context, id, resolution string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.dispIdx[id]
	if !ok {
		return fmt.Errorf("dispute %q: %w", id, core.ErrNotFound)
	}
	if s.disputes[i].Status == DisputeResolved {
		return fmt.Errorf("dispute %q already resolved", id)
	}
	s.disputes[i].Status = DisputeResolved
	s.disputes[i].Resolution = resolution
	return nil
}

func scratchKey(agentID, taskID string) string { return agentID + "/" + taskID }

// WriteScratch appends a private note.
func (s *InMemoryStore) WriteScratch(_ context.Context, n ScratchNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scratchKey(n.AgentID, n.TaskID)
	s.scratch[k] = append(s.scratch[k], n)
	return nil
}

// ReadScratch returns the notes for one (agent, task) pair.
func (s *InMemoryStore) ReadScratch(_ context.Context, agentID, taskID string) ([]ScratchNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.scratch[scratchKey(agentID, taskID)]
	out := make([]ScratchNote, len(src))
	copy(out, src)
	return out, nil
}

// ClearScratch removes the notes for one (agent, task) pair.
func (s *InMemoryStore) ClearScratch(_ context.Context, agentID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scratch, scratchKey(agentID, taskID))
	return nil
}

// OpenTask creates an empty task memory.
func (s *InMemoryStore) OpenTask(_ context.Context, taskID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[taskID]; ok {
		if t.Archived {
			return fmt.Errorf("task %q: %w", taskID, core.ErrSessionClosed)
		}
		return fmt.Errorf("task %q already open", taskID)
	}
	s.tasks[taskID] = &TaskRecord{TaskID: taskID, Prompt: prompt, Created: nowUTC()}
	return nil
}

// AppendTask adds an entry to an open task's narrative.
func (s *InMemoryStore) AppendTask(_ context.Context, taskID string, e TaskEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, core.ErrUnknownTask)
	}
	if t.Archived {
		return fmt.Errorf("task %q: %w", taskID, core.ErrSessionClosed)
	}
	t.Entries = append(t.Entries, e)
	return nil
}

// ReadTask returns a defensive copy of the task record.
func (s *InMemoryStore) ReadTask(_ context.Context, taskID string) (TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return TaskRecord{}, fmt.Errorf("task %q: %w", taskID, core.ErrUnknownTask)
	}
	out := *t
	out.Entries = make([]TaskEntry, len(t.Entries))
	copy(out.Entries, t.Entries)
	return out, nil
}

// ArchiveTask marks the task read-only. Idempotent.
func (s *InMemoryStore) ArchiveTask(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, core.ErrUnknownTask)
	}
	t.Archived = true
	return nil
}
