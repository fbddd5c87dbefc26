// Package redisstore provides a Redis-backed memory.Store for deployments
// where memory must survive process restarts or be shared across processes.
//
// All keys are namespaced with an instance name so multiple instances can
// coexist on one Redis server. Canon entries are JSON strings guarded by
// WATCH-based optimistic transactions; the buffer, dispute and task narrative
// logs are Redis lists of ids or JSON entries in append order.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/memory"
)

// Store implements memory.Store on Redis. It is safe for concurrent use from
// multiple goroutines and multiple processes.
type Store struct {
	rdb          *redis.Client
	instanceName string
}

var _ memory.Store = (*Store)(nil)

// New creates a Store for the given instance. All keys are namespaced with
// the instance name; it must not be empty.
func New(redisOpts *redis.Options, instanceName string) (*Store, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Store{rdb: redis.NewClient(redisOpts), instanceName: instanceName}, nil
}

// NewFromClient wraps an existing Redis client. Useful for tests and for
// sharing one connection pool across components.
func NewFromClient(rdb *redis.Client, instanceName string) (*Store, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Store{rdb: rdb, instanceName: instanceName}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, core.ErrStorageFailure)
}

// ReadCanon returns the entries for the requested keys; a nil slice reads
// every entry tracked in the canon key index.
func (s *Store) ReadCanon(ctx context.Context, keys []string) (map[string]memory.CanonEntry, error) {
	if keys == nil {
		var err error
		keys, err = s.rdb.SMembers(ctx, canonIndexKey(s.instanceName)).Result()
		if err != nil {
			return nil, storageErr("listing canon keys", err)
		}
	}
	out := make(map[string]memory.CanonEntry, len(keys))
	for _, k := range keys {
		raw, err := s.rdb.Get(ctx, canonKey(s.instanceName, k)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storageErr("reading canon entry", err)
		}
		var e memory.CanonEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, storageErr("decoding canon entry", err)
		}
		out[k] = e
	}
	return out, nil
}

// CompareAndSwapCanon installs entry at expectedVersion+1 using a WATCH
// transaction over the entry's key. A concurrent writer moving the key
// between the read and the commit aborts the transaction, which is reported
// as core.ErrVersionConflict just like a plain version mismatch.
func (s *Store) CompareAndSwapCanon(ctx context.Context, entry memory.CanonEntry, expectedVersion int64) (memory.CanonEntry, error) {
	key := canonKey(s.instanceName, entry.Key)

	txn := func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			return storageErr("reading canon entry", err)
		default:
			var existing memory.CanonEntry
			if err := json.Unmarshal([]byte(raw), &existing); err != nil {
				return storageErr("decoding canon entry", err)
			}
			current = existing.Version
		}
		if current != expectedVersion {
			return fmt.Errorf("canon key %q at version %d, expected %d: %w",
				entry.Key, current, expectedVersion, core.ErrVersionConflict)
		}

		entry.Version = expectedVersion + 1
		data, err := json.Marshal(entry)
		if err != nil {
			return storageErr("encoding canon entry", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, canonIndexKey(s.instanceName), entry.Key)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return memory.CanonEntry{}, fmt.Errorf("canon key %q changed concurrently: %w",
			entry.Key, core.ErrVersionConflict)
	}
	if err != nil {
		return memory.CanonEntry{}, err
	}
	return entry, nil
}

// AppendBuffer stores the entry under its id and appends the id to the
// buffer log.
func (s *Store) AppendBuffer(ctx context.Context, e memory.BufferEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return storageErr("encoding buffer entry", err)
	}
	ok, err := s.rdb.SetNX(ctx, bufferKey(s.instanceName, e.ID), data, 0).Result()
	if err != nil {
		return storageErr("writing buffer entry", err)
	}
	if !ok {
		return fmt.Errorf("buffer entry %q already exists: %w", e.ID, core.ErrStorageFailure)
	}
	if err := s.rdb.RPush(ctx, bufferLogKey(s.instanceName), e.ID).Err(); err != nil {
		return storageErr("appending buffer log", err)
	}
	return nil
}

// ReadBuffer walks the buffer log in append order and returns entries
// matching the filter.
func (s *Store) ReadBuffer(ctx context.Context, f memory.BufferFilter) ([]memory.BufferEntry, error) {
	ids, err := s.rdb.LRange(ctx, bufferLogKey(s.instanceName), 0, -1).Result()
	if err != nil {
		return nil, storageErr("reading buffer log", err)
	}
	var out []memory.BufferEntry
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, bufferKey(s.instanceName, id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storageErr("reading buffer entry", err)
		}
		var e memory.BufferEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, storageErr("decoding buffer entry", err)
		}
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// SetBufferStatus transitions one entry's status inside a WATCH transaction
// so two curators cannot both move the same entry.
func (s *Store) SetBufferStatus(ctx context.Context, id string, to memory.BufferStatus) error {
	key := bufferKey(s.instanceName, id)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("buffer entry %q: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return storageErr("reading buffer entry", err)
		}
		var e memory.BufferEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return storageErr("decoding buffer entry", err)
		}
		if !e.Status.CanTransition(to) {
			return fmt.Errorf("buffer entry %q: illegal status transition %s -> %s", id, e.Status, to)
		}
		e.Status = to
		data, err := json.Marshal(e)
		if err != nil {
			return storageErr("encoding buffer entry", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("buffer entry %q changed concurrently: %w", id, core.ErrStorageFailure)
	}
	return err
}

// AppendDispute stores the record under its id and appends the id to the
// dispute log.
func (s *Store) AppendDispute(ctx context.Context, d memory.DisputeRecord) error {
	data, err := json.Marshal(d)
	if err != nil {
		return storageErr("encoding dispute", err)
	}
	ok, err := s.rdb.SetNX(ctx, disputeKey(s.instanceName, d.ID), data, 0).Result()
	if err != nil {
		return storageErr("writing dispute", err)
	}
	if !ok {
		return fmt.Errorf("dispute %q already exists: %w", d.ID, core.ErrStorageFailure)
	}
	if err := s.rdb.RPush(ctx, disputeLogKey(s.instanceName), d.ID).Err(); err != nil {
		return storageErr("appending dispute log", err)
	}
	return nil
}

// ReadDisputes walks the dispute log in filing order and returns records
// matching the filter.
func (s *Store) ReadDisputes(ctx context.Context, f memory.DisputeFilter) ([]memory.DisputeRecord, error) {
	ids, err := s.rdb.LRange(ctx, disputeLogKey(s.instanceName), 0, -1).Result()
	if err != nil {
		return nil, storageErr("reading dispute log", err)
	}
	var out []memory.DisputeRecord
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, disputeKey(s.instanceName, id)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storageErr("reading dispute", err)
		}
		var d memory.DisputeRecord
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, storageErr("decoding dispute", err)
		}
		if f.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ResolveDispute marks an open dispute resolved inside a WATCH transaction.
func (s *Store) ResolveDispute(ctx context.Context, id, resolution string) error {
	key := disputeKey(s.instanceName, id)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("dispute %q: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return storageErr("reading dispute", err)
		}
		var d memory.DisputeRecord
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return storageErr("decoding dispute", err)
		}
		if d.Status == memory.DisputeResolved {
			return fmt.Errorf("dispute %q already resolved", id)
		}
		d.Status = memory.DisputeResolved
		d.Resolution = resolution
		data, err := json.Marshal(d)
		if err != nil {
			return storageErr("encoding dispute", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	err := s.rdb.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("dispute %q changed concurrently: %w", id, core.ErrStorageFailure)
	}
	return err
}

// WriteScratch appends a private note to the owner's scratch list.
func (s *Store) WriteScratch(ctx context.Context, n memory.ScratchNote) error {
	data, err := json.Marshal(n)
	if err != nil {
		return storageErr("encoding scratch note", err)
	}
	if err := s.rdb.RPush(ctx, scratchKey(s.instanceName, n.AgentID, n.TaskID), data).Err(); err != nil {
		return storageErr("writing scratch note", err)
	}
	return nil
}

// ReadScratch returns the notes for one (agent, task) pair in write order.
func (s *Store) ReadScratch(ctx context.Context, agentID, taskID string) ([]memory.ScratchNote, error) {
	raws, err := s.rdb.LRange(ctx, scratchKey(s.instanceName, agentID, taskID), 0, -1).Result()
	if err != nil {
		return nil, storageErr("reading scratch", err)
	}
	out := make([]memory.ScratchNote, 0, len(raws))
	for _, raw := range raws {
		var n memory.ScratchNote
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, storageErr("decoding scratch note", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ClearScratch drops the notes for one (agent, task) pair.
func (s *Store) ClearScratch(ctx context.Context, agentID, taskID string) error {
	if err := s.rdb.Del(ctx, scratchKey(s.instanceName, agentID, taskID)).Err(); err != nil {
		return storageErr("clearing scratch", err)
	}
	return nil
}

// taskMeta is the stored task record minus its entries, which live in their
// own list so appends need not rewrite the record.
type taskMeta struct {
	TaskID   string    `json:"task_id"`
	Prompt   string    `json:"prompt"`
	Created  time.Time `json:"created"`
	Archived bool      `json:"archived"`
}

func (s *Store) readTaskMeta(ctx context.Context, taskID string) (taskMeta, error) {
	raw, err := s.rdb.Get(ctx, taskMetaKey(s.instanceName, taskID)).Result()
	if errors.Is(err, redis.Nil) {
		return taskMeta{}, fmt.Errorf("task %q: %w", taskID, core.ErrUnknownTask)
	}
	if err != nil {
		return taskMeta{}, storageErr("reading task record", err)
	}
	var m taskMeta
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return taskMeta{}, storageErr("decoding task record", err)
	}
	return m, nil
}

func (s *Store) writeTaskMeta(ctx context.Context, m taskMeta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return storageErr("encoding task record", err)
	}
	if err := s.rdb.Set(ctx, taskMetaKey(s.instanceName, m.TaskID), data, 0).Err(); err != nil {
		return storageErr("writing task record", err)
	}
	return nil
}

// OpenTask creates an empty task memory. Re-opening an archived task fails
// with core.ErrSessionClosed.
func (s *Store) OpenTask(ctx context.Context, taskID, prompt string) error {
	existing, err := s.readTaskMeta(ctx, taskID)
	if err == nil {
		if existing.Archived {
			return fmt.Errorf("task %q: %w", taskID, core.ErrSessionClosed)
		}
		return fmt.Errorf("task %q already open", taskID)
	}
	if !errors.Is(err, core.ErrUnknownTask) {
		return err
	}
	return s.writeTaskMeta(ctx, taskMeta{TaskID: taskID, Prompt: prompt, Created: time.Now().UTC()})
}

// AppendTask adds an entry to an open task's narrative list.
func (s *Store) AppendTask(ctx context.Context, taskID string, e memory.TaskEntry) error {
	m, err := s.readTaskMeta(ctx, taskID)
	if err != nil {
		return err
	}
	if m.Archived {
		return fmt.Errorf("task %q: %w", taskID, core.ErrSessionClosed)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return storageErr("encoding task entry", err)
	}
	if err := s.rdb.RPush(ctx, taskEntriesKey(s.instanceName, taskID), data).Err(); err != nil {
		return storageErr("appending task entry", err)
	}
	return nil
}

// ReadTask returns the task record with its full narrative. Archived tasks
// remain readable.
func (s *Store) ReadTask(ctx context.Context, taskID string) (memory.TaskRecord, error) {
	m, err := s.readTaskMeta(ctx, taskID)
	if err != nil {
		return memory.TaskRecord{}, err
	}
	raws, err := s.rdb.LRange(ctx, taskEntriesKey(s.instanceName, taskID), 0, -1).Result()
	if err != nil {
		return memory.TaskRecord{}, storageErr("reading task entries", err)
	}
	rec := memory.TaskRecord{TaskID: m.TaskID, Prompt: m.Prompt, Created: m.Created, Archived: m.Archived}
	for _, raw := range raws {
		var e memory.TaskEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return memory.TaskRecord{}, storageErr("decoding task entry", err)
		}
		rec.Entries = append(rec.Entries, e)
	}
	return rec, nil
}

// ArchiveTask marks the task read-only. Idempotent.
func (s *Store) ArchiveTask(ctx context.Context, taskID string) error {
	m, err := s.readTaskMeta(ctx, taskID)
	if err != nil {
		return err
	}
	if m.Archived {
		return nil
	}
	m.Archived = true
	return s.writeTaskMeta(ctx, m)
}
