package memory

import (
	"fmt"
	"time"

	"github.com/lorekeep/lorekeep/core"
)

// CanonEntry is one versioned record in the high-trust store. Entries are
// never deleted, only superseded: each successful promotion installs a new
// entry whose Version is exactly the previous one plus one.
type CanonEntry struct {
	Key           string    `json:"key"` // namespaced as "namespace/name"
	Value         string    `json:"value"`
	Confidence    float64   `json:"confidence"`
	LastUpdatedBy string    `json:"last_updated_by"` // agent id
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BufferStatus is the curation state of a buffer entry.
type BufferStatus string

const (
	// BufferPending marks an entry awaiting curation.
	BufferPending BufferStatus = "pending"
	// BufferPromoted marks an entry whose claim was installed into Canon.
	BufferPromoted BufferStatus = "promoted"
	// BufferDismissed marks an entry rejected below the confidence floor.
	BufferDismissed BufferStatus = "dismissed"
	// BufferDisputed marks an entry whose claim conflicts with Canon.
	BufferDisputed BufferStatus = "disputed"
)

// Terminal reports whether the status permits no further transition.
func (s BufferStatus) Terminal() bool { return s != BufferPending }

// CanTransition reports whether moving from s to next is legal. The only
// legal moves are pending to one of the three terminal states.
func (s BufferStatus) CanTransition(next BufferStatus) bool {
	if s != BufferPending {
		return false
	}
	switch next {
	case BufferPromoted, BufferDismissed, BufferDisputed:
		return true
	}
	return false
}

// BufferEntry is one unverified claim in the append-only buffer log. Once
// written, everything except Status is immutable.
type BufferEntry struct {
	ID         string       `json:"id"`
	TaskID     string       `json:"task_id"`
	AgentID    string       `json:"agent_id"`
	Role       core.Role    `json:"role"`
	Key        string       `json:"key"` // target Canon key for the claim
	Claim      string       `json:"claim"`
	Source     string       `json:"source"`
	Confidence float64      `json:"confidence"`
	Timestamp  time.Time    `json:"timestamp"`
	Status     BufferStatus `json:"status"`
}

// BufferFilter narrows a buffer read. Zero values mean "any".
type BufferFilter struct {
	TaskID string
	Status BufferStatus
}

// Matches reports whether e passes the filter.
func (f BufferFilter) Matches(e BufferEntry) bool {
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// ScratchNote is a private note owned exclusively by one (agent, task) pair.
type ScratchNote struct {
	AgentID   string    `json:"agent_id"`
	TaskID    string    `json:"task_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskEntry is one item in a task's shared, ordered narrative.
type TaskEntry struct {
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskRecord is the full task memory for one session.
type TaskRecord struct {
	TaskID   string      `json:"task_id"`
	Prompt   string      `json:"prompt"`
	Created  time.Time   `json:"created"`
	Archived bool        `json:"archived"`
	Entries  []TaskEntry `json:"entries"`
}

// DisputeStatus is the lifecycle state of a dispute record.
type DisputeStatus string

const (
	// DisputeOpen marks an unresolved conflict.
	DisputeOpen DisputeStatus = "open"
	// DisputeResolved marks a conflict settled by an explicit operator or
	// curator action.
	DisputeResolved DisputeStatus = "resolved"
)

// DisputeRecord captures a conflict between an incoming buffer claim and the
// Canon value it disagreed with. Canon is left untouched when one is filed;
// corrections flow only through explicit resolution.
type DisputeRecord struct {
	ID              string        `json:"id"`
	TaskID          string        `json:"task_id"`
	CanonKey        string        `json:"canon_key"`
	BufferID        string        `json:"buffer_id"`
	IncomingClaim   string        `json:"incoming_claim"`
	ExistingVersion int64         `json:"existing_version"`
	Status          DisputeStatus `json:"status"`
	Resolution      string        `json:"resolution,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// DisputeFilter narrows a dispute read. Zero values mean "any".
type DisputeFilter struct {
	TaskID string
	Status DisputeStatus
}

// Matches reports whether d passes the filter.
func (f DisputeFilter) Matches(d DisputeRecord) bool {
	if f.TaskID != "" && d.TaskID != f.TaskID {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return true
}

// CanonKey joins a namespace and name into the canonical key form.
func CanonKey(namespace, name string) string {
	return fmt.Sprintf("%s/%s", namespace, name)
}

func nowUTC() time.Time { return time.Now().UTC() }
