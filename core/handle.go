package core

import "github.com/google/uuid"

// MaxDispatchDepth bounds recursive agent spawning. The root task runs at
// depth 0; the check happens before any inference call is made, so hitting
// the bound never leaves a partially-invoked agent behind.
const MaxDispatchDepth = 3

// AgentHandle identifies one agent's participation in a dispatch tree.
//
// Parent is a lookup-only reference used for depth computation and
// result-synthesis bookkeeping. Children must never mutate the parent's
// state through it; results flow back exclusively via the dispatch join.
type AgentHandle struct {
	ID     string
	Role   Role
	Depth  int
	Parent *AgentHandle
}

// NewRootHandle creates a depth-0 handle for the agent opening a task.
func NewRootHandle(role Role) *AgentHandle {
	return &AgentHandle{ID: uuid.NewString(), Role: role, Depth: 0}
}

// Child derives a handle one level deeper with this handle as parent.
func (h *AgentHandle) Child(role Role) *AgentHandle {
	return &AgentHandle{ID: uuid.NewString(), Role: role, Depth: h.Depth + 1, Parent: h}
}

// Root walks the parent chain to the depth-0 handle.
func (h *AgentHandle) Root() *AgentHandle {
	cur := h
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// WithinDepthBound reports whether a child spawned from this handle would
// still satisfy the dispatch depth invariant.
func (h *AgentHandle) WithinDepthBound() bool { return h.Depth+1 <= MaxDispatchDepth }
