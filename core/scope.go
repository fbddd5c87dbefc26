package core

import "strings"

// Scope is a capability-scoped read view over Canon keys: a key-prefix
// allowlist supplied by the orchestrating role at dispatch time and passed
// alongside every Canon read. It is a predicate, never an inheritance
// relationship between roles.
type Scope struct {
	prefixes []string
	all      bool
}

// ScopeAll returns a scope that admits every Canon key. Reserved for the
// Orchestrator and the Curator.
func ScopeAll() Scope { return Scope{all: true} }

// NewScope builds a prefix-allowlist scope. Keys are namespaced as
// "namespace/key", so a prefix of "facts" admits "facts/x" and "facts".
func NewScope(prefixes ...string) Scope {
	ps := make([]string, len(prefixes))
	copy(ps, prefixes)
	return Scope{prefixes: ps}
}

// Allows reports whether the scope admits the given Canon key.
func (s Scope) Allows(key string) bool {
	if s.all {
		return true
	}
	for _, p := range s.prefixes {
		if key == p || strings.HasPrefix(key, p+"/") {
			return true
		}
	}
	return false
}

// Prefixes returns a copy of the allowlist (nil for an all-admitting scope).
func (s Scope) Prefixes() []string {
	if s.all {
		return nil
	}
	out := make([]string, len(s.prefixes))
	copy(out, s.prefixes)
	return out
}

// All reports whether the scope admits every key.
func (s Scope) All() bool { return s.all }

// DefaultScope returns the Canon slice a role receives when the dispatcher
// does not narrow it further. The namespace split keeps each specialist's
// slice focused on what it can act on.
func (r Role) DefaultScope() Scope {
	switch r {
	case RoleOrchestrator, RoleCurator:
		return ScopeAll()
	case RoleResearch, RoleData:
		return NewScope("identity", "standards", "facts")
	case RoleCode:
		return NewScope("identity", "standards", "decisions")
	case RoleWriting:
		return NewScope("identity", "standards")
	default:
		return NewScope()
	}
}
