package core

import "fmt"

// Role identifies an agent's position in the hierarchy. The set is closed:
// dispatch pattern-matches on declared role names rather than free-form text,
// so an unknown role is a routing error, never a guess.
type Role string

const (
	// RoleOrchestrator decomposes tasks, routes work to specialists and is
	// one of the two roles permitted to write Canon directly.
	RoleOrchestrator Role = "orchestrator"
	// RoleResearch performs information gathering; the only role wired to
	// the web-search capability.
	RoleResearch Role = "research"
	// RoleCode handles software development and technical implementation.
	RoleCode Role = "code"
	// RoleData handles statistical analysis and data processing.
	RoleData Role = "data"
	// RoleWriting handles content creation, editing and summarization.
	RoleWriting Role = "writing"
	// RoleCurator reconciles Buffer entries against Canon at end of task.
	RoleCurator Role = "curator"
)

// Roles returns all valid roles in a stable order.
func Roles() []Role {
	return []Role{RoleOrchestrator, RoleResearch, RoleCode, RoleData, RoleWriting, RoleCurator}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleOrchestrator, RoleResearch, RoleCode, RoleData, RoleWriting, RoleCurator:
		return true
	}
	return false
}

// String returns the role identifier.
func (r Role) String() string { return string(r) }

// ParseRole converts a declared tool or configuration name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Specialist reports whether the role is a leaf specialist (not the
// orchestrator and not the curator).
func (r Role) Specialist() bool {
	switch r {
	case RoleResearch, RoleCode, RoleData, RoleWriting:
		return true
	}
	return false
}
