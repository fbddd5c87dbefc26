// Package arbiter holds the single security-relevant rule of the memory
// system (which roles may perform which verbs on which layers) as a pure
// table so it can be unit-tested independently of storage mechanics. Every
// layer operation in memory.Layers consults Permit before touching the store.
package arbiter

import "github.com/lorekeep/lorekeep/core"

// Verb is the kind of access being requested on a layer.
type Verb string

const (
	// VerbRead covers all non-mutating reads.
	VerbRead Verb = "read"
	// VerbAppend covers append-only additions (logs, scratch notes).
	VerbAppend Verb = "append"
	// VerbWrite covers versioned replacement, i.e. Canon promotion and
	// dispute resolution.
	VerbWrite Verb = "write"
)

// Layer names a memory layer for policy purposes.
type Layer string

const (
	LayerCanon      Layer = "canon"
	LayerBuffer     Layer = "buffer"
	LayerScratch    Layer = "scratch"
	LayerTaskMemory Layer = "task"
	LayerDispute    Layer = "dispute"
)

// roleSet is the allowlist value in the policy table. nil means nobody;
// the everyone sentinel admits all valid roles.
type roleSet map[core.Role]bool

var everyone = roleSet{
	core.RoleOrchestrator: true,
	core.RoleResearch:     true,
	core.RoleCode:         true,
	core.RoleData:         true,
	core.RoleWriting:      true,
	core.RoleCurator:      true,
}

// policy is the role × layer × verb table. Anything absent is denied.
//
// The load-bearing row is Canon/write: most agents are read-only on Canon,
// and the only mutation path is the serialized promotion performed by the
// Orchestrator or the Curator.
var policy = map[Layer]map[Verb]roleSet{
	LayerCanon: {
		VerbRead:  everyone,
		VerbWrite: {core.RoleOrchestrator: true, core.RoleCurator: true},
	},
	LayerBuffer: {
		VerbRead:   everyone,
		VerbAppend: everyone,
		// Status transitions on buffer entries are curation, not open append.
		VerbWrite: {core.RoleOrchestrator: true, core.RoleCurator: true},
	},
	LayerScratch: {
		// Ownership (agent id + task id) is checked by the layer façade;
		// the table only says scratch exists for every role. Write covers
		// clearing one's own notes.
		VerbRead:   everyone,
		VerbAppend: everyone,
		VerbWrite:  everyone,
	},
	LayerTaskMemory: {
		VerbRead:   everyone,
		VerbAppend: everyone,
	},
	LayerDispute: {
		VerbRead:   everyone,
		VerbAppend: {core.RoleOrchestrator: true, core.RoleCurator: true},
		VerbWrite:  {core.RoleOrchestrator: true, core.RoleCurator: true},
	},
}

// Permit reports whether role may perform verb on layer. Unknown roles,
// layers and verbs are all denied.
func Permit(verb Verb, layer Layer, role core.Role) bool {
	if !role.Valid() {
		return false
	}
	verbs, ok := policy[layer]
	if !ok {
		return false
	}
	set, ok := verbs[verb]
	if !ok {
		return false
	}
	return set[role]
}
