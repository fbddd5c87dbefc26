package arbiter

import (
	"testing"

	"github.com/lorekeep/lorekeep/core"
)

func TestPermit(t *testing.T) {
	cases := []struct {
		name  string
		verb  Verb
		layer Layer
		role  core.Role
		want  bool
	}{
		{"research reads canon", VerbRead, LayerCanon, core.RoleResearch, true},
		{"research cannot write canon", VerbWrite, LayerCanon, core.RoleResearch, false},
		{"code cannot write canon", VerbWrite, LayerCanon, core.RoleCode, false},
		{"writing cannot write canon", VerbWrite, LayerCanon, core.RoleWriting, false},
		{"orchestrator writes canon", VerbWrite, LayerCanon, core.RoleOrchestrator, true},
		{"curator writes canon", VerbWrite, LayerCanon, core.RoleCurator, true},

		{"any role appends buffer", VerbAppend, LayerBuffer, core.RoleData, true},
		{"any role reads buffer", VerbRead, LayerBuffer, core.RoleWriting, true},
		{"specialist cannot transition buffer status", VerbWrite, LayerBuffer, core.RoleResearch, false},
		{"curator transitions buffer status", VerbWrite, LayerBuffer, core.RoleCurator, true},

		{"scratch read allowed", VerbRead, LayerScratch, core.RoleCode, true},
		{"scratch append allowed", VerbAppend, LayerScratch, core.RoleCode, true},
		{"scratch write allowed for clearing own notes", VerbWrite, LayerScratch, core.RoleOrchestrator, true},

		{"task memory append open", VerbAppend, LayerTaskMemory, core.RoleWriting, true},
		{"task memory read open", VerbRead, LayerTaskMemory, core.RoleResearch, true},

		{"specialist cannot file dispute", VerbAppend, LayerDispute, core.RoleData, false},
		{"curator files dispute", VerbAppend, LayerDispute, core.RoleCurator, true},
		{"curator resolves dispute", VerbWrite, LayerDispute, core.RoleCurator, true},
		{"everyone reads disputes", VerbRead, LayerDispute, core.RoleCode, true},

		{"invalid role denied", VerbRead, LayerBuffer, core.Role("intruder"), false},
		{"unknown layer denied", VerbRead, Layer("cache"), core.RoleOrchestrator, false},
		{"unknown verb denied", Verb("truncate"), LayerBuffer, core.RoleOrchestrator, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Permit(tc.verb, tc.layer, tc.role); got != tc.want {
				t.Errorf("Permit(%s, %s, %s) = %v, want %v", tc.verb, tc.layer, tc.role, got, tc.want)
			}
		})
	}
}

// Canon mutation must be limited to exactly two roles regardless of future
// table edits.
func TestCanonWriteAllowlistIsMinimal(t *testing.T) {
	allowed := 0
	for _, r := range core.Roles() {
		if Permit(VerbWrite, LayerCanon, r) {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected exactly 2 roles with canon write, got %d", allowed)
	}
}
