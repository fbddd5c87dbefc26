package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lorekeep/lorekeep/core"
)

// ContextLimits bounds how much of each layer flows into an agent's prompt
// context. Zero values fall back to the defaults.
type ContextLimits struct {
	MaxCanon    int // canon entries included
	MaxBuffer   int // most recent tentative buffer entries
	MaxScratch  int // most recent own scratch notes
	MaxValueLen int // per-item truncation length
}

// DefaultContextLimits mirror the sizing the prompt context was tuned for.
var DefaultContextLimits = ContextLimits{MaxCanon: 10, MaxBuffer: 8, MaxScratch: 5, MaxValueLen: 300}

func (cl ContextLimits) withDefaults() ContextLimits {
	d := DefaultContextLimits
	if cl.MaxCanon > 0 {
		d.MaxCanon = cl.MaxCanon
	}
	if cl.MaxBuffer > 0 {
		d.MaxBuffer = cl.MaxBuffer
	}
	if cl.MaxScratch > 0 {
		d.MaxScratch = cl.MaxScratch
	}
	if cl.MaxValueLen > 0 {
		d.MaxValueLen = cl.MaxValueLen
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// BuildContext assembles the ordered memory context injected into an agent's
// prompt: task narrative first (current mission truth), then the scoped Canon
// slice, then Buffer entries explicitly labelled tentative, then the caller's
// own scratch. Empty layers are omitted; an entirely empty context returns "".
func (l *Layers) BuildContext(ctx context.Context, taskID string, caller *core.AgentHandle, scope core.Scope, limits ContextLimits) (string, error) {
	lim := limits.withDefaults()
	var sections []string

	entries, err := l.ReadTaskMemory(ctx, taskID, caller.Role)
	if err != nil {
		return "", err
	}
	if len(entries) > 0 {
		lines := []string{"-- TASK MEMORY (mission narrative) --"}
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("  [%s] %s", e.AgentID, truncate(e.Content, lim.MaxValueLen)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	canon, err := l.ReadCanonSlice(ctx, nil, caller.Role, scope)
	if err != nil {
		return "", err
	}
	if len(canon) > 0 {
		keys := make([]string, 0, len(canon))
		for k := range canon {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > lim.MaxCanon {
			keys = keys[:lim.MaxCanon]
		}
		lines := []string{"-- CANON (verified truth, trust fully) --"}
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  [%s v%d] %s", k, canon[k].Version, truncate(canon[k].Value, lim.MaxValueLen)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	pending, err := l.ReadBuffer(ctx, BufferFilter{TaskID: taskID, Status: BufferPending}, caller.Role)
	if err != nil {
		return "", err
	}
	if len(pending) > 0 {
		if len(pending) > lim.MaxBuffer {
			pending = pending[len(pending)-lim.MaxBuffer:]
		}
		lines := []string{"-- BUFFER (TENTATIVE, unverified, do NOT treat as truth) --"}
		for _, e := range pending {
			lines = append(lines, fmt.Sprintf("  [tentative|%s|conf:%.1f] %s", e.Role, e.Confidence, truncate(e.Claim, lim.MaxValueLen)))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	notes, err := l.ReadScratch(ctx, caller, caller.ID, taskID)
	if err != nil {
		return "", err
	}
	if len(notes) > 0 {
		if len(notes) > lim.MaxScratch {
			notes = notes[len(notes)-lim.MaxScratch:]
		}
		lines := []string{"-- SCRATCH (your own notes) --"}
		for _, n := range notes {
			lines = append(lines, "  - "+truncate(n.Content, lim.MaxValueLen))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(sections) == 0 {
		return "", nil
	}
	header := fmt.Sprintf("[Memory context for task %s | role: %s]", taskID, caller.Role)
	return header + "\n" + strings.Join(sections, "\n\n"), nil
}

// SeedCanon installs the baseline identity and standards entries on first
// run. A non-empty Canon is left untouched.
func (l *Layers) SeedCanon(ctx context.Context, seededBy string) error {
	existing, err := l.store.ReadCanon(ctx, nil)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	seeds := []CanonEntry{
		{
			Key: CanonKey("identity", "system"),
			Value: "Hierarchical agent system. Roles: orchestrator, research (web search), " +
				"code, data, writing, curator. Max dispatch depth: 3.",
			Confidence:    1.0,
			LastUpdatedBy: seededBy,
		},
		{
			Key: CanonKey("standards", "memory_rules"),
			Value: "Canon = verified truth (write-restricted to orchestrator and curator). " +
				"Buffer = unverified candidates (open append). Scratch = private per-agent notes. " +
				"Task memory = shared mission narrative. Buffer claims stay tentative until promoted.",
			Confidence:    1.0,
			LastUpdatedBy: seededBy,
		},
	}
	for _, e := range seeds {
		if _, err := l.WriteCanon(ctx, e, core.RoleCurator, 0); err != nil {
			return fmt.Errorf("seeding canon: %w", err)
		}
	}
	return nil
}

// Summary returns a one-line snapshot of the memory state for logging.
func (l *Layers) Summary(ctx context.Context) (string, error) {
	canon, err := l.store.ReadCanon(ctx, nil)
	if err != nil {
		return "", err
	}
	all, err := l.store.ReadBuffer(ctx, BufferFilter{})
	if err != nil {
		return "", err
	}
	pending := 0
	for _, e := range all {
		if e.Status == BufferPending {
			pending++
		}
	}
	open, err := l.store.ReadDisputes(ctx, DisputeFilter{Status: DisputeOpen})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("canon:%d entries | buffer:%d pending / %d total | disputes:%d open",
		len(canon), pending, len(all), len(open)), nil
}
