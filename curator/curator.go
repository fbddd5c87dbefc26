// Package curator reconciles unverified buffer claims into Canon. It runs as
// a deterministic pipeline, not an agent: claims are clustered per target
// key, scored with corroboration, then promoted, dismissed or disputed. The
// pass is idempotent because only pending entries are ever considered and
// every processed entry lands in a terminal status.
package curator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/logging"
	"github.com/lorekeep/lorekeep/memory"
)

// Config holds the curation thresholds.
type Config struct {
	// ConfidenceFloor is the minimum corroborated score a claim needs to
	// avoid dismissal.
	ConfidenceFloor float64
	// AgreementTolerance bounds how dissimilar two claims may be and still
	// count as agreeing. Claims with similarity >= 1-AgreementTolerance
	// corroborate each other.
	AgreementTolerance float64
	// CorroborationWeight is the score bonus per additional independent
	// agent asserting an agreeing claim. Repetition by one agent earns
	// nothing.
	CorroborationWeight float64
	// MaxCanonRetries caps promote retries after version conflicts.
	MaxCanonRetries int
}

// DefaultConfig returns the thresholds the pipeline was tuned with.
func DefaultConfig() Config {
	return Config{
		ConfidenceFloor:     0.4,
		AgreementTolerance:  0.35,
		CorroborationWeight: 0.1,
		MaxCanonRetries:     3,
	}
}

// Action records what the curator did with one buffer entry.
type Action struct {
	BufferID string              `json:"buffer_id"`
	Key      string              `json:"key"`
	Status   memory.BufferStatus `json:"status"`
	Reason   string              `json:"reason"`
}

// Report summarizes one curation pass.
type Report struct {
	TaskID    string   `json:"task_id"`
	Promoted  int      `json:"promoted"`
	Dismissed int      `json:"dismissed"`
	Disputed  int      `json:"disputed"`
	Actions   []Action `json:"actions"`
}

// Options configures a Curator.
type Options struct {
	Config Config
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// Curator runs reconciliation passes over the buffer. It acts with the
// Curator role and is the only path, besides the orchestrator's explicit
// writes, by which Canon changes.
type Curator struct {
	layers *memory.Layers
	cfg    Config
	logger logging.Logger
}

// New creates a Curator over the given memory layers.
func New(layers *memory.Layers, optFns ...func(o *Options)) *Curator {
	opts := Options{Config: DefaultConfig(), Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Curator{layers: layers, cfg: opts.Config, logger: opts.Logger}
}

// WithConfig overrides the default thresholds.
func WithConfig(cfg Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Curate reconciles every pending buffer entry of one task. Safe to re-run:
// a second pass over the same task finds nothing pending and does nothing.
func (c *Curator) Curate(ctx context.Context, taskID string) (Report, error) {
	report := Report{TaskID: taskID}

	pending, err := c.layers.ReadBuffer(ctx, memory.BufferFilter{TaskID: taskID, Status: memory.BufferPending}, core.RoleCurator)
	if err != nil {
		return report, fmt.Errorf("reading pending buffer: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	byKey := make(map[string][]memory.BufferEntry)
	for _, e := range pending {
		byKey[e.Key] = append(byKey[e.Key], e)
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, cluster := range c.cluster(byKey[key]) {
			if err := c.settle(ctx, taskID, key, cluster, &report); err != nil {
				return report, err
			}
		}
	}

	c.logger.Info("curation.pass",
		"task", taskID,
		"promoted", report.Promoted,
		"dismissed", report.Dismissed,
		"disputed", report.Disputed)
	return report, nil
}

// cluster greedily groups entries whose claims agree within the tolerance.
// Entries in one cluster corroborate each other.
func (c *Curator) cluster(entries []memory.BufferEntry) [][]memory.BufferEntry {
	agree := 1 - c.cfg.AgreementTolerance
	var clusters [][]memory.BufferEntry
next:
	for _, e := range entries {
		for i, cl := range clusters {
			if Similarity(e.Claim, cl[0].Claim) >= agree {
				clusters[i] = append(cl, e)
				continue next
			}
		}
		clusters = append(clusters, []memory.BufferEntry{e})
	}
	return clusters
}

// settle decides the fate of one claim cluster: dismiss below the floor,
// dispute on conflict with existing Canon, promote otherwise. Corroboration
// counts distinct agents, so an agent restating its own claim does not lift
// the score.
func (c *Curator) settle(ctx context.Context, taskID, key string, cluster []memory.BufferEntry, report *Report) error {
	rep := cluster[0]
	agents := map[string]struct{}{rep.AgentID: {}}
	for _, e := range cluster[1:] {
		agents[e.AgentID] = struct{}{}
		if e.Confidence > rep.Confidence {
			rep = e
		}
	}
	score := rep.Confidence + c.cfg.CorroborationWeight*float64(len(agents)-1)
	if score > 1 {
		score = 1
	}

	if score < c.cfg.ConfidenceFloor {
		reason := fmt.Sprintf("score %.2f below floor %.2f", score, c.cfg.ConfidenceFloor)
		return c.finish(ctx, cluster, key, memory.BufferDismissed, reason, report)
	}

	promoted, disputeReason, err := c.promote(ctx, taskID, key, rep, score)
	if err != nil {
		return err
	}
	if promoted {
		return c.finish(ctx, cluster, key, memory.BufferPromoted, fmt.Sprintf("promoted with score %.2f", score), report)
	}
	return c.finish(ctx, cluster, key, memory.BufferDisputed, disputeReason, report)
}

// promote installs rep's claim into Canon with a compare-and-swap retry
// loop. Each conflict triggers a fresh read and a fresh agreement check,
// since the value the claim was judged against may have moved. Returns
// promoted=false with a reason when the claim conflicts with existing Canon,
// in which case a dispute has been filed.
func (c *Curator) promote(ctx context.Context, taskID, key string, rep memory.BufferEntry, score float64) (bool, string, error) {
	agree := 1 - c.cfg.AgreementTolerance

	for attempt := 0; attempt <= c.cfg.MaxCanonRetries; attempt++ {
		existing, err := c.layers.ReadCanonSlice(ctx, []string{key}, core.RoleCurator, core.ScopeAll())
		if err != nil {
			return false, "", fmt.Errorf("reading canon %q: %w", key, err)
		}

		var version int64
		if cur, ok := existing[key]; ok {
			version = cur.Version
			if Similarity(rep.Claim, cur.Value) < agree {
				d := memory.DisputeRecord{
					TaskID:          taskID,
					CanonKey:        key,
					BufferID:        rep.ID,
					IncomingClaim:   rep.Claim,
					ExistingVersion: cur.Version,
				}
				if _, err := c.layers.FileDispute(ctx, d, core.RoleCurator); err != nil {
					return false, "", fmt.Errorf("filing dispute for %q: %w", key, err)
				}
				return false, fmt.Sprintf("conflicts with canon %q v%d", key, cur.Version), nil
			}
		}

		entry := memory.CanonEntry{
			Key:           key,
			Value:         rep.Claim,
			Confidence:    score,
			LastUpdatedBy: rep.AgentID,
		}
		_, err = c.layers.WriteCanon(ctx, entry, core.RoleCurator, version)
		if err == nil {
			return true, "", nil
		}
		if !errors.Is(err, core.ErrVersionConflict) {
			return false, "", fmt.Errorf("promoting %q: %w", key, err)
		}
		c.logger.Debug("curation.retry", "key", key, "attempt", attempt+1)
	}
	return false, "", fmt.Errorf("promoting %q: retries exhausted: %w", key, core.ErrVersionConflict)
}

// finish moves every entry of a cluster to its terminal status and records
// the actions.
func (c *Curator) finish(ctx context.Context, cluster []memory.BufferEntry, key string, status memory.BufferStatus, reason string, report *Report) error {
	for _, e := range cluster {
		if err := c.layers.SetBufferStatus(ctx, e.ID, status, core.RoleCurator); err != nil {
			return fmt.Errorf("settling buffer entry %q: %w", e.ID, err)
		}
		report.Actions = append(report.Actions, Action{BufferID: e.ID, Key: key, Status: status, Reason: reason})
	}
	switch status {
	case memory.BufferPromoted:
		report.Promoted += len(cluster)
	case memory.BufferDismissed:
		report.Dismissed += len(cluster)
	case memory.BufferDisputed:
		report.Disputed += len(cluster)
	}
	return nil
}
