// Package session manages task session lifecycles: opening task memory,
// routing dispatches through open sessions only, and closing with a curation
// pass before the task archive becomes read-only.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/curator"
	"github.com/lorekeep/lorekeep/dispatch"
	"github.com/lorekeep/lorekeep/logging"
	"github.com/lorekeep/lorekeep/memory"
)

// Session tracks one open task and the dispatch trees run against it.
type Session struct {
	TaskID   string
	Prompt   string
	OpenedAt time.Time

	mu     sync.Mutex
	closed bool
	trees  []*dispatch.Result
}

// Closed reports whether the session has been closed and archived.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Trees returns the dispatch trees recorded so far, in dispatch order.
func (s *Session) Trees() []*dispatch.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*dispatch.Result, len(s.trees))
	copy(out, s.trees)
	return out
}

func (s *Session) addTree(t *dispatch.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trees = append(s.trees, t)
}

// CloseSummary is returned by Manager.Close after curation and archival.
type CloseSummary struct {
	TaskID   string
	Curation curator.Report
	Trees    []*dispatch.Result
}

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
}

// Manager owns session lifecycles. Safe for concurrent use.
type Manager struct {
	layers   *memory.Layers
	router   *dispatch.Router
	curator  *curator.Curator
	logger   logging.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a session manager over the memory layers, the dispatch
// router and the curator.
func NewManager(layers *memory.Layers, router *dispatch.Router, cur *curator.Curator, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		layers:   layers,
		router:   router,
		curator:  cur,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Open creates the task memory for taskID, seeds canon if empty and returns
// the new session. Reopening a closed task fails with ErrSessionClosed.
func (m *Manager) Open(ctx context.Context, taskID, prompt string) (*Session, error) {
	if taskID == "" {
		return nil, fmt.Errorf("session open: missing task id")
	}

	m.mu.Lock()
	if existing, ok := m.sessions[taskID]; ok {
		m.mu.Unlock()
		if existing.Closed() {
			return nil, fmt.Errorf("reopen task %s: %w", taskID, core.ErrSessionClosed)
		}
		return nil, fmt.Errorf("task %s is already open", taskID)
	}
	m.mu.Unlock()

	if err := m.layers.Store().OpenTask(ctx, taskID, prompt); err != nil {
		return nil, err
	}
	if err := m.layers.SeedCanon(ctx, "session-manager"); err != nil {
		return nil, fmt.Errorf("seed canon: %w", err)
	}

	sess := &Session{TaskID: taskID, Prompt: prompt, OpenedAt: time.Now().UTC()}

	m.mu.Lock()
	m.sessions[taskID] = sess
	m.mu.Unlock()

	m.logger.Info("session.open", "task_id", taskID)
	return sess, nil
}

// Get returns the session for taskID, open or closed.
func (m *Manager) Get(taskID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, core.ErrUnknownTask)
	}
	return sess, nil
}

// Dispatch routes work through an open session, recording the resulting
// dispatch tree on it.
func (m *Manager) Dispatch(ctx context.Context, taskID, objective string) (*dispatch.Result, error) {
	sess, err := m.Get(taskID)
	if err != nil {
		return nil, err
	}
	if sess.Closed() {
		return nil, fmt.Errorf("dispatch on task %s: %w", taskID, core.ErrSessionClosed)
	}

	tree, err := m.router.Dispatch(ctx, dispatch.Request{TaskID: taskID, Objective: objective})
	if err != nil {
		return nil, err
	}
	sess.addTree(tree)
	return tree, nil
}

// Close runs the curation pass, records root outputs in task memory, clears
// every participant's scratch and archives the task. The archived task
// memory stays readable; everything else about the session is final.
func (m *Manager) Close(ctx context.Context, taskID string) (*CloseSummary, error) {
	sess, err := m.Get(taskID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, fmt.Errorf("close task %s: %w", taskID, core.ErrSessionClosed)
	}
	sess.closed = true
	trees := make([]*dispatch.Result, len(sess.trees))
	copy(trees, sess.trees)
	sess.mu.Unlock()

	for _, tree := range trees {
		if !tree.Completed() {
			continue
		}
		err := m.layers.AppendTaskMemory(ctx, taskID, memory.TaskEntry{
			AgentID: tree.ID,
			Content: "Final output: " + tree.Output,
		}, core.RoleOrchestrator)
		if err != nil {
			return nil, fmt.Errorf("record final output: %w", err)
		}
	}

	report, err := m.curator.Curate(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("curation pass: %w", err)
	}

	for _, tree := range trees {
		tree.Walk(func(n *dispatch.Result) {
			owner := &core.AgentHandle{ID: n.ID, Role: n.Role}
			if err := m.layers.ClearScratch(ctx, owner, taskID); err != nil {
				m.logger.Warn("session.scratch_clear_failed", "task_id", taskID, "agent_id", n.ID, "error", err)
			}
		})
	}

	if err := m.layers.Store().ArchiveTask(ctx, taskID); err != nil {
		return nil, fmt.Errorf("archive task: %w", err)
	}

	m.logger.Info("session.close", "task_id", taskID,
		"promoted", report.Promoted, "dismissed", report.Dismissed, "disputed", report.Disputed)

	return &CloseSummary{TaskID: taskID, Curation: report, Trees: trees}, nil
}
