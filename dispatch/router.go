// Package dispatch routes task requests to role-scoped agents, driving the
// model tool loop for each agent and joining recursive sub-dispatches into a
// result tree. Depth and concurrency bounds are enforced here, before any
// inference call is made.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/logging"
	"github.com/lorekeep/lorekeep/memory"
	"github.com/lorekeep/lorekeep/model"
	"github.com/lorekeep/lorekeep/search"
)

const (
	// DefaultMaxConcurrent bounds simultaneous model invocations.
	DefaultMaxConcurrent = 4
	// DefaultChildTimeout bounds one sub-dispatch end to end.
	DefaultChildTimeout = 2 * time.Minute
	// DefaultMaxIterations bounds model turns within one agent loop.
	DefaultMaxIterations = 8
)

// Request describes one unit of work to route to an agent.
type Request struct {
	TaskID    string
	Role      core.Role // empty selects the orchestrator
	Objective string
	Caller    *core.AgentHandle // nil for the root dispatch
}

// Result is one node of the dispatch tree. Children are appended while the
// node is delegated; after Dispatch returns the tree is read-only.
type Result struct {
	ID       string        `json:"id"`
	Role     core.Role     `json:"role"`
	Depth    int           `json:"depth"`
	Task     string        `json:"task"`
	State    State         `json:"state"`
	Output   string        `json:"output,omitempty"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Children []*Result     `json:"children,omitempty"`

	mu sync.Mutex
}

// Completed reports whether the node produced a final output.
func (r *Result) Completed() bool { return r.State == StateCompleted }

// Walk visits the node and all descendants depth-first.
func (r *Result) Walk(fn func(*Result)) {
	fn(r)
	for _, c := range r.Children {
		c.Walk(fn)
	}
}

func (r *Result) addChild(c *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Children = append(r.Children, c)
}

// setState applies a validated transition, panicking on programmer error
// rather than silently corrupting the lifecycle.
func (r *Result) setState(next State) {
	s, err := r.State.Transition(next)
	if err != nil {
		panic(err)
	}
	r.State = s
}

func (r *Result) fail(err error) {
	r.setState(StateFailed)
	r.Err = err.Error()
}

// Options configures a Router.
type Options struct {
	// Models selects per-role models; roles without an entry use the
	// default model passed to New.
	Models map[core.Role]model.Model
	// Search is handed to roles whose toolset includes web_search. Nil
	// leaves the tool returning an unavailable error.
	Search search.Client
	// MaxConcurrent bounds simultaneous model invocations across the tree.
	MaxConcurrent int64
	// ChildTimeout bounds one sub-dispatch; expiry fails the child only.
	ChildTimeout time.Duration
	// MaxIterations bounds model turns within one agent loop.
	MaxIterations int
	// ContextLimits sizes the memory context block.
	ContextLimits memory.ContextLimits
	Logger        logging.Logger
}

// Router dispatches requests to agents. Safe for concurrent use.
type Router struct {
	defaultModel  model.Model
	models        map[core.Role]model.Model
	layers        *memory.Layers
	searchClient  search.Client
	sem           *semaphore.Weighted
	childTimeout  time.Duration
	maxIterations int
	limits        memory.ContextLimits
	logger        logging.Logger
}

// New creates a Router driving the given model against the memory layers.
func New(defaultModel model.Model, layers *memory.Layers, optFns ...func(o *Options)) *Router {
	opts := Options{
		MaxConcurrent: DefaultMaxConcurrent,
		ChildTimeout:  DefaultChildTimeout,
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Router{
		defaultModel:  defaultModel,
		models:        opts.Models,
		layers:        layers,
		searchClient:  opts.Search,
		sem:           semaphore.NewWeighted(opts.MaxConcurrent),
		childTimeout:  opts.ChildTimeout,
		maxIterations: opts.MaxIterations,
		limits:        opts.ContextLimits,
		logger:        opts.Logger,
	}
}

// WithSearch binds the web search client.
func WithSearch(c search.Client) func(o *Options) {
	return func(o *Options) { o.Search = c }
}

// WithModelFor overrides the model used for one role.
func WithModelFor(role core.Role, m model.Model) func(o *Options) {
	return func(o *Options) {
		if o.Models == nil {
			o.Models = map[core.Role]model.Model{}
		}
		o.Models[role] = m
	}
}

// WithMaxConcurrent bounds simultaneous model invocations.
func WithMaxConcurrent(n int64) func(o *Options) {
	return func(o *Options) { o.MaxConcurrent = n }
}

// WithChildTimeout bounds each sub-dispatch.
func WithChildTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.ChildTimeout = d }
}

// WithMaxIterations bounds model turns per agent loop.
func WithMaxIterations(n int) func(o *Options) {
	return func(o *Options) { o.MaxIterations = n }
}

// WithLogger sets the router logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func (r *Router) modelFor(role core.Role) model.Model {
	if m, ok := r.models[role]; ok {
		return m
	}
	return r.defaultModel
}

// Dispatch routes a request and blocks until its whole subtree settles. A
// failed dispatch is reported in the returned Result, not as an error; the
// error return covers malformed requests only.
func (r *Router) Dispatch(ctx context.Context, req Request) (*Result, error) {
	role := req.Role
	if role == "" {
		role = core.RoleOrchestrator
	}
	if !role.Valid() || role == core.RoleCurator {
		return nil, fmt.Errorf("role %q cannot be dispatched", req.Role)
	}
	if req.TaskID == "" {
		return nil, fmt.Errorf("dispatch request missing task id")
	}
	if req.Objective == "" {
		return nil, fmt.Errorf("dispatch request missing objective")
	}

	var handle *core.AgentHandle
	if req.Caller == nil {
		handle = core.NewRootHandle(role)
	} else {
		handle = req.Caller.Child(role)
	}

	node := &Result{
		ID:    handle.ID,
		Role:  role,
		Depth: handle.Depth,
		Task:  req.Objective,
		State: StateRequested,
	}

	start := time.Now()
	defer func() { node.Duration = time.Since(start) }()

	if handle.Depth > core.MaxDispatchDepth {
		node.fail(fmt.Errorf("refusing dispatch at depth %d: %w", handle.Depth, core.ErrDepthExceeded))
		return node, nil
	}

	scope := role.DefaultScope()
	tools := r.toolsetFor(role)
	node.setState(StateScoped)

	r.logger.Info("dispatch.start", "task_id", req.TaskID, "role", role.String(), "depth", handle.Depth, "agent_id", handle.ID)

	output, err := r.runLoop(ctx, node, handle, req.TaskID, scope, tools)
	if err != nil {
		node.fail(err)
		r.logger.Warn("dispatch.failed", "task_id", req.TaskID, "role", role.String(), "depth", handle.Depth, "error", err)
		return node, nil
	}

	node.Output = output
	node.setState(StateCompleted)
	r.logger.Info("dispatch.done", "task_id", req.TaskID, "role", role.String(), "depth", handle.Depth, "duration", node.Duration)
	return node, nil
}

// spawnFor returns the SpawnFunc bound into parent's tool context. Each call
// runs one child dispatch under the child timeout, recording the child on
// the parent node.
func (r *Router) spawnFor(parent *Result, taskID string) func(ctx context.Context, caller *core.AgentHandle, role core.Role, task string) (string, error) {
	return func(ctx context.Context, caller *core.AgentHandle, role core.Role, task string) (string, error) {
		if !caller.WithinDepthBound() {
			return "", fmt.Errorf("cannot delegate further: %w", core.ErrDepthExceeded)
		}

		childCtx := ctx
		if r.childTimeout > 0 {
			var cancel context.CancelFunc
			childCtx, cancel = context.WithTimeout(ctx, r.childTimeout)
			defer cancel()
		}

		child, err := r.Dispatch(childCtx, Request{
			TaskID:    taskID,
			Role:      role,
			Objective: task,
			Caller:    caller,
		})
		if err != nil {
			return "", err
		}
		parent.addChild(child)
		if !child.Completed() {
			return "", fmt.Errorf("%s agent failed: %s", role, child.Err)
		}
		return child.Output, nil
	}
}
