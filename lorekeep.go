// Package lorekeep provides a high-level façade over the layered memory
// engine and the recursive dispatch router. Most applications interact with
// this package by:
//  1. Creating a Lorekeep via New() with a model (optionally overriding the
//     default in-memory store, search client or per-role models)
//  2. Running tasks with RunTask, which opens a session, dispatches the root
//     orchestrator, runs the curation pass and archives the task
//
// All defaults are safe for local development and testing; production
// deployments typically supply the Redis store and a structured logger.
package lorekeep

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/config"
	"github.com/lorekeep/lorekeep/core"
	"github.com/lorekeep/lorekeep/curator"
	"github.com/lorekeep/lorekeep/dispatch"
	"github.com/lorekeep/lorekeep/logging"
	"github.com/lorekeep/lorekeep/memory"
	"github.com/lorekeep/lorekeep/memory/redisstore"
	"github.com/lorekeep/lorekeep/model"
	"github.com/lorekeep/lorekeep/search"
	"github.com/lorekeep/lorekeep/session"
)

// Options configures the Lorekeep instance.
type Options struct {
	// Store holds the memory layers; defaults to the in-memory store.
	Store memory.Store
	// Search is the web search client handed to search-capable roles.
	Search search.Client
	// Models overrides the model per role; unset roles use the default model.
	Models map[core.Role]model.Model
	// CuratorConfig tunes the curation thresholds.
	CuratorConfig curator.Config
	// Dispatch bounds; zero values select the dispatch package defaults.
	MaxConcurrent int64
	ChildTimeout  time.Duration
	MaxIterations int
	// Logger defaults to NoOp.
	Logger logging.Logger
}

// Lorekeep is the high-level façade aggregating the memory layers, curator,
// router and session manager.
type Lorekeep struct {
	opts     Options
	layers   *memory.Layers
	curator  *curator.Curator
	router   *dispatch.Router
	sessions *session.Manager
}

// New creates a Lorekeep instance around the given default model. Any unset
// collaborator is initialized with its in-memory implementation.
func New(defaultModel model.Model, optFns ...func(o *Options)) *Lorekeep {
	opts := Options{
		Store:         memory.NewInMemoryStore(),
		CuratorConfig: curator.DefaultConfig(),
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	layers := memory.NewLayers(opts.Store)

	cur := curator.New(layers,
		curator.WithConfig(opts.CuratorConfig),
		curator.WithLogger(opts.Logger),
	)

	router := dispatch.New(defaultModel, layers, func(o *dispatch.Options) {
		o.Models = opts.Models
		o.Search = opts.Search
		o.Logger = opts.Logger
		if opts.MaxConcurrent > 0 {
			o.MaxConcurrent = opts.MaxConcurrent
		}
		if opts.ChildTimeout > 0 {
			o.ChildTimeout = opts.ChildTimeout
		}
		if opts.MaxIterations > 0 {
			o.MaxIterations = opts.MaxIterations
		}
	})

	sessions := session.NewManager(layers, router, cur, session.WithLogger(opts.Logger))

	return &Lorekeep{
		opts:     opts,
		layers:   layers,
		curator:  cur,
		router:   router,
		sessions: sessions,
	}
}

// WithStore overrides the memory store.
func WithStore(s memory.Store) func(o *Options) {
	return func(o *Options) { o.Store = s }
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

// WithCuratorConfig tunes curation thresholds.
func WithCuratorConfig(cfg curator.Config) func(o *Options) {
	return func(o *Options) { o.CuratorConfig = cfg }
}

// WithLogger sets the logger used by every component.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// FromConfig returns an option applying environment-derived settings: the
// Redis store when an address is configured, curation thresholds, dispatch
// bounds and the log level.
func FromConfig(cfg config.Config) (func(o *Options), error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store memory.Store
	if cfg.RedisAddr != "" {
		s, err := redisstore.New(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.InstanceName)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		store = s
	}

	logger := logging.NewSlogLogger(logging.ParseLogLevel(cfg.LogLevel), cfg.LogFormat, false)

	return func(o *Options) {
		if store != nil {
			o.Store = store
		}
		o.CuratorConfig = curator.Config{
			ConfidenceFloor:     cfg.ConfidenceFloor,
			AgreementTolerance:  cfg.AgreementTolerance,
			CorroborationWeight: cfg.CorroborationWeight,
			MaxCanonRetries:     o.CuratorConfig.MaxCanonRetries,
		}
		o.MaxConcurrent = cfg.MaxConcurrent
		o.ChildTimeout = cfg.ChildTimeout
		o.MaxIterations = cfg.MaxIterations
		o.Logger = logger
	}, nil
}

// Layers exposes the permission-guarded memory façade.
func (lk *Lorekeep) Layers() *memory.Layers { return lk.layers }

// Sessions exposes the session manager for step-by-step control.
func (lk *Lorekeep) Sessions() *session.Manager { return lk.sessions }

// TaskResult aggregates everything one task run produced.
type TaskResult struct {
	TaskID   string
	Output   string
	Tree     *dispatch.Result
	Curation curator.Report
}

// RunTask opens a session for the prompt, dispatches the root orchestrator,
// closes the session (running the curation pass) and returns the synthesized
// output with the dispatch tree and curation report. A failed root dispatch
// is reported in the result's tree; the session still closes cleanly.
func (lk *Lorekeep) RunTask(ctx context.Context, prompt string) (*TaskResult, error) {
	taskID := uuid.NewString()

	if _, err := lk.sessions.Open(ctx, taskID, prompt); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	tree, err := lk.sessions.Dispatch(ctx, taskID, prompt)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}

	summary, err := lk.sessions.Close(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}

	return &TaskResult{
		TaskID:   taskID,
		Output:   tree.Output,
		Tree:     tree,
		Curation: summary.Curation,
	}, nil
}
