// Package engine wires the state store, the check pipeline and the audit
// ledger into the operations gk exposes: the pre-action check, the
// post-action record pass, session start, operator overrides and status.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/metrics"
	"github.com/boshu2/gatekeeper/internal/pipeline"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// Engine evaluates and records agent actions against persisted state.
type Engine struct {
	cfg      *config.Config
	store    *state.Store
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithPipeline replaces the built-in guard pipeline.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(e *Engine) {
		if p != nil {
			e.pipeline = p
		}
	}
}

// New returns an engine over store. A nil cfg uses the defaults.
func New(cfg *config.Config, store *state.Store, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:    cfg,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = pipeline.Default(e.logger)
	}
	return e
}

// OpenStore loads the signing secret and opens the state store cfg points
// at. secretEnv is the value of GATEKEEPER_SECRET and wins over the file.
func OpenStore(cfg *config.Config, secretEnv string, logger *slog.Logger) (*state.Store, error) {
	secret, err := state.LoadSecret(secretEnv, cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("load secret: %w", err)
	}
	signer, err := state.NewSigner(secret)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	store, err := state.NewStore(cfg.StateDir, signer,
		state.WithLockTimeout(config.Duration(cfg.LockTimeout, state.DefaultLockTimeout)),
		state.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open state: %w", err)
	}
	return store, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the state store.
func (e *Engine) Store() *state.Store { return e.store }

// gateBinding ties a gate section to its configuration and the refusal
// counter its satisfaction clears.
type gateBinding struct {
	label   string
	section state.Section[progress.State]
	conf    config.GateConfig
	clears  refusal.BlockType
}

func (e *Engine) gates() []gateBinding {
	return []gateBinding{
		{"startup", sections.Startup, e.cfg.Gates.Startup, refusal.StartupIncomplete},
		{"verification", sections.Verification, e.cfg.Gates.Verification, refusal.VerificationIncomplete},
		{"research", sections.Research, e.cfg.Gates.Research, refusal.ResearchIncomplete},
	}
}

func (e *Engine) gate(label string) (gateBinding, bool) {
	for _, gb := range e.gates() {
		if gb.label == label || gb.section.Name == label {
			return gb, true
		}
	}
	return gateBinding{}, false
}

func (gb gateBinding) build(cfg *config.Config, st progress.State) *progress.Gate {
	return progress.New(gb.section.Name, gb.conf.Categories, cfg.Thresholds(gb.conf), st)
}

// exportMetrics writes the textfile when one is configured. Failures are
// logged only.
func (e *Engine) exportMetrics() {
	path := e.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	snap := metrics.Snapshot{
		Breaker:  state.Get(e.store, sections.Breaker),
		Refusal:  state.Get(e.store, sections.Refusal),
		Edits:    state.Get(e.store, sections.EditAttempts),
		Planning: state.Get(e.store, sections.Planning),
		Patterns: state.Get(e.store, sections.Patterns),
		Stats:    state.Get(e.store, sections.Stats),
	}
	for _, gb := range e.gates() {
		if !gb.conf.Enabled() {
			continue
		}
		snap.Gates = append(snap.Gates, metrics.Gate{
			Name:     gb.label,
			Required: gb.build(e.cfg, progress.Default()).Required(),
			State:    state.Get(e.store, gb.section),
		})
	}
	if err := metrics.WriteTextfile(path, snap); err != nil {
		e.logger.Warn("metrics export failed", "path", path, "error", err)
	}
}
