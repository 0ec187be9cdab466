package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/boshu2/gatekeeper/internal/approval"
	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

// Snapshot is the read-only view guards evaluate against. It is captured
// once per invocation with lock-free verified reads.
type Snapshot struct {
	Now    time.Time
	Config *config.Config

	// Locations guarded by dangerous_path.
	StateDir      string
	SecretFile    string
	ProjectConfig string
	Home          string

	Research     progress.State
	Startup      progress.State
	Verification progress.State
	Breaker      breaker.State
	Edits        limiter.State
	Planning     limiter.Planning
	Refusal      refusal.State
	Approvals    approval.State
	History      sections.HistoryState
}

// Capture reads every section the guards need from s.
func Capture(s *state.Store, cfg *config.Config, now time.Time) *Snapshot {
	if cfg == nil {
		cfg = config.Default()
	}
	home, _ := os.UserHomeDir()
	return &Snapshot{
		Now:           now,
		Config:        cfg,
		StateDir:      absPath(s.Dir()),
		SecretFile:    absPath(cfg.SecretFile),
		ProjectConfig: absPath(config.ProjectConfigPath()),
		Home:          home,
		Research:      state.Get(s, sections.Research),
		Startup:       state.Get(s, sections.Startup),
		Verification:  state.Get(s, sections.Verification),
		Breaker:       state.Get(s, sections.Breaker),
		Edits:         state.Get(s, sections.EditAttempts),
		Planning:      state.Get(s, sections.Planning),
		Refusal:       state.Get(s, sections.Refusal),
		Approvals:     state.Get(s, sections.Approvals),
		History:       state.Get(s, sections.History),
	}
}

// Gate builds the named progress gate over the snapshot.
func (snap *Snapshot) Gate(name string) (*progress.Gate, config.GateConfig) {
	var gc config.GateConfig
	var st progress.State
	switch name {
	case sections.Research.Name:
		gc, st = snap.Config.Gates.Research, snap.Research
	case sections.Startup.Name:
		gc, st = snap.Config.Gates.Startup, snap.Startup
	case sections.Verification.Name:
		gc, st = snap.Config.Gates.Verification, snap.Verification
	}
	return progress.New(name, gc.Categories, snap.Config.Thresholds(gc), st), gc
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
