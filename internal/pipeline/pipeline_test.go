package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boshu2/gatekeeper/internal/breaker"
	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/hook"
	"github.com/boshu2/gatekeeper/internal/limiter"
	"github.com/boshu2/gatekeeper/internal/progress"
	"github.com/boshu2/gatekeeper/internal/refusal"
	"github.com/boshu2/gatekeeper/internal/sections"
	"github.com/boshu2/gatekeeper/internal/state"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *state.Store {
	t.Helper()
	signer, err := state.NewSigner([]byte("0123456789abcdef-pipeline-test"))
	require.NoError(t, err)
	st, err := state.NewStore(t.TempDir(), signer)
	require.NoError(t, err)
	return st
}

// testConfig disables the startup gate so tests exercise one gate at a time.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SecretFile = filepath.Join(t.TempDir(), "secret")
	cfg.Gates.Startup.Disabled = true
	return cfg
}

func edit(target string) hook.Action {
	return hook.Action{Tool: "Edit", Kind: hook.KindEdit, Target: target}
}

func shell(cmd string) hook.Action {
	return hook.Action{Tool: "Bash", Kind: hook.KindShell, Command: cmd}
}

// run evaluates a against fresh state and settles the surviving effects.
func run(t *testing.T, p *Pipeline, st *state.Store, cfg *config.Config, a hook.Action, now time.Time) Result {
	t.Helper()
	res := p.Evaluate(Capture(st, cfg, now), a)
	res, err := Settle(context.Background(), st, res, nil)
	require.NoError(t, err)
	return res
}

func allowGuard(name string, stage Stage) Func {
	return Func{GuardName: name, GuardStage: stage, Fn: func(*Snapshot, hook.Action) (Decision, error) {
		return Allow(), nil
	}}
}

func TestNew_SortsStablyByStage(t *testing.T) {
	p := New(nil,
		allowGuard("domain", StageDomain),
		allowGuard("safety1", StageSafety),
		allowGuard("limit", StageLimit),
		allowGuard("safety2", StageSafety),
		allowGuard("halt", StageHalt),
	)
	var names []string
	for _, g := range p.Guards() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{"safety1", "safety2", "halt", "limit", "domain"}, names)
}

func TestBuiltin_StageOrder(t *testing.T) {
	var names []string
	for _, g := range Default(nil).Guards() {
		names = append(names, g.Name())
	}
	assert.Equal(t, []string{
		"dangerous_path", "self_protection",
		"refusal_halt", "circuit_breaker",
		"startup_gate", "verification_gate",
		"research_gate", "plan_required",
		"sensitive_target", "edit_attempts",
		"pattern",
	}, names)
}

func TestEvaluate_EmptyResearchGateListsMissingInOrder(t *testing.T) {
	st := newStore(t)
	cfg := testConfig(t)

	res := run(t, Default(nil), st, cfg, edit("/work/repo/main.go"), t0)

	require.True(t, res.Decision.Blocked())
	assert.Equal(t, hook.ExitBlock, res.ExitCode())
	assert.Equal(t, "research_gate", res.Decision.Guard)
	assert.Equal(t, refusal.ResearchIncomplete, res.Decision.BlockType)
	assert.Equal(t, "research incomplete: missing docs, web, local, github", res.Decision.Reason)
	require.Len(t, res.Decision.Details, 4)
	for i, id := range []string{"docs", "web", "local", "github"} {
		assert.True(t, strings.HasPrefix(res.Decision.Details[i], id+":"), "detail %d = %q", i, res.Decision.Details[i])
	}
	assert.NotEmpty(t, res.Decision.Fix)

	diag := Diagnostic(res)
	assert.Contains(t, diag, "BLOCK by research_gate (research_incomplete)")
	assert.Contains(t, diag, "Reason: research incomplete: missing docs, web, local, github")
	assert.Contains(t, diag, "Fix: ")
}

func TestEvaluate_NonEditPassesGates(t *testing.T) {
	st := newStore(t)
	res := run(t, Default(nil), st, config.Default(), shell("git status"), t0)
	assert.Equal(t, VerdictAllow, res.Decision.Verdict)
	assert.Equal(t, hook.ExitAllow, res.ExitCode())
}

func TestEvaluate_StartupGateRunsBeforeResearch(t *testing.T) {
	st := newStore(t)
	cfg := config.Default()
	cfg.SecretFile = filepath.Join(t.TempDir(), "secret")

	res := run(t, Default(nil), st, cfg, edit("/work/repo/main.go"), t0)
	require.True(t, res.Decision.Blocked())
	assert.Equal(t, "startup_gate", res.Decision.Guard)
	assert.Equal(t, "startup incomplete: missing git_status, project_context", res.Decision.Reason)
}

func completeResearch(t *testing.T, st *state.Store, spacing time.Duration) {
	t.Helper()
	evidence := strings.Repeat("relevant documentation and search output ", 3)
	_, err := state.Update(context.Background(), st, sections.Research, func(s *progress.State) error {
		for i, id := range []string{"docs", "web", "local", "github"} {
			at := t0.Add(time.Duration(i) * spacing)
			s.Categories[id] = progress.CategoryState{CompletedAt: &at, Evidence: evidence, Attempts: 1}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestEvaluate_SatisfiedResearchAllowsEdit(t *testing.T) {
	st := newStore(t)
	completeResearch(t, st, 20*time.Second)

	res := run(t, Default(nil), st, testConfig(t), edit("/work/repo/main.go"), t0.Add(time.Hour))
	assert.Equal(t, VerdictAllow, res.Decision.Verdict)
	assert.Equal(t, 1, state.Get(st, sections.EditAttempts).Count)
}

func TestEvaluate_GamingIsAHardBlock(t *testing.T) {
	st := newStore(t)
	completeResearch(t, st, 2*time.Second)

	res := run(t, Default(nil), st, testConfig(t), edit("/work/repo/main.go"), t0.Add(time.Hour))
	require.True(t, res.Decision.Blocked())
	assert.Equal(t, refusal.GamingDetected, res.Decision.BlockType)
	assert.Contains(t, res.Decision.Reason, string(progress.PatternRapidCompletion))

	patterns := state.Get(st, sections.Patterns)
	assert.Equal(t, 1, patterns.Counts[string(progress.PatternRapidCompletion)])
	assert.Empty(t, state.Get(st, sections.Research).Categories, "gamed gate should be reset")
	assert.Equal(t, 0, state.Get(st, sections.EditAttempts).Count, "blocked edit must not be counted")
}

func TestEvaluate_ThirdEditForcesReplan(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	cfg := testConfig(t)
	cfg.Gates.Research.Disabled = true

	_, err := state.Update(ctx, st, sections.Planning, func(p *limiter.Planning) error {
		p.Approve("alice", t0)
		return nil
	})
	require.NoError(t, err)
	_, err = state.Update(ctx, st, sections.Research, func(s *progress.State) error {
		at := t0
		s.Categories["docs"] = progress.CategoryState{CompletedAt: &at, Evidence: "x", Attempts: 1}
		return nil
	})
	require.NoError(t, err)

	p := Default(nil)
	first := run(t, p, st, cfg, edit("/work/repo/a.go"), t0)
	assert.Equal(t, VerdictAllow, first.Decision.Verdict)

	second := run(t, p, st, cfg, edit("/work/repo/a.go"), t0.Add(time.Minute))
	assert.Equal(t, VerdictWarn, second.Decision.Verdict)
	assert.Equal(t, hook.ExitWarn, second.ExitCode())
	assert.Equal(t, 2, state.Get(st, sections.EditAttempts).Count)

	third := run(t, p, st, cfg, edit("/work/repo/a.go"), t0.Add(2*time.Minute))
	require.True(t, third.Decision.Blocked())
	assert.Equal(t, refusal.EditLimit, third.Decision.BlockType)

	planning := state.Get(st, sections.Planning)
	assert.False(t, planning.PlanApproved)
	assert.Equal(t, 1, planning.ReplanCount)
	assert.Empty(t, state.Get(st, sections.Research).Categories)
	assert.Equal(t, 0, state.Get(st, sections.EditAttempts).Count)
}

func TestEvaluate_SensitiveTargetBlocksOnce(t *testing.T) {
	st := newStore(t)
	cfg := testConfig(t)
	cfg.Gates.Research.Disabled = true
	p := Default(nil)

	first := run(t, p, st, cfg, edit("/work/repo/Makefile"), t0)
	require.True(t, first.Decision.Blocked())
	assert.Equal(t, refusal.SensitiveTarget, first.Decision.BlockType)

	retry := run(t, p, st, cfg, edit("/work/repo/Makefile"), t0.Add(time.Second))
	assert.False(t, retry.Decision.Blocked())
	approvals := state.Get(st, sections.Approvals)
	assert.Contains(t, approvals.Consumed, "/work/repo/Makefile")
	assert.NotContains(t, approvals.Pending, "/work/repo/Makefile")

	other := run(t, p, st, cfg, edit("/work/repo/.github/workflows/ci.yml"), t0.Add(2*time.Second))
	require.True(t, other.Decision.Blocked())
	assert.Equal(t, refusal.SensitiveTarget, other.Decision.BlockType)

	again := run(t, p, st, cfg, edit("/work/repo/Makefile"), t0.Add(3*time.Second))
	assert.True(t, again.Decision.Blocked(), "a consumed token does not carry over")
}

func TestSettle_OverlappingRetriesSpendTokenOnce(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	cfg := testConfig(t)
	cfg.Gates.Research.Disabled = true
	p := Default(nil)

	first := run(t, p, st, cfg, edit("/work/repo/Makefile"), t0)
	require.True(t, first.Decision.Blocked())

	// Both retries evaluate before either commits.
	a := p.Evaluate(Capture(st, cfg, t0.Add(time.Second)), edit("/work/repo/Makefile"))
	b := p.Evaluate(Capture(st, cfg, t0.Add(time.Second)), edit("/work/repo/Makefile"))
	require.False(t, a.Decision.Blocked())
	require.False(t, b.Decision.Blocked())

	a, err := Settle(ctx, st, a, nil)
	require.NoError(t, err)
	b, err = Settle(ctx, st, b, nil)
	require.NoError(t, err)

	assert.False(t, a.Decision.Blocked())
	require.True(t, b.Decision.Blocked(), "the token can only be spent once")
	assert.Equal(t, refusal.SensitiveTarget, b.Decision.BlockType)
	assert.Equal(t, "sensitive_target", b.Decision.Guard)
	assert.Equal(t, 1, state.Get(st, sections.EditAttempts).Count, "the losing edit is not counted")
	assert.Contains(t, state.Get(st, sections.Approvals).Pending, "/work/repo/Makefile",
		"the losing edit is a first touch again")
}

func TestSettle_OverlappingEditsCannotPassTheLimit(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	cfg := testConfig(t)
	cfg.Gates.Research.Disabled = true
	p := Default(nil)

	first := run(t, p, st, cfg, edit("/work/repo/a.go"), t0)
	require.Equal(t, VerdictAllow, first.Decision.Verdict)

	a := p.Evaluate(Capture(st, cfg, t0.Add(time.Minute)), edit("/work/repo/a.go"))
	b := p.Evaluate(Capture(st, cfg, t0.Add(time.Minute)), edit("/work/repo/b.go"))
	require.Equal(t, VerdictWarn, a.Decision.Verdict)
	require.Equal(t, VerdictWarn, b.Decision.Verdict)

	a, err := Settle(ctx, st, a, nil)
	require.NoError(t, err)
	b, err = Settle(ctx, st, b, nil)
	require.NoError(t, err)

	assert.Equal(t, VerdictWarn, a.Decision.Verdict)
	require.True(t, b.Decision.Blocked())
	assert.Equal(t, refusal.EditLimit, b.Decision.BlockType)
	assert.Equal(t, "edit_attempts", b.Decision.Guard)
	assert.Contains(t, b.Decision.Reason, "edit 3 of 3")
	assert.Equal(t, hook.ExitBlock, b.ExitCode())

	assert.Equal(t, 0, state.Get(st, sections.EditAttempts).Count)
	assert.Equal(t, 1, state.Get(st, sections.Planning).ReplanCount)
}

func TestSettle_OtherClaimErrorsKeepTheDecision(t *testing.T) {
	st := newStore(t)
	var ran []string
	res := Result{
		Decision: Allow(),
		Effects: []Effect{
			{Name: "plain", Apply: func(context.Context, *state.Store) error { ran = append(ran, "plain"); return nil }},
			{
				Name:   "claim",
				Apply:  func(context.Context, *state.Store) error { ran = append(ran, "claim"); return errors.New("disk full") },
				OnLost: func() Decision { return Block(refusal.EditLimit, "lost", "retry") },
			},
		},
	}
	got, err := Settle(context.Background(), st, res, nil)
	require.Error(t, err)
	assert.Equal(t, VerdictAllow, got.Decision.Verdict)
	assert.Equal(t, []string{"claim", "plain"}, ran, "claims run before plain effects")
}

func TestEvaluate_BreakerAllowsBootstrapOnly(t *testing.T) {
	st := newStore(t)
	_, err := state.Update(context.Background(), st, sections.Breaker, func(b *breaker.State) error {
		for i := 0; i < 3; i++ {
			b.RecordFailure("bash: foo: command not found", t0, 3)
		}
		return nil
	})
	require.NoError(t, err)
	cfg := testConfig(t)
	p := Default(nil)

	read := run(t, p, st, cfg, hook.Action{Tool: "Read", Kind: hook.KindRead, Target: "/work/repo/main.go"}, t0)
	assert.False(t, read.Decision.Blocked())

	cmd := run(t, p, st, cfg, shell("ls"), t0)
	require.True(t, cmd.Decision.Blocked())
	assert.Equal(t, refusal.BreakerTripped, cmd.Decision.BlockType)
	assert.Contains(t, cmd.Decision.Reason, "3 consecutive failures")
	assert.Contains(t, cmd.Decision.Fix, "gk reset breaker")
}

func TestEvaluate_HaltBlocksEverything(t *testing.T) {
	st := newStore(t)
	_, err := state.Update(context.Background(), st, sections.Refusal, func(r *refusal.State) error {
		for i := 0; i < 3; i++ {
			r.Escalate(refusal.ResearchIncomplete, "Edit", t0, 3)
		}
		return nil
	})
	require.NoError(t, err)

	res := run(t, Default(nil), st, testConfig(t), hook.Action{Tool: "Read", Kind: hook.KindRead, Target: "/work/a"}, t0)
	require.True(t, res.Decision.Blocked())
	assert.Equal(t, refusal.RefusalHalt, res.Decision.BlockType)
	assert.Contains(t, res.Decision.Fix, "gk unblock")
}

func TestEvaluate_PlanRequired(t *testing.T) {
	st := newStore(t)
	cfg := testConfig(t)
	cfg.Gates.Research.Disabled = true
	cfg.Plan.Required = true
	p := Default(nil)

	res := run(t, p, st, cfg, edit("/work/repo/main.go"), t0)
	require.True(t, res.Decision.Blocked())
	assert.Equal(t, refusal.PlanRequired, res.Decision.BlockType)

	_, err := state.Update(context.Background(), st, sections.Planning, func(pl *limiter.Planning) error {
		pl.Approve("alice", t0)
		return nil
	})
	require.NoError(t, err)
	res = run(t, p, st, cfg, edit("/work/repo/main.go"), t0)
	assert.False(t, res.Decision.Blocked())
}

func TestEvaluate_ErrorPolicy(t *testing.T) {
	failing := func(sev Severity, panics bool) Func {
		return Func{GuardName: "flaky", GuardStage: StageSafety, GuardSeverity: sev,
			Fn: func(*Snapshot, hook.Action) (Decision, error) {
				if panics {
					panic("nil map")
				}
				return Decision{}, errors.New("state unreadable")
			}}
	}
	tests := []struct {
		name    string
		guard   Func
		blocked bool
		reason  string
	}{
		{"high error fails closed", failing(SeverityHigh, false), true, "state unreadable"},
		{"high panic fails closed", failing(SeverityHigh, true), true, "guard panicked"},
		{"low error fails open", failing(SeverityLow, false), false, ""},
		{"low panic fails open", failing(SeverityLow, true), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(nil, tt.guard, allowGuard("after", StageDomain))
			res := p.Evaluate(&Snapshot{Config: config.Default()}, shell("ls"))
			assert.Equal(t, tt.blocked, res.Decision.Blocked())
			if tt.blocked {
				assert.Equal(t, refusal.GuardFailure, res.Decision.BlockType)
				assert.Equal(t, "flaky", res.Decision.Guard)
				assert.Contains(t, res.Decision.Reason, tt.reason)
				assert.NotEmpty(t, res.Decision.Fix)
				assert.Equal(t, []string{"flaky"}, res.Evaluated)
			} else {
				assert.Equal(t, []string{"flaky", "after"}, res.Evaluated)
			}
		})
	}
}

func effectGuard(name string, stage Stage, d Decision) Func {
	d.Effects = append(d.Effects, Effect{Name: name})
	return Func{GuardName: name, GuardStage: stage, Fn: func(*Snapshot, hook.Action) (Decision, error) {
		return d, nil
	}}
}

func effectNames(effects []Effect) []string {
	var names []string
	for _, e := range effects {
		names = append(names, e.Name)
	}
	return names
}

func TestEvaluate_EffectSurvival(t *testing.T) {
	snap := &Snapshot{Config: config.Default()}

	p := New(nil,
		effectGuard("a", StageSafety, Allow()),
		effectGuard("b", StageProgress, Warn("careful", "check it")),
	)
	res := p.Evaluate(snap, shell("ls"))
	assert.Equal(t, VerdictWarn, res.Decision.Verdict)
	assert.Equal(t, "b", res.Decision.Guard)
	assert.Equal(t, []string{"a", "b"}, effectNames(res.Effects))
	assert.Contains(t, Diagnostic(res), "WARN by b")

	p = New(nil,
		effectGuard("a", StageSafety, Allow()),
		effectGuard("b", StageProgress, Warn("careful", "check it")),
		effectGuard("c", StageLimit, Block(refusal.EditLimit, "stop", "")),
		effectGuard("d", StageDomain, Allow()),
	)
	res = p.Evaluate(snap, shell("ls"))
	require.True(t, res.Decision.Blocked())
	assert.Equal(t, []string{"c"}, effectNames(res.Effects))
	assert.Equal(t, fallbackFix, res.Decision.Fix)
	assert.Equal(t, []string{"a", "b", "c"}, res.Evaluated)
}

func TestCommit_RunsEveryEffect(t *testing.T) {
	st := newStore(t)
	var ran []string
	effects := []Effect{
		{Name: "one", Apply: func(context.Context, *state.Store) error { ran = append(ran, "one"); return errors.New("disk full") }},
		{Name: "noop"},
		{Name: "two", Apply: func(context.Context, *state.Store) error { ran = append(ran, "two"); return nil }},
	}
	err := Commit(context.Background(), st, effects, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one: disk full")
	assert.Equal(t, []string{"one", "two"}, ran)
}

func TestDangerousPath(t *testing.T) {
	snap := &Snapshot{
		Config:        config.Default(),
		StateDir:      "/work/.gatekeeper/state",
		SecretFile:    "/home/u/.config/gatekeeper/secret",
		ProjectConfig: "/work/.gatekeeper/config.yaml",
		Home:          "/home/u",
	}
	read := func(p string) hook.Action { return hook.Action{Tool: "Read", Kind: hook.KindRead, Target: p} }

	tests := []struct {
		name    string
		action  hook.Action
		blocked bool
	}{
		{"edit system file", edit("/etc/hosts"), true},
		{"read system file", read("/etc/hosts"), false},
		{"read ssh key", read("/home/u/.ssh/id_rsa"), true},
		{"read pem anywhere", read("/work/certs/server.pem"), true},
		{"read netrc", read("/home/u/.netrc"), true},
		{"edit state", edit("/work/.gatekeeper/state/research.json"), true},
		{"read state", read("/work/.gatekeeper/state/research.json"), true},
		{"read secret", read("/home/u/.config/gatekeeper/secret"), true},
		{"edit policy", edit("/work/.gatekeeper/config.yaml"), true},
		{"read policy", read("/work/.gatekeeper/config.yaml"), false},
		{"edit project file", edit("/work/main.go"), false},
		{"rm root", shell("rm -rf /"), true},
		{"rm home", shell("rm -rf ~"), true},
		{"rm build dir", shell("rm -rf ./build"), false},
		{"dd to disk", shell("dd if=img of=/dev/sda bs=4M"), true},
		{"cat aws creds", shell("cat ~/.aws/credentials"), true},
		{"cat state by abs path", shell("cat /work/.gatekeeper/state/research.json"), true},
		{"ls state by rel path", shell("ls .gatekeeper/state"), true},
		{"go test", shell("go test ./..."), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := checkDangerousPath(snap, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.blocked, d.Blocked(), d.Reason)
			if tt.blocked {
				assert.Equal(t, refusal.DangerousPath, d.BlockType)
				assert.NotEmpty(t, d.Fix)
			}
		})
	}
}

func TestDangerousPath_ConfiguredPaths(t *testing.T) {
	cfg := config.Default()
	cfg.Dangerous.Paths = []string{"~/prod-secrets"}
	snap := &Snapshot{Config: cfg, Home: "/home/u"}

	d, err := checkDangerousPath(snap, hook.Action{Kind: hook.KindRead, Target: "/home/u/prod-secrets/db.env"})
	require.NoError(t, err)
	assert.True(t, d.Blocked())
}

func TestSelfProtection(t *testing.T) {
	g := SelfProtection()
	tests := []struct {
		cmd     string
		blocked bool
	}{
		{"gk reset breaker", true},
		{"cd /tmp && gk unblock", true},
		{"/usr/local/bin/gk skip research docs", true},
		{"gk approve-plan", true},
		{"gk session start", true},
		{"GATEKEEPER_STATE_DIR=/tmp/x gk check", true},
		{"export GATEKEEPER_PLAN_REQUIRED=false", true},
		{"gk status", false},
		{"mygk reset", false},
		{"echo hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			d, err := g.Check(&Snapshot{}, shell(tt.cmd))
			require.NoError(t, err)
			assert.Equal(t, tt.blocked, d.Blocked())
			if tt.blocked {
				assert.Equal(t, refusal.SelfProtection, d.BlockType)
			}
		})
	}
}

func TestPatterns(t *testing.T) {
	g := Patterns()
	snap := &Snapshot{Config: config.Default()}

	d, err := g.Check(snap, shell("git push --force origin main"))
	require.NoError(t, err)
	require.True(t, d.Blocked())
	assert.Equal(t, refusal.PatternRule, d.BlockType)
	assert.Contains(t, d.Reason, "force_push")

	d, err = g.Check(snap, shell("sudo apt-get install jq"))
	require.NoError(t, err)
	assert.Equal(t, VerdictWarn, d.Verdict)

	d, err = g.Check(snap, shell("git push origin main"))
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, d.Verdict)

	// Shell rules ignore edits.
	d, err = g.Check(snap, hook.Action{Kind: hook.KindEdit, Target: "/work/sudo ", Text: "git push --force"})
	require.NoError(t, err)
	assert.Equal(t, VerdictAllow, d.Verdict)
}

func TestPatterns_InvalidRuleFailsOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Rules = []config.Rule{{Name: "bad", Match: "(", Reason: "x"}}
	snap := &Snapshot{Config: cfg}

	_, err := Patterns().Check(snap, shell("ls"))
	require.ErrorIs(t, err, ErrInvalidRule)

	res := New(nil, Patterns()).Evaluate(snap, shell("ls"))
	assert.Equal(t, VerdictAllow, res.Decision.Verdict)
}
