package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/boshu2/gatekeeper/internal/config"
	"github.com/boshu2/gatekeeper/internal/engine"
	"github.com/boshu2/gatekeeper/internal/logging"
)

const (
	// secretEnv holds the signing secret when set. It wins over the secret file.
	secretEnv = "GATEKEEPER_SECRET"

	// defaultInvocationTimeout bounds a hook run when the config holds no valid duration.
	defaultInvocationTimeout = 5 * time.Second
)

// invocation is what one command run needs: the effective config, the
// logger and the engine over the opened store.
type invocation struct {
	cfg    *config.Config
	logger *slog.Logger
	engine *engine.Engine
	close  func() error
}

// loadConfig resolves the layered config with the command-line overrides.
// A rejected config still yields the built-in policy together with the
// error.
func loadConfig() (*config.Config, error) {
	return config.Load(&config.Config{Output: output, StateDir: stateDir, Verbose: verbose})
}

// openInvocation loads config, opens the log and the state store. A rejected
// config is reported on stderr and gating continues on the defaults.
func openInvocation(command string, stderr io.Writer) (*invocation, error) {
	cfg, cfgErr := loadConfig()
	logger, closeLog := logging.New(logging.Config{
		Dir:     cfg.StateDir,
		Verbose: cfg.Verbose,
		Stderr:  stderr,
		Attrs:   []slog.Attr{slog.String("command", command), slog.Int("pid", os.Getpid())},
	})
	if cfgErr != nil {
		logger.Warn("config rejected, using built-in policy", "error", cfgErr)
		fmt.Fprintf(stderr, "gatekeeper: config rejected, using built-in policy: %v\n", cfgErr)
	}

	store, err := engine.OpenStore(cfg, os.Getenv(secretEnv), logger)
	if err != nil {
		logger.Error("state unavailable", "state_dir", cfg.StateDir, "error", err)
		_ = closeLog()
		return nil, err
	}
	return &invocation{
		cfg:    cfg,
		logger: logger,
		engine: engine.New(cfg, store, engine.WithLogger(logger)),
		close:  closeLog,
	}, nil
}

// outputFormat returns the -o flag, or the configured default.
func outputFormat(cfg *config.Config) string {
	if output != "" {
		return output
	}
	if cfg != nil && cfg.Output != "" {
		return cfg.Output
	}
	return "table"
}
