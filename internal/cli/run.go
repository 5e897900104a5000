package cli

import (
	"fmt"

	"github.com/aretw0/furrow/internal/config"
)

// DefaultThreadID names the conversation used when --thread is not given.
const DefaultThreadID = "default"

// RunOptions contains all the configuration for the Run command.
type RunOptions struct {
	ConfigPath string
	ThreadID   string
	Fresh      bool
	Debug      bool
	DryRun     bool

	// HTTPAddress, when set, serves the inspection API alongside the
	// interactive session.
	HTTPAddress string
}

// Execute handles the 'run' command logic: load and validate config, then
// enter the interactive session.
func Execute(opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if opts.ThreadID == "" {
		opts.ThreadID = DefaultThreadID
	}

	return RunSession(cfg, opts)
}
