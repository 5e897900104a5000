// Package sandbox executes plan-step commands through the system shell with
// a hard timeout and a catastrophic-command denylist. It is the production
// ports.CommandRunner: every refusal is encoded in the result's exit code,
// never in a Go error, so the execution workflow handles all outcomes the
// same way.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
)

// DefaultTimeout applies when the caller passes a non-positive timeout.
const DefaultTimeout = 60 * time.Second

// defaultWaitDelay bounds how long Run waits for output pipes after the
// process itself has exited, so a backgrounded grandchild holding the pipe
// open cannot stall the step.
const defaultWaitDelay = 2 * time.Second

// Observer is called after every run attempt, including blocked and failed
// launches. Bridges to metrics and lifecycle hooks hang off this.
type Observer func(command string, result domain.CommandResult, duration time.Duration)

// Runner shells out plan-step commands.
type Runner struct {
	shell     string
	shellFlag string
	workDir   string
	env       []string
	waitDelay time.Duration
	logger    *slog.Logger
	observer  Observer
}

// Option configures the runner.
type Option func(*Runner)

// WithShell overrides the shell binary and its command flag.
func WithShell(shell, flag string) Option {
	return func(r *Runner) {
		r.shell = shell
		r.shellFlag = flag
	}
}

// WithWorkDir sets the working directory commands run in.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.workDir = dir }
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) { r.env = append(r.env, env...) }
}

// WithObserver registers a callback for every run attempt.
func WithObserver(fn Observer) Option {
	return func(r *Runner) { r.observer = fn }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a shell runner. The default shell is /bin/sh -c, or
// cmd /C on Windows.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		shell:     "/bin/sh",
		shellFlag: "-c",
		waitDelay: defaultWaitDelay,
		logger:    logging.NewNop(),
	}
	if runtime.GOOS == "windows" {
		r.shell, r.shellFlag = "cmd", "/C"
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command through the shell and reports the outcome as a
// result, never as an error:
//
//   - denylisted commands are refused before anything is spawned, exit -1
//   - the timeout kills the process, exit 124, partial output preserved
//   - a failed launch reports exit -1 with the launch error as stderr
//   - otherwise the process's own exit code is reported
//
// Captured output always comes back as valid UTF-8; invalid bytes are
// replaced.
func (r *Runner) Run(ctx context.Context, command string, timeout time.Duration) domain.CommandResult {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if pattern, blocked := domain.BlockedCommand(command); blocked {
		r.logger.Warn("command blocked before spawn", "pattern", pattern)
		result := domain.CommandResult{
			ExitCode: domain.ExitBlocked,
			Stderr:   fmt.Sprintf("CRITICAL SECURITY: Command blocked by denylist: %s", command),
		}
		r.observe(command, result, 0)
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.shell, r.shellFlag, command)
	cmd.Dir = r.workDir
	if len(r.env) > 0 {
		cmd.Env = append(cmd.Environ(), r.env...)
	}
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	duration := time.Since(started)

	result := domain.CommandResult{
		Stdout: sanitize(stdout.String()),
		Stderr: sanitize(stderr.String()),
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.ExitCode = domain.ExitTimeout
		result.Stderr = strings.TrimSpace(fmt.Sprintf(
			"Command timed out after %ds. %s", int(timeout.Seconds()), result.Stderr))
		r.logger.Warn("command timed out", "timeout", timeout)
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// The process never ran: missing shell, canceled context, fork
		// failure.
		result.ExitCode = domain.ExitBlocked
		result.Stderr = fmt.Sprintf("Execution failed: %v", err)
		r.logger.Warn("command failed to launch", "err", err)
	}

	r.logger.Debug("command finished", "exit_code", result.ExitCode, "duration", duration)
	r.observe(command, result, duration)
	return result
}

func (r *Runner) observe(command string, result domain.CommandResult, duration time.Duration) {
	if r.observer != nil {
		r.observer(command, result, duration)
	}
}

func sanitize(s string) string {
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}
