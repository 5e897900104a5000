package ports

import (
	"context"
	"time"

	"github.com/aretw0/furrow/pkg/domain"
)

// CommandRunner executes a single shell command under guard rails and always
// returns a result, never an error: refused, failed-to-launch and timed-out
// commands are encoded in CommandResult.ExitCode so callers can record every
// attempt uniformly.
//
// Implementations must:
//   - refuse denylisted commands without spawning a process (ExitBlocked),
//   - kill commands that exceed the timeout and keep their partial output
//     (ExitTimeout),
//   - report launch failures as ExitBlocked with the cause on stderr,
//   - replace invalid UTF-8 in captured output rather than dropping it.
type CommandRunner interface {
	Run(ctx context.Context, command string, timeout time.Duration) domain.CommandResult
}

// CommandRunnerFunc adapts a plain function to the CommandRunner interface.
type CommandRunnerFunc func(ctx context.Context, command string, timeout time.Duration) domain.CommandResult

// Run implements CommandRunner.
func (f CommandRunnerFunc) Run(ctx context.Context, command string, timeout time.Duration) domain.CommandResult {
	return f(ctx, command, timeout)
}
