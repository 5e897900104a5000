package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/furrow/pkg/domain"
)

// DryRunner satisfies ports.CommandRunner without spawning processes. Every
// command succeeds with an echo of what would have run. The denylist still
// applies, so a dry run stops exactly where a real run would.
type DryRunner struct{}

// NewDryRunner creates a runner for rehearsing plans.
func NewDryRunner() *DryRunner {
	return &DryRunner{}
}

// Run reports the command without executing it.
func (*DryRunner) Run(_ context.Context, command string, _ time.Duration) domain.CommandResult {
	if _, blocked := domain.BlockedCommand(command); blocked {
		return domain.CommandResult{
			ExitCode: domain.ExitBlocked,
			Stderr:   fmt.Sprintf("CRITICAL SECURITY: Command blocked by denylist: %s", command),
		}
	}
	return domain.CommandResult{
		ExitCode: 0,
		Stdout:   fmt.Sprintf("(dry run) %s", command),
	}
}
