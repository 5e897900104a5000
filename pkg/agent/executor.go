package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// DefaultCommandTimeout bounds one plan step's wall-clock time.
const DefaultCommandTimeout = 60 * time.Second

// Executor runs an approved plan one step at a time as a small state
// machine: parse the next step, guard it, run it, then loop or stop.
// Failure never advances the cursor and is never retried; control always
// returns to the human through the error handler.
type Executor struct {
	runner  ports.CommandRunner
	timeout time.Duration
	logger  *slog.Logger
}

// NewExecutor creates the execution nodes around a command runner.
func NewExecutor(runner ports.CommandRunner, timeout time.Duration, logger *slog.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{runner: runner, timeout: timeout, logger: logger}
}

// ParseStepNode marks the step under the cursor as in progress. With the
// cursor past the last step it changes nothing; the surrounding edge ends
// the run.
func (e *Executor) ParseStepNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	step, ok := state.CurrentStep()
	if !ok {
		return domain.Update{}, nil
	}
	step.Status = domain.StepInProgress
	return domain.Update{
		PatchSteps: []domain.StepPatch{{Index: state.CurrentStepIndex, Step: step}},
	}, nil
}

// GuardNode checks the step before the sandbox sees it: a command on the
// catastrophic denylist fails here and nothing is ever spawned for it.
// Approval is not its concern; the engine's interrupt gate is the only
// path that sets user_validated.
func (e *Executor) GuardNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	step, ok := state.CurrentStep()
	if !ok {
		return domain.Update{}, nil
	}

	pattern, blocked := domain.BlockedCommand(step.Command)
	if !blocked {
		return domain.Update{}, nil
	}

	e.logger.Warn("command blocked by denylist", "step", step.ID, "pattern", pattern)
	output := fmt.Sprintf("CRITICAL SECURITY: Command blocked by denylist: %s", step.Command)
	step.Status = domain.StepFailed
	step.Output = output
	command := step.Command
	outcome := domain.OutcomeFailure
	return domain.Update{
		PatchSteps: []domain.StepPatch{{Index: state.CurrentStepIndex, Step: step}},
		AppendHistory: []domain.ExecutionRecord{{
			StepID:   step.ID,
			Command:  &command,
			ExitCode: domain.ExitBlocked,
			Output:   output,
		}},
		LastOutcome: &outcome,
	}, nil
}

// RunStepNode executes the step under the cursor. A step with no command is
// completed with a fixed skip output. Success advances the cursor; failure
// leaves it in place and records the failure outcome for the routing edge.
func (e *Executor) RunStepNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	idx := state.CurrentStepIndex
	step, ok := state.CurrentStep()
	if !ok {
		return domain.Update{}, nil
	}

	if strings.TrimSpace(step.Command) == "" {
		step.Status = domain.StepDone
		step.Output = "(No command executed)"
		next := idx + 1
		outcome := domain.OutcomeSuccess
		return domain.Update{
			PatchSteps: []domain.StepPatch{{Index: idx, Step: step}},
			StepIndex:  &next,
			AppendHistory: []domain.ExecutionRecord{{
				StepID: step.ID, Command: nil, ExitCode: 0, Output: "Skipped (no command)",
			}},
			LastOutcome: &outcome,
		}, nil
	}

	started := time.Now()
	result := e.runner.Run(ctx, step.Command, e.timeout)
	output := result.CombinedOutput()
	command := step.Command
	record := domain.ExecutionRecord{
		StepID:   step.ID,
		Command:  &command,
		ExitCode: result.ExitCode,
		Output:   output,
	}

	if result.Success() {
		e.logger.Debug("step succeeded", "step", step.ID, "duration", time.Since(started))
		step.Status = domain.StepDone
		step.Output = output
		next := idx + 1
		outcome := domain.OutcomeSuccess
		return domain.Update{
			PatchSteps:    []domain.StepPatch{{Index: idx, Step: step}},
			StepIndex:     &next,
			AppendHistory: []domain.ExecutionRecord{record},
			LastOutcome:   &outcome,
		}, nil
	}

	e.logger.Warn("step failed", "step", step.ID, "exit_code", result.ExitCode)
	step.Status = domain.StepFailed
	step.Output = output
	outcome := domain.OutcomeFailure
	return domain.Update{
		PatchSteps:    []domain.StepPatch{{Index: idx, Step: step}},
		AppendHistory: []domain.ExecutionRecord{record},
		LastOutcome:   &outcome,
	}, nil
}

// ErrorNode records which step halted the run. The index is reported
// one-based; a failed step never advanced the cursor, so the cursor still
// names it.
func (e *Executor) ErrorNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	return domain.Update{AppendMessages: []domain.Message{
		domain.SystemMessage(fmt.Sprintf("Execution failed at step %d.", state.CurrentStepIndex+1)),
	}}, nil
}

// RouteAfterParse ends the run once the cursor has passed the last step.
func RouteAfterParse(state *domain.State) string {
	if state.PlanExhausted() {
		return routeEnd
	}
	return routeGuard
}

// RouteAfterGuard diverts blocked steps to the error handler. A failure
// outcome here can only have been set by the guard itself: an earlier step's
// failure already ended the run.
func RouteAfterGuard(state *domain.State) string {
	if state.LastOutcome == domain.OutcomeFailure {
		return routeBlocked
	}
	return routeRun
}

// RouteAfterRun loops back for the next step unless the runner reported an
// explicit failure outcome.
func RouteAfterRun(state *domain.State) string {
	if state.LastOutcome == domain.OutcomeFailure {
		return routeFailed
	}
	return routeNext
}
