package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/adapters/memory"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
	"github.com/aretw0/furrow/pkg/ports"
)

// newExecutionEngine compiles the execution state machine on its own so the
// tests can drive it directly, without the router or planner in front.
func newExecutionEngine(t *testing.T, runner ports.CommandRunner) (*graph.Engine, *memory.Store) {
	t.Helper()
	executor := NewExecutor(runner, time.Second, logging.NewNop())
	compiled, err := buildExecution(executor)
	require.NoError(t, err)
	store := memory.NewStore()
	eng, err := graph.NewEngine(compiled, store)
	require.NoError(t, err)
	return eng, store
}

func seedPlan(t *testing.T, store ports.SnapshotStore, threadID string, steps ...domain.PlanStep) {
	t.Helper()
	state := domain.NewState()
	state.Plan = steps
	require.NoError(t, store.Save(context.Background(), threadID, state))
}

func step(id, description, command string) domain.PlanStep {
	return domain.PlanStep{
		ID:          id,
		Description: description,
		Command:     command,
		RiskLevel:   domain.RiskLow,
		Status:      domain.StepPending,
	}
}

func TestExecutor_RunsPlanToCompletion(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub().
		on("ls -la", domain.CommandResult{ExitCode: 0, Stdout: "total 0"}).
		on("df -h", domain.CommandResult{ExitCode: 0, Stdout: "use% 12"})
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1", step("1", "List files", "ls -la"), step("2", "Disk usage", "df -h"))

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	assert.False(t, res.Paused)
	state := res.State
	require.Len(t, state.Plan, 2)
	assert.Equal(t, domain.StepDone, state.Plan[0].Status)
	assert.Equal(t, domain.StepDone, state.Plan[1].Status)
	assert.Equal(t, "total 0", state.Plan[0].Output)
	assert.Equal(t, 2, state.CurrentStepIndex, "cursor rests past the last step")
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, 0, state.ExecutionHistory[0].ExitCode)
	require.NotNil(t, state.ExecutionHistory[1].Command)
	assert.Equal(t, "df -h", *state.ExecutionHistory[1].Command)
	assert.Equal(t, 1, runner.callCount("ls -la"), "each step runs exactly once")
	assert.Equal(t, 1, runner.callCount("df -h"))
}

func TestExecutor_FailureHaltsWithoutAdvancing(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub().
		on("make build", domain.CommandResult{ExitCode: 0, Stdout: "built"}).
		on("make test", domain.CommandResult{ExitCode: 2, Stderr: "3 tests failed"})
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1",
		step("1", "Build", "make build"),
		step("2", "Test", "make test"),
		step("3", "Package", "make dist"))

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	state := res.State
	assert.Equal(t, domain.StepDone, state.Plan[0].Status)
	assert.Equal(t, domain.StepFailed, state.Plan[1].Status)
	assert.Equal(t, domain.StepPending, state.Plan[2].Status, "later steps are never touched")
	assert.Equal(t, 1, state.CurrentStepIndex, "cursor still names the failed step")
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, 2, state.ExecutionHistory[1].ExitCode)
	assert.Equal(t, 0, runner.callCount("make dist"), "failure stops the walk before later steps")
	assert.Equal(t, 1, runner.callCount("make test"), "a failed step is not retried")

	last, ok := state.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Execution failed at step 2.", last.Content)
	assert.Equal(t, domain.OutcomeFailure, state.LastOutcome)
}

func TestExecutor_TimeoutIsAFailureWithPartialOutput(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub().
		on("sleep 600", domain.CommandResult{
			ExitCode: domain.ExitTimeout,
			Stdout:   "partial progress",
			Stderr:   "Command timed out after 60s.",
		})
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1", step("1", "Fast", "true"), step("2", "Slow", "sleep 600"))

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	state := res.State
	assert.Equal(t, domain.StepDone, state.Plan[0].Status)
	assert.Equal(t, domain.StepFailed, state.Plan[1].Status)
	assert.Equal(t, 1, state.CurrentStepIndex)
	require.Len(t, state.ExecutionHistory, 2)
	assert.Equal(t, domain.ExitTimeout, state.ExecutionHistory[1].ExitCode)
	assert.Contains(t, state.ExecutionHistory[1].Output, "partial progress")
	assert.Contains(t, state.ExecutionHistory[1].Output, "timed out")
}

func TestExecutor_StepWithoutCommandIsSkipped(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub()
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1",
		step("1", "Review the approach", ""),
		step("2", "List files", "ls"))

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	state := res.State
	assert.Equal(t, domain.StepDone, state.Plan[0].Status)
	assert.Equal(t, "(No command executed)", state.Plan[0].Output)
	assert.Equal(t, domain.StepDone, state.Plan[1].Status)
	require.Len(t, state.ExecutionHistory, 2)
	assert.Nil(t, state.ExecutionHistory[0].Command)
	assert.Equal(t, "Skipped (no command)", state.ExecutionHistory[0].Output)
	assert.Equal(t, 0, state.ExecutionHistory[0].ExitCode)
	assert.Equal(t, 0, runner.callCount(""), "nothing is spawned for an empty command")
	assert.Equal(t, 1, runner.totalCalls())
}

func TestExecutor_DenylistedCommandNeverSpawns(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub()
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1", step("1", "Clean up", "sudo rm -rf / --no-preserve-root"))

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	state := res.State
	assert.Equal(t, 0, runner.totalCalls(), "the runner must never see a denylisted command")
	assert.Equal(t, domain.StepFailed, state.Plan[0].Status)
	assert.Contains(t, state.Plan[0].Output, "CRITICAL SECURITY: Command blocked by denylist:")
	assert.Equal(t, 0, state.CurrentStepIndex)
	require.Len(t, state.ExecutionHistory, 1)
	assert.Equal(t, domain.ExitBlocked, state.ExecutionHistory[0].ExitCode)

	last, ok := state.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "Execution failed at step 1.", last.Content)
}

func TestExecutor_EmptyPlanEndsImmediately(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub()
	eng, store := newExecutionEngine(t, runner)
	seedPlan(t, store, "t1")

	res, err := eng.RunTurn(ctx, "t1", "run the plan")

	require.NoError(t, err)
	assert.Equal(t, 0, runner.totalCalls())
	assert.Empty(t, res.State.ExecutionHistory)
	assert.Equal(t, 0, res.State.CurrentStepIndex)
}

// The cursor only ever moves forward, one step at a time, and stays within
// the plan bounds across an entire run.
func TestExecutor_CursorIsMonotonic(t *testing.T) {
	ctx := context.Background()
	runner := newRunnerStub().
		on("step-b", domain.CommandResult{ExitCode: 1, Stderr: "nope"})
	executor := NewExecutor(runner, time.Second, logging.NewNop())
	compiled, err := buildExecution(executor)
	require.NoError(t, err)
	store := memory.NewStore()

	var indices []int
	hooks := domain.LifecycleHooks{
		OnNodeLeave: func(ctx context.Context, ev *domain.NodeEvent) {
			st, err := store.Load(ctx, ev.ThreadID)
			require.NoError(t, err)
			indices = append(indices, st.CurrentStepIndex)
		},
	}
	eng, err := graph.NewEngine(compiled, store, graph.WithHooks(hooks))
	require.NoError(t, err)
	seedPlan(t, store, "t1", step("1", "a", "step-a"), step("2", "b", "step-b"), step("3", "c", "step-c"))

	_, err = eng.RunTurn(ctx, "t1", "run the plan")
	require.NoError(t, err)

	prev := 0
	for _, idx := range indices {
		assert.GreaterOrEqual(t, idx, prev, "cursor never moves backwards")
		assert.LessOrEqual(t, idx-prev, 1, "cursor advances at most one step per node")
		assert.LessOrEqual(t, idx, 3)
		prev = idx
	}
}
