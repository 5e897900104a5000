package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/domain"
)

// RunSnapshotStoreContract exercises the behavior every SnapshotStore
// adapter must provide. Adapter tests call it with a factory returning a
// fresh, empty store; the factory runs once per subtest.
func RunSnapshotStoreContract(t *testing.T, newStore func(t *testing.T) SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("save and load roundtrip", func(t *testing.T) {
		store := newStore(t)
		state := contractState()

		require.NoError(t, store.Save(ctx, "thread-1", state))

		loaded, err := store.Load(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})

	t.Run("load unknown thread", func(t *testing.T) {
		store := newStore(t)

		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("save overwrites previous snapshot", func(t *testing.T) {
		store := newStore(t)
		first := contractState()
		require.NoError(t, store.Save(ctx, "thread-1", first))

		second := first.Clone()
		second.CurrentStepIndex = 1
		second.Plan[0].Status = domain.StepDone
		require.NoError(t, store.Save(ctx, "thread-1", second))

		loaded, err := store.Load(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, second, loaded)
	})

	t.Run("pending resume empty without pause", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "thread-1", contractState()))

		node, err := store.PendingResume(ctx, "thread-1")
		require.NoError(t, err)
		assert.Empty(t, node)
	})

	t.Run("pending resume reports paused node", func(t *testing.T) {
		store := newStore(t)
		state := contractState()
		state.AwaitingApproval = true
		state.ResumePoint = "executor"
		require.NoError(t, store.Save(ctx, "thread-1", state))

		node, err := store.PendingResume(ctx, "thread-1")
		require.NoError(t, err)
		assert.Equal(t, "executor", node)
	})

	t.Run("pending resume unknown thread", func(t *testing.T) {
		store := newStore(t)

		node, err := store.PendingResume(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, node)
	})

	t.Run("delete removes thread", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "thread-1", contractState()))

		require.NoError(t, store.Delete(ctx, "thread-1"))

		_, err := store.Load(ctx, "thread-1")
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(t)

		assert.NoError(t, store.Delete(ctx, "never-saved"))
	})

	t.Run("list reflects saved threads", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Save(ctx, "thread-a", contractState()))
		require.NoError(t, store.Save(ctx, "thread-b", contractState()))
		require.NoError(t, store.Delete(ctx, "thread-a"))

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "thread-b")
		assert.NotContains(t, ids, "thread-a")
	})
}

// contractState builds a snapshot touching every persisted field so the
// roundtrip subtests catch lossy serialization.
func contractState() *domain.State {
	cmd := "echo hello"
	state := domain.NewState()
	state.Messages = []domain.Message{
		domain.UserMessage("list the files"),
		domain.AssistantMessage("Plan drafted."),
	}
	state.Plan = []domain.PlanStep{
		{ID: "step-1", Description: "List files", Command: "ls -la", RiskLevel: domain.RiskLow, Status: domain.StepPending},
		{ID: "step-2", Description: "Review output", RiskLevel: domain.RiskLow, Status: domain.StepPending},
	}
	state.ResearchOutputs = []domain.ResearchRecord{
		{Query: "go atomic rename", Result: "Title: renameio\nSource: example.com\nContent: atomic writes\n"},
	}
	state.ExecutionHistory = []domain.ExecutionRecord{
		{StepID: "step-0", Command: &cmd, ExitCode: 0, Output: "hello"},
		{StepID: "step-0b", Command: nil, ExitCode: 0, Output: "Skipped (no command)"},
	}
	state.FileContext = map[string]string{"notes.txt": "remember the deadline"}
	state.UserValidated = true
	state.LastOutcome = domain.OutcomeSuccess
	return state
}
