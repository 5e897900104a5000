package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
)

const listFilesPlan = `[
  {"id": "1", "description": "List files", "command": "ls -la", "risk_level": "LOW"},
  {"id": "2", "description": "Show disk usage", "command": "df -h", "risk_level": "LOW"}
]`

func TestParsePlan(t *testing.T) {
	t.Run("plain array", func(t *testing.T) {
		plan, err := ParsePlan(listFilesPlan)

		require.NoError(t, err)
		require.Len(t, plan, 2)
		assert.Equal(t, "ls -la", plan[0].Command)
		assert.Equal(t, domain.StepPending, plan[0].Status, "missing status defaults to pending")
		assert.Equal(t, domain.RiskLow, plan[1].RiskLevel)
	})

	t.Run("markdown fences stripped", func(t *testing.T) {
		plan, err := ParsePlan("```json\n" + listFilesPlan + "\n```")

		require.NoError(t, err)
		assert.Len(t, plan, 2)
	})

	t.Run("empty array is a valid plan", func(t *testing.T) {
		plan, err := ParsePlan("[]")

		require.NoError(t, err)
		assert.Empty(t, plan)
	})

	errCases := []struct {
		name string
		raw  string
	}{
		{"empty completion", "   \n"},
		{"prose instead of JSON", "I cannot plan this."},
		{"object instead of array", `{"id": "1", "description": "x", "risk_level": "LOW"}`},
		{"unknown risk level", `[{"id": "1", "description": "x", "risk_level": "EXTREME"}]`},
		{"missing description", `[{"id": "1", "risk_level": "LOW"}]`},
		{"duplicate ids", `[{"id": "1", "description": "a", "risk_level": "LOW"}, {"id": "1", "description": "b", "risk_level": "LOW"}]`},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePlan(tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestPlanner_DraftNodeProducesUnvalidatedPlan(t *testing.T) {
	var prompt string
	planner := NewPlanner(completerStub(func(p string) (string, error) {
		prompt = p
		return listFilesPlan, nil
	}), logging.NewNop())

	state := domain.NewState()
	state.Messages = append(state.Messages, domain.UserMessage("list my files"))

	update, err := planner.DraftNode(context.Background(), state)

	require.NoError(t, err)
	assert.True(t, update.ReplacePlan)
	require.Len(t, update.Plan, 2)
	require.NotNil(t, update.UserValidated)
	assert.False(t, *update.UserValidated, "a drafted plan always needs approval")
	assert.Contains(t, prompt, "expert technical planner")
	assert.Contains(t, prompt, "list my files")
	assert.Contains(t, prompt, "Generate a plan for the above request.")
}

func TestPlanner_DraftNodeIncludesCachedFiles(t *testing.T) {
	var prompt string
	planner := NewPlanner(completerStub(func(p string) (string, error) {
		prompt = p
		return "[]", nil
	}), logging.NewNop())

	state := domain.NewState()
	state.Messages = append(state.Messages, domain.UserMessage("summarize the config"))
	state.FileContext = map[string]string{"app.yaml": "retries: 3"}

	_, err := planner.DraftNode(context.Background(), state)

	require.NoError(t, err)
	assert.Contains(t, prompt, "--- app.yaml ---")
	assert.Contains(t, prompt, "retries: 3")
}

func TestPlanner_DraftNodeFailuresYieldEmptyPlan(t *testing.T) {
	cases := []struct {
		name      string
		completer func(string) (string, error)
	}{
		{"completion error", func(string) (string, error) { return "", errors.New("model offline") }},
		{"unparseable completion", func(string) (string, error) { return "Sure! Here is a plan:", nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			planner := NewPlanner(completerStub(tc.completer), logging.NewNop())
			state := domain.NewState()
			state.Messages = append(state.Messages, domain.UserMessage("do something"))

			update, err := planner.DraftNode(context.Background(), state)

			require.NoError(t, err, "plan failures degrade, they do not abort the turn")
			assert.True(t, update.ReplacePlan)
			assert.Empty(t, update.Plan)
			require.NotNil(t, update.UserValidated)
			assert.False(t, *update.UserValidated)
			require.Len(t, update.AppendMessages, 1)
			assert.Contains(t, update.AppendMessages[0].Content, "Error generating plan:")

			next, err := domain.Apply(state.Clone(), update)
			require.NoError(t, err)
			assert.Equal(t, routeEnd, RouteAfterPlan(next), "an empty plan must not reach the approval gate")
		})
	}
}

func TestPlanner_RefineNodeSendsPlanAndFeedback(t *testing.T) {
	var prompt string
	planner := NewPlanner(completerStub(func(p string) (string, error) {
		prompt = p
		return `[{"id": "1", "description": "List files verbosely", "command": "ls -lah", "risk_level": "LOW"}]`, nil
	}), logging.NewNop())

	state := domain.NewState()
	state.Plan = []domain.PlanStep{{ID: "1", Description: "List files", Command: "ls", RiskLevel: domain.RiskLow, Status: domain.StepPending}}
	state.Messages = append(state.Messages, domain.UserMessage("use long listing format"))

	update, err := planner.RefineNode(context.Background(), state)

	require.NoError(t, err)
	assert.Contains(t, prompt, `"List files"`, "prompt carries the current plan as JSON")
	assert.Contains(t, prompt, "use long listing format")
	require.Len(t, update.Plan, 1)
	assert.Equal(t, "ls -lah", update.Plan[0].Command)
	require.NotNil(t, update.UserValidated)
	assert.False(t, *update.UserValidated)
}

func TestPlanner_RefineNodeFailureKeepsExistingPlan(t *testing.T) {
	planner := NewPlanner(completerStub(func(string) (string, error) {
		return "", errors.New("model offline")
	}), logging.NewNop())

	state := domain.NewState()
	state.Plan = []domain.PlanStep{{ID: "1", Description: "List files", Command: "ls", RiskLevel: domain.RiskLow, Status: domain.StepPending}}
	state.Messages = append(state.Messages, domain.UserMessage("make it verbose"))

	update, err := planner.RefineNode(context.Background(), state)

	require.NoError(t, err)
	assert.False(t, update.ReplacePlan, "failed refinement leaves the plan untouched")
	require.Len(t, update.AppendMessages, 1)
	assert.Contains(t, update.AppendMessages[0].Content, "Error refining plan:")

	next, err := domain.Apply(state.Clone(), update)
	require.NoError(t, err)
	require.Len(t, next.Plan, 1)
	assert.False(t, next.UserValidated)
}

func TestRouteAfterPlan(t *testing.T) {
	state := domain.NewState()
	assert.Equal(t, routeEnd, RouteAfterPlan(state))

	state.Plan = []domain.PlanStep{{ID: "1", Description: "x", RiskLevel: domain.RiskLow, Status: domain.StepPending}}
	assert.Equal(t, routeExecute, RouteAfterPlan(state))
}

func TestFormatFileContext_SortsPaths(t *testing.T) {
	text := formatFileContext(map[string]string{
		"b.txt": "two",
		"a.txt": "one",
	})

	require.True(t, strings.Index(text, "a.txt") < strings.Index(text, "b.txt"))
	assert.Contains(t, text, "--- a.txt ---\none")
}
