package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_CloneIsDeep(t *testing.T) {
	s := NewState()
	s.Messages = []Message{UserMessage("hi")}
	s.Plan = []PlanStep{{ID: "1", Status: StepPending, RiskLevel: RiskLow}}
	s.FileContext = map[string]string{"a.txt": "content"}

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Plan[0].Status = StepDone
	c.FileContext["a.txt"] = "changed"

	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, StepPending, s.Plan[0].Status)
	assert.Equal(t, "content", s.FileContext["a.txt"])
}

func TestState_ResetTurnLocals(t *testing.T) {
	s := NewState()
	s.RouteTarget = "researcher"
	s.GradeSufficient = true
	s.SearchAttempts = 3
	s.LastOutcome = OutcomeFailure
	s.UserValidated = true
	s.AwaitingApproval = true

	s.ResetTurnLocals()

	assert.Empty(t, s.RouteTarget)
	assert.False(t, s.GradeSufficient)
	assert.Zero(t, s.SearchAttempts)
	assert.Empty(t, s.LastOutcome)

	// Durable fields are not turn-local.
	assert.True(t, s.UserValidated)
	assert.True(t, s.AwaitingApproval)
}

func TestState_MessageHelpers(t *testing.T) {
	s := NewState()

	_, ok := s.LastMessage()
	assert.False(t, ok)

	s.Messages = []Message{
		UserMessage("question"),
		AssistantMessage("answer"),
	}

	last, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, last.Role)

	user, ok := s.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, "question", user.Content)
}

func TestState_CurrentStep(t *testing.T) {
	s := NewState()
	s.Plan = []PlanStep{
		{ID: "1", Status: StepDone, RiskLevel: RiskLow},
		{ID: "2", Status: StepPending, RiskLevel: RiskLow},
	}

	s.CurrentStepIndex = 1
	step, ok := s.CurrentStep()
	require.True(t, ok)
	assert.Equal(t, "2", step.ID)
	assert.False(t, s.PlanExhausted())

	s.CurrentStepIndex = 2
	_, ok = s.CurrentStep()
	assert.False(t, ok)
	assert.True(t, s.PlanExhausted())
}
