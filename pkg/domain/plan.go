package domain

import "fmt"

// RiskLevel is a human-facing classification of a plan step's
// destructiveness. It is used for display and approval only; the sandbox
// denylist is the sole programmatic enforcement.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"      // read-only
	RiskMedium   RiskLevel = "MEDIUM"   // creates files
	RiskHigh     RiskLevel = "HIGH"     // modifies or deletes
	RiskCritical RiskLevel = "CRITICAL" // system-level changes
)

// Valid reports whether the risk level is one of the known values.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// StepStatus tracks a plan step through its lifecycle.
// Transitions are one-way: pending -> in_progress -> {done, failed}.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDone       StepStatus = "done"
	StepFailed     StepStatus = "failed"
)

// CanTransitionTo reports whether the status may move to next.
// A failed step is terminal and never re-enters the lifecycle.
func (s StepStatus) CanTransitionTo(next StepStatus) bool {
	switch s {
	case StepPending:
		return next == StepInProgress
	case StepInProgress:
		return next == StepDone || next == StepFailed
	}
	return false
}

// StepOutcome is the explicit result of the most recent executor visit,
// recorded in state so the failure edge never has to infer it from index
// arithmetic.
type StepOutcome string

const (
	OutcomeSuccess StepOutcome = "success"
	OutcomeFailure StepOutcome = "failure"
)

// PlanStep is one step of a drafted shell plan. Command is optional: an
// empty command marks a non-executable "thought" step that is skipped with
// a fixed output instead of being run.
type PlanStep struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Command     string     `json:"command,omitempty"`
	RiskLevel   RiskLevel  `json:"risk_level"`
	Status      StepStatus `json:"status"`
	Output      string     `json:"output,omitempty"`
}

// Validate checks the schema constraints a drafted step must satisfy.
func (p PlanStep) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan step missing id")
	}
	if !p.RiskLevel.Valid() {
		return fmt.Errorf("plan step %q: unknown risk level %q", p.ID, p.RiskLevel)
	}
	switch p.Status {
	case StepPending, StepInProgress, StepDone, StepFailed:
		return nil
	}
	return fmt.Errorf("plan step %q: unknown status %q", p.ID, p.Status)
}

// ClonePlan deep-copies a plan so callers never share step slices.
func ClonePlan(plan []PlanStep) []PlanStep {
	if plan == nil {
		return nil
	}
	out := make([]PlanStep, len(plan))
	copy(out, plan)
	return out
}
