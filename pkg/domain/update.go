package domain

import "fmt"

// StepPatch rewrites a single plan step addressed by index. Executor nodes
// mutate the plan exclusively through patches, never through aliased
// references into the slice.
type StepPatch struct {
	Index int
	Step  PlanStep
}

// Update is the partial state delta a node returns. Nil (or zero) fields
// mean "no change"; the merge rule per field is fixed:
//
//   - AppendMessages, AppendResearch, AppendHistory append, never replace.
//   - Plan replaces the whole plan when ReplacePlan is set (an empty
//     replacement is meaningful: it is how a failed parse clears the plan).
//   - PatchSteps rewrite individual steps of the existing plan by index.
//   - The pointer fields overwrite their scalar counterparts.
//   - CacheFiles merges into FileContext key by key, overwriting entries.
//
// The engine-owned pause fields (AwaitingApproval, ResumePoint) are absent
// on purpose: nodes cannot grant or clear approval.
type Update struct {
	AppendMessages []Message
	ReplacePlan    bool
	Plan           []PlanStep
	PatchSteps     []StepPatch
	StepIndex      *int
	AppendResearch []ResearchRecord
	AppendHistory  []ExecutionRecord
	UserValidated  *bool
	CacheFiles     map[string]string

	RouteTarget     *string
	GradeSufficient *bool
	SearchAttempts  *int
	LastOutcome     *StepOutcome
}

// IsZero reports whether the update changes nothing.
func (u Update) IsZero() bool {
	return len(u.AppendMessages) == 0 && !u.ReplacePlan && len(u.PatchSteps) == 0 &&
		u.StepIndex == nil && len(u.AppendResearch) == 0 && len(u.AppendHistory) == 0 &&
		u.UserValidated == nil && len(u.CacheFiles) == 0 && u.RouteTarget == nil &&
		u.GradeSufficient == nil && u.SearchAttempts == nil && u.LastOutcome == nil
}

// Apply merges an update into a snapshot and returns the resulting state.
// The input state is never mutated.
//
// Apply enforces the plan-cursor invariants: patches must address existing
// steps, the cursor must stay within [0, len(plan)], and the cursor may only
// move backward in the same update that replaces the plan.
func Apply(base *State, u Update) (*State, error) {
	next := base.Clone()

	next.Messages = append(next.Messages, u.AppendMessages...)

	if u.ReplacePlan {
		next.Plan = ClonePlan(u.Plan)
		if next.Plan == nil {
			next.Plan = []PlanStep{}
		}
	}

	for _, p := range u.PatchSteps {
		if p.Index < 0 || p.Index >= len(next.Plan) {
			return nil, fmt.Errorf("step patch index %d out of range (plan has %d steps)", p.Index, len(next.Plan))
		}
		next.Plan[p.Index] = p.Step
	}

	if u.StepIndex != nil {
		idx := *u.StepIndex
		if idx < 0 || idx > len(next.Plan) {
			return nil, fmt.Errorf("step index %d out of range (plan has %d steps)", idx, len(next.Plan))
		}
		if idx < base.CurrentStepIndex && !u.ReplacePlan {
			return nil, fmt.Errorf("step index may not move backward (%d -> %d) without a plan replacement", base.CurrentStepIndex, idx)
		}
		next.CurrentStepIndex = idx
	} else if u.ReplacePlan {
		// A replaced plan restarts the cursor unless the update pins it.
		next.CurrentStepIndex = 0
	}

	next.ResearchOutputs = append(next.ResearchOutputs, u.AppendResearch...)
	next.ExecutionHistory = append(next.ExecutionHistory, u.AppendHistory...)

	if u.UserValidated != nil {
		next.UserValidated = *u.UserValidated
	}

	if len(u.CacheFiles) > 0 {
		if next.FileContext == nil {
			next.FileContext = make(map[string]string, len(u.CacheFiles))
		}
		for k, v := range u.CacheFiles {
			next.FileContext[k] = v
		}
	}

	if u.RouteTarget != nil {
		next.RouteTarget = *u.RouteTarget
	}
	if u.GradeSufficient != nil {
		next.GradeSufficient = *u.GradeSufficient
	}
	if u.SearchAttempts != nil {
		next.SearchAttempts = *u.SearchAttempts
	}
	if u.LastOutcome != nil {
		next.LastOutcome = *u.LastOutcome
	}

	return next, nil
}
