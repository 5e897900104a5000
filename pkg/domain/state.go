package domain

// ResearchRecord is one (query, result) pair appended by the researcher.
type ResearchRecord struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}

// ExecutionRecord is one entry of the permanent command audit log.
// Command is nil for skipped "thought" steps that had nothing to run.
type ExecutionRecord struct {
	StepID   string  `json:"step_id,omitempty"`
	Command  *string `json:"command"`
	ExitCode int     `json:"exit_code"`
	Output   string  `json:"output"`
}

// State is the durable snapshot of one conversation thread. A single
// instance is threaded through every node of a turn and persisted after
// each node completes.
//
// Messages, ResearchOutputs and ExecutionHistory are append-only; Plan is
// replaced wholesale by planner nodes and patched by index by executor
// nodes; the remaining fields are plain overwrites. Apply enforces these
// rules.
type State struct {
	Messages         []Message         `json:"messages"`
	Plan             []PlanStep        `json:"plan"`
	CurrentStepIndex int               `json:"current_step_index"`
	ResearchOutputs  []ResearchRecord  `json:"research_outputs"`
	ExecutionHistory []ExecutionRecord `json:"execution_history"`
	UserValidated    bool              `json:"user_validated"`
	FileContext      map[string]string `json:"file_context,omitempty"`

	// AwaitingApproval and ResumePoint implement the durable pause: when the
	// engine suspends before a guarded node it records the node here and
	// refuses to advance past it until an explicit resume clears the flag.
	// ResumePoint outlives AwaitingApproval while the guarded node runs, so
	// a crash mid-plan still knows where execution was.
	AwaitingApproval bool   `json:"awaiting_approval,omitempty"`
	ResumePoint      string `json:"resume_point,omitempty"`

	// Turn-scoped routing fields, zeroed when a new turn begins.
	RouteTarget     string      `json:"route_target,omitempty"`
	GradeSufficient bool        `json:"grade_sufficient,omitempty"`
	SearchAttempts  int         `json:"search_attempts,omitempty"`
	LastOutcome     StepOutcome `json:"last_outcome,omitempty"`
}

// NewState creates the empty state a thread starts with.
func NewState() *State {
	return &State{
		Messages:         []Message{},
		Plan:             []PlanStep{},
		ResearchOutputs:  []ResearchRecord{},
		ExecutionHistory: []ExecutionRecord{},
		FileContext:      map[string]string{},
	}
}

// Clone deep-copies the state so snapshots and node inputs never alias the
// engine's working copy.
func (s *State) Clone() *State {
	out := *s
	out.Messages = append([]Message(nil), s.Messages...)
	out.Plan = ClonePlan(s.Plan)
	out.ResearchOutputs = append([]ResearchRecord(nil), s.ResearchOutputs...)
	out.ExecutionHistory = append([]ExecutionRecord(nil), s.ExecutionHistory...)
	if s.FileContext != nil {
		out.FileContext = make(map[string]string, len(s.FileContext))
		for k, v := range s.FileContext {
			out.FileContext[k] = v
		}
	}
	return &out
}

// ResetTurnLocals clears the turn-scoped routing fields. The engine calls
// this when a new turn begins; the fields survive pause/resume within a
// turn so a resumed executor still sees its routing context.
func (s *State) ResetTurnLocals() {
	s.RouteTarget = ""
	s.GradeSufficient = false
	s.SearchAttempts = 0
	s.LastOutcome = ""
}

// LastMessage returns the most recent message, if any.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the most recent human message, if any.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent agent reply, if any.
func (s *State) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// CurrentStep returns a copy of the step the cursor points at, if the
// cursor is inside the plan.
func (s *State) CurrentStep() (PlanStep, bool) {
	if s.CurrentStepIndex < 0 || s.CurrentStepIndex >= len(s.Plan) {
		return PlanStep{}, false
	}
	return s.Plan[s.CurrentStepIndex], true
}

// PlanExhausted reports whether the cursor has moved past the last step.
func (s *State) PlanExhausted() bool {
	return s.CurrentStepIndex >= len(s.Plan)
}
