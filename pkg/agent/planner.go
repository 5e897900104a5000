package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// Planner drafts step plans from the conversation and refines them from
// feedback. Both paths share one parse contract: strip markdown fences,
// decode a JSON array of steps, default missing statuses to pending. Parse
// and completion failures are never fatal, they become a diagnostic message
// and leave the thread with nothing to execute.
type Planner struct {
	completer ports.Completer
	logger    *slog.Logger
}

// NewPlanner creates the planning nodes around a completion service.
func NewPlanner(completer ports.Completer, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{completer: completer, logger: logger}
}

// DraftNode generates the initial plan for the newest request. Any cached
// file contents are offered to the prompt so the plan can reference them
// without re-reading.
func (p *Planner) DraftNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	prompt := make([]domain.Message, 0, len(state.Messages)+3)
	prompt = append(prompt, domain.SystemMessage(plannerPrompt))
	prompt = append(prompt, state.Messages...)
	if len(state.FileContext) > 0 {
		prompt = append(prompt, domain.SystemMessage(formatFileContext(state.FileContext)))
	}
	prompt = append(prompt, domain.UserMessage(draftInstruction))

	raw, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("plan draft failed", "err", err)
		return draftFailure(err), nil
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		p.logger.Warn("drafted plan did not parse", "err", err)
		return draftFailure(err), nil
	}

	p.logger.Debug("plan drafted", "steps", len(plan))
	valid := false
	return domain.Update{ReplacePlan: true, Plan: plan, UserValidated: &valid}, nil
}

// RefineNode redrafts the plan from the prior plan plus the latest human
// feedback. The result replaces the plan wholesale and requires a fresh
// approval.
func (p *Planner) RefineNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	planJSON, err := json.Marshal(state.Plan)
	if err != nil {
		return domain.Update{}, fmt.Errorf("encode current plan: %w", err)
	}
	feedback := ""
	if msg, ok := state.LastUserMessage(); ok {
		feedback = msg.Content
	}

	raw, err := p.completer.Complete(ctx, []domain.Message{
		domain.SystemMessage(plannerPrompt),
		domain.UserMessage(fmt.Sprintf(refinePromptFmt, planJSON, feedback)),
	})
	if err != nil {
		p.logger.Warn("plan refinement failed", "err", err)
		return refineFailure(err), nil
	}

	plan, err := ParsePlan(raw)
	if err != nil {
		p.logger.Warn("refined plan did not parse", "err", err)
		return refineFailure(err), nil
	}

	p.logger.Debug("plan refined", "steps", len(plan))
	valid := false
	return domain.Update{ReplacePlan: true, Plan: plan, UserValidated: &valid}, nil
}

func draftFailure(err error) domain.Update {
	valid := false
	return domain.Update{
		ReplacePlan:   true,
		Plan:          []domain.PlanStep{},
		UserValidated: &valid,
		AppendMessages: []domain.Message{
			domain.SystemMessage(fmt.Sprintf("Error generating plan: %v", err)),
		},
	}
}

// refineFailure keeps the existing plan so the user still sees what they
// rejected and can refine again or abandon it.
func refineFailure(err error) domain.Update {
	valid := false
	return domain.Update{
		UserValidated: &valid,
		AppendMessages: []domain.Message{
			domain.SystemMessage(fmt.Sprintf("Error refining plan: %v", err)),
		},
	}
}

// RouteAfterPlan sends a non-empty plan toward execution and ends the turn
// otherwise. An empty plan therefore never reaches the approval gate.
func RouteAfterPlan(state *domain.State) string {
	if len(state.Plan) == 0 {
		return routeEnd
	}
	return routeExecute
}

// ParsePlan decodes a completion into plan steps. Markdown code fences are
// stripped first; the payload must be a JSON array; missing statuses default
// to pending; ids must be unique and risk levels known.
func ParsePlan(raw string) ([]domain.PlanStep, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return nil, fmt.Errorf("empty completion")
	}

	var steps []domain.PlanStep
	if err := json.Unmarshal([]byte(cleaned), &steps); err != nil {
		return nil, fmt.Errorf("decode plan JSON: %w", err)
	}

	seen := make(map[string]bool, len(steps))
	for i := range steps {
		if steps[i].Status == "" {
			steps[i].Status = domain.StepPending
		}
		if err := steps[i].Validate(); err != nil {
			return nil, err
		}
		if seen[steps[i].ID] {
			return nil, fmt.Errorf("plan step id %q duplicated", steps[i].ID)
		}
		seen[steps[i].ID] = true
	}
	return steps, nil
}

func formatFileContext(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	b.WriteString("Cached file contents available for planning:\n")
	for _, path := range paths {
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", path, files[path])
	}
	return b.String()
}
