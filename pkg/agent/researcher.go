package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

const (
	// maxRawQueryLen is the longest user message used verbatim as a search
	// query; anything longer is condensed first.
	maxRawQueryLen = 100

	// maxSearchRetries bounds the research loop beyond its first search.
	maxSearchRetries = 2
)

// Researcher answers questions with a bounded search loop: search, grade
// the newest result, then either search again or draft the answer. The loop
// terminates regardless of grader output.
type Researcher struct {
	completer ports.Completer
	searcher  ports.Searcher
	logger    *slog.Logger
}

// NewResearcher creates the research nodes.
func NewResearcher(completer ports.Completer, searcher ports.Searcher, logger *slog.Logger) *Researcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Researcher{completer: completer, searcher: searcher, logger: logger}
}

// SearchNode derives a query from the newest user message and records the
// search result. Search failures become result text so the loop still
// grades and terminates instead of crashing the turn.
func (r *Researcher) SearchNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	query := ""
	if msg, ok := state.LastUserMessage(); ok {
		query = msg.Content
	}
	if len(query) > maxRawQueryLen {
		condensed, err := r.completer.Complete(ctx, []domain.Message{
			domain.UserMessage(fmt.Sprintf(condensePromptFmt, query)),
		})
		if err != nil {
			r.logger.Warn("query condensation failed, searching with the raw message", "err", err)
		} else if condensed = strings.TrimSpace(condensed); condensed != "" {
			query = condensed
		}
	}

	result, err := r.searcher.Search(ctx, query)
	if err != nil {
		r.logger.Warn("search failed", "err", err)
		result = fmt.Sprintf("Search failed: %v", err)
	}

	attempts := state.SearchAttempts + 1
	r.logger.Debug("search completed", "attempt", attempts, "query", query)
	return domain.Update{
		AppendResearch: []domain.ResearchRecord{{Query: query, Result: result}},
		SearchAttempts: &attempts,
	}, nil
}

// GradeNode asks whether the newest research result answers the request and
// records the binary verdict. Grading failures count as insufficient, which
// the loop bound still terminates.
func (r *Researcher) GradeNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	sufficient := false
	if n := len(state.ResearchOutputs); n > 0 {
		request := ""
		if msg, ok := state.LastUserMessage(); ok {
			request = msg.Content
		}
		verdict, err := r.completer.Complete(ctx, []domain.Message{
			domain.UserMessage(fmt.Sprintf(gradePromptFmt, request, state.ResearchOutputs[n-1].Result)),
		})
		if err != nil {
			r.logger.Warn("grading failed, treating result as insufficient", "err", err)
		} else {
			sufficient = strings.Contains(strings.ToUpper(verdict), "YES")
		}
	}
	return domain.Update{GradeSufficient: &sufficient}, nil
}

// DraftAnswerNode synthesizes the final answer from every accumulated
// research record.
func (r *Researcher) DraftAnswerNode(ctx context.Context, state *domain.State) (domain.Update, error) {
	blocks := make([]string, 0, len(state.ResearchOutputs))
	for _, rec := range state.ResearchOutputs {
		blocks = append(blocks, fmt.Sprintf("Query: %s\nResult: %s", rec.Query, rec.Result))
	}
	request := ""
	if msg, ok := state.LastUserMessage(); ok {
		request = msg.Content
	}

	answer, err := r.completer.Complete(ctx, []domain.Message{
		domain.UserMessage(fmt.Sprintf(draftAnswerPromptFmt, strings.Join(blocks, "\n\n"), request)),
	})
	if err != nil {
		return domain.Update{AppendMessages: []domain.Message{
			domain.SystemMessage(fmt.Sprintf("Error drafting answer: %v", err)),
		}}, nil
	}
	return domain.Update{AppendMessages: []domain.Message{
		domain.AssistantMessage(answer),
	}}, nil
}

// RouteAfterGrade ends the loop on an affirmative grade, or once the search
// budget (the first attempt plus maxSearchRetries) is spent.
func RouteAfterGrade(state *domain.State) string {
	if state.GradeSufficient {
		return routeDraft
	}
	if state.SearchAttempts > maxSearchRetries {
		return routeDraft
	}
	return routeSearchAgain
}
