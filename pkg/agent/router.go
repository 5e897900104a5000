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

// Router classifies the newest user request and records which sub-workflow
// handles it. Routing is fail-safe: anything unrecognized, including a
// classifier transport failure, goes to chat and never to execution.
type Router struct {
	classifier ports.Classifier
	logger     *slog.Logger
}

// NewRouter creates the routing node around a classifier.
func NewRouter(classifier ports.Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{classifier: classifier, logger: logger}
}

// Node implements the router step.
func (r *Router) Node(ctx context.Context, state *domain.State) (domain.Update, error) {
	target := NodeChat
	if msg, ok := state.LastUserMessage(); ok {
		intent, err := r.classifier.Classify(ctx, msg.Content)
		switch {
		case err != nil:
			r.logger.Warn("classification failed, routing to chat", "err", err)
		case intent == ports.IntentExecute:
			target = NodePlanner
		case intent == ports.IntentResearch:
			target = NodeResearcher
		}
	}
	r.logger.Debug("request routed", "target", target)
	return domain.Update{RouteTarget: &target}, nil
}

// RouteByTarget is the conditional edge after the router.
func RouteByTarget(state *domain.State) string {
	if state.RouteTarget == "" {
		return NodeChat
	}
	return state.RouteTarget
}

// PromptClassifier implements ports.Classifier over the completion service,
// mapping its free-text answer onto the intent enum by substring so prose
// around the category name still classifies.
type PromptClassifier struct {
	completer ports.Completer
}

// NewPromptClassifier creates the default completion-backed classifier.
func NewPromptClassifier(completer ports.Completer) *PromptClassifier {
	return &PromptClassifier{completer: completer}
}

// Classify implements ports.Classifier.
func (p *PromptClassifier) Classify(ctx context.Context, request string) (ports.Intent, error) {
	raw, err := p.completer.Complete(ctx, []domain.Message{
		domain.UserMessage(fmt.Sprintf(classifyPromptFmt, request)),
	})
	if err != nil {
		return ports.IntentChat, fmt.Errorf("classify request: %w", err)
	}

	category := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(category, string(ports.IntentExecute)):
		return ports.IntentExecute, nil
	case strings.Contains(category, string(ports.IntentResearch)):
		return ports.IntentResearch, nil
	default:
		return ports.IntentChat, nil
	}
}
