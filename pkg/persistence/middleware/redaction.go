package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// redactedText replaces every pattern match in persisted text.
const redactedText = "[REDACTED]"

type redactionMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware masks pattern matches (tokens, emails, whatever the
// deployment considers sensitive) in all free text before a snapshot is
// persisted: message contents, step outputs, execution history and research
// results. The in-memory state the engine works with stays unredacted; the
// masking happens on Save, so nothing sensitive ever reaches the backend.
func NewRedactionMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redaction pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactionMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, threadID string, state *domain.State) error {
	masked := state.Clone()

	for i := range masked.Messages {
		masked.Messages[i].Content = m.mask(masked.Messages[i].Content)
	}
	for i := range masked.Plan {
		masked.Plan[i].Output = m.mask(masked.Plan[i].Output)
	}
	for i := range masked.ExecutionHistory {
		masked.ExecutionHistory[i].Output = m.mask(masked.ExecutionHistory[i].Output)
	}
	for i := range masked.ResearchOutputs {
		masked.ResearchOutputs[i].Result = m.mask(masked.ResearchOutputs[i].Result)
	}
	for path, content := range masked.FileContext {
		masked.FileContext[path] = m.mask(content)
	}

	return m.next.Save(ctx, threadID, masked)
}

func (m *redactionMiddleware) mask(text string) string {
	for _, re := range m.patterns {
		text = re.ReplaceAllString(text, redactedText)
	}
	return text
}

func (m *redactionMiddleware) Load(ctx context.Context, threadID string) (*domain.State, error) {
	return m.next.Load(ctx, threadID)
}

func (m *redactionMiddleware) PendingResume(ctx context.Context, threadID string) (string, error) {
	return m.next.PendingResume(ctx, threadID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
