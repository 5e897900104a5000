package ports

import (
	"context"

	"github.com/aretw0/furrow/pkg/domain"
)

// Completer is the text-completion capability behind the router, planner,
// chat and researcher nodes. Implementations receive the prompt as an
// ordered message list and return the raw completion text.
//
// Callers must expect markdown code fences around structured payloads and
// strip them before parsing.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, messages []domain.Message) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	return f(ctx, messages)
}

// Searcher is the web-search capability. The result is a single formatted
// text block; an empty result set yields an explicit "no results" text, not
// an error. Errors are reserved for transport failures.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearcherFunc adapts a plain function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string) (string, error)

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}
