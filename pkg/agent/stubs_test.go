package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// completerStub dispatches on the flattened prompt text, so one stub can
// serve the different prompts a workflow sends in a single turn.
func completerStub(fn func(prompt string) (string, error)) ports.Completer {
	return ports.CompleterFunc(func(ctx context.Context, msgs []domain.Message) (string, error) {
		var b strings.Builder
		for _, m := range msgs {
			b.WriteString(m.Content)
			b.WriteString("\n")
		}
		return fn(b.String())
	})
}

// staticCompleter answers every prompt the same way.
func staticCompleter(text string) ports.Completer {
	return completerStub(func(string) (string, error) { return text, nil })
}

// runnerStub returns canned results keyed by command text and records every
// call, so tests can prove a command was or was not spawned.
type runnerStub struct {
	mu      sync.Mutex
	results map[string]domain.CommandResult
	calls   []string
}

func newRunnerStub() *runnerStub {
	return &runnerStub{results: make(map[string]domain.CommandResult)}
}

func (r *runnerStub) on(command string, res domain.CommandResult) *runnerStub {
	r.results[command] = res
	return r
}

func (r *runnerStub) Run(ctx context.Context, command string, timeout time.Duration) domain.CommandResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, command)
	if res, ok := r.results[command]; ok {
		return res
	}
	return domain.CommandResult{ExitCode: 0, Stdout: "ok"}
}

func (r *runnerStub) callCount(command string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == command {
			n++
		}
	}
	return n
}

func (r *runnerStub) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// searcherStub returns a fixed result (or error) and records queries.
type searcherStub struct {
	mu      sync.Mutex
	result  string
	err     error
	queries []string
}

func (s *searcherStub) Search(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return "", s.err
	}
	return s.result, nil
}

func (s *searcherStub) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

func intentStub(intent ports.Intent) ports.Classifier {
	return ports.ClassifierFunc(func(ctx context.Context, request string) (ports.Intent, error) {
		return intent, nil
	})
}
