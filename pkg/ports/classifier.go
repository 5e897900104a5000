package ports

import "context"

// Intent is the routing category assigned to an incoming user request.
type Intent string

const (
	// IntentChat answers directly from conversation context.
	IntentChat Intent = "CHAT"
	// IntentResearch gathers external information before answering.
	IntentResearch Intent = "RESEARCH"
	// IntentExecute drafts a step plan of shell commands.
	IntentExecute Intent = "EXECUTE"
)

// Valid reports whether the intent is one of the three known categories.
func (i Intent) Valid() bool {
	switch i {
	case IntentChat, IntentResearch, IntentExecute:
		return true
	}
	return false
}

// Classifier assigns an intent to a raw user request. Implementations must
// be fail-safe: an unrecognized or malformed classification degrades to
// IntentChat rather than returning an error, so a turn always routes
// somewhere. Errors are reserved for transport failures the caller may want
// to surface.
type Classifier interface {
	Classify(ctx context.Context, request string) (Intent, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, request string) (Intent, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, request string) (Intent, error) {
	return f(ctx, request)
}
