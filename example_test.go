package furrow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/pkg/adapters/memory"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// ExampleNew demonstrates a plain conversational turn. The completer is a
// stub so the example stays deterministic; in a real program you would wire
// completion.NewClient against your model endpoint instead.
func ExampleNew() {
	// 1. Stub the model: whatever the user says, answer with a greeting.
	completer := ports.CompleterFunc(func(ctx context.Context, messages []domain.Message) (string, error) {
		return "Hi! How can I help you today?", nil
	})

	// 2. Route everything to chat so no plan is drafted.
	classifier := ports.ClassifierFunc(func(ctx context.Context, request string) (ports.Intent, error) {
		return ports.IntentChat, nil
	})

	agent, err := furrow.New(
		furrow.WithCompleter(completer),
		furrow.WithClassifier(classifier),
		furrow.WithStore(memory.NewStore()),
	)
	if err != nil {
		log.Fatal(err)
	}

	// 3. Run one turn. Chat turns complete immediately; nothing pauses.
	res, err := agent.Turn(context.Background(), "demo", "hello")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Reply: %s\n", res.Reply)
	fmt.Printf("Paused: %v\n", res.Paused)
	// Output:
	// Reply: Hi! How can I help you today?
	// Paused: false
}

// ExampleAgent_Approve walks the approval gate end to end: a command
// request pauses before anything runs, and Approve releases it. Dry-run
// mode echoes the commands instead of spawning them, which keeps the
// example side-effect free.
func ExampleAgent_Approve() {
	// 1. Stub the model to draft a one-step plan.
	completer := ports.CompleterFunc(func(ctx context.Context, messages []domain.Message) (string, error) {
		return `[{"id": "step-1", "description": "Greet", "command": "echo hello", "risk_level": "LOW"}]`, nil
	})

	classifier := ports.ClassifierFunc(func(ctx context.Context, request string) (ports.Intent, error) {
		return ports.IntentExecute, nil
	})

	agent, err := furrow.New(
		furrow.WithCompleter(completer),
		furrow.WithClassifier(classifier),
		furrow.WithStore(memory.NewStore()),
		furrow.WithDryRun(),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	// 2. The turn stops at the executor gate with the drafted plan.
	res, err := agent.Turn(ctx, "demo", "say hello")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Paused: %v\n", res.Paused)
	fmt.Printf("Step 1: %s\n", res.State.Plan[0].Command)

	// 3. Approve releases the pause and the executor drains the plan.
	done, err := agent.Approve(ctx, "demo")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Output: %s\n", done.State.ExecutionHistory[0].Output)
	fmt.Printf("Exit: %d\n", done.State.ExecutionHistory[0].ExitCode)
	// Output:
	// Paused: true
	// Step 1: echo hello
	// Output: (dry run) echo hello
	// Exit: 0
}
