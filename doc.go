/*
Package furrow is a single-user terminal agent that turns natural language
requests into classified actions: plain conversation, bounded web research,
or shell plans that never run without explicit approval.

# Concept

Every request flows through a compiled workflow graph. A router classifies
the intent; a planner drafts a JSON step plan; the engine then suspends the
thread before the executor and persists the pause, so approval survives
process restarts. Execution itself is a small state machine (parse step,
safety guard, sandboxed run) that snapshots state after every node and
never advances past a failed step.

# Key Features

  - Durable approval: a drafted plan waits in the snapshot store until it
    is approved, rejected or refined, across restarts.
  - Fail-safe routing: unrecognized classifier output degrades to chat
    instead of executing anything.
  - Guarded sandbox: a denylist refuses catastrophic commands before any
    process spawns, and timeouts return partial output with exit code 124.
  - Pluggable adapters: completion, search, storage and locking are ports
    with OpenAI-compatible, Tavily, file and Redis implementations.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/furrow"
		"github.com/aretw0/furrow/pkg/adapters/completion"
	)

	func main() {
		agent, err := furrow.New(
			furrow.WithCompleter(completion.NewClient()),
		)
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		res, err := agent.Turn(ctx, "thread-1", "delete the build cache")
		if err != nil {
			log.Fatal(err)
		}

		if res.Paused {
			// Show res.State.Plan to the user, then approve or reject.
			res, err = agent.Approve(ctx, "thread-1")
			if err != nil {
				log.Fatal(err)
			}
		}
		fmt.Println(res.Reply)
	}
*/
package furrow
