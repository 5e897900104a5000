/*
Package domain contains the core domain models for the furrow agent.

It defines the shared conversation state threaded through every workflow
node, the plan structure the agent drafts and executes, and the partial
update record nodes return. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - State: the durable snapshot of one conversation thread (messages, plan,
    cursor, research notes, execution audit log, approval flags).
  - PlanStep: one step of a drafted shell plan with a risk level and status.
  - Update: a partial state delta returned by a node; the merge rule lives
    in Apply.
  - LifecycleHooks: observability callbacks emitted by the engine.
*/
package domain
