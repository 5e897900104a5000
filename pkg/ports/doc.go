/*
Package ports defines the driven ports (interfaces) for the furrow agent.

These interfaces decouple the workflow engine and the agent nodes from
external implementations, allowing the agent to work with various snapshot
stores, completion services, search providers, and process runners.

# Key Interfaces

  - SnapshotStore: persists per-thread state snapshots for durable,
    resumable execution.
  - Completer: a text-completion capability (classification, planning,
    grading, drafting).
  - Classifier: the routing capability with a fixed enum output contract.
  - Searcher: a web-search capability collapsed to a formatted text block.
  - CommandRunner: the sandboxed process spawner.
  - DistributedLocker: per-thread locking across processes.
*/
package ports
