// Package agent implements the workflow nodes of the assistant: routing,
// chat, plan drafting and refinement, guarded step execution, and bounded
// research, plus the Build function that wires them into a compiled graph.
//
// Every node degrades gracefully: completion, search and parse failures
// become diagnostic messages in the transcript rather than turn-aborting
// errors, and nothing in this package can clear or grant plan approval.
package agent
