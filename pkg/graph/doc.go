// Package graph contains the workflow engine: a builder for directed node
// graphs, the compiled immutable form, and the Engine that walks a graph
// over a durable state snapshot.
//
// Nodes are plain functions from state to a partial update; edges are either
// static or resolved by a routing function over the post-node state. The
// engine persists a snapshot after every node, so a process crash never
// loses more than the node in flight, and it can suspend before designated
// nodes until a human approves the pending plan.
package graph
