package domain

import "errors"

// ErrThreadNotFound is returned when a thread ID cannot be found in the store.
var ErrThreadNotFound = errors.New("thread not found")

// ErrAwaitingApproval is returned when a new turn is started on a thread
// that is suspended before a guarded node. The caller must resume or reject
// the pending plan first.
var ErrAwaitingApproval = errors.New("thread is awaiting approval")

// ErrNoPendingResume is returned when a resume or reject call targets a
// thread that is not suspended.
var ErrNoPendingResume = errors.New("no pending resume point")

// ErrNodeNotFound is returned when a graph edge or entry point references a
// node that was never registered.
var ErrNodeNotFound = errors.New("node not found")
