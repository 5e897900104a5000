package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter EventType = "node_enter"
	EventNodeLeave EventType = "node_leave"
	EventPause     EventType = "pause"
	EventResume    EventType = "resume"
	EventCommand   EventType = "command"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ThreadID  string    `json:"thread_id"`
	TurnID    string    `json:"turn_id,omitempty"`
}

// NodeEvent represents entry into or exit from a workflow node.
// Duration and Err are only populated on node_leave.
type NodeEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      string        `json:"err,omitempty"`
}

// PauseEvent represents the engine suspending before a guarded node, or
// resuming from it.
type PauseEvent struct {
	EventBase
	NodeID string `json:"node_id"`
}

// CommandEvent represents one sandboxed command execution.
type CommandEvent struct {
	EventBase
	StepID   string        `json:"step_id,omitempty"`
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability. All fields are
// optional; nil hooks are skipped.
type LifecycleHooks struct {
	OnNodeEnter func(context.Context, *NodeEvent)
	OnNodeLeave func(context.Context, *NodeEvent)
	OnPause     func(context.Context, *PauseEvent)
	OnResume    func(context.Context, *PauseEvent)
	OnCommand   func(context.Context, *CommandEvent)
}

// MergeHooks fans each event out to every hook set, in order. Nil callbacks
// are skipped.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, ev *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, ev)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, ev *NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, ev)
				}
			}
		},
		OnPause: func(ctx context.Context, ev *PauseEvent) {
			for _, h := range hooks {
				if h.OnPause != nil {
					h.OnPause(ctx, ev)
				}
			}
		},
		OnResume: func(ctx context.Context, ev *PauseEvent) {
			for _, h := range hooks {
				if h.OnResume != nil {
					h.OnResume(ctx, ev)
				}
			}
		},
		OnCommand: func(ctx context.Context, ev *CommandEvent) {
			for _, h := range hooks {
				if h.OnCommand != nil {
					h.OnCommand(ctx, ev)
				}
			}
		},
	}
}
