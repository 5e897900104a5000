package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/ports"
)

// defaultMaxHops bounds a single walk. Well-formed workflows terminate long
// before this; the bound turns a routing bug into an error instead of a spin.
const defaultMaxHops = 512

// Result is the outcome of one engine invocation on a thread.
type Result struct {
	ThreadID string
	State    *domain.State
	// Paused is true when the walk suspended before a guarded node and is
	// waiting for approval. PausedAt names that node.
	Paused   bool
	PausedAt string
}

// Engine walks a compiled graph over durable thread snapshots. All
// invocations on the same thread are serialized, within the process always
// and across processes when a distributed locker is configured.
type Engine struct {
	graph           *Compiled
	store           ports.SnapshotStore
	hooks           domain.LifecycleHooks
	logger          *slog.Logger
	locker          ports.DistributedLocker
	lockTTL         time.Duration
	interruptBefore map[string]bool
	maxHops         int
	locks           *threadLocks
}

// Option configures the Engine.
type Option func(*Engine)

// WithHooks registers lifecycle callbacks for observability.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLocker enables cross-process serialization of thread access.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

// WithLockTTL bounds how long a crashed process can hold a distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithInterruptBefore marks top-level nodes the walk must not enter until
// the user has validated the pending plan. Reaching such a node with
// UserValidated unset suspends the turn durably.
func WithInterruptBefore(nodeIDs ...string) Option {
	return func(e *Engine) {
		for _, id := range nodeIDs {
			e.interruptBefore[id] = true
		}
	}
}

// WithMaxHops overrides the node-visit bound per walk.
func WithMaxHops(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// NewEngine creates an engine for a compiled graph backed by a snapshot
// store. Interrupt targets must be registered top-level nodes.
func NewEngine(g *Compiled, store ports.SnapshotStore, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("compiled graph is required")
	}
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}

	e := &Engine{
		graph:           g,
		store:           store,
		logger:          logging.NewNop(),
		lockTTL:         30 * time.Second,
		interruptBefore: make(map[string]bool),
		maxHops:         defaultMaxHops,
		locks:           newThreadLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for id := range e.interruptBefore {
		if _, ok := g.nodes[id]; !ok {
			return nil, fmt.Errorf("interrupt target %q: %w", id, domain.ErrNodeNotFound)
		}
	}
	return e, nil
}

// Graph returns the compiled graph the engine walks.
func (e *Engine) Graph() *Compiled { return e.graph }

// RunTurn starts a new turn on a thread: it appends the user input, resets
// the turn-scoped routing fields, and walks the graph from the entry node.
// A thread suspended before a guarded node rejects new turns with
// domain.ErrAwaitingApproval until the pending plan is resumed or rejected.
func (e *Engine) RunTurn(ctx context.Context, threadID, input string) (*Result, error) {
	var res *Result
	err := e.withThreadLock(ctx, threadID, func(ctx context.Context) error {
		state, err := e.loadOrInit(ctx, threadID)
		if err != nil {
			return err
		}
		if state.AwaitingApproval {
			return fmt.Errorf("thread %s: %w", threadID, domain.ErrAwaitingApproval)
		}

		turnID := uuid.NewString()
		log := e.logger.With("thread_id", threadID, "turn_id", turnID)

		state.ResetTurnLocals()
		// Approval never outlives the turn that granted it.
		state.UserValidated = false
		state.Messages = append(state.Messages, domain.UserMessage(input))
		if err := e.store.Save(ctx, threadID, state); err != nil {
			return fmt.Errorf("persist turn input: %w", err)
		}

		log.Info("turn started", "entry", e.graph.entry)
		res, err = e.walk(ctx, log, threadID, turnID, state, e.graph.entry)
		return err
	})
	return res, err
}

// Resume continues a suspended thread. For a thread paused before a guarded
// node it records the approval and re-enters the walk at that node; for a
// thread that crashed while the guarded node was running it re-enters
// without touching the recorded approval.
func (e *Engine) Resume(ctx context.Context, threadID string) (*Result, error) {
	var res *Result
	err := e.withThreadLock(ctx, threadID, func(ctx context.Context) error {
		state, err := e.store.Load(ctx, threadID)
		if err != nil {
			return err
		}
		if state.ResumePoint == "" {
			return fmt.Errorf("thread %s: %w", threadID, domain.ErrNoPendingResume)
		}

		turnID := uuid.NewString()
		log := e.logger.With("thread_id", threadID, "turn_id", turnID)
		resumeAt := state.ResumePoint

		if state.AwaitingApproval {
			state.AwaitingApproval = false
			state.UserValidated = true
			if err := e.store.Save(ctx, threadID, state); err != nil {
				return fmt.Errorf("persist approval: %w", err)
			}
		}

		e.emitResume(ctx, threadID, turnID, resumeAt)
		log.Info("resuming", "node", resumeAt)
		res, err = e.walk(ctx, log, threadID, turnID, state, resumeAt)
		return err
	})
	return res, err
}

// Reject discards the plan a suspended thread was waiting on: it clears the
// pause, empties the plan, and appends a cancellation notice (note, or a
// default when empty) so the transcript records the decision.
func (e *Engine) Reject(ctx context.Context, threadID, note string) (*domain.State, error) {
	var out *domain.State
	err := e.withThreadLock(ctx, threadID, func(ctx context.Context) error {
		state, err := e.store.Load(ctx, threadID)
		if err != nil {
			return err
		}
		if !state.AwaitingApproval {
			return fmt.Errorf("thread %s: %w", threadID, domain.ErrNoPendingResume)
		}

		state.AwaitingApproval = false
		state.ResumePoint = ""
		state.UserValidated = false
		state.Plan = []domain.PlanStep{}
		state.CurrentStepIndex = 0
		if note == "" {
			note = "Execution cancelled. Plan discarded."
		}
		state.Messages = append(state.Messages, domain.SystemMessage(note))

		if err := e.store.Save(ctx, threadID, state); err != nil {
			return fmt.Errorf("persist rejection: %w", err)
		}
		e.logger.Info("plan rejected", "thread_id", threadID)
		out = state
		return nil
	})
	return out, err
}

// RunFrom re-enters the graph at a specific node after applying a
// preparatory update, clearing any pending pause first. It is how
// feedback-driven plan refinement routes a suspended thread into the
// refiner instead of starting a fresh turn.
func (e *Engine) RunFrom(ctx context.Context, threadID, nodeID string, pre domain.Update) (*Result, error) {
	var res *Result
	err := e.withThreadLock(ctx, threadID, func(ctx context.Context) error {
		if _, ok := e.graph.nodes[nodeID]; !ok {
			return fmt.Errorf("node %q: %w", nodeID, domain.ErrNodeNotFound)
		}
		state, err := e.store.Load(ctx, threadID)
		if err != nil {
			return err
		}

		state.AwaitingApproval = false
		state.ResumePoint = ""
		state.UserValidated = false
		if !pre.IsZero() {
			state, err = domain.Apply(state, pre)
			if err != nil {
				return fmt.Errorf("apply entry update: %w", err)
			}
		}

		turnID := uuid.NewString()
		log := e.logger.With("thread_id", threadID, "turn_id", turnID)
		if err := e.store.Save(ctx, threadID, state); err != nil {
			return fmt.Errorf("persist entry update: %w", err)
		}

		log.Info("turn started", "entry", nodeID)
		res, err = e.walk(ctx, log, threadID, turnID, state, nodeID)
		return err
	})
	return res, err
}

// State loads the current snapshot of a thread.
func (e *Engine) State(ctx context.Context, threadID string) (*domain.State, error) {
	return e.store.Load(ctx, threadID)
}

// PendingResume reports the node a thread is suspended before, or "".
func (e *Engine) PendingResume(ctx context.Context, threadID string) (string, error) {
	return e.store.PendingResume(ctx, threadID)
}

// Threads lists the thread IDs known to the store.
func (e *Engine) Threads(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

// DeleteThread removes a thread's snapshot.
func (e *Engine) DeleteThread(ctx context.Context, threadID string) error {
	return e.withThreadLock(ctx, threadID, func(ctx context.Context) error {
		return e.store.Delete(ctx, threadID)
	})
}

func (e *Engine) loadOrInit(ctx context.Context, threadID string) (*domain.State, error) {
	state, err := e.store.Load(ctx, threadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	return state, nil
}

// walk advances through top-level nodes until End or a guarded node without
// validation. The snapshot in the store is authoritative after every node.
func (e *Engine) walk(ctx context.Context, log *slog.Logger, threadID, turnID string, state *domain.State, start string) (*Result, error) {
	current := start
	for hops := 0; current != End; hops++ {
		if hops >= e.maxHops {
			return nil, fmt.Errorf("thread %s: no terminal after %d node visits, routing cycle suspected at %q", threadID, hops, current)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("walk cancelled before node %q: %w", current, err)
		}

		node, ok := e.graph.nodes[current]
		if !ok {
			return nil, fmt.Errorf("node %q: %w", current, domain.ErrNodeNotFound)
		}

		if e.interruptBefore[current] && !state.UserValidated {
			state.AwaitingApproval = true
			state.ResumePoint = current
			if err := e.store.Save(ctx, threadID, state); err != nil {
				return nil, fmt.Errorf("persist pause before %q: %w", current, err)
			}
			e.emitPause(ctx, threadID, turnID, current)
			log.Info("awaiting approval", "node", current)
			return &Result{ThreadID: threadID, State: state, Paused: true, PausedAt: current}, nil
		}

		var err error
		state, err = e.execNode(ctx, log, threadID, turnID, current, node, state)
		if err != nil {
			return nil, err
		}

		next, err := e.graph.next(current, state)
		if err != nil {
			return nil, err
		}
		current = next
	}

	log.Info("turn finished")
	return &Result{ThreadID: threadID, State: state}, nil
}

// execNode runs one node, merges its update, and persists the snapshot. A
// subgraph node runs its whole inner walk here; inner nodes persist their
// own snapshots and report hooks under qualified ids like "executor/runner".
func (e *Engine) execNode(ctx context.Context, log *slog.Logger, threadID, turnID, qualifiedID string, node *nodeDef, state *domain.State) (*domain.State, error) {
	started := time.Now()
	e.emitNodeEnter(ctx, threadID, turnID, qualifiedID)

	var next *domain.State
	var err error
	if node.sub != nil {
		next, err = e.walkSub(ctx, log, threadID, turnID, qualifiedID, node.sub, state)
	} else {
		var update domain.Update
		update, err = node.run(ctx, state.Clone())
		if err != nil {
			err = fmt.Errorf("node %q: %w", qualifiedID, err)
		} else {
			next, err = domain.Apply(state, update)
			if err != nil {
				err = fmt.Errorf("node %q produced an invalid update: %w", qualifiedID, err)
			}
		}
	}
	if err != nil {
		e.emitNodeLeave(ctx, threadID, turnID, qualifiedID, time.Since(started), err)
		return nil, err
	}

	// The resume marker is spent once its node has fully completed.
	if next.ResumePoint == qualifiedID {
		next.ResumePoint = ""
	}

	if err := e.store.Save(ctx, threadID, next); err != nil {
		err = fmt.Errorf("persist snapshot after %q: %w", qualifiedID, err)
		e.emitNodeLeave(ctx, threadID, turnID, qualifiedID, time.Since(started), err)
		return nil, err
	}

	e.emitNodeLeave(ctx, threadID, turnID, qualifiedID, time.Since(started), nil)
	log.Debug("node complete", "node", qualifiedID, "duration", time.Since(started))
	return next, nil
}

// walkSub runs a compiled subgraph to its End inside one parent node
// boundary. Interrupt gates do not apply inside.
func (e *Engine) walkSub(ctx context.Context, log *slog.Logger, threadID, turnID, prefix string, sub *Compiled, state *domain.State) (*domain.State, error) {
	current := sub.entry
	for hops := 0; current != End; hops++ {
		if hops >= e.maxHops {
			return nil, fmt.Errorf("thread %s: subgraph %q exceeded %d node visits, routing cycle suspected at %q", threadID, prefix, hops, current)
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("walk cancelled before node %q: %w", prefix+"/"+current, err)
		}

		node, ok := sub.nodes[current]
		if !ok {
			return nil, fmt.Errorf("node %q: %w", prefix+"/"+current, domain.ErrNodeNotFound)
		}

		var err error
		state, err = e.execNode(ctx, log, threadID, turnID, prefix+"/"+current, node, state)
		if err != nil {
			return nil, err
		}

		next, err := sub.next(current, state)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return state, nil
}

func (e *Engine) emitNodeEnter(ctx context.Context, threadID, turnID, nodeID string) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: eventBase(domain.EventNodeEnter, threadID, turnID),
		NodeID:    nodeID,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, threadID, turnID, nodeID string, d time.Duration, err error) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	ev := &domain.NodeEvent{
		EventBase: eventBase(domain.EventNodeLeave, threadID, turnID),
		NodeID:    nodeID,
		Duration:  d,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	e.hooks.OnNodeLeave(ctx, ev)
}

func (e *Engine) emitPause(ctx context.Context, threadID, turnID, nodeID string) {
	if e.hooks.OnPause == nil {
		return
	}
	e.hooks.OnPause(ctx, &domain.PauseEvent{
		EventBase: eventBase(domain.EventPause, threadID, turnID),
		NodeID:    nodeID,
	})
}

func (e *Engine) emitResume(ctx context.Context, threadID, turnID, nodeID string) {
	if e.hooks.OnResume == nil {
		return
	}
	e.hooks.OnResume(ctx, &domain.PauseEvent{
		EventBase: eventBase(domain.EventResume, threadID, turnID),
		NodeID:    nodeID,
	})
}

func eventBase(t domain.EventType, threadID, turnID string) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		ThreadID:  threadID,
		TurnID:    turnID,
	}
}
