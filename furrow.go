package furrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/adapters/file"
	"github.com/aretw0/furrow/pkg/adapters/sandbox"
	"github.com/aretw0/furrow/pkg/adapters/tavily"
	"github.com/aretw0/furrow/pkg/agent"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
	"github.com/aretw0/furrow/pkg/persistence/middleware"
	"github.com/aretw0/furrow/pkg/ports"
)

// Version is the furrow release version. Overridable at build time:
//
//	go build -ldflags "-X github.com/aretw0/furrow.Version=v1.2.3"
var Version = "0.1.0"

// ErrAwaitingApproval is returned by Turn when the thread holds a plan that
// is still waiting for approval. Approve, Reject or Refine it first.
var ErrAwaitingApproval = domain.ErrAwaitingApproval

// Agent is the high-level entry point for the furrow library. It wraps the
// compiled workflow, the durable engine and the snapshot store behind the
// turn/approve/reject/refine surface the CLI and the MCP server drive.
type Agent struct {
	engine  *graph.Engine
	store   ports.SnapshotStore
	workDir string
	logger  *slog.Logger
}

// TurnResult is the outcome of one engine walk.
type TurnResult struct {
	ThreadID string
	State    *domain.State

	// Paused reports that the walk suspended before the guarded node named
	// by PausedAt and is waiting for approval.
	Paused   bool
	PausedAt string

	// Reply is the newest assistant message, empty when the turn paused
	// before producing one.
	Reply string
}

// New initializes an Agent. A Completer is required; every other
// collaborator has a default: Tavily search (keyed via TAVILY_API_KEY),
// the local shell sandbox, and a file snapshot store under
// .furrow/threads.
func New(opts ...Option) (*Agent, error) {
	cfg := config{commandTimeout: sandbox.DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.completer == nil {
		return nil, errors.New("a completer is required: pass WithCompleter")
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	if cfg.searcher == nil {
		cfg.searcher = tavily.NewClient(
			tavily.WithAPIKey(os.Getenv("TAVILY_API_KEY")),
			tavily.WithLogger(cfg.logger),
		)
	}
	if cfg.runner == nil {
		runnerOpts := []sandbox.Option{sandbox.WithLogger(cfg.logger)}
		if cfg.workDir != "" {
			runnerOpts = append(runnerOpts, sandbox.WithWorkDir(cfg.workDir))
		}
		if obs := commandObserver(cfg.observer, cfg.hooks.OnCommand); obs != nil {
			runnerOpts = append(runnerOpts, sandbox.WithObserver(obs))
		}
		cfg.runner = sandbox.NewRunner(runnerOpts...)
	}
	if cfg.dryRun {
		cfg.runner = sandbox.NewDryRunner()
	}
	if cfg.store == nil {
		cfg.store = file.New(cfg.statePath)
	}
	if len(cfg.middlewares) > 0 {
		cfg.store = middleware.Chain(cfg.store, cfg.middlewares...)
	}

	workflow, err := agent.Build(agent.Config{
		Completer:      cfg.completer,
		Classifier:     cfg.classifier,
		Searcher:       cfg.searcher,
		Runner:         cfg.runner,
		CommandTimeout: cfg.commandTimeout,
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("compile workflow: %w", err)
	}

	engineOpts := []graph.Option{
		graph.WithInterruptBefore(agent.NodeExecutor),
		graph.WithHooks(cfg.hooks),
		graph.WithLogger(cfg.logger),
	}
	if cfg.locker != nil {
		engineOpts = append(engineOpts, graph.WithLocker(cfg.locker))
	}

	engine, err := graph.NewEngine(workflow, cfg.store, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize engine: %w", err)
	}

	return &Agent{
		engine:  engine,
		store:   cfg.store,
		workDir: cfg.workDir,
		logger:  cfg.logger,
	}, nil
}

// Turn submits one user request to a thread. When the drafted plan needs
// approval the result comes back Paused; a thread already paused returns
// ErrAwaitingApproval untouched.
func (a *Agent) Turn(ctx context.Context, threadID, input string) (*TurnResult, error) {
	clean, err := SanitizeInput(input)
	if err != nil {
		return nil, fmt.Errorf("input rejected: %w", err)
	}
	res, err := a.engine.RunTurn(ctx, threadID, clean)
	if err != nil {
		return nil, err
	}
	return a.result(res), nil
}

// Approve resumes a paused thread, granting the stored plan approval and
// executing it.
func (a *Agent) Approve(ctx context.Context, threadID string) (*TurnResult, error) {
	res, err := a.engine.Resume(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return a.result(res), nil
}

// Reject discards a paused thread's plan and clears the pause so the
// thread accepts new turns.
func (a *Agent) Reject(ctx context.Context, threadID string) (*domain.State, error) {
	return a.engine.Reject(ctx, threadID, "")
}

// Refine redrafts a paused thread's plan from the user's feedback and
// pauses again with the new plan.
func (a *Agent) Refine(ctx context.Context, threadID, feedback string) (*TurnResult, error) {
	clean, err := SanitizeInput(feedback)
	if err != nil {
		return nil, fmt.Errorf("feedback rejected: %w", err)
	}
	pre := domain.Update{AppendMessages: []domain.Message{domain.UserMessage(clean)}}
	res, err := a.engine.RunFrom(ctx, threadID, agent.NodeRefiner, pre)
	if err != nil {
		return nil, err
	}
	return a.result(res), nil
}

// State returns the thread's current snapshot.
func (a *Agent) State(ctx context.Context, threadID string) (*domain.State, error) {
	return a.engine.State(ctx, threadID)
}

// PendingApproval reports the node a thread is paused before, or "" when
// the thread is not waiting on anything.
func (a *Agent) PendingApproval(ctx context.Context, threadID string) (string, error) {
	return a.engine.PendingResume(ctx, threadID)
}

// Threads lists the thread IDs known to the store.
func (a *Agent) Threads(ctx context.Context) ([]string, error) {
	return a.engine.Threads(ctx)
}

// DeleteThread removes a thread's snapshot.
func (a *Agent) DeleteThread(ctx context.Context, threadID string) error {
	return a.engine.DeleteThread(ctx, threadID)
}

// CacheFile reads a file relative to the agent's working directory into the
// thread's file context, creating the thread when needed. Cached content
// rides along in the planner's prompt on later turns.
func (a *Agent) CacheFile(ctx context.Context, threadID, path string) error {
	root := a.workDir
	if root == "" {
		root = "."
	}
	fc, err := agent.NewFileContext(root)
	if err != nil {
		return err
	}
	update, err := fc.CacheUpdate(path)
	if err != nil {
		return err
	}

	state, err := a.store.Load(ctx, threadID)
	if errors.Is(err, domain.ErrThreadNotFound) {
		state = domain.NewState()
	} else if err != nil {
		return err
	}
	next, err := domain.Apply(state, update)
	if err != nil {
		return err
	}
	return a.store.Save(ctx, threadID, next)
}

// Describe returns the compiled workflow's structure for visualization.
func (a *Agent) Describe() graph.Description {
	return a.engine.Graph().Describe()
}

// commandObserver folds the configured observer and the OnCommand lifecycle
// hook into the single callback the sandbox runner accepts. Command events
// originate below the engine, so they carry no thread ID.
func commandObserver(obs sandbox.Observer, hook func(context.Context, *domain.CommandEvent)) sandbox.Observer {
	if obs == nil && hook == nil {
		return nil
	}
	return func(command string, result domain.CommandResult, duration time.Duration) {
		if obs != nil {
			obs(command, result, duration)
		}
		if hook != nil {
			hook(context.Background(), &domain.CommandEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommand},
				Command:   command,
				ExitCode:  result.ExitCode,
				Duration:  duration,
			})
		}
	}
}

func (a *Agent) result(res *graph.Result) *TurnResult {
	out := &TurnResult{
		ThreadID: res.ThreadID,
		State:    res.State,
		Paused:   res.Paused,
		PausedAt: res.PausedAt,
	}
	if !res.Paused {
		if msg, ok := res.State.LastAssistantMessage(); ok {
			out.Reply = msg.Content
		}
	}
	return out
}
