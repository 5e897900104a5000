package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
	"github.com/aretw0/furrow/pkg/ports"
)

// WorkflowName identifies the top-level graph.
const WorkflowName = "furrow"

// Node names of the top-level workflow and its sub-workflows. The engine's
// interrupt gate, the resume protocol and progress rendering key off these.
const (
	NodeRouter     = "router"
	NodeChat       = "chat"
	NodePlanner    = "planner"
	NodeRefiner    = "plan_refiner"
	NodeExecutor   = "executor"
	NodeResearcher = "researcher"

	NodeStepParser     = "step_parser"
	NodeSafetyGuard    = "safety_guard"
	NodeTerminalRunner = "terminal_runner"
	NodeErrorHandler   = "error_handler"

	NodeSearchEngine = "search_engine"
	NodeGrader       = "grader"
	NodeDrafter      = "drafter"
)

// Labels of the conditional edges.
const (
	routeEnd         = "end"
	routeExecute     = "execute"
	routeGuard       = "guard"
	routeRun         = "run"
	routeBlocked     = "blocked"
	routeNext        = "next"
	routeFailed      = "failed"
	routeDraft       = "draft"
	routeSearchAgain = "search_again"
)

// Config carries the capabilities the workflow nodes are built around.
// Completer, Searcher and Runner are required; Classifier defaults to the
// completion-backed PromptClassifier.
type Config struct {
	Completer      ports.Completer
	Classifier     ports.Classifier
	Searcher       ports.Searcher
	Runner         ports.CommandRunner
	CommandTimeout time.Duration
	Logger         *slog.Logger
}

// Build wires the agent nodes into the compiled top-level workflow:
//
//	router -> {planner -> executor | researcher | chat}
//
// with plan_refiner as an external entry for the feedback path. The
// executor and researcher run as subgraphs, so the approval interrupt
// applies to plan execution as a whole.
func Build(cfg Config) (*graph.Compiled, error) {
	if cfg.Completer == nil {
		return nil, errors.New("completer is required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("command runner is required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewPromptClassifier(cfg.Completer)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	router := NewRouter(cfg.Classifier, cfg.Logger)
	chat := NewChat(cfg.Completer)
	planner := NewPlanner(cfg.Completer, cfg.Logger)
	executor := NewExecutor(cfg.Runner, cfg.CommandTimeout, cfg.Logger)
	researcher := NewResearcher(cfg.Completer, cfg.Searcher, cfg.Logger)

	execution, err := buildExecution(executor)
	if err != nil {
		return nil, fmt.Errorf("compile execution subgraph: %w", err)
	}
	research, err := buildResearch(researcher)
	if err != nil {
		return nil, fmt.Errorf("compile research subgraph: %w", err)
	}

	return graph.New(WorkflowName).
		AddNode(NodeRouter, router.Node).
		AddNode(NodePlanner, planner.DraftNode).
		AddNode(NodeRefiner, planner.RefineNode).
		AddSubgraph(NodeExecutor, execution).
		AddSubgraph(NodeResearcher, research).
		AddNode(NodeChat, chat.Node).
		SetEntry(NodeRouter).
		AllowEntry(NodeRefiner).
		AddConditionalEdges(NodeRouter, RouteByTarget, map[string]string{
			NodePlanner:    NodePlanner,
			NodeResearcher: NodeResearcher,
			NodeChat:       NodeChat,
		}).
		AddConditionalEdges(NodePlanner, RouteAfterPlan, map[string]string{
			routeExecute: NodeExecutor,
			routeEnd:     graph.End,
		}).
		AddConditionalEdges(NodeRefiner, RouteAfterPlan, map[string]string{
			routeExecute: NodeExecutor,
			routeEnd:     graph.End,
		}).
		AddEdge(NodeExecutor, graph.End).
		AddEdge(NodeResearcher, graph.End).
		AddEdge(NodeChat, graph.End).
		Compile()
}

// buildExecution compiles the plan-execution state machine:
//
//	step_parser -> safety_guard -> terminal_runner -> {step_parser | error_handler}
func buildExecution(executor *Executor) (*graph.Compiled, error) {
	return graph.New(NodeExecutor).
		AddNode(NodeStepParser, executor.ParseStepNode).
		AddNode(NodeSafetyGuard, executor.GuardNode).
		AddNode(NodeTerminalRunner, executor.RunStepNode).
		AddNode(NodeErrorHandler, executor.ErrorNode).
		SetEntry(NodeStepParser).
		AddConditionalEdges(NodeStepParser, RouteAfterParse, map[string]string{
			routeGuard: NodeSafetyGuard,
			routeEnd:   graph.End,
		}).
		AddConditionalEdges(NodeSafetyGuard, RouteAfterGuard, map[string]string{
			routeRun:     NodeTerminalRunner,
			routeBlocked: NodeErrorHandler,
		}).
		AddConditionalEdges(NodeTerminalRunner, RouteAfterRun, map[string]string{
			routeNext:   NodeStepParser,
			routeFailed: NodeErrorHandler,
		}).
		AddEdge(NodeErrorHandler, graph.End).
		Compile()
}

// buildResearch compiles the bounded research loop:
//
//	search_engine -> grader -> {drafter | search_engine}
func buildResearch(researcher *Researcher) (*graph.Compiled, error) {
	return graph.New(NodeResearcher).
		AddNode(NodeSearchEngine, researcher.SearchNode).
		AddNode(NodeGrader, researcher.GradeNode).
		AddNode(NodeDrafter, researcher.DraftAnswerNode).
		SetEntry(NodeSearchEngine).
		AddEdge(NodeSearchEngine, NodeGrader).
		AddConditionalEdges(NodeGrader, RouteAfterGrade, map[string]string{
			routeDraft:       NodeDrafter,
			routeSearchAgain: NodeSearchEngine,
		}).
		AddEdge(NodeDrafter, graph.End).
		Compile()
}

// DescribeWorkflow compiles the workflow with inert collaborators and
// returns its description. Visualization tooling uses it to draw the graph
// without any credentials or live clients.
func DescribeWorkflow() (graph.Description, error) {
	wf, err := Build(Config{
		Completer: ports.CompleterFunc(func(context.Context, []domain.Message) (string, error) {
			return "", nil
		}),
		Searcher: ports.SearcherFunc(func(context.Context, string) (string, error) {
			return "", nil
		}),
		Runner: ports.CommandRunnerFunc(func(context.Context, string, time.Duration) domain.CommandResult {
			return domain.CommandResult{}
		}),
	})
	if err != nil {
		return graph.Description{}, err
	}
	return wf.Describe(), nil
}
