package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/internal/metrics"
	"github.com/aretw0/furrow/internal/presentation/tui"
	httpadapter "github.com/aretw0/furrow/pkg/adapters/http"
	workflow "github.com/aretw0/furrow/pkg/agent"
	"github.com/aretw0/furrow/pkg/domain"
)

// RunSession runs the interactive conversation loop on one thread. With
// HTTPAddress set it also hosts the inspection API on the side, streaming
// this session's events and metrics while the conversation runs.
func RunSession(cfg config.Config, opts RunOptions) error {
	logger := createLogger(opts.Debug)

	tui.PrintBanner()

	store, locker, err := openBackend(cfg.Storage)
	if err != nil {
		return fmt.Errorf("error initializing store: %w", err)
	}

	agentOpts := baseOptions(cfg, logger)
	agentOpts = append(agentOpts, furrow.WithStore(store))
	if locker != nil {
		agentOpts = append(agentOpts, furrow.WithLocker(locker))
	}
	if opts.DryRun {
		agentOpts = append(agentOpts, furrow.WithDryRun())
	}

	var hooks []domain.LifecycleHooks
	if opts.Debug {
		hooks = append(hooks, createDebugHooks(logger))
	}

	var collector *metrics.Collector
	if opts.HTTPAddress != "" {
		desc, derr := workflow.DescribeWorkflow()
		if derr != nil {
			return derr
		}
		collector = metrics.NewCollector()

		insp, ierr := httpadapter.NewServer(httpadapter.Config{
			Store:   store,
			Graph:   desc,
			Metrics: collector.Registry(),
			Version: furrow.Version,
			Logger:  logger,
		})
		if ierr != nil {
			return ierr
		}
		hooks = append(hooks, collector.Hooks(), insp.Hooks())

		httpSrv := &http.Server{Addr: opts.HTTPAddress, Handler: insp.Handler()}
		go func() {
			if serr := httpSrv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
				fmt.Printf("Inspection server error: %v\n", serr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		printSystemMessage("Inspection API on http://%s", opts.HTTPAddress)
	}

	if len(hooks) > 0 {
		agentOpts = append(agentOpts, furrow.WithLifecycleHooks(domain.MergeHooks(hooks...)))
	}

	agent, err := furrow.New(agentOpts...)
	if err != nil {
		return fmt.Errorf("error initializing agent: %w", err)
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if opts.Fresh {
		if err := agent.DeleteThread(sigCtx, opts.ThreadID); err != nil && !errors.Is(err, domain.ErrThreadNotFound) {
			return fmt.Errorf("reset thread: %w", err)
		}
	}

	s := &session{
		agent:     agent,
		threadID:  opts.ThreadID,
		render:    tui.NewRenderer(),
		scanner:   bufio.NewScanner(NewInterruptibleReader(os.Stdin, sigCtx.Done())),
		collector: collector,
	}

	printSystemMessage("Thread '%s' active. Type 'exit' to quit.", opts.ThreadID)
	if opts.DryRun {
		printSystemMessage("Dry run: commands are echoed, not executed.")
	}

	err = s.reofferPending(sigCtx)
	if err == nil {
		err = s.loop(sigCtx)
	}
	if sigCtx.Signal() != nil && isInterrupted(err) {
		printSystemMessage("Interrupted.")
	}
	return handleExecutionError(err)
}

// reofferPending greets a thread still holding an unapproved plan. The
// gate survives the process, so a restart lands back on the approval
// prompt before any new input is taken.
func (s *session) reofferPending(ctx context.Context) error {
	node, err := s.agent.PendingApproval(ctx, s.threadID)
	if err != nil || node == "" {
		return nil
	}
	state, err := s.agent.State(ctx, s.threadID)
	if err != nil {
		return err
	}
	printSystemMessage("A plan from a previous session is awaiting approval.")
	fmt.Println(tui.RenderPlan(state.Plan))
	return s.approvalLoop(ctx)
}

type session struct {
	agent     *furrow.Agent
	threadID  string
	render    func(string) (string, error)
	scanner   *bufio.Scanner
	collector *metrics.Collector
}

func (s *session) loop(ctx context.Context) error {
	for {
		input, ok := s.prompt("> ")
		if !ok {
			fmt.Println()
			return ctx.Err()
		}
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			printSystemMessage("Bye.")
			return nil
		}

		res, err := s.agent.Turn(ctx, s.threadID, input)
		if err != nil {
			s.countTurn(metrics.TurnFailed)
			if isInterrupted(err) {
				return err
			}
			printSystemMessage("Error: %v", err)
			continue
		}

		if res.Paused {
			s.countTurn(metrics.TurnPaused)
			fmt.Println(tui.RenderPlan(res.State.Plan))
			if err := s.approvalLoop(ctx); err != nil {
				return err
			}
			continue
		}

		s.countTurn(metrics.TurnCompleted)
		s.printReply(res)
	}
}

// approvalLoop holds the conversation at the approval gate until the user
// approves, rejects or refines the pending plan.
func (s *session) approvalLoop(ctx context.Context) error {
	for {
		answer, ok := s.prompt("Proceed with execution? [y]es, [n]o, or describe changes: ")
		if !ok {
			fmt.Println()
			printSystemMessage("Plan left pending. It will be offered again next session.")
			return ctx.Err()
		}

		switch strings.ToLower(answer) {
		case "":
			continue

		case "y", "yes":
			res, err := s.agent.Approve(ctx, s.threadID)
			if err != nil {
				if isInterrupted(err) {
					return err
				}
				printSystemMessage("Error: %v", err)
				return nil
			}
			fmt.Println(tui.RenderHistory(res.State.ExecutionHistory))
			s.printReply(res)
			return nil

		case "n", "no":
			if _, err := s.agent.Reject(ctx, s.threadID); err != nil {
				if isInterrupted(err) {
					return err
				}
				printSystemMessage("Error: %v", err)
				return nil
			}
			printSystemMessage("Plan discarded.")
			return nil

		default:
			// Anything else is feedback: redraft and offer the new plan.
			res, err := s.agent.Refine(ctx, s.threadID, answer)
			if err != nil {
				if isInterrupted(err) {
					return err
				}
				printSystemMessage("Error: %v", err)
				continue
			}
			if res.Paused {
				fmt.Println(tui.RenderPlan(res.State.Plan))
				continue
			}
			s.printReply(res)
			return nil
		}
	}
}

func (s *session) prompt(p string) (string, bool) {
	fmt.Print(p)
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}

func (s *session) printReply(res *furrow.TurnResult) {
	if res.Reply == "" {
		return
	}
	out, err := s.render(res.Reply)
	if err != nil {
		out = res.Reply
	}
	fmt.Println(out)
}

func (s *session) countTurn(outcome string) {
	if s.collector != nil {
		s.collector.IncTurn(outcome)
	}
}

func isExitCommand(input string) bool {
	switch strings.ToLower(input) {
	case "q", "quit", "exit":
		return true
	}
	return false
}
