package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aretw0/furrow/internal/config"
	"github.com/aretw0/furrow/internal/logging"
	"github.com/aretw0/furrow/pkg/domain"
)

// SignalContext is a context cancelled by SIGINT or SIGTERM that remembers
// which signal fired, so the session can choose its goodbye line.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	sig os.Signal
}

func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			sc.mu.Lock()
			sc.sig = s
			sc.mu.Unlock()
			sc.cancel()
		case <-ctx.Done():
		}
	}()

	return sc
}

// Cancel releases the context and stops signal delivery.
func (sc *SignalContext) Cancel() { sc.cancel() }

// Signal reports the signal that cancelled the context, or nil if the
// cancellation came from somewhere else.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sig
}

// createLogger configures the interactive session logger. Outside debug
// mode the conversation owns the terminal, so logging is silenced.
func createLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.NewNop()
}

// ServiceLogger builds the logger for long-running servers from config.
// Debug mode overrides the configured level.
func ServiceLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		return logging.NewJSON(os.Stderr, level)
	}
	return logging.New(level)
}

// printSystemMessage prints a standardized system message to stdout.
func printSystemMessage(format string, args ...any) {
	fmt.Printf(">>> %s\n", fmt.Sprintf(format, args...))
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Debug("Enter Node", "node_id", e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			if e.Err != "" {
				logger.Debug("Leave Node (Error)", "node_id", e.NodeID, "err", e.Err)
				return
			}
			logger.Debug("Leave Node", "node_id", e.NodeID, "duration", e.Duration)
		},
		OnPause: func(ctx context.Context, e *domain.PauseEvent) {
			logger.Debug("Paused", "node_id", e.NodeID)
		},
		OnResume: func(ctx context.Context, e *domain.PauseEvent) {
			logger.Debug("Resumed", "node_id", e.NodeID)
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			logger.Debug("Command", "command", e.Command, "exit_code", e.ExitCode, "duration", e.Duration)
		},
	}
}

var errInterrupted = errors.New("interrupted")

// InterruptibleReader unblocks a Scanner over os.Stdin when the session is
// cancelled. The cancel channel is checked on either side of the blocking
// read; the read itself cannot be aborted, so a pending one returns on the
// next keystroke or EOF and the result is discarded.
type InterruptibleReader struct {
	base   io.Reader
	cancel <-chan struct{}
}

func NewInterruptibleReader(base io.Reader, cancel <-chan struct{}) *InterruptibleReader {
	return &InterruptibleReader{base: base, cancel: cancel}
}

func (r *InterruptibleReader) Read(p []byte) (int, error) {
	if r.cancelled() {
		return 0, errInterrupted
	}
	n, err := r.base.Read(p)
	if r.cancelled() {
		return 0, errInterrupted
	}
	return n, err
}

func (r *InterruptibleReader) cancelled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

// isInterrupted separates the user ending the session (Ctrl+C, Ctrl+D,
// SIGTERM) from real failures.
func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, errInterrupted) ||
		errors.Is(err, io.EOF)
}

// handleExecutionError maps interruptions to a clean exit.
func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}
