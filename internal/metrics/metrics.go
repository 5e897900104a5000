// Package metrics exposes Prometheus instrumentation for the agent: node
// timings, pause and resume counts, turn outcomes and sandbox command
// results. A Collector owns its own registry so embedders never collide
// with the process-global one.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aretw0/furrow/pkg/adapters/sandbox"
	"github.com/aretw0/furrow/pkg/domain"
)

const namespace = "furrow"

// Command outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeNonzero = "nonzero"
	OutcomeBlocked = "blocked"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

// Turn outcome labels.
const (
	TurnCompleted = "completed"
	TurnPaused    = "paused"
	TurnFailed    = "failed"
)

// Collector holds the agent's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	nodeRuns        *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	pauses          prometheus.Counter
	resumes         prometheus.Counter
	turns           *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandDuration prometheus.Histogram
}

// NewCollector builds a Collector with a fresh registry that also carries
// the standard Go runtime collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		nodeRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Workflow node executions by node and outcome.",
		}, []string{"node", "outcome"}),
		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Wall-clock time spent inside each workflow node.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"node"}),
		pauses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_total",
			Help:      "Times the engine suspended for approval.",
		}),
		resumes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resumes_total",
			Help:      "Times a suspended thread was resumed.",
		}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Sandboxed commands by outcome.",
		}, []string{"outcome"}),
		commandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall-clock time of sandboxed commands.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	registry.MustRegister(collectors.NewGoCollector())
	return c
}

// Registry returns the registry backing this collector, for HTTP exposure.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Hooks returns engine lifecycle callbacks that feed the collector.
func (c *Collector) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) {
			outcome := "ok"
			if ev.Err != "" {
				outcome = "error"
			}
			c.nodeRuns.WithLabelValues(ev.NodeID, outcome).Inc()
			c.nodeDuration.WithLabelValues(ev.NodeID).Observe(ev.Duration.Seconds())
		},
		OnPause: func(_ context.Context, _ *domain.PauseEvent) {
			c.pauses.Inc()
		},
		OnResume: func(_ context.Context, _ *domain.PauseEvent) {
			c.resumes.Inc()
		},
		OnCommand: func(_ context.Context, ev *domain.CommandEvent) {
			c.observeCommand(ev.Command, ev.ExitCode, ev.Duration)
		},
	}
}

// Observer returns a sandbox observer recording every command attempt.
func (c *Collector) Observer() sandbox.Observer {
	return func(command string, result domain.CommandResult, duration time.Duration) {
		c.observeCommand(command, result.ExitCode, duration)
	}
}

// IncTurn records one finished conversation turn. Outcome is one of the
// Turn* constants.
func (c *Collector) IncTurn(outcome string) {
	c.turns.WithLabelValues(outcome).Inc()
}

func (c *Collector) observeCommand(command string, exitCode int, duration time.Duration) {
	c.commands.WithLabelValues(commandOutcome(command, exitCode)).Inc()
	c.commandDuration.Observe(duration.Seconds())
}

// commandOutcome folds an exit code into a bounded label set. ExitBlocked is
// shared with spawn failures, so the denylist check is repeated to tell the
// two apart.
func commandOutcome(command string, exitCode int) string {
	switch exitCode {
	case 0:
		return OutcomeOK
	case domain.ExitTimeout:
		return OutcomeTimeout
	case domain.ExitBlocked:
		if _, blocked := domain.BlockedCommand(command); blocked {
			return OutcomeBlocked
		}
		return OutcomeFailed
	default:
		return OutcomeNonzero
	}
}
