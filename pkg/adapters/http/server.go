// Package http exposes a read-mostly inspection API over the agent's
// threads: snapshot listing and retrieval, the compiled workflow graph,
// Prometheus metrics and a server-sent event stream of engine lifecycle
// events. Turns themselves stay on the CLI; the API is for watching, not
// driving.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/furrow/internal/logging"
	present "github.com/aretw0/furrow/internal/presentation/graph"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
	"github.com/aretw0/furrow/pkg/ports"
)

// Config wires the server's collaborators.
type Config struct {
	Store ports.SnapshotStore

	// Graph is the compiled workflow description served by /graph.
	Graph graph.Description

	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer

	Version string
	Logger  *slog.Logger
}

// Server serves the inspection API.
type Server struct {
	store   ports.SnapshotStore
	desc    graph.Description
	metrics prometheus.Gatherer
	version string
	logger  *slog.Logger
	streams *StreamManager
}

// NewServer builds a Server from cfg. Config.Store is required.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("http server requires a snapshot store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		store:   cfg.Store,
		desc:    cfg.Graph,
		metrics: cfg.Metrics,
		version: cfg.Version,
		logger:  logger,
		streams: NewStreamManager(logger),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/graph", s.getGraph)
	r.Get("/graph/mermaid", s.getGraphMermaid)
	r.Get("/threads", s.listThreads)
	r.Get("/threads/{threadID}", s.getThread)
	r.Delete("/threads/{threadID}", s.deleteThread)
	r.Get("/events", s.subscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	return enableCORS(r)
}

// Hooks returns lifecycle callbacks that broadcast engine events to SSE
// subscribers.
func (s *Server) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, ev *domain.NodeEvent) {
			s.broadcast(ev.ThreadID, ev)
		},
		OnNodeLeave: func(_ context.Context, ev *domain.NodeEvent) {
			s.broadcast(ev.ThreadID, ev)
		},
		OnPause: func(_ context.Context, ev *domain.PauseEvent) {
			s.broadcast(ev.ThreadID, ev)
		},
		OnResume: func(_ context.Context, ev *domain.PauseEvent) {
			s.broadcast(ev.ThreadID, ev)
		},
	}
}

func (s *Server) broadcast(threadID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("event marshal failed", "err", err)
		return
	}
	s.streams.Broadcast(threadID, string(payload))
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "furrow",
		"version": s.version,
	})
}

func (s *Server) getGraph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.desc)
}

func (s *Server) getGraphMermaid(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, present.GenerateMermaid(s.desc, nil))
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("thread listing failed", "err", err)
		http.Error(w, "thread listing failed", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": ids})
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	state, err := s.store.Load(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrThreadNotFound):
		http.Error(w, "thread not found", http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("thread load failed", "thread_id", id, "err", err)
		http.Error(w, "thread load failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "threadID")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.logger.Error("thread delete failed", "thread_id", id, "err", err)
		http.Error(w, "thread delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subscribeEvents streams lifecycle events as SSE. A thread_id query
// parameter narrows the stream to one thread; without it the subscriber
// sees every thread.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	threadID := r.URL.Query().Get("thread_id")
	ch, cancel := s.streams.Subscribe(threadID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "err", err)
	}
}

