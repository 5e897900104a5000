package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/furrow"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
)

// TurnResponse is the unified result shape for every tool that advances a
// thread. It mirrors the payloads of the HTTP adapter so MCP clients and
// REST clients see the same picture.
type TurnResponse struct {
	ThreadID string        `json:"thread_id" jsonschema_description:"Thread the turn ran on"`
	State    *domain.State `json:"state,omitempty" jsonschema_description:"State snapshot after the turn"`
	Paused   bool          `json:"paused" jsonschema_description:"True when the thread stopped at the approval gate"`
	PausedAt string        `json:"paused_at,omitempty" jsonschema_description:"Node holding the pause"`
	Reply    string        `json:"reply,omitempty" jsonschema_description:"Latest assistant reply, empty while paused"`
}

// Agent defines the surface the MCP server drives.
type Agent interface {
	Turn(ctx context.Context, threadID, input string) (*furrow.TurnResult, error)
	Approve(ctx context.Context, threadID string) (*furrow.TurnResult, error)
	Reject(ctx context.Context, threadID string) (*domain.State, error)
	Refine(ctx context.Context, threadID, feedback string) (*furrow.TurnResult, error)
	State(ctx context.Context, threadID string) (*domain.State, error)
	Threads(ctx context.Context) ([]string, error)
	Describe() graph.Description
}

// Server wraps an Agent and exposes it as an MCP Server.
type Server struct {
	agent     Agent
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(agent Agent) *Server {
	s := &Server{
		agent:     agent,
		mcpServer: server.NewMCPServer("furrow-mcp", strings.TrimSpace(furrow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		fmt.Println("\nShutdown signal received, shutting down server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("CORS Middleware", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Baggage, Sentry-Trace")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: run_turn
	runTool := mcp.NewTool("run_turn",
		mcp.WithDescription("Send a user message to a thread. Command requests pause at the approval gate instead of executing."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation thread identifier")),
		mcp.WithString("input", mcp.Required(), mcp.Description("User message")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(runTool, mcp.NewStructuredToolHandler(s.handleRunTurn))

	// TOOL: approve
	approveTool := mcp.NewTool("approve",
		mcp.WithDescription("Approve the pending plan on a thread and run it to completion."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread holding a pending plan")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(approveTool, mcp.NewStructuredToolHandler(s.handleApprove))

	// TOOL: reject
	rejectTool := mcp.NewTool("reject",
		mcp.WithDescription("Reject the pending plan on a thread. The plan is discarded and nothing runs."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread holding a pending plan")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(rejectTool, mcp.NewStructuredToolHandler(s.handleReject))

	// TOOL: refine
	refineTool := mcp.NewTool("refine",
		mcp.WithDescription("Redraft the pending plan from feedback. The thread pauses again on the new draft."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Thread holding a pending plan")),
		mcp.WithString("feedback", mcp.Required(), mcp.Description("What to change about the plan")),
		mcp.WithOutputSchema[TurnResponse](),
	)
	s.mcpServer.AddTool(refineTool, mcp.NewStructuredToolHandler(s.handleRefine))

	// TOOL: get_state
	stateTool := mcp.NewTool("get_state",
		mcp.WithDescription("Get the persisted state snapshot of a thread."),
		mcp.WithString("thread_id", mcp.Required(), mcp.Description("Conversation thread identifier")),
		mcp.WithOutputSchema[domain.State](),
	)
	s.mcpServer.AddTool(stateTool, mcp.NewStructuredToolHandler(s.handleGetState))

	// TOOL: list_threads
	s.mcpServer.AddTool(mcp.NewTool("list_threads",
		mcp.WithDescription("List every persisted thread ID."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		threads, err := s.agent.Threads(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		if threads == nil {
			threads = []string{}
		}
		jsonBytes, _ := json.Marshal(threads)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the full workflow graph for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.agent.Describe())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleRunTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	threadID, _ := args["thread_id"].(string)
	input, _ := args["input"].(string)
	if threadID == "" {
		return TurnResponse{}, fmt.Errorf("thread_id is required")
	}

	res, err := s.agent.Turn(ctx, threadID, input)
	if err != nil {
		slog.Warn("MCP run_turn: turn rejected", "thread_id", threadID, "error", err)
		return TurnResponse{}, fmt.Errorf("turn failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleApprove(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	threadID, _ := args["thread_id"].(string)
	if threadID == "" {
		return TurnResponse{}, fmt.Errorf("thread_id is required")
	}

	res, err := s.agent.Approve(ctx, threadID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("approve failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleReject(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	threadID, _ := args["thread_id"].(string)
	if threadID == "" {
		return TurnResponse{}, fmt.Errorf("thread_id is required")
	}

	state, err := s.agent.Reject(ctx, threadID)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("reject failed: %w", err)
	}
	return TurnResponse{ThreadID: threadID, State: state}, nil
}

func (s *Server) handleRefine(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TurnResponse, error) {
	threadID, _ := args["thread_id"].(string)
	feedback, _ := args["feedback"].(string)
	if threadID == "" {
		return TurnResponse{}, fmt.Errorf("thread_id is required")
	}

	res, err := s.agent.Refine(ctx, threadID, feedback)
	if err != nil {
		slog.Warn("MCP refine: feedback rejected", "thread_id", threadID, "error", err)
		return TurnResponse{}, fmt.Errorf("refine failed: %w", err)
	}
	return toResponse(res), nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.State, error) {
	threadID, _ := args["thread_id"].(string)
	if threadID == "" {
		return domain.State{}, fmt.Errorf("thread_id is required")
	}

	state, err := s.agent.State(ctx, threadID)
	if err != nil {
		return domain.State{}, fmt.Errorf("state failed: %w", err)
	}
	return *state, nil
}

func toResponse(res *furrow.TurnResult) TurnResponse {
	return TurnResponse{
		ThreadID: res.ThreadID,
		State:    res.State,
		Paused:   res.Paused,
		PausedAt: res.PausedAt,
		Reply:    res.Reply,
	}
}

func (s *Server) registerResources() {
	// EXPOSE: furrow://graph
	s.mcpServer.AddResource(mcp.NewResource("furrow://graph", "Workflow Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.agent.Describe())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal graph: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "furrow://graph",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
