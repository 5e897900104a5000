package graph_test

import (
	"context"
	"strings"
	"testing"

	present "github.com/aretw0/furrow/internal/presentation/graph"
	"github.com/aretw0/furrow/pkg/domain"
	"github.com/aretw0/furrow/pkg/graph"
)

func noop(context.Context, *domain.State) (domain.Update, error) {
	return domain.Update{}, nil
}

func compile(t *testing.T, b *graph.Builder) graph.Description {
	t.Helper()
	c, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return c.Describe()
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		build    func(t *testing.T) graph.Description
		overlay  *present.Overlay
		contains []string
	}{
		{
			name: "entry node is a circle",
			build: func(t *testing.T) graph.Description {
				b := graph.New("demo").
					AddNode("router", noop).
					AddNode("chat", noop).
					SetEntry("router").
					AddEdge("router", "chat").
					AddEdge("chat", graph.End)
				return compile(t, b)
			},
			contains: []string{
				`router(("router"))`,
				`chat["chat"]`,
				`router --> chat`,
			},
		},
		{
			name: "conditional labels are quoted and escaped",
			build: func(t *testing.T) graph.Description {
				b := graph.New("demo").
					AddNode("router", noop).
					AddNode("chat", noop).
					SetEntry("router").
					AddConditionalEdges("router", func(*domain.State) string { return "say \"hi\"" },
						map[string]string{"say \"hi\"": "chat"}).
					AddEdge("chat", graph.End)
				return compile(t, b)
			},
			contains: []string{
				`router -- "say 'hi'" --> chat`,
			},
		},
		{
			name: "end target is declared once",
			build: func(t *testing.T) graph.Description {
				b := graph.New("demo").
					AddNode("a", noop).
					SetEntry("a").
					AddEdge("a", graph.End)
				return compile(t, b)
			},
			contains: []string{
				`__end__(("end"))`,
				`a --> __end__`,
			},
		},
		{
			name: "subgraph nodes are qualified",
			build: func(t *testing.T) graph.Description {
				inner, err := graph.New("executor").
					AddNode("step_parser", noop).
					AddNode("terminal_runner", noop).
					SetEntry("step_parser").
					AddEdge("step_parser", "terminal_runner").
					AddEdge("terminal_runner", graph.End).
					Compile()
				if err != nil {
					t.Fatalf("Compile() error = %v", err)
				}
				b := graph.New("agent").
					AddSubgraph("executor", inner).
					SetEntry("executor").
					AddEdge("executor", graph.End)
				return compile(t, b)
			},
			contains: []string{
				`subgraph executor["executor"]`,
				`executor_step_parser["step_parser"]`,
				`executor_step_parser --> executor_terminal_runner`,
			},
		},
		{
			name: "external entries get the entry style",
			build: func(t *testing.T) graph.Description {
				b := graph.New("demo").
					AddNode("planner", noop).
					AddNode("plan_refiner", noop).
					SetEntry("planner").
					AllowEntry("plan_refiner").
					AddEdge("planner", graph.End).
					AddEdge("plan_refiner", "planner")
				return compile(t, b)
			},
			contains: []string{
				`class plan_refiner entry;`,
			},
		},
		{
			name: "overlay highlights visited and current",
			build: func(t *testing.T) graph.Description {
				b := graph.New("demo").
					AddNode("router", noop).
					AddNode("planner", noop).
					SetEntry("router").
					AddEdge("router", "planner").
					AddEdge("planner", graph.End)
				return compile(t, b)
			},
			overlay: &present.Overlay{
				VisitedNodes: []string{"router", "router"},
				CurrentNode:  "planner",
			},
			contains: []string{
				"class router visited;",
				"class planner current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := present.GenerateMermaid(tt.build(t), tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() missing %q in:\n%s", want, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_DeduplicatesVisited(t *testing.T) {
	b := graph.New("demo").
		AddNode("router", noop).
		SetEntry("router").
		AddEdge("router", graph.End)
	desc := compile(t, b)

	got := present.GenerateMermaid(desc, &present.Overlay{
		VisitedNodes: []string{"router", "router", "router"},
	})
	if n := strings.Count(got, "class router visited;"); n != 1 {
		t.Errorf("visited style emitted %d times, want 1", n)
	}
}
