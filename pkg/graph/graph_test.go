package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/domain"
)

func noop(ctx context.Context, s *domain.State) (domain.Update, error) {
	return domain.Update{}, nil
}

func TestBuilder_Compile(t *testing.T) {
	g, err := New("flow").
		AddNode("a", noop).
		AddNode("b", noop).
		AddEdge("a", "b").
		AddEdge("b", End).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "flow", g.Name())
	assert.Equal(t, "a", g.Entry())
}

func TestBuilder_CompileErrors(t *testing.T) {
	cases := []struct {
		name    string
		build   func() *Builder
		wantErr string
	}{
		{
			name:    "missing entry",
			build:   func() *Builder { return New("g").AddNode("a", noop) },
			wantErr: "no entry node set",
		},
		{
			name:    "unknown entry",
			build:   func() *Builder { return New("g").AddNode("a", noop).SetEntry("nope") },
			wantErr: `entry node "nope" not registered`,
		},
		{
			name: "duplicate node",
			build: func() *Builder {
				return New("g").AddNode("a", noop).AddNode("a", noop).SetEntry("a")
			},
			wantErr: `node "a" registered twice`,
		},
		{
			name: "edge to unknown node",
			build: func() *Builder {
				return New("g").AddNode("a", noop).AddEdge("a", "ghost").SetEntry("a")
			},
			wantErr: `targets unknown node`,
		},
		{
			name: "static and conditional edges on one node",
			build: func() *Builder {
				return New("g").
					AddNode("a", noop).
					AddNode("b", noop).
					AddEdge("a", "b").
					AddConditionalEdges("a", func(*domain.State) string { return "x" }, map[string]string{"x": "b"}).
					SetEntry("a")
			},
			wantErr: "both a static edge and conditional edges",
		},
		{
			name: "unreachable node",
			build: func() *Builder {
				return New("g").
					AddNode("a", noop).
					AddNode("island", noop).
					AddEdge("a", End).
					SetEntry("a")
			},
			wantErr: `node "island" is unreachable`,
		},
		{
			name: "conditional target unknown",
			build: func() *Builder {
				return New("g").
					AddNode("a", noop).
					AddConditionalEdges("a", func(*domain.State) string { return "x" }, map[string]string{"x": "ghost"}).
					SetEntry("a")
			},
			wantErr: "targets unknown node",
		},
		{
			name:    "nil node func",
			build:   func() *Builder { return New("g").AddNode("a", nil).SetEntry("a") },
			wantErr: "nil function",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build().Compile()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCompiled_Next(t *testing.T) {
	g, err := New("g").
		AddNode("router", noop).
		AddNode("chat", noop).
		AddNode("plan", noop).
		AddConditionalEdges("router", func(s *domain.State) string { return s.RouteTarget }, map[string]string{
			"chat": "chat",
			"plan": "plan",
		}).
		AddEdge("plan", End).
		SetEntry("router").
		Compile()
	require.NoError(t, err)

	state := domain.NewState()
	state.RouteTarget = "plan"
	next, err := g.next("router", state)
	require.NoError(t, err)
	assert.Equal(t, "plan", next)

	next, err = g.next("plan", state)
	require.NoError(t, err)
	assert.Equal(t, End, next)

	// chat has no outgoing edge at all
	next, err = g.next("chat", state)
	require.NoError(t, err)
	assert.Equal(t, End, next)

	state.RouteTarget = "bogus"
	_, err = g.next("router", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undeclared label "bogus"`)
}

func TestCompiled_Describe(t *testing.T) {
	inner, err := New("exec").
		AddNode("parse", noop).
		AddNode("run", noop).
		AddEdge("parse", "run").
		AddEdge("run", End).
		SetEntry("parse").
		Compile()
	require.NoError(t, err)

	g, err := New("flow").
		AddNode("router", noop).
		AddSubgraph("exec", inner).
		AddNode("chat", noop).
		AddConditionalEdges("router", func(s *domain.State) string { return s.RouteTarget }, map[string]string{
			"execute": "exec",
			"chat":    "chat",
		}).
		SetEntry("router").
		Compile()
	require.NoError(t, err)

	d := g.Describe()
	assert.Equal(t, "flow", d.Name)
	assert.Equal(t, "router", d.Entry)

	require.Len(t, d.Nodes, 3)
	assert.Equal(t, []string{"router", "exec", "chat"}, []string{d.Nodes[0].ID, d.Nodes[1].ID, d.Nodes[2].ID})
	require.NotNil(t, d.Nodes[1].Subgraph)
	assert.Equal(t, "exec", d.Nodes[1].Subgraph.Name)
	assert.Len(t, d.Nodes[1].Subgraph.Nodes, 2)

	// conditional edges come out sorted by label
	require.Len(t, d.Edges, 2)
	assert.Equal(t, EdgeInfo{From: "router", To: "chat", Label: "chat", Conditional: true}, d.Edges[0])
	assert.Equal(t, EdgeInfo{From: "router", To: "exec", Label: "execute", Conditional: true}, d.Edges[1])
}
