package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/furrow/pkg/domain"
)

// End is the terminal pseudo-node. Routing to End finishes the walk; a node
// with no outgoing edge routes to End implicitly.
const End = "__end__"

// NodeFunc is one unit of work. It receives its own copy of the current
// snapshot and returns the delta to merge; it must not retain the state
// beyond the call.
type NodeFunc func(ctx context.Context, state *domain.State) (domain.Update, error)

// RouteFunc picks the label of the outgoing conditional edge after a node
// has run. The label must be one of the targets declared for that node.
type RouteFunc func(state *domain.State) string

type nodeDef struct {
	id  string
	run NodeFunc
	sub *Compiled
}

type conditional struct {
	route   RouteFunc
	targets map[string]string
}

// Builder assembles a graph. Registration calls never fail individually;
// structural problems are collected and reported by Compile.
type Builder struct {
	name         string
	nodes        map[string]*nodeDef
	order        []string
	edges        map[string]string
	conditionals map[string]*conditional
	entry        string
	external     []string
	errs         []string
}

// New creates a named graph builder.
func New(name string) *Builder {
	return &Builder{
		name:         name,
		nodes:        make(map[string]*nodeDef),
		edges:        make(map[string]string),
		conditionals: make(map[string]*conditional),
	}
}

// AddNode registers a work node under the given id.
func (b *Builder) AddNode(id string, fn NodeFunc) *Builder {
	if fn == nil {
		b.errs = append(b.errs, fmt.Sprintf("node %q has a nil function", id))
		return b
	}
	return b.add(&nodeDef{id: id, run: fn})
}

// AddSubgraph registers a compiled graph as a single node. The subgraph runs
// to its own End inside one parent-level node boundary: interrupts apply at
// the boundary, never inside.
func (b *Builder) AddSubgraph(id string, sub *Compiled) *Builder {
	if sub == nil {
		b.errs = append(b.errs, fmt.Sprintf("subgraph %q is nil", id))
		return b
	}
	return b.add(&nodeDef{id: id, sub: sub})
}

func (b *Builder) add(n *nodeDef) *Builder {
	if n.id == "" {
		b.errs = append(b.errs, "node with empty id")
		return b
	}
	if _, exists := b.nodes[n.id]; exists {
		b.errs = append(b.errs, fmt.Sprintf("node %q registered twice", n.id))
		return b
	}
	b.nodes[n.id] = n
	b.order = append(b.order, n.id)
	return b
}

// AddEdge declares a static transition from one node to another (or to End).
func (b *Builder) AddEdge(from, to string) *Builder {
	if _, exists := b.edges[from]; exists {
		b.errs = append(b.errs, fmt.Sprintf("node %q already has a static edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges declares that the transition out of a node is decided
// at run time: route inspects the post-node state and returns one of the
// labels in targets.
func (b *Builder) AddConditionalEdges(from string, route RouteFunc, targets map[string]string) *Builder {
	if route == nil {
		b.errs = append(b.errs, fmt.Sprintf("node %q has a nil route function", from))
		return b
	}
	if len(targets) == 0 {
		b.errs = append(b.errs, fmt.Sprintf("node %q has no conditional targets", from))
		return b
	}
	if _, exists := b.conditionals[from]; exists {
		b.errs = append(b.errs, fmt.Sprintf("node %q already has conditional edges", from))
		return b
	}
	copied := make(map[string]string, len(targets))
	for label, to := range targets {
		copied[label] = to
	}
	b.conditionals[from] = &conditional{route: route, targets: copied}
	return b
}

// SetEntry declares the node every walk starts from.
func (b *Builder) SetEntry(id string) *Builder {
	b.entry = id
	return b
}

// AllowEntry marks a node as an external entry point: it is entered from
// outside via Engine.RunFrom rather than through an edge, and it seeds the
// reachability validation the same way the entry node does.
func (b *Builder) AllowEntry(id string) *Builder {
	b.external = append(b.external, id)
	return b
}

// Compile validates the graph and freezes it. It checks that the entry
// exists, that every edge endpoint is a registered node or End, that no
// node carries both a static and a conditional transition, and that every
// node is reachable from the entry.
func (b *Builder) Compile() (*Compiled, error) {
	errs := append([]string(nil), b.errs...)

	if b.entry == "" {
		errs = append(errs, "no entry node set")
	} else if _, ok := b.nodes[b.entry]; !ok {
		errs = append(errs, fmt.Sprintf("entry node %q not registered", b.entry))
	}

	for _, id := range b.external {
		if _, ok := b.nodes[id]; !ok {
			errs = append(errs, fmt.Sprintf("external entry %q not registered", id))
		}
	}

	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Sprintf("edge from unknown node %q", from))
		}
		if to != End {
			if _, ok := b.nodes[to]; !ok {
				errs = append(errs, fmt.Sprintf("edge %q -> %q targets unknown node", from, to))
			}
		}
		if _, both := b.conditionals[from]; both {
			errs = append(errs, fmt.Sprintf("node %q has both a static edge and conditional edges", from))
		}
	}

	for from, cond := range b.conditionals {
		if _, ok := b.nodes[from]; !ok {
			errs = append(errs, fmt.Sprintf("conditional edges from unknown node %q", from))
		}
		for label, to := range cond.targets {
			if to == End {
				continue
			}
			if _, ok := b.nodes[to]; !ok {
				errs = append(errs, fmt.Sprintf("conditional %q[%s] -> %q targets unknown node", from, label, to))
			}
		}
	}

	if len(errs) == 0 {
		for _, id := range b.unreachable() {
			errs = append(errs, fmt.Sprintf("node %q is unreachable from entry %q", id, b.entry))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("graph %q has %d problems:\n- %s", b.name, len(errs), strings.Join(errs, "\n- "))
	}

	nodes := make(map[string]*nodeDef, len(b.nodes))
	for id, n := range b.nodes {
		nodes[id] = n
	}
	edges := make(map[string]string, len(b.edges))
	for from, to := range b.edges {
		edges[from] = to
	}
	conditionals := make(map[string]*conditional, len(b.conditionals))
	for from, cond := range b.conditionals {
		conditionals[from] = cond
	}

	return &Compiled{
		name:         b.name,
		entry:        b.entry,
		external:     append([]string(nil), b.external...),
		nodes:        nodes,
		order:        append([]string(nil), b.order...),
		edges:        edges,
		conditionals: conditionals,
	}, nil
}

// unreachable crawls from the entry points and returns registered nodes the
// walk can never visit, in registration order.
func (b *Builder) unreachable() []string {
	visited := map[string]bool{}
	queue := append([]string{b.entry}, b.external...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == End || visited[current] {
			continue
		}
		visited[current] = true

		if to, ok := b.edges[current]; ok {
			queue = append(queue, to)
		}
		if cond, ok := b.conditionals[current]; ok {
			for _, to := range cond.targets {
				queue = append(queue, to)
			}
		}
	}

	var missing []string
	for _, id := range b.order {
		if !visited[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Compiled is an immutable, validated graph ready to be walked.
type Compiled struct {
	name         string
	entry        string
	external     []string
	nodes        map[string]*nodeDef
	order        []string
	edges        map[string]string
	conditionals map[string]*conditional
}

// Name returns the graph's name.
func (c *Compiled) Name() string { return c.name }

// Entry returns the id of the entry node.
func (c *Compiled) Entry() string { return c.entry }

// next resolves the node that follows from after its update was applied.
func (c *Compiled) next(from string, state *domain.State) (string, error) {
	if cond, ok := c.conditionals[from]; ok {
		label := cond.route(state)
		to, ok := cond.targets[label]
		if !ok {
			return "", fmt.Errorf("node %q routed to undeclared label %q", from, label)
		}
		return to, nil
	}
	if to, ok := c.edges[from]; ok {
		return to, nil
	}
	return End, nil
}

// NodeInfo describes one node of a compiled graph.
type NodeInfo struct {
	ID       string       `json:"id"`
	Subgraph *Description `json:"subgraph,omitempty"`
}

// EdgeInfo describes one transition of a compiled graph. Label is empty for
// static edges and carries the routing label for conditional ones.
type EdgeInfo struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Label       string `json:"label,omitempty"`
	Conditional bool   `json:"conditional,omitempty"`
}

// Description is a walkable summary of a compiled graph, used by the
// visualization and inspection surfaces.
type Description struct {
	Name            string     `json:"name"`
	Entry           string     `json:"entry"`
	ExternalEntries []string   `json:"external_entries,omitempty"`
	Nodes           []NodeInfo `json:"nodes"`
	Edges           []EdgeInfo `json:"edges"`
}

// Describe flattens the graph into a deterministic description: nodes in
// registration order, conditional targets sorted by label.
func (c *Compiled) Describe() Description {
	d := Description{
		Name:            c.name,
		Entry:           c.entry,
		ExternalEntries: append([]string(nil), c.external...),
	}

	for _, id := range c.order {
		info := NodeInfo{ID: id}
		if sub := c.nodes[id].sub; sub != nil {
			subDesc := sub.Describe()
			info.Subgraph = &subDesc
		}
		d.Nodes = append(d.Nodes, info)
	}

	for _, id := range c.order {
		if to, ok := c.edges[id]; ok {
			d.Edges = append(d.Edges, EdgeInfo{From: id, To: to})
		}
		cond, ok := c.conditionals[id]
		if !ok {
			continue
		}
		labels := make([]string, 0, len(cond.targets))
		for label := range cond.targets {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			d.Edges = append(d.Edges, EdgeInfo{From: id, To: cond.targets[label], Label: label, Conditional: true})
		}
	}

	return d
}
