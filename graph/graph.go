package graph

import "github.com/existential-birds/amelia-sub017/domain"

// Graph is a fixed, named set of nodes and the edges routing between them.
// It carries no execution state of its own — a Runtime walks it against a
// particular workflow's checkpoints.
type Graph struct {
	nodes            map[string]Node
	edges            map[string][]Edge // keyed by From, preserves declaration order
	entry            string
	staticInterrupts map[string]bool // node IDs the runtime pauses before entering
}

// NewGraph constructs an empty Graph with the given entry node ID. AddNode
// for entry must be called before the Graph is used.
func NewGraph(entry string) *Graph {
	return &Graph{
		nodes:            make(map[string]Node),
		edges:            make(map[string][]Edge),
		entry:            entry,
		staticInterrupts: make(map[string]bool),
	}
}

// AddNode registers a node. Panics on duplicate IDs — a Graph is assembled
// once at startup by application code, not at runtime from untrusted input.
func (g *Graph) AddNode(n Node) *Graph {
	if _, exists := g.nodes[n.ID()]; exists {
		panic("graph: duplicate node id " + n.ID())
	}
	g.nodes[n.ID()] = n
	return g
}

// Connect adds an edge from -> to, optionally gated by when.
func (g *Graph) Connect(from, to string, when Predicate) *Graph {
	g.edges[from] = append(g.edges[from], Edge{From: from, To: to, When: when})
	return g
}

// InterruptBefore marks nodeID as a static interrupt: the runtime pauses
// before entering it unless a resume command targeting it is already queued.
func (g *Graph) InterruptBefore(nodeID string) *Graph {
	g.staticInterrupts[nodeID] = true
	return g
}

// Validate checks that the entry node and every edge endpoint are
// registered. Call once after assembling a Graph.
func (g *Graph) Validate() error {
	if g.entry == "" {
		return ErrNoEntryNode
	}
	if _, ok := g.nodes[g.entry]; !ok {
		return ErrNoEntryNode
	}
	for from, edges := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return ErrUnknownNode
		}
		for _, e := range edges {
			if _, ok := g.nodes[e.To]; !ok {
				return ErrUnknownNode
			}
		}
	}
	return nil
}

func (g *Graph) node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) isStaticInterrupt(id string) bool {
	return g.staticInterrupts[id]
}

// resolveNext applies explicit routing first, then falls back to the first
// matching outgoing edge in declaration order.
func (g *Graph) resolveNext(from string, route Next, state domain.ExecutionState) (string, bool, error) {
	if !route.isZero() {
		if route.Terminal {
			return "", true, nil
		}
		if _, ok := g.nodes[route.To]; !ok {
			return "", false, ErrUnknownNode
		}
		return route.To, false, nil
	}
	for _, e := range g.edges[from] {
		if e.matches(state) {
			return e.To, false, nil
		}
	}
	return "", false, ErrNoRoute
}
