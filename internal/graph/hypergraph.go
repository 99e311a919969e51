package graph

import (
	"fmt"
	"slices"
)

// Hypergraph owns every node and hyperedge of one scope.
// Invariant: each id an edge references is a node in the graph.
// Iteration follows insertion order. Not safe for concurrent mutation.
type Hypergraph struct {
	ID   string
	Name string

	nodes     map[string]Node
	nodeOrder []string
	edges     map[string]Hyperedge
	edgeOrder []string
}

// New creates an empty hypergraph. An empty id is generated.
func New(id, name string) *Hypergraph {
	return &Hypergraph{
		ID:    idOrNew(id),
		Name:  name,
		nodes: make(map[string]Node),
		edges: make(map[string]Hyperedge),
	}
}

// AddNode inserts n. Returns ErrDuplicateID if the id is already taken by a node.
func (g *Hypergraph) AddNode(n Node) error {
	if n == nil {
		return ErrNilEntity
	}
	if _, exists := g.nodes[n.ID()]; exists {
		return &DuplicateIDError{ID: n.ID()}
	}
	g.nodes[n.ID()] = n
	g.nodeOrder = append(g.nodeOrder, n.ID())
	return nil
}

// AddEdge inserts e after checking every referenced node exists.
// On any missing reference nothing is stored.
func (g *Hypergraph) AddEdge(e Hyperedge) error {
	if e == nil {
		return ErrNilEntity
	}
	if _, exists := g.edges[e.ID()]; exists {
		return &DuplicateIDError{ID: e.ID()}
	}
	if missing := g.missingNodes(e); len(missing) > 0 {
		return &DanglingReferenceError{EdgeID: e.ID(), Missing: missing}
	}
	g.insertEdge(e)
	return nil
}

func (g *Hypergraph) insertEdge(e Hyperedge) {
	g.edges[e.ID()] = e
	g.edgeOrder = append(g.edgeOrder, e.ID())
}

func (g *Hypergraph) missingNodes(e Hyperedge) []string {
	var missing []string
	for _, id := range e.Nodes() {
		if _, ok := g.nodes[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Node returns the node with the given id.
func (g *Hypergraph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given id.
func (g *Hypergraph) Edge(id string) (Hyperedge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// NodeCount returns the number of nodes.
func (g *Hypergraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Hypergraph) EdgeCount() int { return len(g.edges) }

// Nodes returns all nodes in insertion order.
func (g *Hypergraph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Hypergraph) Edges() []Hyperedge {
	out := make([]Hyperedge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// EdgesIncidentTo returns every edge containing nodeID, in insertion order.
func (g *Hypergraph) EdgesIncidentTo(nodeID string) []Hyperedge {
	var out []Hyperedge
	for _, id := range g.edgeOrder {
		if e := g.edges[id]; e.Contains(nodeID) {
			out = append(out, e)
		}
	}
	return out
}

// ConnectedNodes returns the ids that share at least one edge with nodeID,
// excluding nodeID itself. The result is sorted.
func (g *Hypergraph) ConnectedNodes(nodeID string) []string {
	set := make(map[string]struct{})
	for _, e := range g.EdgesIncidentTo(nodeID) {
		for _, n := range e.Nodes() {
			if n != nodeID {
				set[n] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// RemoveNode deletes the node and every edge incident to it.
// Returns the ids of the removed edges. Unknown ids are a no-op.
func (g *Hypergraph) RemoveNode(id string) []string {
	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	var removed []string
	for _, e := range g.EdgesIncidentTo(id) {
		removed = append(removed, e.ID())
	}
	for _, eid := range removed {
		g.RemoveEdge(eid)
	}
	delete(g.nodes, id)
	g.nodeOrder = removeID(g.nodeOrder, id)
	return removed
}

// RemoveEdge deletes the edge. Nodes are never affected. Unknown ids are a no-op.
func (g *Hypergraph) RemoveEdge(id string) {
	if _, ok := g.edges[id]; !ok {
		return
	}
	delete(g.edges, id)
	g.edgeOrder = removeID(g.edgeOrder, id)
}

// Validate reports every edge reference to a node the graph does not hold.
// Graphs built only through AddEdge always validate clean.
func (g *Hypergraph) Validate() []ValidationError {
	var errs []ValidationError
	for _, id := range g.edgeOrder {
		for _, ref := range g.missingNodes(g.edges[id]) {
			errs = append(errs, ValidationError{EdgeID: id, RefID: ref, Issue: "dangling"})
		}
	}
	return errs
}

// PruneDangling removes edges with dangling references and returns their ids.
func (g *Hypergraph) PruneDangling() []string {
	var pruned []string
	for _, id := range slices.Clone(g.edgeOrder) {
		if len(g.missingNodes(g.edges[id])) > 0 {
			g.RemoveEdge(id)
			pruned = append(pruned, id)
		}
	}
	return pruned
}

// String summarises the graph for logs.
func (g *Hypergraph) String() string {
	return fmt.Sprintf("%s(id=%s, nodes=%d, edges=%d)", g.Name, g.ID, len(g.nodes), len(g.edges))
}

// NodesOf returns all nodes of concrete type T in insertion order.
func NodesOf[T Node](g *Hypergraph) []T {
	var out []T
	for _, id := range g.nodeOrder {
		if n, ok := g.nodes[id].(T); ok {
			out = append(out, n)
		}
	}
	return out
}

// EdgesOf returns all edges of concrete type T in insertion order.
func EdgesOf[T Hyperedge](g *Hypergraph) []T {
	var out []T
	for _, id := range g.edgeOrder {
		if e, ok := g.edges[id].(T); ok {
			out = append(out, e)
		}
	}
	return out
}

func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
