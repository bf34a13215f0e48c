package core

import (
	"fmt"
	"math/rand"

	"github.com/EthelSakyi/SIRVariation/model"
)

// ContactGraph is an undirected spatial contact network. Node identifiers
// are slice indices; adjacency is kept as index lists so neighbor
// iteration during a simulation step stays allocation-free.
//
// The graph is built once and never modified after it is handed to an
// Engine: epidemic state lives in the engine, not in the graph.
type ContactGraph struct {
	positions []model.Point
	adj       [][]int
	edges     int
}

// NewGraph constructs an edgeless graph over the given node positions.
// Edges are added explicitly with AddEdge; this path exists for tests and
// for scenario files that pin down an exact topology.
func NewGraph(positions []model.Point) *ContactGraph {
	pos := make([]model.Point, len(positions))
	copy(pos, positions)
	return &ContactGraph{
		positions: pos,
		adj:       make([][]int, len(pos)),
	}
}

// NewGeometricGraph draws n node positions uniformly at random in the
// unit square and connects every pair at Euclidean distance <= radius.
// The pairwise check is O(n^2), which is fine at the intended scale of
// hundreds of nodes.
//
// Generation is fully determined by (n, radius) and the injected random
// source, so runs are reproducible given a fixed seed.
func NewGeometricGraph(n int, radius float64, rng *rand.Rand) (*ContactGraph, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: node count must be positive, got %d", ErrInvalidParams, n)
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %g", ErrInvalidParams, radius)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}

	positions := make([]model.Point, n)
	for i := range positions {
		positions[i] = model.Point{X: rng.Float64(), Y: rng.Float64()}
	}

	g := NewGraph(positions)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if positions[u].DistanceTo(positions[v]) <= radius {
				g.addEdge(u, v)
			}
		}
	}
	return g, nil
}

// AddEdge inserts the undirected edge {u, v}. Self-loops and
// out-of-range indices are rejected; adding an existing edge is a no-op.
func (g *ContactGraph) AddEdge(u, v int) error {
	if u < 0 || u >= len(g.adj) || v < 0 || v >= len(g.adj) {
		return fmt.Errorf("edge {%d,%d} references a node outside [0,%d)", u, v, len(g.adj))
	}
	if u == v {
		return fmt.Errorf("self-loop on node %d not allowed", u)
	}
	if g.HasEdge(u, v) {
		return nil
	}
	g.addEdge(u, v)
	return nil
}

func (g *ContactGraph) addEdge(u, v int) {
	g.adj[u] = append(g.adj[u], v)
	g.adj[v] = append(g.adj[v], u)
	g.edges++
}

// NumNodes returns the number of nodes.
func (g *ContactGraph) NumNodes() int { return len(g.positions) }

// NumEdges returns the number of undirected edges.
func (g *ContactGraph) NumEdges() int { return g.edges }

// Position returns the coordinates of node i.
func (g *ContactGraph) Position(i int) model.Point { return g.positions[i] }

// Positions returns a copy of the node position table, indexed by node.
func (g *ContactGraph) Positions() []model.Point {
	out := make([]model.Point, len(g.positions))
	copy(out, g.positions)
	return out
}

// Neighbors returns the adjacency list of node i. The slice is shared
// with the graph and must not be mutated by callers.
func (g *ContactGraph) Neighbors(i int) []int { return g.adj[i] }

// HasEdge reports whether the undirected edge {u, v} exists.
func (g *ContactGraph) HasEdge(u, v int) bool {
	if u < 0 || u >= len(g.adj) {
		return false
	}
	for _, w := range g.adj[u] {
		if w == v {
			return true
		}
	}
	return false
}

// Edges returns every undirected edge exactly once, with u < v.
func (g *ContactGraph) Edges() [][2]int {
	out := make([][2]int, 0, g.edges)
	for u, nbrs := range g.adj {
		for _, v := range nbrs {
			if u < v {
				out = append(out, [2]int{u, v})
			}
		}
	}
	return out
}
