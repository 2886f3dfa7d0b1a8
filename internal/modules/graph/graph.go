// Package graph provides the weighted undirected problem graph that Max-Cut runs on.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoNodes is returned when a graph is created without nodes
	ErrNoNodes = errors.New("graph must have at least one node")
	// ErrSelfLoop is returned for edges whose endpoints coincide
	ErrSelfLoop = errors.New("self-loop edges are not allowed")
	// ErrNodeOutOfRange is returned for edges referencing unknown nodes
	ErrNodeOutOfRange = errors.New("edge endpoint out of range")
	// ErrInvalidWeight is returned for NaN or infinite weights
	ErrInvalidWeight = errors.New("edge weight must be finite")
	// ErrTooLarge is returned when exhaustive search is requested on a large graph
	ErrTooLarge = errors.New("graph too large for exhaustive search")
)

// MaxBruteForceNodes bounds MaxCutBruteForce.
const MaxBruteForceNodes = 24

// Edge is an undirected weighted edge.
type Edge struct {
	U      int     `json:"u"`
	V      int     `json:"v"`
	Weight float64 `json:"weight"`
}

// Graph is an undirected weighted graph over nodes 0..n-1.
// Edge order is insertion order; parallel edges are kept.
type Graph struct {
	n     int
	edges []Edge
}

// New validates the edge list and builds a graph.
func New(n int, edges []Edge) (*Graph, error) {
	if n <= 0 {
		return nil, ErrNoNodes
	}

	g := &Graph{n: n, edges: make([]Edge, 0, len(edges))}
	for i, e := range edges {
		if err := g.validate(e); err != nil {
			return nil, fmt.Errorf("edge %d (%d,%d): %w", i, e.U, e.V, err)
		}
		g.edges = append(g.edges, e)
	}

	return g, nil
}

// DefaultEdges is the five-node instance the experiment runs on by default.
func DefaultEdges() []Edge {
	return []Edge{
		{U: 0, V: 1, Weight: 1.0},
		{U: 0, V: 2, Weight: 1.0},
		{U: 0, V: 4, Weight: 1.0},
		{U: 1, V: 2, Weight: 1.0},
		{U: 2, V: 3, Weight: 1.0},
		{U: 3, V: 4, Weight: 1.0},
	}
}

// Default builds the default five-node graph.
func Default() *Graph {
	g, err := New(5, DefaultEdges())
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Graph) validate(e Edge) error {
	if e.U < 0 || e.U >= g.n || e.V < 0 || e.V >= g.n {
		return ErrNodeOutOfRange
	}
	if e.U == e.V {
		return ErrSelfLoop
	}
	if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return ErrInvalidWeight
	}
	return nil
}

// NumNodes returns n.
func (g *Graph) NumNodes() int {
	return g.n
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	return len(g.edges)
}

// Edges returns a copy of the edge list in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Degree returns the number of edges incident to v.
func (g *Graph) Degree(v int) int {
	d := 0
	for _, e := range g.edges {
		if e.U == v || e.V == v {
			d++
		}
	}
	return d
}

// TotalWeight sums all edge weights.
func (g *Graph) TotalWeight() float64 {
	var w float64
	for _, e := range g.edges {
		w += e.Weight
	}
	return w
}

// Laplacian returns the weighted graph Laplacian L = D - A.
func (g *Graph) Laplacian() *mat.SymDense {
	l := mat.NewSymDense(g.n, nil)
	for _, e := range g.edges {
		l.SetSym(e.U, e.U, l.At(e.U, e.U)+e.Weight)
		l.SetSym(e.V, e.V, l.At(e.V, e.V)+e.Weight)
		l.SetSym(e.U, e.V, l.At(e.U, e.V)-e.Weight)
	}
	return l
}

// CutValue returns the weight of edges crossing the partition described by bits
// (bits[i] is the side of node i). It evaluates 1/4 sᵀLs with s = 1 - 2b.
func (g *Graph) CutValue(bits []int) (float64, error) {
	if len(bits) != g.n {
		return 0, fmt.Errorf("partition has %d entries, graph has %d nodes", len(bits), g.n)
	}

	s := mat.NewVecDense(g.n, nil)
	for i, b := range bits {
		switch b {
		case 0:
			s.SetVec(i, 1)
		case 1:
			s.SetVec(i, -1)
		default:
			return 0, fmt.Errorf("partition entry %d is %d, want 0 or 1", i, b)
		}
	}

	return mat.Inner(s, g.Laplacian(), s) / 4, nil
}

// MaxCutBruteForce enumerates every assignment and returns the optimum cut value
// together with all partitions reaching it.
func (g *Graph) MaxCutBruteForce() (float64, [][]int, error) {
	if g.n > MaxBruteForceNodes {
		return 0, nil, fmt.Errorf("%d nodes: %w", g.n, ErrTooLarge)
	}

	best := math.Inf(-1)
	var partitions [][]int
	for x := uint64(0); x < uint64(1)<<g.n; x++ {
		var cut float64
		for _, e := range g.edges {
			if (x>>e.U)&1 != (x>>e.V)&1 {
				cut += e.Weight
			}
		}

		switch {
		case cut > best+1e-12:
			best = cut
			partitions = [][]int{bitsOf(x, g.n)}
		case math.Abs(cut-best) <= 1e-12:
			partitions = append(partitions, bitsOf(x, g.n))
		}
	}

	return best, partitions, nil
}

func bitsOf(x uint64, n int) []int {
	bits := make([]int, n)
	for i := 0; i < n; i++ {
		bits[i] = int((x >> i) & 1)
	}
	return bits
}

type fileFormat struct {
	Nodes int    `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Load reads a graph from JSON of the form {"nodes": 5, "edges": [{"u":0,"v":1,"weight":1}]}.
func Load(r io.Reader) (*Graph, error) {
	var f fileFormat
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	return New(f.Nodes, f.Edges)
}

// MarshalJSON encodes the graph in the format Load accepts.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(fileFormat{Nodes: g.n, Edges: g.edges})
}

// UnmarshalJSON decodes the format produced by MarshalJSON.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	parsed, err := New(f.Nodes, f.Edges)
	if err != nil {
		return err
	}
	*g = *parsed
	return nil
}
