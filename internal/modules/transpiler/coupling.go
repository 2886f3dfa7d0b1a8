// Package transpiler maps logical circuits onto device targets: layout, SWAP routing,
// basis translation and peephole optimisation, plus the fidelity passes applied at
// execution time (dynamical decoupling and Pauli twirling).
package transpiler

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Target describes the device a circuit is compiled for.
type Target struct {
	Name        string   `json:"name"`
	NumQubits   int      `json:"num_qubits"`
	BasisGates  []string `json:"basis_gates"`
	CouplingMap [][2]int `json:"coupling_map,omitempty"`
}

// DefaultBasis is the native gate set of the Eagle-family devices.
var DefaultBasis = []string{"rz", "sx", "x", "cx", "measure", "barrier", "delay"}

// HasGate reports whether name is native on the target.
func (t Target) HasGate(name string) bool {
	for _, b := range t.BasisGates {
		if b == name {
			return true
		}
	}
	return false
}

// directedEdges returns the coupling map as a set of ordered pairs, or nil for an
// all-to-all target.
func (t Target) directedEdges() map[[2]int]bool {
	if len(t.CouplingMap) == 0 {
		return nil
	}
	edges := make(map[[2]int]bool, len(t.CouplingMap))
	for _, e := range t.CouplingMap {
		edges[e] = true
	}
	return edges
}

// CouplingGraph holds device connectivity and all-pairs shortest paths.
type CouplingGraph struct {
	n        int
	allToAll bool
	adj      [][]int
	g        *simple.UndirectedGraph
	paths    path.AllShortest
}

// NewCouplingGraph builds connectivity for n qubits. An empty edge list means all-to-all.
func NewCouplingGraph(n int, edges [][2]int) (*CouplingGraph, error) {
	cg := &CouplingGraph{n: n, allToAll: len(edges) == 0, adj: make([][]int, n)}
	if cg.allToAll {
		return cg, nil
	}

	cg.g = simple.NewUndirectedGraph()
	for q := 0; q < n; q++ {
		cg.g.AddNode(simple.Node(q))
	}
	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || a >= n || b < 0 || b >= n || a == b {
			return nil, fmt.Errorf("invalid coupling edge (%d,%d) for %d qubits", a, b, n)
		}
		if cg.g.HasEdgeBetween(int64(a), int64(b)) {
			continue
		}
		cg.g.SetEdge(cg.g.NewEdge(simple.Node(a), simple.Node(b)))
		cg.adj[a] = append(cg.adj[a], b)
		cg.adj[b] = append(cg.adj[b], a)
	}
	for q := range cg.adj {
		sort.Ints(cg.adj[q])
	}
	cg.paths = path.DijkstraAllPaths(cg.g)

	return cg, nil
}

// Size returns the number of physical qubits.
func (cg *CouplingGraph) Size() int {
	return cg.n
}

// Adjacent reports whether a two-qubit gate can act directly on (a, b).
func (cg *CouplingGraph) Adjacent(a, b int) bool {
	if cg.allToAll {
		return a != b
	}
	return cg.g.HasEdgeBetween(int64(a), int64(b))
}

// Neighbors returns the sorted neighbours of q.
func (cg *CouplingGraph) Neighbors(q int) []int {
	if cg.allToAll {
		out := make([]int, 0, cg.n-1)
		for p := 0; p < cg.n; p++ {
			if p != q {
				out = append(out, p)
			}
		}
		return out
	}
	return cg.adj[q]
}

// Distance returns the hop count between a and b, or -1 when disconnected.
func (cg *CouplingGraph) Distance(a, b int) int {
	if a == b {
		return 0
	}
	if cg.allToAll {
		return 1
	}
	w := cg.paths.Weight(int64(a), int64(b))
	if w > float64(cg.n) {
		return -1
	}
	return int(w)
}

// ShortestPath returns the physical qubits on a shortest path from a to b, inclusive.
func (cg *CouplingGraph) ShortestPath(a, b int) ([]int, error) {
	if cg.allToAll || a == b {
		return []int{a, b}, nil
	}
	nodes, _, _ := cg.paths.Between(int64(a), int64(b))
	if len(nodes) == 0 {
		return nil, fmt.Errorf("qubits %d and %d are not connected", a, b)
	}
	return nodeIDs(nodes), nil
}

func nodeIDs(nodes []graph.Node) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = int(n.ID())
	}
	return out
}
