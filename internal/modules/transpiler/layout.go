package transpiler

import (
	"math"
	"sort"

	"github.com/aristath/qaoa/internal/modules/circuit"
)

// TrivialLayout places virtual qubit i on physical qubit i.
func TrivialLayout(numVirtual int) []int {
	layout := make([]int, numVirtual)
	for i := range layout {
		layout[i] = i
	}
	return layout
}

// interactions counts two-qubit gates per unordered virtual pair.
func interactions(c *circuit.Circuit) map[[2]int]int {
	counts := make(map[[2]int]int)
	for _, g := range c.Gates {
		if !g.IsTwoQubit() {
			continue
		}
		a, b := g.Qubits[0], g.Qubits[1]
		if a > b {
			a, b = b, a
		}
		counts[[2]int{a, b}]++
	}
	return counts
}

// DenseLayout places the circuit on a connected region of the device. For every
// candidate seed qubit it grows a breadth-first region of the circuit's width,
// assigns virtual qubits greedily by interaction degree, and keeps the region with
// the lowest total interaction distance. Ties go to the lowest seed.
func DenseLayout(c *circuit.Circuit, cg *CouplingGraph) []int {
	n := c.NumQubits
	if cg.allToAll || n == 0 {
		return TrivialLayout(n)
	}

	pairs := interactions(c)
	degree := make([]int, n)
	neighbors := make([]map[int]int, n)
	for v := range neighbors {
		neighbors[v] = make(map[int]int)
	}
	for p, w := range pairs {
		degree[p[0]] += w
		degree[p[1]] += w
		neighbors[p[0]][p[1]] += w
		neighbors[p[1]][p[0]] += w
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return degree[order[i]] > degree[order[j]] })

	var best []int
	bestCost := math.Inf(1)
	for seed := 0; seed < cg.Size(); seed++ {
		region := cg.bfsRegion(seed, n)
		if len(region) < n {
			continue
		}
		layout, cost := assignRegion(order, neighbors, region, cg)
		if cost < bestCost {
			best, bestCost = layout, cost
		}
	}

	if best == nil {
		return TrivialLayout(n)
	}
	return best
}

func (cg *CouplingGraph) bfsRegion(seed, size int) []int {
	visited := map[int]bool{seed: true}
	queue := []int{seed}
	region := make([]int, 0, size)
	for len(queue) > 0 && len(region) < size {
		q := queue[0]
		queue = queue[1:]
		region = append(region, q)
		for _, nb := range cg.Neighbors(q) {
			if !visited[nb] {
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return region
}

func assignRegion(order []int, neighbors []map[int]int, region []int, cg *CouplingGraph) ([]int, float64) {
	layout := make([]int, len(order))
	for i := range layout {
		layout[i] = -1
	}
	used := make(map[int]bool, len(region))
	var total float64

	for _, v := range order {
		bestP, bestCost := -1, math.Inf(1)
		for _, p := range region {
			if used[p] {
				continue
			}
			var cost float64
			for u, w := range neighbors[v] {
				if layout[u] >= 0 {
					cost += float64(w * cg.Distance(p, layout[u]))
				}
			}
			// prefer well-connected qubits when nothing is placed yet
			cost -= 1e-3 * float64(len(cg.Neighbors(p)))
			if cost < bestCost {
				bestP, bestCost = p, cost
			}
		}
		layout[v] = bestP
		used[bestP] = true
		total += bestCost + 1e-3*float64(len(cg.Neighbors(bestP)))
	}

	return layout, total
}
