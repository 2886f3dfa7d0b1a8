package transpiler

import (
	"fmt"

	"github.com/aristath/qaoa/internal/modules/circuit"
)

// Route rewrites c onto the physical register of cg starting from initial
// (virtual -> physical). Non-adjacent two-qubit gates are preceded by SWAPs that walk
// the first operand along a shortest path. The returned circuit carries the initial
// and final layouts.
func Route(c *circuit.Circuit, cg *CouplingGraph, initial []int) (*circuit.Circuit, error) {
	if len(initial) != c.NumQubits {
		return nil, fmt.Errorf("layout has %d entries for %d qubits", len(initial), c.NumQubits)
	}

	v2p := append([]int(nil), initial...)
	p2v := make([]int, cg.Size())
	for p := range p2v {
		p2v[p] = -1
	}
	for v, p := range v2p {
		if p < 0 || p >= cg.Size() || p2v[p] != -1 {
			return nil, fmt.Errorf("invalid initial layout entry %d -> %d", v, p)
		}
		p2v[p] = v
	}

	out := circuit.New(cg.Size(), c.NumClbits)
	out.Name = c.Name
	out.Params = append([]circuit.Parameter(nil), c.Params...)

	swap := func(a, b int) error {
		if err := out.Append(circuit.Gate{Name: circuit.GateSwap, Qubits: []int{a, b}}); err != nil {
			return err
		}
		va, vb := p2v[a], p2v[b]
		p2v[a], p2v[b] = vb, va
		if va >= 0 {
			v2p[va] = b
		}
		if vb >= 0 {
			v2p[vb] = a
		}
		return nil
	}

	for i, g := range c.Gates {
		if g.IsTwoQubit() {
			pa, pb := v2p[g.Qubits[0]], v2p[g.Qubits[1]]
			if !cg.Adjacent(pa, pb) {
				route, err := cg.ShortestPath(pa, pb)
				if err != nil {
					return nil, fmt.Errorf("gate %d (%s): %w", i, g.Name, err)
				}
				for k := 1; k < len(route)-1; k++ {
					if err := swap(route[k-1], route[k]); err != nil {
						return nil, err
					}
				}
			}
		}

		mapped := circuit.Gate{Name: g.Name, Angles: g.Angles, Clbits: g.Clbits}
		mapped.Qubits = make([]int, len(g.Qubits))
		for k, q := range g.Qubits {
			mapped.Qubits[k] = v2p[q]
		}
		if err := out.Append(mapped); err != nil {
			return nil, fmt.Errorf("gate %d (%s): %w", i, g.Name, err)
		}
	}

	out.Layout = &circuit.Layout{
		Initial:     append([]int(nil), initial...),
		Final:       v2p,
		NumPhysical: cg.Size(),
	}
	return out, nil
}
