package transpiler

import (
	"github.com/aristath/qaoa/internal/modules/circuit"
)

// peephole runs one pass of RZ merging and self-inverse cancellation (cx, cz, ecr, x pairs).
// When dropZero is set, constant RZ rotations that reduce to the identity are removed.
// It reports whether the circuit changed.
func peephole(c *circuit.Circuit, dropZero bool) bool {
	type slot struct {
		gate    circuit.Gate
		deleted bool
	}
	out := make([]slot, 0, len(c.Gates))
	stacks := make([][]int, c.NumQubits)
	changed := false

	top := func(q int) int {
		s := stacks[q]
		if len(s) == 0 {
			return -1
		}
		return s[len(s)-1]
	}
	pop := func(q int) {
		stacks[q] = stacks[q][:len(stacks[q])-1]
	}
	push := func(g circuit.Gate) {
		out = append(out, slot{gate: g})
		for _, q := range g.Qubits {
			stacks[q] = append(stacks[q], len(out)-1)
		}
	}

	for _, g := range c.Gates {
		switch g.Name {
		case circuit.GateRZ:
			q := g.Qubits[0]
			if j := top(q); j >= 0 && out[j].gate.Name == circuit.GateRZ {
				merged := out[j].gate.Angles[0].Add(g.Angles[0])
				out[j].gate.Angles = []circuit.Angle{merged}
				changed = true
				continue
			}
			push(g)

		case circuit.GateX:
			q := g.Qubits[0]
			if j := top(q); j >= 0 && out[j].gate.Name == circuit.GateX {
				out[j].deleted = true
				pop(q)
				changed = true
				continue
			}
			push(g)

		case circuit.GateCX, circuit.GateCZ, circuit.GateECR:
			a, b := g.Qubits[0], g.Qubits[1]
			j := top(a)
			if j >= 0 && j == top(b) && out[j].gate.Name == g.Name && sameOperands(out[j].gate, g) {
				out[j].deleted = true
				pop(a)
				pop(b)
				changed = true
				continue
			}
			push(g)

		default:
			push(g)
		}
	}

	gates := make([]circuit.Gate, 0, len(out))
	for _, s := range out {
		if s.deleted {
			continue
		}
		if dropZero && s.gate.Name == circuit.GateRZ && s.gate.Angles[0].IsZero() {
			changed = true
			continue
		}
		gates = append(gates, s.gate)
	}
	c.Gates = gates
	return changed
}

func sameOperands(a, b circuit.Gate) bool {
	if a.Name == circuit.GateCZ {
		return (a.Qubits[0] == b.Qubits[0] && a.Qubits[1] == b.Qubits[1]) ||
			(a.Qubits[0] == b.Qubits[1] && a.Qubits[1] == b.Qubits[0])
	}
	return a.Qubits[0] == b.Qubits[0] && a.Qubits[1] == b.Qubits[1]
}

// Optimize applies peephole passes according to the optimisation level.
func Optimize(c *circuit.Circuit, level int) {
	switch {
	case level <= 0:
		return
	case level < 3:
		peephole(c, false)
	default:
		for i := 0; i < 64; i++ {
			if !peephole(c, true) {
				return
			}
		}
	}
}
