package transpiler

import (
	"fmt"
	"math"

	"github.com/aristath/qaoa/internal/modules/circuit"
)

// entangler picks the two-qubit gate a target is compiled to, preferring cx.
func entangler(target Target) (string, error) {
	for _, name := range []string{circuit.GateCX, circuit.GateCZ, circuit.GateECR} {
		if target.HasGate(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("target %s has no supported entangling gate", target.Name)
}

// TranslateToBasis rewrites every gate into target basis gates, equal up to global phase.
// Supported bases are {rz, sx, x} plus one of cx, cz or ecr. ECR is directional: it is
// emitted along the coupling map edge, with the direction flipped by Hadamard frames
// when only the reverse edge exists.
func TranslateToBasis(c *circuit.Circuit, target Target) (*circuit.Circuit, error) {
	native, err := entangler(target)
	if err != nil {
		return nil, err
	}
	useCZ := native == circuit.GateCZ
	directed := target.directedEdges()

	if native == circuit.GateECR && directed != nil {
		for i, g := range c.Gates {
			if g.IsTwoQubit() && !directed[[2]int{g.Qubits[0], g.Qubits[1]}] && !directed[[2]int{g.Qubits[1], g.Qubits[0]}] {
				return nil, fmt.Errorf("gate %d (%s) on uncoupled qubits %v", i, g.Name, g.Qubits)
			}
		}
	}

	out := c.Copy()
	out.Gates = out.Gates[:0]

	emit := func(name string, qubits []int, angles ...circuit.Angle) {
		out.Gates = append(out.Gates, circuit.Gate{Name: name, Qubits: qubits, Angles: angles})
	}
	rz := func(q int, a circuit.Angle) { emit(circuit.GateRZ, []int{q}, a) }
	h := func(q int) {
		rz(q, circuit.Const(math.Pi/2))
		emit(circuit.GateSX, []int{q})
		rz(q, circuit.Const(math.Pi/2))
	}
	// CX(a,b) = SX_b RZ_a(π/2) ECR(a,b) X_a
	ecrCX := func(a, b int) {
		emit(circuit.GateX, []int{a})
		emit(circuit.GateECR, []int{a, b})
		rz(a, circuit.Const(math.Pi/2))
		emit(circuit.GateSX, []int{b})
	}
	cx := func(a, b int) {
		switch native {
		case circuit.GateCZ:
			h(b)
			emit(circuit.GateCZ, []int{a, b})
			h(b)
		case circuit.GateECR:
			if directed == nil || directed[[2]int{a, b}] {
				ecrCX(a, b)
				return
			}
			h(a)
			h(b)
			ecrCX(b, a)
			h(a)
			h(b)
		default:
			emit(circuit.GateCX, []int{a, b})
		}
	}
	cz := func(a, b int) {
		if useCZ {
			emit(circuit.GateCZ, []int{a, b})
			return
		}
		h(b)
		cx(a, b)
		h(b)
	}

	for i, g := range c.Gates {
		q := g.Qubits
		switch g.Name {
		case circuit.GateRZ, circuit.GateSX, circuit.GateX,
			circuit.GateMeasure, circuit.GateBarrier, circuit.GateDelay:
			out.Gates = append(out.Gates, g)
		case circuit.GateH:
			h(q[0])
		case circuit.GateZ:
			rz(q[0], circuit.Const(math.Pi))
		case circuit.GateY:
			rz(q[0], circuit.Const(math.Pi))
			emit(circuit.GateX, []int{q[0]})
		case circuit.GateRX:
			// RX(θ) = H RZ(θ) H
			rz(q[0], circuit.Const(math.Pi/2))
			emit(circuit.GateSX, []int{q[0]})
			rz(q[0], g.Angles[0].Add(circuit.Const(math.Pi)))
			emit(circuit.GateSX, []int{q[0]})
			rz(q[0], circuit.Const(math.Pi/2))
		case circuit.GateECR:
			if native != circuit.GateECR {
				return nil, fmt.Errorf("gate %d: ecr is not native on %s", i, target.Name)
			}
			out.Gates = append(out.Gates, g)
		case circuit.GateCX:
			cx(q[0], q[1])
		case circuit.GateCZ:
			cz(q[0], q[1])
		case circuit.GateRZZ:
			cx(q[0], q[1])
			rz(q[1], g.Angles[0])
			cx(q[0], q[1])
		case circuit.GateSwap:
			cx(q[0], q[1])
			cx(q[1], q[0])
			cx(q[0], q[1])
		default:
			return nil, fmt.Errorf("gate %d: no translation for %q", i, g.Name)
		}
	}

	return out, nil
}
