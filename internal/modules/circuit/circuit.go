// Package circuit provides parameterized quantum circuits and the QAOA ansatz.
package circuit

import (
	"errors"
	"fmt"
	"sort"
)

// Gate names understood by the transpiler and the simulator.
const (
	GateH       = "h"
	GateX       = "x"
	GateY       = "y"
	GateZ       = "z"
	GateSX      = "sx"
	GateRZ      = "rz"
	GateRX      = "rx"
	GateRZZ     = "rzz"
	GateCX      = "cx"
	GateCZ      = "cz"
	GateECR     = "ecr"
	GateSwap    = "swap"
	GateMeasure = "measure"
	GateBarrier = "barrier"
	GateDelay   = "delay"
)

var (
	// ErrUnboundParameters is returned when executing a circuit that still has free parameters
	ErrUnboundParameters = errors.New("circuit has unbound parameters")
	// ErrParameterCount is returned when the number of bound values is wrong
	ErrParameterCount = errors.New("parameter count mismatch")
)

// Parameter is a named free angle of a circuit. Index is its position in the
// parameter vector.
type Parameter struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Gate is one instruction. Delay gates carry their duration in Angles[0] (in dt units).
type Gate struct {
	Name   string  `json:"name"`
	Qubits []int   `json:"qubits"`
	Angles []Angle `json:"angles,omitempty"`
	Clbits []int   `json:"clbits,omitempty"`
}

// IsTwoQubit reports whether the gate entangles two qubits.
func (g Gate) IsTwoQubit() bool {
	switch g.Name {
	case GateCX, GateCZ, GateECR, GateRZZ, GateSwap:
		return true
	}
	return false
}

func (g Gate) clone() Gate {
	out := Gate{Name: g.Name, Qubits: append([]int(nil), g.Qubits...)}
	if len(g.Angles) > 0 {
		out.Angles = make([]Angle, len(g.Angles))
		for i, a := range g.Angles {
			out.Angles[i] = a.Scale(1)
		}
	}
	if len(g.Clbits) > 0 {
		out.Clbits = append([]int(nil), g.Clbits...)
	}
	return out
}

// Layout records where virtual qubits live on a device after transpilation.
type Layout struct {
	// Initial maps virtual qubit i to the physical qubit it starts on.
	Initial []int `json:"initial"`
	// Final maps virtual qubit i to the physical qubit it ends on after routing.
	Final []int `json:"final"`
	// NumPhysical is the device width.
	NumPhysical int `json:"num_physical"`
}

// FinalIndexLayout returns the virtual to physical map valid at the end of the circuit.
func (l *Layout) FinalIndexLayout() []int {
	if len(l.Final) > 0 {
		return append([]int(nil), l.Final...)
	}
	return append([]int(nil), l.Initial...)
}

// Circuit is an ordered list of gates over NumQubits qubits and NumClbits classical bits.
type Circuit struct {
	Name      string      `json:"name"`
	NumQubits int         `json:"num_qubits"`
	NumClbits int         `json:"num_clbits"`
	Gates     []Gate      `json:"gates"`
	Params    []Parameter `json:"params,omitempty"`
	Layout    *Layout     `json:"layout,omitempty"`
}

// New creates an empty circuit.
func New(numQubits, numClbits int) *Circuit {
	return &Circuit{NumQubits: numQubits, NumClbits: numClbits}
}

// NumParameters returns the number of free parameters.
func (c *Circuit) NumParameters() int {
	return len(c.Params)
}

// ParameterName returns the display name of parameter i.
func (c *Circuit) ParameterName(i int) string {
	for _, p := range c.Params {
		if p.Index == i {
			return p.Name
		}
	}
	return fmt.Sprintf("θ[%d]", i)
}

// Append adds a gate after validating its operands.
func (c *Circuit) Append(g Gate) error {
	seen := make(map[int]bool, len(g.Qubits))
	for _, q := range g.Qubits {
		if q < 0 || q >= c.NumQubits {
			return fmt.Errorf("%s: qubit %d outside %d-qubit register", g.Name, q, c.NumQubits)
		}
		if seen[q] {
			return fmt.Errorf("%s: duplicate qubit %d", g.Name, q)
		}
		seen[q] = true
	}
	for _, b := range g.Clbits {
		if b < 0 || b >= c.NumClbits {
			return fmt.Errorf("%s: clbit %d outside %d-bit register", g.Name, b, c.NumClbits)
		}
	}
	for _, a := range g.Angles {
		for i := range a.Coeffs {
			if i < 0 || i >= len(c.Params) {
				return fmt.Errorf("%s: unknown parameter %d", g.Name, i)
			}
		}
	}
	c.Gates = append(c.Gates, g)
	return nil
}

func (c *Circuit) mustAppend(g Gate) *Circuit {
	if err := c.Append(g); err != nil {
		panic(err)
	}
	return c
}

// H appends a Hadamard gate.
func (c *Circuit) H(q int) *Circuit { return c.mustAppend(Gate{Name: GateH, Qubits: []int{q}}) }

// X appends a Pauli-X gate.
func (c *Circuit) X(q int) *Circuit { return c.mustAppend(Gate{Name: GateX, Qubits: []int{q}}) }

// Y appends a Pauli-Y gate.
func (c *Circuit) Y(q int) *Circuit { return c.mustAppend(Gate{Name: GateY, Qubits: []int{q}}) }

// Z appends a Pauli-Z gate.
func (c *Circuit) Z(q int) *Circuit { return c.mustAppend(Gate{Name: GateZ, Qubits: []int{q}}) }

// SX appends a √X gate.
func (c *Circuit) SX(q int) *Circuit { return c.mustAppend(Gate{Name: GateSX, Qubits: []int{q}}) }

// RZ appends a Z rotation.
func (c *Circuit) RZ(theta Angle, q int) *Circuit {
	return c.mustAppend(Gate{Name: GateRZ, Qubits: []int{q}, Angles: []Angle{theta}})
}

// RX appends an X rotation.
func (c *Circuit) RX(theta Angle, q int) *Circuit {
	return c.mustAppend(Gate{Name: GateRX, Qubits: []int{q}, Angles: []Angle{theta}})
}

// RZZ appends exp(-iθ/2 Z⊗Z).
func (c *Circuit) RZZ(theta Angle, q0, q1 int) *Circuit {
	return c.mustAppend(Gate{Name: GateRZZ, Qubits: []int{q0, q1}, Angles: []Angle{theta}})
}

// CX appends a controlled-X gate.
func (c *Circuit) CX(control, target int) *Circuit {
	return c.mustAppend(Gate{Name: GateCX, Qubits: []int{control, target}})
}

// CZ appends a controlled-Z gate.
func (c *Circuit) CZ(q0, q1 int) *Circuit {
	return c.mustAppend(Gate{Name: GateCZ, Qubits: []int{q0, q1}})
}

// ECR appends an echoed cross-resonance gate with q0 as the driven qubit.
func (c *Circuit) ECR(q0, q1 int) *Circuit {
	return c.mustAppend(Gate{Name: GateECR, Qubits: []int{q0, q1}})
}

// Swap appends a SWAP gate.
func (c *Circuit) Swap(q0, q1 int) *Circuit {
	return c.mustAppend(Gate{Name: GateSwap, Qubits: []int{q0, q1}})
}

// Measure appends a measurement of q into clbit b.
func (c *Circuit) Measure(q, b int) *Circuit {
	return c.mustAppend(Gate{Name: GateMeasure, Qubits: []int{q}, Clbits: []int{b}})
}

// Barrier appends a barrier over the given qubits, or all qubits if none are given.
func (c *Circuit) Barrier(qubits ...int) *Circuit {
	if len(qubits) == 0 {
		qubits = make([]int, c.NumQubits)
		for i := range qubits {
			qubits[i] = i
		}
	}
	return c.mustAppend(Gate{Name: GateBarrier, Qubits: qubits})
}

// MeasureAll adds a classical register as wide as the circuit, a barrier, and a
// measurement of qubit i into clbit i.
func (c *Circuit) MeasureAll() *Circuit {
	offset := c.NumClbits
	c.NumClbits += c.NumQubits
	c.Barrier()
	for q := 0; q < c.NumQubits; q++ {
		c.Measure(q, offset+q)
	}
	return c
}

// HasMeasurements reports whether any measure instruction is present.
func (c *Circuit) HasMeasurements() bool {
	for _, g := range c.Gates {
		if g.Name == GateMeasure {
			return true
		}
	}
	return false
}

// Copy returns a deep copy.
func (c *Circuit) Copy() *Circuit {
	out := &Circuit{
		Name:      c.Name,
		NumQubits: c.NumQubits,
		NumClbits: c.NumClbits,
		Gates:     make([]Gate, len(c.Gates)),
		Params:    append([]Parameter(nil), c.Params...),
	}
	for i, g := range c.Gates {
		out.Gates[i] = g.clone()
	}
	if c.Layout != nil {
		out.Layout = &Layout{
			Initial:     append([]int(nil), c.Layout.Initial...),
			Final:       append([]int(nil), c.Layout.Final...),
			NumPhysical: c.Layout.NumPhysical,
		}
	}
	return out
}

// AssignParameters returns a copy with every angle bound to values.
func (c *Circuit) AssignParameters(values []float64) (*Circuit, error) {
	if len(values) != len(c.Params) {
		return nil, fmt.Errorf("got %d values for %d parameters: %w", len(values), len(c.Params), ErrParameterCount)
	}

	out := c.Copy()
	out.Params = nil
	for i, g := range out.Gates {
		for k, a := range g.Angles {
			v, err := a.Eval(values)
			if err != nil {
				return nil, fmt.Errorf("gate %d (%s): %w", i, g.Name, err)
			}
			out.Gates[i].Angles[k] = Const(v)
		}
	}
	return out, nil
}

// IsBound reports whether every angle is constant.
func (c *Circuit) IsBound() bool {
	for _, g := range c.Gates {
		for _, a := range g.Angles {
			if !a.IsConst() {
				return false
			}
		}
	}
	return true
}

// CountOps returns the number of instructions of each kind.
func (c *Circuit) CountOps() map[string]int {
	ops := make(map[string]int)
	for _, g := range c.Gates {
		ops[g.Name]++
	}
	return ops
}

// Size returns the number of non-barrier instructions.
func (c *Circuit) Size() int {
	n := 0
	for _, g := range c.Gates {
		if g.Name != GateBarrier {
			n++
		}
	}
	return n
}

// Depth returns the length of the critical path. Barriers synchronise their qubits
// but do not count as a layer.
func (c *Circuit) Depth() int {
	level := make([]int, c.NumQubits)
	clevel := make([]int, c.NumClbits)
	depth := 0
	for _, g := range c.Gates {
		start := 0
		for _, q := range g.Qubits {
			if level[q] > start {
				start = level[q]
			}
		}
		for _, b := range g.Clbits {
			if clevel[b] > start {
				start = clevel[b]
			}
		}
		end := start + 1
		if g.Name == GateBarrier {
			end = start
		}
		for _, q := range g.Qubits {
			level[q] = end
		}
		for _, b := range g.Clbits {
			clevel[b] = end
		}
		if end > depth {
			depth = end
		}
	}
	return depth
}

// ActiveQubits returns the sorted qubits touched by any non-barrier instruction.
func (c *Circuit) ActiveQubits() []int {
	seen := make(map[int]bool)
	for _, g := range c.Gates {
		if g.Name == GateBarrier {
			continue
		}
		for _, q := range g.Qubits {
			seen[q] = true
		}
	}
	out := make([]int, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

// TwoQubitPairs returns the distinct qubit pairs coupled by two-qubit gates.
func (c *Circuit) TwoQubitPairs() [][2]int {
	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, g := range c.Gates {
		if !g.IsTwoQubit() {
			continue
		}
		a, b := g.Qubits[0], g.Qubits[1]
		if a > b {
			a, b = b, a
		}
		p := [2]int{a, b}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	return pairs
}
