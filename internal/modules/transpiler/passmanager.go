package transpiler

import (
	"errors"
	"fmt"

	"github.com/aristath/qaoa/internal/modules/circuit"
)

// ErrCircuitTooWide is returned when a circuit needs more qubits than the target has.
var ErrCircuitTooWide = errors.New("circuit is wider than the target")

// PassManager compiles circuits for one target at a fixed optimisation level.
type PassManager struct {
	level    int
	target   Target
	coupling *CouplingGraph
}

// GeneratePresetPassManager builds the standard pipeline for optimisation levels 0 to 3:
// trivial layout at levels 0 and 1, SWAP routing, basis translation, and peephole
// optimisation (iterated to a fixed point at level 3). From level 2 the circuit is also
// compiled from a dense layout, which is kept only when it beats the trivial one.
func GeneratePresetPassManager(level int, target Target) (*PassManager, error) {
	if level < 0 || level > 3 {
		return nil, fmt.Errorf("optimization level must be 0-3, got %d", level)
	}
	if target.NumQubits <= 0 {
		return nil, fmt.Errorf("target %s has no qubits", target.Name)
	}
	if len(target.BasisGates) == 0 {
		target.BasisGates = DefaultBasis
	}

	cg, err := NewCouplingGraph(target.NumQubits, target.CouplingMap)
	if err != nil {
		return nil, fmt.Errorf("target %s: %w", target.Name, err)
	}

	return &PassManager{level: level, target: target, coupling: cg}, nil
}

// Level returns the optimisation level.
func (pm *PassManager) Level() int {
	return pm.level
}

// Target returns the compilation target.
func (pm *PassManager) Target() Target {
	return pm.target
}

// Run compiles c. Free parameters are preserved so the result can be bound repeatedly.
func (pm *PassManager) Run(c *circuit.Circuit) (*circuit.Circuit, error) {
	if c.NumQubits > pm.target.NumQubits {
		return nil, fmt.Errorf("%d qubits on %s (%d): %w", c.NumQubits, pm.target.Name, pm.target.NumQubits, ErrCircuitTooWide)
	}

	best, err := pm.compile(c, TrivialLayout(c.NumQubits))
	if err != nil {
		return nil, err
	}
	if pm.level < 2 {
		return best, nil
	}

	dense, err := pm.compile(c, DenseLayout(c, pm.coupling))
	if err != nil {
		return nil, err
	}
	if dominates(dense, best) {
		best = dense
	}
	return best, nil
}

// compile routes c from the initial layout, translates it and optimises it.
func (pm *PassManager) compile(c *circuit.Circuit, initial []int) (*circuit.Circuit, error) {
	routed, err := Route(c, pm.coupling, initial)
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}

	translated, err := TranslateToBasis(routed, pm.target)
	if err != nil {
		return nil, fmt.Errorf("basis translation failed: %w", err)
	}

	Optimize(translated, pm.level)
	return translated, nil
}

// dominates reports whether a is no worse than b in two-qubit gates and depth, and
// strictly better in one of them.
func dominates(a, b *circuit.Circuit) bool {
	qa, qb := twoQubitGates(a), twoQubitGates(b)
	da, db := a.Depth(), b.Depth()
	return qa <= qb && da <= db && (qa < qb || da < db)
}

func twoQubitGates(c *circuit.Circuit) int {
	n := 0
	for _, g := range c.Gates {
		if g.IsTwoQubit() {
			n++
		}
	}
	return n
}
