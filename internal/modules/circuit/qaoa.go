package circuit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

// ErrUnsupportedTerm is returned when the cost operator has a term the ansatz cannot exponentiate.
var ErrUnsupportedTerm = errors.New("cost operator term not supported by the QAOA ansatz")

// BetaName names the mixer angle of repetition k.
func BetaName(k int) string { return fmt.Sprintf("β[%d]", k) }

// GammaName names the cost angle of repetition k.
func GammaName(k int) string { return fmt.Sprintf("γ[%d]", k) }

// QAOAAnsatz builds the alternating-operator ansatz for a diagonal cost operator:
// a Hadamard layer, then reps repetitions of exp(-iγₖH) followed by the X mixer
// exp(-iβₖΣX). Parameters are ordered β[0..reps-1], γ[0..reps-1].
func QAOAAnsatz(cost *hamiltonian.SparsePauliOp, reps int) (*Circuit, error) {
	if cost == nil || cost.Len() == 0 {
		return nil, errors.New("cost operator is empty")
	}
	if reps < 1 {
		return nil, fmt.Errorf("reps must be positive, got %d", reps)
	}

	type rotation struct {
		qubits []int
		weight float64
	}
	var rotations []rotation
	for i, t := range cost.Terms {
		var active []int
		for k, q := range t.Qubits {
			switch t.Pauli[k] {
			case 'I':
			case 'Z':
				active = append(active, q)
			default:
				return nil, fmt.Errorf("term %d (%s): %w", i, t.Pauli, ErrUnsupportedTerm)
			}
		}
		switch len(active) {
		case 0:
			// identity contributes a global phase only
		case 1, 2:
			rotations = append(rotations, rotation{qubits: active, weight: t.Coeff})
		default:
			return nil, fmt.Errorf("term %d (%s) acts on %d qubits: %w", i, strings.TrimSpace(t.Pauli), len(active), ErrUnsupportedTerm)
		}
	}

	c := New(cost.NumQubits, 0)
	c.Name = "QAOA"
	for k := 0; k < reps; k++ {
		c.Params = append(c.Params, Parameter{Name: BetaName(k), Index: k})
	}
	for k := 0; k < reps; k++ {
		c.Params = append(c.Params, Parameter{Name: GammaName(k), Index: reps + k})
	}

	for q := 0; q < c.NumQubits; q++ {
		c.H(q)
	}
	for k := 0; k < reps; k++ {
		beta, gamma := k, reps+k
		for _, r := range rotations {
			theta := Param(gamma, 2*r.weight)
			if len(r.qubits) == 1 {
				c.RZ(theta, r.qubits[0])
			} else {
				c.RZZ(theta, r.qubits[0], r.qubits[1])
			}
		}
		for q := 0; q < c.NumQubits; q++ {
			c.RX(Param(beta, 2), q)
		}
	}

	return c, nil
}
