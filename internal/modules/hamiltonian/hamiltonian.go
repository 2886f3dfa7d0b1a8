// Package hamiltonian encodes Max-Cut instances as sparse Pauli operators.
package hamiltonian

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/qaoa/internal/modules/graph"
)

var (
	// ErrInvalidPauli is returned for letters outside I, X, Y, Z
	ErrInvalidPauli = errors.New("invalid pauli label")
	// ErrQubitOutOfRange is returned when a term references a qubit outside the register
	ErrQubitOutOfRange = errors.New("qubit index out of range")
	// ErrNotDiagonal is returned when a diagonal-only operation meets X or Y
	ErrNotDiagonal = errors.New("operator is not diagonal in the computational basis")
	// ErrInvalidLayout is returned by ApplyLayout for malformed layouts
	ErrInvalidLayout = errors.New("invalid layout")
)

// Term is a sparse Pauli term: Pauli[k] acts on Qubits[k].
type Term struct {
	Pauli  string  `json:"pauli"`
	Qubits []int   `json:"qubits"`
	Coeff  float64 `json:"coeff"`
}

// SparsePauliOp is a weighted sum of Pauli strings over NumQubits qubits.
type SparsePauliOp struct {
	NumQubits int    `json:"num_qubits"`
	Terms     []Term `json:"terms"`
}

// BuildMaxCutPaulis returns one ZZ term per edge, in edge order, weighted by the edge weight.
func BuildMaxCutPaulis(g *graph.Graph) []Term {
	edges := g.Edges()
	terms := make([]Term, 0, len(edges))
	for _, e := range edges {
		terms = append(terms, Term{
			Pauli:  "ZZ",
			Qubits: []int{e.U, e.V},
			Coeff:  e.Weight,
		})
	}
	return terms
}

// MaxCut encodes g as a cost Hamiltonian over g.NumNodes() qubits.
func MaxCut(g *graph.Graph) (*SparsePauliOp, error) {
	return FromSparseList(BuildMaxCutPaulis(g), g.NumNodes())
}

// FromSparseList validates terms and builds an operator over n qubits.
func FromSparseList(terms []Term, n int) (*SparsePauliOp, error) {
	if n <= 0 {
		return nil, fmt.Errorf("operator needs at least one qubit, got %d", n)
	}

	op := &SparsePauliOp{NumQubits: n, Terms: make([]Term, 0, len(terms))}
	for i, t := range terms {
		if len(t.Pauli) != len(t.Qubits) {
			return nil, fmt.Errorf("term %d: label %q has %d letters for %d qubits", i, t.Pauli, len(t.Pauli), len(t.Qubits))
		}
		seen := make(map[int]bool, len(t.Qubits))
		for k, q := range t.Qubits {
			if !strings.ContainsRune("IXYZ", rune(t.Pauli[k])) {
				return nil, fmt.Errorf("term %d: %q: %w", i, t.Pauli, ErrInvalidPauli)
			}
			if q < 0 || q >= n {
				return nil, fmt.Errorf("term %d: qubit %d: %w", i, q, ErrQubitOutOfRange)
			}
			if seen[q] {
				return nil, fmt.Errorf("term %d: qubit %d repeated", i, q)
			}
			seen[q] = true
		}
		op.Terms = append(op.Terms, Term{
			Pauli:  t.Pauli,
			Qubits: append([]int(nil), t.Qubits...),
			Coeff:  t.Coeff,
		})
	}

	return op, nil
}

// Len returns the number of terms.
func (op *SparsePauliOp) Len() int {
	return len(op.Terms)
}

// Labels returns dense Pauli labels with qubit 0 as the rightmost character.
func (op *SparsePauliOp) Labels() []string {
	labels := make([]string, len(op.Terms))
	for i, t := range op.Terms {
		b := []byte(strings.Repeat("I", op.NumQubits))
		for k, q := range t.Qubits {
			b[op.NumQubits-1-q] = t.Pauli[k]
		}
		labels[i] = string(b)
	}
	return labels
}

// Coeffs returns the term coefficients in term order.
func (op *SparsePauliOp) Coeffs() []float64 {
	c := make([]float64, len(op.Terms))
	for i, t := range op.Terms {
		c[i] = t.Coeff
	}
	return c
}

// String renders the operator the way it is printed in experiment reports.
func (op *SparsePauliOp) String() string {
	labels := op.Labels()
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + l + "'"
	}

	coeffs := make([]string, len(op.Terms))
	for i, t := range op.Terms {
		coeffs[i] = formatCoeff(t.Coeff)
	}

	return fmt.Sprintf("SparsePauliOp([%s],\n              coeffs=[%s])",
		strings.Join(quoted, ", "), strings.Join(coeffs, ", "))
}

// formatCoeff prints a real coefficient as a complex number: 1 -> "1.+0.j", 2.5 -> "2.5+0.j".
func formatCoeff(c float64) string {
	s := strconv.FormatFloat(c, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += "."
	}
	return s + "+0.j"
}

// IsDiagonal reports whether every term consists of I and Z only.
func (op *SparsePauliOp) IsDiagonal() bool {
	for _, t := range op.Terms {
		if strings.ContainsAny(t.Pauli, "XY") {
			return false
		}
	}
	return true
}

// DiagonalEnergy evaluates a diagonal operator on the basis state whose bit i is qubit i.
func (op *SparsePauliOp) DiagonalEnergy(state uint64) (float64, error) {
	var e float64
	for _, t := range op.Terms {
		sign := 1.0
		for k, q := range t.Qubits {
			switch t.Pauli[k] {
			case 'I':
			case 'Z':
				if (state>>q)&1 == 1 {
					sign = -sign
				}
			default:
				return 0, ErrNotDiagonal
			}
		}
		e += t.Coeff * sign
	}
	return e, nil
}

// ApplyLayout moves virtual qubit i onto physical qubit layout[i] of a numPhysical-wide register.
func (op *SparsePauliOp) ApplyLayout(layout []int, numPhysical int) (*SparsePauliOp, error) {
	if len(layout) < op.NumQubits {
		return nil, fmt.Errorf("layout covers %d qubits, operator has %d: %w", len(layout), op.NumQubits, ErrInvalidLayout)
	}

	used := make(map[int]bool, len(layout))
	for v, p := range layout {
		if p < 0 || p >= numPhysical {
			return nil, fmt.Errorf("virtual %d -> physical %d outside %d qubits: %w", v, p, numPhysical, ErrInvalidLayout)
		}
		if used[p] {
			return nil, fmt.Errorf("physical qubit %d assigned twice: %w", p, ErrInvalidLayout)
		}
		used[p] = true
	}

	mapped := make([]Term, len(op.Terms))
	for i, t := range op.Terms {
		qubits := make([]int, len(t.Qubits))
		for k, q := range t.Qubits {
			qubits[k] = layout[q]
		}
		mapped[i] = Term{Pauli: t.Pauli, Qubits: qubits, Coeff: t.Coeff}
	}

	return &SparsePauliOp{NumQubits: numPhysical, Terms: mapped}, nil
}
