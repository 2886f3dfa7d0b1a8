// Package simulator executes circuits on a local state-vector simulator and exposes
// estimator and sampler primitives on top of it.
package simulator

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

// StateVector is a pure state over NumQubits qubits; amplitude index bit i is qubit i.
type StateVector struct {
	NumQubits  int
	Amplitudes []complex128
}

// NewStateVector returns |0...0>.
func NewStateVector(numQubits int) *StateVector {
	amps := make([]complex128, 1<<numQubits)
	amps[0] = 1
	return &StateVector{NumQubits: numQubits, Amplitudes: amps}
}

// Clone returns a deep copy.
func (s *StateVector) Clone() *StateVector {
	amps := make([]complex128, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &StateVector{NumQubits: s.NumQubits, Amplitudes: amps}
}

// Apply applies one bound gate. Measurements, barriers and delays are no-ops here.
func (s *StateVector) Apply(g circuit.Gate) error {
	angle := func() (float64, error) {
		if len(g.Angles) == 0 || !g.Angles[0].IsConst() {
			return 0, fmt.Errorf("%s: %w", g.Name, circuit.ErrUnboundParameters)
		}
		return g.Angles[0].Value(), nil
	}
	q := g.Qubits

	switch g.Name {
	case circuit.GateMeasure, circuit.GateBarrier, circuit.GateDelay:
	case circuit.GateH:
		h := complex(1/math.Sqrt2, 0)
		s.apply1(q[0], [2][2]complex128{{h, h}, {h, -h}})
	case circuit.GateX:
		s.apply1(q[0], [2][2]complex128{{0, 1}, {1, 0}})
	case circuit.GateY:
		s.apply1(q[0], [2][2]complex128{{0, -1i}, {1i, 0}})
	case circuit.GateZ:
		s.applyDiag(q[0], 1, -1)
	case circuit.GateSX:
		a, b := complex(0.5, 0.5), complex(0.5, -0.5)
		s.apply1(q[0], [2][2]complex128{{a, b}, {b, a}})
	case circuit.GateRZ:
		theta, err := angle()
		if err != nil {
			return err
		}
		s.applyDiag(q[0], cmplx.Exp(complex(0, -theta/2)), cmplx.Exp(complex(0, theta/2)))
	case circuit.GateRX:
		theta, err := angle()
		if err != nil {
			return err
		}
		c, sn := complex(math.Cos(theta/2), 0), complex(0, -math.Sin(theta/2))
		s.apply1(q[0], [2][2]complex128{{c, sn}, {sn, c}})
	case circuit.GateRZZ:
		theta, err := angle()
		if err != nil {
			return err
		}
		s.applyRZZ(q[0], q[1], theta)
	case circuit.GateCX:
		s.applyCX(q[0], q[1])
	case circuit.GateCZ:
		s.applyCZ(q[0], q[1])
	case circuit.GateECR:
		s.applyECR(q[0], q[1])
	case circuit.GateSwap:
		s.applySwap(q[0], q[1])
	default:
		return fmt.Errorf("simulator does not support gate %q", g.Name)
	}
	return nil
}

func (s *StateVector) apply1(q int, m [2][2]complex128) {
	bit := 1 << q
	for i := range s.Amplitudes {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
		s.Amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
		s.Amplitudes[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (s *StateVector) applyDiag(q int, d0, d1 complex128) {
	bit := 1 << q
	for i := range s.Amplitudes {
		if i&bit == 0 {
			s.Amplitudes[i] *= d0
		} else {
			s.Amplitudes[i] *= d1
		}
	}
}

func (s *StateVector) applyRZZ(q0, q1 int, theta float64) {
	same := cmplx.Exp(complex(0, -theta/2))
	diff := cmplx.Exp(complex(0, theta/2))
	b0, b1 := 1<<q0, 1<<q1
	for i := range s.Amplitudes {
		if (i&b0 != 0) == (i&b1 != 0) {
			s.Amplitudes[i] *= same
		} else {
			s.Amplitudes[i] *= diff
		}
	}
}

func (s *StateVector) applyCX(control, target int) {
	cb, tb := 1<<control, 1<<target
	for i := range s.Amplitudes {
		if i&cb != 0 && i&tb == 0 {
			j := i | tb
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

func (s *StateVector) applyCZ(q0, q1 int) {
	mask := 1<<q0 | 1<<q1
	for i := range s.Amplitudes {
		if i&mask == mask {
			s.Amplitudes[i] = -s.Amplitudes[i]
		}
	}
}

// applyECR applies (X_a - Y_a X_b)/√2 with a = q0 and b = q1.
func (s *StateVector) applyECR(q0, q1 int) {
	b0, b1 := 1<<q0, 1<<q1
	r := complex(1/math.Sqrt2, 0)
	for i := range s.Amplitudes {
		if i&b0 != 0 || i&b1 != 0 {
			continue
		}
		i1, i2, i3 := i|b0, i|b1, i|b0|b1
		v0, v1, v2, v3 := s.Amplitudes[i], s.Amplitudes[i1], s.Amplitudes[i2], s.Amplitudes[i3]
		s.Amplitudes[i] = r * (v1 + 1i*v3)
		s.Amplitudes[i1] = r * (v0 - 1i*v2)
		s.Amplitudes[i2] = r * (1i*v1 + v3)
		s.Amplitudes[i3] = r * (-1i*v0 + v2)
	}
}

func (s *StateVector) applySwap(q0, q1 int) {
	b0, b1 := 1<<q0, 1<<q1
	for i := range s.Amplitudes {
		if i&b0 != 0 && i&b1 == 0 {
			j := (i &^ b0) | b1
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// Probabilities returns |amplitude|² for every basis state (Born rule).
func (s *StateVector) Probabilities() []float64 {
	p := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		p[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return p
}

// Norm returns the squared norm; 1 for a valid state.
func (s *StateVector) Norm() float64 {
	var n float64
	for _, p := range s.Probabilities() {
		n += p
	}
	return n
}

// ExpectationTerm returns <ψ|P|ψ> for one Pauli term (coefficient excluded). Term
// qubit indices refer to this state's qubits.
func (s *StateVector) ExpectationTerm(t hamiltonian.Term) float64 {
	var xmask, zmask, ymask int
	for k, q := range t.Qubits {
		switch t.Pauli[k] {
		case 'X':
			xmask |= 1 << q
		case 'Y':
			xmask |= 1 << q
			zmask |= 1 << q
			ymask |= 1 << q
		case 'Z':
			zmask |= 1 << q
		}
	}

	// P|i> = phase(i) |i ^ xmask> with phase(i) = i^{#Y} (-1)^{popcount(i & zmask)}
	var ipow complex128 = 1
	for m := ymask; m != 0; m &= m - 1 {
		ipow *= 1i
	}

	var sum complex128
	for i, a := range s.Amplitudes {
		if a == 0 {
			continue
		}
		phase := ipow
		if parity(i&zmask) {
			phase = -phase
		}
		sum += cmplx.Conj(s.Amplitudes[i^xmask]) * phase * a
	}
	return real(sum)
}

// Expectation returns <ψ|H|ψ>.
func (s *StateVector) Expectation(op *hamiltonian.SparsePauliOp) float64 {
	var ev float64
	for _, t := range op.Terms {
		ev += t.Coeff * s.ExpectationTerm(t)
	}
	return ev
}

func parity(x int) bool {
	p := false
	for ; x != 0; x &= x - 1 {
		p = !p
	}
	return p
}
