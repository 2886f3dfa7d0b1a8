package simulator

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

// ErrMidCircuitMeasurement is returned when a measured qubit is operated on afterwards.
var ErrMidCircuitMeasurement = errors.New("mid-circuit measurements are not supported")

// execution is a simulated circuit restricted to its active qubits.
type execution struct {
	state *StateVector
	// compact maps device qubit -> state-vector qubit
	compact map[int]int
	// measured maps clbit -> state-vector qubit
	measured map[int]int
	numBits  int
}

// bindIfNeeded binds params when the circuit is parameterized.
func bindIfNeeded(c *circuit.Circuit, params []float64) (*circuit.Circuit, error) {
	if c.NumParameters() == 0 && len(params) == 0 {
		return c, nil
	}
	return c.AssignParameters(params)
}

// withoutMeasurements drops terminal measurements so the final state can be inspected.
func withoutMeasurements(c *circuit.Circuit) *circuit.Circuit {
	if !c.HasMeasurements() {
		return c
	}
	out := *c
	out.Gates = make([]circuit.Gate, 0, len(c.Gates))
	for _, g := range c.Gates {
		if g.Name != circuit.GateMeasure {
			out.Gates = append(out.Gates, g)
		}
	}
	return &out
}

// run simulates c on the qubits it touches plus extra (observable support).
// Idle device qubits stay in |0> and are never allocated.
func run(c *circuit.Circuit, extra []int, guard *Guard) (*execution, error) {
	active := make(map[int]bool)
	for _, q := range c.ActiveQubits() {
		active[q] = true
	}
	for _, q := range extra {
		active[q] = true
	}
	qubits := make([]int, 0, len(active))
	for q := range active {
		qubits = append(qubits, q)
	}
	sort.Ints(qubits)

	if guard != nil {
		if err := guard.Check(len(qubits)); err != nil {
			return nil, err
		}
	}

	ex := &execution{
		state:    NewStateVector(len(qubits)),
		compact:  make(map[int]int, len(qubits)),
		measured: make(map[int]int),
		numBits:  c.NumClbits,
	}
	for i, q := range qubits {
		ex.compact[q] = i
	}

	done := make(map[int]bool)
	for i, g := range c.Gates {
		if g.Name == circuit.GateBarrier {
			continue
		}
		local := circuit.Gate{Name: g.Name, Angles: g.Angles, Qubits: make([]int, len(g.Qubits))}
		for k, q := range g.Qubits {
			if done[q] && g.Name != circuit.GateDelay {
				return nil, fmt.Errorf("gate %d (%s) on qubit %d: %w", i, g.Name, q, ErrMidCircuitMeasurement)
			}
			local.Qubits[k] = ex.compact[q]
		}
		if g.Name == circuit.GateMeasure {
			ex.measured[g.Clbits[0]] = ex.compact[g.Qubits[0]]
			done[g.Qubits[0]] = true
			continue
		}
		if err := ex.state.Apply(local); err != nil {
			return nil, fmt.Errorf("gate %d: %w", i, err)
		}
	}

	return ex, nil
}

// compactObservable re-indexes op onto the simulated qubits.
func (ex *execution) compactObservable(op *hamiltonian.SparsePauliOp) *hamiltonian.SparsePauliOp {
	out := &hamiltonian.SparsePauliOp{NumQubits: ex.state.NumQubits, Terms: make([]hamiltonian.Term, len(op.Terms))}
	for i, t := range op.Terms {
		qubits := make([]int, len(t.Qubits))
		for k, q := range t.Qubits {
			qubits[k] = ex.compact[q]
		}
		out.Terms[i] = hamiltonian.Term{Pauli: t.Pauli, Qubits: qubits, Coeff: t.Coeff}
	}
	return out
}

// cdf builds the cumulative distribution of the state's basis outcomes.
func (ex *execution) cdf() []float64 {
	probs := ex.state.Probabilities()
	cum := make([]float64, len(probs))
	var acc float64
	for i, p := range probs {
		acc += p
		cum[i] = acc
	}
	return cum
}

// draw samples one basis index from a cumulative distribution.
func draw(cum []float64, rng *rand.Rand) int {
	u := rng.Float64() * cum[len(cum)-1]
	i := sort.SearchFloat64s(cum, u)
	if i >= len(cum) {
		i = len(cum) - 1
	}
	// skip zero-probability entries that share the cumulative value
	for i < len(cum)-1 && cum[i] <= u {
		i++
	}
	return i
}

// register extracts the classical register value from a basis index.
func (ex *execution) register(index int) uint64 {
	var v uint64
	for clbit, q := range ex.measured {
		if index>>q&1 == 1 {
			v |= 1 << clbit
		}
	}
	return v
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
