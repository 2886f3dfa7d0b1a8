package domain

import (
	"fmt"
	"sort"

	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

// EstimatorPub is one estimator work item: a circuit, the observable measured at its
// end, and the parameter values to bind.
type EstimatorPub struct {
	Circuit    *circuit.Circuit
	Observable *hamiltonian.SparsePauliOp
	Params     []float64
}

// EstimatorResult holds the expectation value of one pub.
type EstimatorResult struct {
	EV    float64 `json:"ev"`
	Std   float64 `json:"std"`
	Shots int     `json:"shots"` // 0 for exact evaluation
}

// SamplerPub is one sampler work item. Shots of 0 falls back to the sampler default.
type SamplerPub struct {
	Circuit *circuit.Circuit
	Params  []float64
	Shots   int
}

// SamplerResult holds measurement counts keyed by the integer value of the classical
// register, where bit i is clbit i.
type SamplerResult struct {
	Counts  map[uint64]int `json:"counts"`
	NumBits int            `json:"num_bits"`
	Shots   int            `json:"shots"`
}

// BitCounts returns the counts keyed by bitstring, clbit 0 rightmost.
func (r SamplerResult) BitCounts() map[string]int {
	out := make(map[string]int, len(r.Counts))
	for k, v := range r.Counts {
		out[fmt.Sprintf("%0*b", r.NumBits, k)] += v
	}
	return out
}

// Keys returns the observed outcomes in ascending order.
func (r SamplerResult) Keys() []uint64 {
	keys := make([]uint64, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// EstimatorOptions configure an estimator primitive.
type EstimatorOptions struct {
	// DefaultShots > 0 estimates diagonal observables from that many samples;
	// 0 evaluates the exact expectation value.
	DefaultShots int
	Seed         int64
}

// DynamicalDecouplingOptions configure idle-window pulse padding.
type DynamicalDecouplingOptions struct {
	Enable       bool
	SequenceType string // "XX" or "XY4"
}

// TwirlingOptions configure Pauli twirling of entangling gates.
type TwirlingOptions struct {
	EnableGates       bool
	NumRandomizations string // "auto" or a positive integer
}

// SamplerOptions configure a sampler primitive.
type SamplerOptions struct {
	DefaultShots        int
	DynamicalDecoupling DynamicalDecouplingOptions
	Twirling            TwirlingOptions
	Seed                int64
}
