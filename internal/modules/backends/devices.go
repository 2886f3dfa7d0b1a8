package backends

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/modules/simulator"
	"github.com/aristath/qaoa/internal/modules/transpiler"
)

// AerSimulatorName is the name of the local state-vector backend.
const AerSimulatorName = "aer_simulator"

// FakeDevice is a device descriptor whose primitives run on the local simulator.
// Queue length and availability are settable so selection can be exercised offline.
type FakeDevice struct {
	name      string
	target    transpiler.Target
	simulator bool
	guard     *simulator.Guard
	log       zerolog.Logger

	mu          sync.RWMutex
	operational bool
	pending     int
}

// NewFakeDevice creates an operational device with the given target.
func NewFakeDevice(target transpiler.Target, pending int, guard *simulator.Guard, log zerolog.Logger) *FakeDevice {
	if len(target.BasisGates) == 0 {
		target.BasisGates = transpiler.DefaultBasis
	}
	return &FakeDevice{
		name:        target.Name,
		target:      target,
		guard:       guard,
		log:         log.With().Str("backend", target.Name).Logger(),
		operational: true,
		pending:     pending,
	}
}

// NewFakeEagle creates a 127-qubit heavy-hex device.
func NewFakeEagle(name string, pending int, guard *simulator.Guard, log zerolog.Logger) *FakeDevice {
	return NewFakeDevice(transpiler.Target{
		Name:        name,
		NumQubits:   eagleNumQubits,
		BasisGates:  transpiler.DefaultBasis,
		CouplingMap: HeavyHexCouplingMap(),
	}, pending, guard, log)
}

// NewAerSimulator creates the local simulator backend. It has all-to-all connectivity
// and numQubits device qubits, of which only the ones a circuit touches are simulated.
func NewAerSimulator(numQubits int, guard *simulator.Guard, log zerolog.Logger) *FakeDevice {
	if numQubits <= 0 {
		numQubits = eagleNumQubits
	}
	d := NewFakeDevice(transpiler.Target{Name: AerSimulatorName, NumQubits: numQubits}, 0, guard, log)
	d.simulator = true
	return d
}

// FakeEagles returns the offline stand-ins for the cloud Eagle fleet.
func FakeEagles(guard *simulator.Guard, log zerolog.Logger) []domain.Backend {
	return []domain.Backend{
		NewFakeEagle("fake_brisbane", 14, guard, log),
		NewFakeEagle("fake_kyiv", 3, guard, log),
		NewFakeEagle("fake_sherbrooke", 27, guard, log),
	}
}

func (d *FakeDevice) Name() string              { return d.name }
func (d *FakeDevice) NumQubits() int            { return d.target.NumQubits }
func (d *FakeDevice) IsSimulator() bool         { return d.simulator }
func (d *FakeDevice) Target() transpiler.Target { return d.target }

// Operational reports the configured availability.
func (d *FakeDevice) Operational(ctx context.Context) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.operational, nil
}

// PendingJobs reports the configured queue length.
func (d *FakeDevice) PendingJobs(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pending, nil
}

// SetStatus updates availability and queue length.
func (d *FakeDevice) SetStatus(operational bool, pending int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.operational = operational
	d.pending = pending
}

// Estimator returns a local estimator.
func (d *FakeDevice) Estimator(opts domain.EstimatorOptions) domain.Estimator {
	return simulator.NewEstimator(opts, d.guard, d.log)
}

// Sampler returns a local sampler.
func (d *FakeDevice) Sampler(opts domain.SamplerOptions) domain.Sampler {
	return simulator.NewSampler(opts, d.guard, d.log)
}
