package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/modules/transpiler"
)

// ErrNoMeasurements is returned when sampling a circuit without measurements.
var ErrNoMeasurements = errors.New("circuit has no measurements")

// Estimator evaluates observables on the local simulator.
type Estimator struct {
	opts  domain.EstimatorOptions
	guard *Guard
	log   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEstimator creates a local estimator.
func NewEstimator(opts domain.EstimatorOptions, guard *Guard, log zerolog.Logger) *Estimator {
	return &Estimator{
		opts:  opts,
		guard: guard,
		log:   log.With().Str("component", "estimator").Logger(),
		rng:   newRand(opts.Seed),
	}
}

// Run evaluates every pub. With DefaultShots > 0 diagonal observables are estimated
// from sampled shots (EV is the sample mean, Std its standard error); otherwise the
// exact expectation value is returned.
func (e *Estimator) Run(ctx context.Context, pubs []domain.EstimatorPub) ([]domain.EstimatorResult, error) {
	results := make([]domain.EstimatorResult, 0, len(pubs))
	for i, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.runPub(pub)
		if err != nil {
			return nil, fmt.Errorf("pub %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Estimator) runPub(pub domain.EstimatorPub) (domain.EstimatorResult, error) {
	if pub.Circuit == nil || pub.Observable == nil {
		return domain.EstimatorResult{}, errors.New("pub needs a circuit and an observable")
	}
	if pub.Observable.NumQubits != pub.Circuit.NumQubits {
		return domain.EstimatorResult{}, fmt.Errorf("observable acts on %d qubits, circuit has %d",
			pub.Observable.NumQubits, pub.Circuit.NumQubits)
	}

	bound, err := bindIfNeeded(pub.Circuit, pub.Params)
	if err != nil {
		return domain.EstimatorResult{}, err
	}

	var support []int
	for _, t := range pub.Observable.Terms {
		support = append(support, t.Qubits...)
	}
	ex, err := run(withoutMeasurements(bound), support, e.guard)
	if err != nil {
		return domain.EstimatorResult{}, err
	}
	obs := ex.compactObservable(pub.Observable)

	if e.opts.DefaultShots <= 0 || !obs.IsDiagonal() {
		ev := ex.state.Expectation(obs)
		e.log.Debug().Float64("ev", ev).Int("qubits", ex.state.NumQubits).Msg("Exact expectation")
		return domain.EstimatorResult{EV: ev}, nil
	}

	cum := ex.cdf()
	energies := make([]float64, e.opts.DefaultShots)
	e.mu.Lock()
	for s := range energies {
		energies[s], err = obs.DiagonalEnergy(uint64(draw(cum, e.rng)))
		if err != nil {
			e.mu.Unlock()
			return domain.EstimatorResult{}, err
		}
	}
	e.mu.Unlock()

	mean, std := stat.MeanStdDev(energies, nil)
	if math.IsNaN(std) {
		std = 0
	}
	res := domain.EstimatorResult{
		EV:    mean,
		Std:   stat.StdErr(std, float64(len(energies))),
		Shots: len(energies),
	}
	e.log.Debug().Float64("ev", res.EV).Float64("std", res.Std).Int("shots", res.Shots).Msg("Sampled expectation")
	return res, nil
}

// Sampler draws measurement outcomes on the local simulator.
type Sampler struct {
	opts  domain.SamplerOptions
	guard *Guard
	log   zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a local sampler.
func NewSampler(opts domain.SamplerOptions, guard *Guard, log zerolog.Logger) *Sampler {
	return &Sampler{
		opts:  opts,
		guard: guard,
		log:   log.With().Str("component", "sampler").Logger(),
		rng:   newRand(opts.Seed),
	}
}

// Run samples every pub. Dynamical decoupling pads idle windows before execution;
// gate twirling splits the shots over independently twirled circuit instances.
func (s *Sampler) Run(ctx context.Context, pubs []domain.SamplerPub) ([]domain.SamplerResult, error) {
	results := make([]domain.SamplerResult, 0, len(pubs))
	for i, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.runPub(ctx, pub)
		if err != nil {
			return nil, fmt.Errorf("pub %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Sampler) runPub(ctx context.Context, pub domain.SamplerPub) (domain.SamplerResult, error) {
	if pub.Circuit == nil {
		return domain.SamplerResult{}, errors.New("pub needs a circuit")
	}
	shots := pub.Shots
	if shots <= 0 {
		shots = s.opts.DefaultShots
	}
	if shots <= 0 {
		return domain.SamplerResult{}, errors.New("shots must be positive")
	}

	c, err := bindIfNeeded(pub.Circuit, pub.Params)
	if err != nil {
		return domain.SamplerResult{}, err
	}
	if !c.HasMeasurements() {
		return domain.SamplerResult{}, ErrNoMeasurements
	}

	if dd := s.opts.DynamicalDecoupling; dd.Enable {
		seq := dd.SequenceType
		if seq == "" {
			seq = transpiler.SequenceXX
		}
		if c, err = transpiler.ApplyDynamicalDecoupling(c, seq); err != nil {
			return domain.SamplerResult{}, err
		}
	}

	chunks := []int{shots}
	if s.opts.Twirling.EnableGates {
		if chunks, err = transpiler.Randomizations(s.opts.Twirling.NumRandomizations, shots); err != nil {
			return domain.SamplerResult{}, err
		}
	}

	result := domain.SamplerResult{Counts: make(map[uint64]int), NumBits: c.NumClbits, Shots: shots}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range chunks {
		if err := ctx.Err(); err != nil {
			return domain.SamplerResult{}, err
		}
		instance := c
		if s.opts.Twirling.EnableGates {
			instance = transpiler.TwirlGates(c, s.rng)
		}
		ex, err := run(instance, nil, s.guard)
		if err != nil {
			return domain.SamplerResult{}, err
		}
		cum := ex.cdf()
		for k := 0; k < n; k++ {
			result.Counts[ex.register(draw(cum, s.rng))]++
		}
	}

	s.log.Debug().
		Int("shots", shots).
		Int("randomizations", len(chunks)).
		Int("outcomes", len(result.Counts)).
		Msg("Sampling complete")
	return result, nil
}
