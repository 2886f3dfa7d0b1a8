package runtime

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/transpiler"
)

// Service discovers runtime backends.
type Service struct {
	client *Client
	log    zerolog.Logger
}

// NewService creates a runtime service.
func NewService(client *Client, log zerolog.Logger) *Service {
	return &Service{client: client, log: log.With().Str("service", "ibm-runtime").Logger()}
}

// Backends returns every backend visible to the instance. Backends whose configuration
// cannot be read are skipped.
func (s *Service) Backends(ctx context.Context) ([]domain.Backend, error) {
	names, err := s.client.ListBackends(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list backends: %w", err)
	}

	out := make([]domain.Backend, 0, len(names))
	for _, name := range names {
		b, err := s.Backend(ctx, name)
		if err != nil {
			s.log.Warn().Err(err).Str("backend", name).Msg("Skipping backend")
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Backend returns the named backend.
func (s *Service) Backend(ctx context.Context, name string) (*Backend, error) {
	cfg, err := s.client.BackendConfiguration(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s configuration: %w", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return &Backend{client: s.client, config: *cfg, log: s.log.With().Str("backend", name).Logger()}, nil
}

// Backend is a cloud device executing primitives through runtime jobs.
type Backend struct {
	client *Client
	config BackendConfiguration
	log    zerolog.Logger
}

func (b *Backend) Name() string      { return b.config.Name }
func (b *Backend) NumQubits() int    { return b.config.NumQubits }
func (b *Backend) IsSimulator() bool { return b.config.Simulator }

// Operational reports whether the backend accepts jobs.
func (b *Backend) Operational(ctx context.Context) (bool, error) {
	st, err := b.client.BackendStatus(ctx, b.config.Name)
	if err != nil {
		return false, err
	}
	return st.Operational(), nil
}

// PendingJobs returns the backend queue length.
func (b *Backend) PendingJobs(ctx context.Context) (int, error) {
	st, err := b.client.BackendStatus(ctx, b.config.Name)
	if err != nil {
		return 0, err
	}
	return st.LengthQueue, nil
}

// Target returns the compilation target: the device's native gates and its directed
// coupling map.
func (b *Backend) Target() transpiler.Target {
	basis := append([]string(nil), b.config.BasisGates...)
	t := transpiler.Target{Name: b.config.Name, NumQubits: b.config.NumQubits, BasisGates: basis, CouplingMap: b.config.CouplingMap}
	for _, g := range []string{circuit.GateMeasure, circuit.GateBarrier, circuit.GateDelay} {
		if !t.HasGate(g) {
			t.BasisGates = append(t.BasisGates, g)
		}
	}
	return t
}

// Estimator returns an estimator that submits jobs to this backend.
func (b *Backend) Estimator(opts domain.EstimatorOptions) domain.Estimator {
	return &estimator{backend: b, opts: opts}
}

// Sampler returns a sampler that submits jobs to this backend.
func (b *Backend) Sampler(opts domain.SamplerOptions) domain.Sampler {
	return &sampler{backend: b, opts: opts}
}

// run submits one job, waits for it and decodes its results.
func (b *Backend) run(ctx context.Context, program string, params, out any) error {
	session := uuid.New().String()
	id, err := b.client.SubmitJob(ctx, JobRequest{
		ProgramID: program,
		Backend:   b.config.Name,
		Params:    params,
		Tags:      []string{"qaoa", session},
	})
	if err != nil {
		return fmt.Errorf("failed to submit %s job: %w", program, err)
	}
	if _, err := b.client.WaitForJob(ctx, id); err != nil {
		return err
	}
	if err := b.client.JobResults(ctx, id, out); err != nil {
		return fmt.Errorf("failed to fetch results of job %s: %w", id, err)
	}
	return nil
}

type estimator struct {
	backend *Backend
	opts    domain.EstimatorOptions
}

func (e *estimator) Run(ctx context.Context, pubs []domain.EstimatorPub) ([]domain.EstimatorResult, error) {
	params := EstimatorParams{Version: 2, Options: EstimatorOptions{DefaultShots: e.opts.DefaultShots, Seed: int(e.opts.Seed)}}
	for i, pub := range pubs {
		if pub.Circuit == nil || pub.Observable == nil {
			return nil, fmt.Errorf("pub %d needs a circuit and an observable", i)
		}
		obs := make(map[string]float64, pub.Observable.Len())
		coeffs := pub.Observable.Coeffs()
		for k, label := range pub.Observable.Labels() {
			obs[label] += coeffs[k]
		}
		params.Pubs = append(params.Pubs, []any{pub.Circuit.QASM3(), obs, parameterValues(pub.Params)})
	}

	var res EstimatorResults
	if err := e.backend.run(ctx, ProgramEstimator, params, &res); err != nil {
		return nil, err
	}
	if len(res.Results) != len(pubs) {
		return nil, fmt.Errorf("estimator returned %d results for %d pubs", len(res.Results), len(pubs))
	}

	out := make([]domain.EstimatorResult, len(pubs))
	for i, r := range res.Results {
		out[i] = domain.EstimatorResult{EV: r.Data.EVs, Std: r.Data.Stds, Shots: r.Metadata.Shots}
	}
	return out, nil
}

type sampler struct {
	backend *Backend
	opts    domain.SamplerOptions
}

func (s *sampler) Run(ctx context.Context, pubs []domain.SamplerPub) ([]domain.SamplerResult, error) {
	opts := SamplerOptions{DefaultShots: s.opts.DefaultShots}
	if dd := s.opts.DynamicalDecoupling; dd.Enable {
		opts.DynamicalDecoupling = &DynamicalDecoupling{Enable: true, SequenceType: dd.SequenceType}
	}
	if tw := s.opts.Twirling; tw.EnableGates {
		opts.Twirling = &Twirling{EnableGates: true, NumRandomizations: randomizations(tw.NumRandomizations)}
	}

	params := SamplerParams{Version: 2, Options: opts}
	for i, pub := range pubs {
		if pub.Circuit == nil {
			return nil, fmt.Errorf("pub %d needs a circuit", i)
		}
		var shots any
		if pub.Shots > 0 {
			shots = pub.Shots
		}
		params.Pubs = append(params.Pubs, []any{pub.Circuit.QASM3(), parameterValues(pub.Params), shots})
	}

	var res SamplerResults
	if err := s.backend.run(ctx, ProgramSampler, params, &res); err != nil {
		return nil, err
	}
	if len(res.Results) != len(pubs) {
		return nil, fmt.Errorf("sampler returned %d results for %d pubs", len(res.Results), len(pubs))
	}

	out := make([]domain.SamplerResult, len(pubs))
	for i, r := range res.Results {
		counts := make(map[uint64]int)
		for _, sample := range r.Data.Meas.Samples {
			v, err := parseSample(sample)
			if err != nil {
				return nil, fmt.Errorf("pub %d: %w", i, err)
			}
			counts[v]++
		}
		numBits := r.Data.Meas.NumBits
		if numBits == 0 {
			numBits = pubs[i].Circuit.NumClbits
		}
		out[i] = domain.SamplerResult{Counts: counts, NumBits: numBits, Shots: len(r.Data.Meas.Samples)}
	}
	return out, nil
}

// parameterValues wraps one binding as the single-row array the runtime expects.
func parameterValues(params []float64) [][]float64 {
	if len(params) == 0 {
		return [][]float64{}
	}
	return [][]float64{params}
}

func randomizations(setting string) any {
	if n, err := strconv.Atoi(setting); err == nil {
		return n
	}
	if setting == "" {
		return "auto"
	}
	return setting
}
