package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
	"github.com/aristath/qaoa/internal/modules/optimization"
	"github.com/aristath/qaoa/internal/modules/runs"
	"github.com/aristath/qaoa/internal/modules/sampling"
	"github.com/aristath/qaoa/internal/modules/transpiler"
)

const moduleName = "experiment"

// Pipeline stages, reported on failure.
const (
	StageEncode    = "encode"
	StageAnsatz    = "ansatz"
	StageBackend   = "backend"
	StageTranspile = "transpile"
	StageOptimize  = "optimize"
	StageSample    = "sample"
	StageDecode    = "decode"
	StagePersist   = "persist"
)

// ErrCloudUnavailable is returned when a cloud backend is requested without credentials.
var ErrCloudUnavailable = errors.New("cloud backends are not configured")

// StageError records the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// CloudBackends lists remote execution targets.
type CloudBackends interface {
	Backends(ctx context.Context) ([]domain.Backend, error)
}

// Publisher receives every completed report, e.g. to archive artifacts.
type Publisher interface {
	Publish(ctx context.Context, report *Report) error
}

// Service orchestrates experiment runs.
type Service struct {
	cfg        Config
	catalog    *backends.Catalog
	cloud      CloudBackends
	store      runs.Store
	bus        *events.Bus
	publishers []Publisher
	log        zerolog.Logger
	now        func() time.Time

	wg sync.WaitGroup
}

// NewService creates the experiment service. cloud, store and bus may be nil.
func NewService(cfg Config, catalog *backends.Catalog, cloud CloudBackends, store runs.Store, bus *events.Bus, log zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = backends.NewCatalog()
	}
	return &Service{
		cfg:     cfg,
		catalog: catalog,
		cloud:   cloud,
		store:   store,
		bus:     bus,
		log:     log.With().Str("service", "experiment").Logger(),
		now:     time.Now,
	}, nil
}

// AddPublisher registers p for completed reports.
func (s *Service) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// Config returns the service settings.
func (s *Service) Config() Config {
	return s.cfg
}

// Run executes the pipeline on g and blocks until the report is ready.
func (s *Service) Run(ctx context.Context, g *graph.Graph) (*Report, error) {
	run, err := s.begin(ctx, g)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, run, g)
}

// Submit records a new run and executes it in the background. The returned ID can be
// used to poll the run store; progress is published on the event bus.
func (s *Service) Submit(ctx context.Context, g *graph.Graph) (string, error) {
	run, err := s.begin(ctx, g)
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.finish(ctx, run, g); err != nil {
			s.log.Error().Err(err).Str("run_id", run.ID).Msg("Background run failed")
		}
	}()
	return run.ID, nil
}

// Wait blocks until every submitted run has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) begin(ctx context.Context, g *graph.Graph) (*runs.Run, error) {
	if g == nil {
		return nil, &StageError{Stage: StageEncode, Err: errors.New("graph is nil")}
	}

	run := &runs.Run{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
		Status:    runs.StatusRunning,
		NumNodes:  g.NumNodes(),
		Reps:      s.cfg.Reps,
		Edges:     g.Edges(),
	}
	if s.store != nil {
		if err := s.store.Create(ctx, run); err != nil {
			return nil, &StageError{Stage: StagePersist, Err: err}
		}
	}

	s.bus.Emit(moduleName, &events.RunStartedData{
		RunID:    run.ID,
		Backend:  s.cfg.Backend,
		NumNodes: run.NumNodes,
		Reps:     run.Reps,
	})
	s.log.Info().Str("run_id", run.ID).Int("nodes", run.NumNodes).Int("edges", g.Len()).Msg("Run started")
	return run, nil
}

func (s *Service) finish(ctx context.Context, run *runs.Run, g *graph.Graph) (*Report, error) {
	started := s.now()
	report, err := s.execute(ctx, run.ID, g)
	if report != nil {
		report.StartedAt = started
		report.Duration = s.now().Sub(started)
		run.Backend = report.BackendName
	}

	if err != nil {
		stage := StageOptimize
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		run.Finish(s.now().UTC(), err)
		s.persist(run)
		s.bus.Emit(moduleName, &events.RunFailedData{RunID: run.ID, Stage: stage, Error: err.Error()})
		s.log.Error().Err(err).Str("run_id", run.ID).Str("stage", stage).Msg("Run failed")
		return nil, err
	}

	run.Params = report.Result.X
	run.Trace = report.Trace.Values
	run.Counts = report.Counts
	run.Bitstring = report.Bitstring
	cut := report.CutValue
	run.CutValue = &cut
	if report.HasOptimum {
		optimal := report.OptimalCut
		run.OptimalCut = &optimal
	}
	run.Finish(s.now().UTC(), nil)
	if err := s.persist(run); err != nil {
		return nil, &StageError{Stage: StagePersist, Err: err}
	}

	s.bus.Emit(moduleName, &events.RunCompletedData{
		RunID:       run.ID,
		Bitstring:   report.Bitstring,
		CutValue:    report.CutValue,
		OptimalCut:  report.OptimalCut,
		Evaluations: report.Result.NFev,
	})
	s.log.Info().
		Str("run_id", run.ID).
		Str("backend", report.BackendName).
		Ints("bitstring", report.Bitstring).
		Float64("cut", report.CutValue).
		Dur("duration", report.Duration).
		Msg("Run completed")

	for _, p := range s.publishers {
		if err := p.Publish(ctx, report); err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish report")
		}
	}
	return report, nil
}

// persist writes the final run state. It uses a fresh context so a cancelled run is
// still recorded as failed.
func (s *Service) persist(run *runs.Run) error {
	if s.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Update(ctx, run); err != nil {
		s.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to persist run")
		return err
	}
	return nil
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

func (s *Service) execute(ctx context.Context, runID string, g *graph.Graph) (*Report, error) {
	cfg := s.cfg
	report := &Report{RunID: runID, Graph: g}

	// 1-2: graph to cost Hamiltonian
	op, err := hamiltonian.MaxCut(g)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}
	report.Hamiltonian = op

	// 3: ansatz with terminal measurements
	ansatz, err := circuit.QAOAAnsatz(op, cfg.Reps)
	if err != nil {
		return nil, stageErr(StageAnsatz, err)
	}
	ansatz.MeasureAll()

	// 4: backend selection and compilation
	device, exec, err := s.selectBackend(ctx, g.NumNodes())
	if err != nil {
		return report, stageErr(StageBackend, err)
	}
	report.BackendName = device.Name()
	report.ExecutedOn = exec.Name()
	pending, err := device.PendingJobs(ctx)
	if err != nil {
		s.log.Debug().Err(err).Str("backend", device.Name()).Msg("Queue length unavailable")
		pending = -1
	}
	s.bus.Emit(moduleName, &events.BackendSelectedData{
		RunID:       runID,
		Backend:     device.Name(),
		NumQubits:   device.NumQubits(),
		PendingJobs: pending,
	})

	pm, err := transpiler.GeneratePresetPassManager(cfg.OptimizationLevel, device.Target())
	if err != nil {
		return report, stageErr(StageTranspile, err)
	}
	isa, err := pm.Run(ansatz)
	if err != nil {
		return report, stageErr(StageTranspile, err)
	}
	report.Transpiled = isa
	s.log.Debug().
		Str("backend", device.Name()).
		Int("size", isa.Size()).
		Int("depth", isa.Depth()).
		Msg("Ansatz transpiled")

	// 5: classical loop over estimator evaluations
	estimator := exec.Estimator(domain.EstimatorOptions{DefaultShots: cfg.EstimatorShots, Seed: cfg.Seed})
	cost, err := optimization.CostFunction(ctx, estimator, isa, op)
	if err != nil {
		return report, stageErr(StageOptimize, err)
	}
	observed := func(params []float64, trace *optimization.Trace) (float64, error) {
		v, err := cost(params, trace)
		if err != nil {
			return v, err
		}
		s.bus.Emit(moduleName, &events.CostEvaluatedData{
			RunID:     runID,
			Iteration: trace.Len(),
			Value:     v,
			Params:    append([]float64(nil), params...),
		})
		return v, nil
	}

	x0 := optimization.InitialPoint(cfg.Reps, optimization.DefaultBeta, optimization.DefaultGamma)
	settings := optimization.Settings{MaxIter: cfg.MaxIter, Tol: cfg.Tol}
	result, trace, err := optimization.Minimize(ctx, observed, x0, settings, s.log)
	if trace != nil {
		report.Trace = trace
	}
	if err != nil {
		return report, stageErr(StageOptimize, err)
	}
	report.Result = result

	// 6: sample the optimum
	optimized, err := isa.AssignParameters(result.X)
	if err != nil {
		return report, stageErr(StageSample, err)
	}
	report.Optimized = optimized

	sampler := exec.Sampler(domain.SamplerOptions{
		DefaultShots: cfg.SamplerShots,
		DynamicalDecoupling: domain.DynamicalDecouplingOptions{
			Enable:       cfg.DynamicalDecoupling,
			SequenceType: cfg.DDSequence,
		},
		Twirling: domain.TwirlingOptions{
			EnableGates:       cfg.Twirling,
			NumRandomizations: cfg.Randomizations,
		},
		Seed: cfg.Seed,
	})
	samples, err := sampler.Run(ctx, []domain.SamplerPub{{Circuit: optimized, Shots: cfg.SamplerShots}})
	if err != nil {
		return report, stageErr(StageSample, err)
	}
	if len(samples) != 1 {
		return report, stageErr(StageSample, fmt.Errorf("sampler returned %d results for 1 pub", len(samples)))
	}
	report.Counts = samples[0].Counts
	report.Shots = samples[0].Shots

	// 7: decode
	width := g.NumNodes()
	if report.Distribution, err = sampling.NewDistribution(report.Counts); err != nil {
		return report, stageErr(StageDecode, err)
	}
	if report.BinaryDistribution, err = sampling.BinaryDistribution(report.Counts, width); err != nil {
		return report, stageErr(StageDecode, err)
	}
	if report.Bitstring, err = sampling.DecodeMostLikely(report.Distribution, width); err != nil {
		return report, stageErr(StageDecode, err)
	}
	if report.CutValue, err = g.CutValue(report.Bitstring); err != nil {
		return report, stageErr(StageDecode, err)
	}

	optimal, _, err := g.MaxCutBruteForce()
	switch {
	case err == nil:
		report.OptimalCut = optimal
		report.HasOptimum = true
	case errors.Is(err, graph.ErrTooLarge):
		s.log.Debug().Int("nodes", width).Msg("Skipping exhaustive optimum")
	default:
		return report, stageErr(StageDecode, err)
	}

	return report, nil
}

// selectBackend returns the device the ansatz is compiled for and the backend that
// executes it. They differ only in local mode, where the device-compiled circuit runs
// on the local simulator.
func (s *Service) selectBackend(ctx context.Context, numNodes int) (device, exec domain.Backend, err error) {
	filter := backends.Filter{Operational: true, Simulator: false, MinNumQubits: s.cfg.MinQubits}
	if filter.MinNumQubits < numNodes {
		filter.MinNumQubits = numNodes
	}

	switch s.cfg.Backend {
	case BackendLocal:
		device, err = s.catalog.LeastBusy(ctx, filter)
		if err != nil {
			return nil, nil, err
		}
		exec = device
		if sim, ok := s.catalog.Get(backends.AerSimulatorName); ok {
			exec = sim
		}
		s.log.Info().Str("device", device.Name()).Str("executor", exec.Name()).Msg("Backend selected")
		return device, exec, nil

	case BackendCloud:
		if s.cloud == nil {
			return nil, nil, ErrCloudUnavailable
		}
		candidates, err := s.cloud.Backends(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list cloud backends: %w", err)
		}
		device, err = backends.LeastBusy(ctx, candidates, filter)
		if err != nil {
			return nil, nil, err
		}
		s.log.Info().Str("device", device.Name()).Msg("Cloud backend selected")
		return device, device, nil
	}

	if b, ok := s.catalog.Get(s.cfg.Backend); ok {
		return b, b, nil
	}
	if s.cloud != nil {
		candidates, err := s.cloud.Backends(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list cloud backends: %w", err)
		}
		for _, b := range candidates {
			if b.Name() == s.cfg.Backend {
				return b, b, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("backend %q: %w", s.cfg.Backend, backends.ErrNoBackend)
}
