package experiment_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/runs"
	"github.com/aristath/qaoa/internal/modules/simulator"
	testutil "github.com/aristath/qaoa/internal/testing"
	"github.com/aristath/qaoa/pkg/logger"
)

func newCatalog() *backends.Catalog {
	guard := &simulator.Guard{MaxQubits: 20}
	log := logger.Nop()
	catalog := backends.NewCatalog(backends.FakeEagles(guard, log)...)
	catalog.Register(backends.NewAerSimulator(0, guard, log))
	return catalog
}

func quickConfig() experiment.Config {
	cfg := experiment.DefaultConfig()
	cfg.SamplerShots = 2000
	cfg.Seed = 7
	return cfg
}

// recorder collects bus events by type.
type recorder struct {
	mu     sync.Mutex
	events map[events.EventType][]*events.Event
}

func record(bus *events.Bus) *recorder {
	r := &recorder{events: make(map[events.EventType][]*events.Event)}
	for _, t := range events.AllTypes {
		bus.Subscribe(t, func(e *events.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events[e.Type] = append(r.events[e.Type], e)
		})
	}
	return r
}

func (r *recorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[t])
}

func (r *recorder) first(t events.EventType) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events[t]) == 0 {
		return nil
	}
	return r.events[t][0]
}

func TestService_RunLocal(t *testing.T) {
	store := testutil.NewMockRunStore()
	bus := events.NewBus(logger.Nop())
	rec := record(bus)

	cfg := quickConfig()
	svc, err := experiment.NewService(cfg, newCatalog(), nil, store, bus, logger.Nop())
	require.NoError(t, err)

	report, err := svc.Run(context.Background(), graph.Default())
	require.NoError(t, err)

	assert.Equal(t, "fake_kyiv", report.BackendName, "least busy device")
	assert.Equal(t, backends.AerSimulatorName, report.ExecutedOn)
	assert.Equal(t, 127, report.Transpiled.NumQubits)
	assert.Equal(t, 6, report.Hamiltonian.Len())

	require.NotNil(t, report.Result)
	assert.LessOrEqual(t, report.Result.NFev, cfg.MaxIter)
	assert.Equal(t, report.Result.NFev, report.Trace.Len())
	assert.True(t, report.Optimized.IsBound())

	total := 0
	for _, n := range report.Counts {
		total += n
	}
	assert.Equal(t, cfg.SamplerShots, total)
	assert.InDelta(t, 1.0, report.Distribution.Sum(), 1e-9)

	require.Len(t, report.Bitstring, 5)
	assert.True(t, report.HasOptimum)
	assert.Equal(t, 5.0, report.OptimalCut)
	assert.GreaterOrEqual(t, report.CutValue, 0.0)
	assert.LessOrEqual(t, report.CutValue, report.OptimalCut)

	run, err := store.Get(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCompleted, run.Status)
	assert.Equal(t, "fake_kyiv", run.Backend)
	assert.Equal(t, report.Bitstring, run.Bitstring)
	assert.Equal(t, report.Trace.Values, run.Trace)
	require.NotNil(t, run.OptimalCut)
	assert.Equal(t, 5.0, *run.OptimalCut)

	assert.Equal(t, 1, rec.count(events.RunStarted))
	assert.Equal(t, 1, rec.count(events.BackendSelected))
	assert.Equal(t, report.Result.NFev, rec.count(events.CostEvaluated))
	assert.Equal(t, 1, rec.count(events.RunCompleted))
	assert.Zero(t, rec.count(events.RunFailed))

	first := rec.first(events.CostEvaluated).Data.(*events.CostEvaluatedData)
	assert.Equal(t, 1, first.Iteration)
	assert.Equal(t, report.RunID, first.RunID)
	assert.Equal(t, report.Trace.Values[0], first.Value)
}

func TestService_UnknownBackend(t *testing.T) {
	store := testutil.NewMockRunStore()
	bus := events.NewBus(logger.Nop())
	rec := record(bus)

	cfg := quickConfig()
	cfg.Backend = "ibm_nowhere"
	svc, err := experiment.NewService(cfg, newCatalog(), nil, store, bus, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), graph.Default())
	require.Error(t, err)
	assert.ErrorIs(t, err, backends.ErrNoBackend)

	var stageErr *experiment.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, experiment.StageBackend, stageErr.Stage)

	failed := rec.first(events.RunFailed)
	require.NotNil(t, failed)
	assert.Equal(t, experiment.StageBackend, failed.Data.(*events.RunFailedData).Stage)

	list, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, runs.StatusFailed, list[0].Status)
	assert.NotEmpty(t, list[0].Error)
}

func TestService_CloudWithoutCredentials(t *testing.T) {
	cfg := quickConfig()
	cfg.Backend = experiment.BackendCloud
	svc, err := experiment.NewService(cfg, newCatalog(), nil, nil, nil, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), graph.Default())
	assert.ErrorIs(t, err, experiment.ErrCloudUnavailable)
}

type staticCloud struct {
	backends []domain.Backend
	err      error
}

func (c *staticCloud) Backends(context.Context) ([]domain.Backend, error) {
	return c.backends, c.err
}

func TestService_RunCloud(t *testing.T) {
	guard := &simulator.Guard{MaxQubits: 20}
	cloud := &staticCloud{backends: backends.FakeEagles(guard, logger.Nop())}

	cfg := quickConfig()
	cfg.Backend = experiment.BackendCloud
	cfg.Twirling = false
	svc, err := experiment.NewService(cfg, nil, cloud, nil, nil, logger.Nop())
	require.NoError(t, err)

	report, err := svc.Run(context.Background(), graph.Default())
	require.NoError(t, err)
	assert.Equal(t, "fake_kyiv", report.BackendName)
	assert.Equal(t, "fake_kyiv", report.ExecutedOn, "cloud runs execute where they compile")

	cloud.err = errors.New("service unavailable")
	_, err = svc.Run(context.Background(), graph.Default())
	assert.ErrorContains(t, err, "service unavailable")
}

// flakyDevice fails every estimator call after the first few.
type flakyDevice struct {
	*backends.FakeDevice
	okCalls int32
}

func (d *flakyDevice) Estimator(opts domain.EstimatorOptions) domain.Estimator {
	return &flakyEstimator{inner: d.FakeDevice.Estimator(opts), remaining: &d.okCalls}
}

type flakyEstimator struct {
	inner     domain.Estimator
	remaining *int32
}

func (e *flakyEstimator) Run(ctx context.Context, pubs []domain.EstimatorPub) ([]domain.EstimatorResult, error) {
	if atomic.AddInt32(e.remaining, -1) < 0 {
		return nil, errors.New("job failed: queue drained")
	}
	return e.inner.Run(ctx, pubs)
}

// queuelessDevice cannot report its queue.
type queuelessDevice struct {
	*backends.FakeDevice
}

func (d *queuelessDevice) PendingJobs(context.Context) (int, error) {
	return 0, errors.New("status endpoint unavailable")
}

func TestService_UnknownQueueLength(t *testing.T) {
	guard := &simulator.Guard{MaxQubits: 20}
	catalog := newCatalog()
	catalog.Register(&queuelessDevice{FakeDevice: backends.NewFakeEagle("ibm_quiet", 0, guard, logger.Nop())})

	var logs bytes.Buffer
	log := zerolog.New(&logs).Level(zerolog.DebugLevel)
	bus := events.NewBus(logger.Nop())
	rec := record(bus)

	cfg := quickConfig()
	cfg.Backend = "ibm_quiet"
	svc, err := experiment.NewService(cfg, catalog, nil, nil, bus, log)
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), graph.Default())
	require.NoError(t, err)

	selected := rec.first(events.BackendSelected)
	require.NotNil(t, selected)
	assert.Equal(t, -1, selected.Data.(*events.BackendSelectedData).PendingJobs)
	assert.Contains(t, logs.String(), "status endpoint unavailable")
}

func TestService_EstimatorFailureAbortsRun(t *testing.T) {
	guard := &simulator.Guard{MaxQubits: 20}
	device := &flakyDevice{FakeDevice: backends.NewFakeEagle("ibm_flaky", 0, guard, logger.Nop()), okCalls: 2}
	catalog := newCatalog()
	catalog.Register(device)

	store := testutil.NewMockRunStore()
	cfg := quickConfig()
	cfg.Backend = "ibm_flaky"
	svc, err := experiment.NewService(cfg, catalog, nil, store, nil, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), graph.Default())
	require.Error(t, err)
	assert.ErrorContains(t, err, "queue drained")

	var stageErr *experiment.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, experiment.StageOptimize, stageErr.Stage)

	list, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, runs.StatusFailed, list[0].Status)
	assert.Equal(t, "ibm_flaky", list[0].Backend)
}

func TestService_CancelledContext(t *testing.T) {
	svc, err := experiment.NewService(quickConfig(), newCatalog(), nil, nil, nil, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, graph.Default())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_SubmitAndWait(t *testing.T) {
	store := testutil.NewMockRunStore()
	cfg := quickConfig()
	cfg.Twirling = false
	svc, err := experiment.NewService(cfg, newCatalog(), nil, store, nil, logger.Nop())
	require.NoError(t, err)

	id, err := svc.Submit(context.Background(), graph.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	svc.Wait()
	run, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCompleted, run.Status)
}

func TestService_StoreFailure(t *testing.T) {
	store := testutil.NewMockRunStore()
	store.SetError(errors.New("disk full"))
	svc, err := experiment.NewService(quickConfig(), newCatalog(), nil, store, nil, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), graph.Default())
	var stageErr *experiment.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, experiment.StagePersist, stageErr.Stage)
}

type capturePublisher struct {
	reports []*experiment.Report
}

func (p *capturePublisher) Publish(_ context.Context, r *experiment.Report) error {
	p.reports = append(p.reports, r)
	return errors.New("bucket unreachable")
}

func TestService_PublishesReports(t *testing.T) {
	cfg := quickConfig()
	cfg.Twirling = false
	svc, err := experiment.NewService(cfg, newCatalog(), nil, nil, nil, logger.Nop())
	require.NoError(t, err)
	pub := &capturePublisher{}
	svc.AddPublisher(pub)

	report, err := svc.Run(context.Background(), graph.Default())
	require.NoError(t, err, "publisher errors do not fail the run")
	require.Len(t, pub.reports, 1)
	assert.Same(t, report, pub.reports[0])
}

func TestReport_PrintAndSummary(t *testing.T) {
	cfg := quickConfig()
	cfg.Twirling = false
	svc, err := experiment.NewService(cfg, newCatalog(), nil, nil, nil, logger.Nop())
	require.NoError(t, err)
	report, err := svc.Run(context.Background(), graph.Default())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Print(&buf))
	out := buf.String()
	assert.Contains(t, out, "Cost Function Hamiltonian: SparsePauliOp(['IIIZZ'")
	assert.Contains(t, out, "<Backend('fake_kyiv')>")
	assert.Contains(t, out, "nfev:")
	assert.Contains(t, out, "Result bitstring: "+experiment.FormatBits(report.Bitstring))
	assert.Contains(t, out, "(optimum 5)")

	summary := report.Summary()
	assert.Equal(t, report.RunID, summary.RunID)
	assert.Equal(t, report.Trace.Values, summary.Costs)
	assert.LessOrEqual(t, len(summary.Top), experiment.TopOutcomes)
	require.NotNil(t, summary.OptimalCut)
	assert.Equal(t, 5.0, *summary.OptimalCut)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "[0, 0, 0, 0, 1]", experiment.FormatBits([]int{0, 0, 0, 0, 1}))
	assert.Equal(t, "[]", experiment.FormatBits(nil))
	assert.Equal(t, "{3: 0.25, 16: 0.75}", experiment.FormatDistribution(map[uint64]float64{16: 0.75, 3: 0.25}))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*experiment.Config)
		ok     bool
	}{
		{"defaults", func(*experiment.Config) {}, true},
		{"zero reps", func(c *experiment.Config) { c.Reps = 0 }, false},
		{"zero maxiter", func(c *experiment.Config) { c.MaxIter = 0 }, false},
		{"zero tol", func(c *experiment.Config) { c.Tol = 0 }, false},
		{"zero shots", func(c *experiment.Config) { c.SamplerShots = 0 }, false},
		{"level 5", func(c *experiment.Config) { c.OptimizationLevel = 5 }, false},
		{"no backend", func(c *experiment.Config) { c.Backend = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := experiment.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
