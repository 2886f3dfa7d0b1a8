package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/modules/graph"
)

// ExperimentRunner executes one experiment.
type ExperimentRunner interface {
	Run(ctx context.Context, g *graph.Graph) (*experiment.Report, error)
}

// ExperimentJob runs the pipeline on a fixed graph.
type ExperimentJob struct {
	runner  ExperimentRunner
	graph   *graph.Graph
	timeout time.Duration
	log     zerolog.Logger
}

// NewExperimentJob creates the job. A zero timeout means no deadline.
func NewExperimentJob(runner ExperimentRunner, g *graph.Graph, timeout time.Duration, log zerolog.Logger) *ExperimentJob {
	return &ExperimentJob{
		runner:  runner,
		graph:   g,
		timeout: timeout,
		log:     log.With().Str("job", "experiment").Logger(),
	}
}

// Name returns the job name
func (j *ExperimentJob) Name() string {
	return "experiment"
}

// Run executes the experiment job
func (j *ExperimentJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	report, err := j.runner.Run(ctx, j.graph)
	if err != nil {
		return err
	}
	j.log.Info().
		Str("run_id", report.RunID).
		Ints("bitstring", report.Bitstring).
		Float64("cut", report.CutValue).
		Msg("Scheduled experiment finished")
	return nil
}
