// Package experiment runs the QAOA Max-Cut pipeline end to end: encode the graph, build
// and compile the ansatz, optimise it on an estimator, sample the optimum and decode
// the most likely cut.
package experiment

import (
	"errors"
	"fmt"

	"github.com/aristath/qaoa/internal/modules/optimization"
	"github.com/aristath/qaoa/internal/modules/transpiler"
)

// Backend selectors.
const (
	// BackendLocal compiles for the least busy device of the local catalog and executes
	// on the local simulator.
	BackendLocal = "local"
	// BackendCloud compiles for and executes on the least busy cloud device.
	BackendCloud = "cloud"
)

// Config holds the pipeline knobs.
type Config struct {
	Reps              int
	MaxIter           int
	Tol               float64
	EstimatorShots    int
	SamplerShots      int
	OptimizationLevel int
	// Backend is BackendLocal, BackendCloud or a backend name.
	Backend             string
	MinQubits           int
	DynamicalDecoupling bool
	DDSequence          string
	Twirling            bool
	Randomizations      string
	Seed                int64
}

// DefaultConfig returns the settings of the reference experiment.
func DefaultConfig() Config {
	return Config{
		Reps:                2,
		MaxIter:             optimization.DefaultMaxIter,
		Tol:                 optimization.DefaultTol,
		EstimatorShots:      100,
		SamplerShots:        10000,
		OptimizationLevel:   3,
		Backend:             BackendLocal,
		MinQubits:           127,
		DynamicalDecoupling: true,
		DDSequence:          transpiler.SequenceXY4,
		Twirling:            true,
		Randomizations:      "auto",
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.Reps < 1:
		return fmt.Errorf("reps must be at least 1, got %d", c.Reps)
	case c.MaxIter < 1:
		return fmt.Errorf("maxiter must be at least 1, got %d", c.MaxIter)
	case c.Tol <= 0:
		return fmt.Errorf("tol must be positive, got %g", c.Tol)
	case c.SamplerShots < 1:
		return fmt.Errorf("sampler shots must be at least 1, got %d", c.SamplerShots)
	case c.EstimatorShots < 0:
		return fmt.Errorf("estimator shots cannot be negative, got %d", c.EstimatorShots)
	case c.OptimizationLevel < 0 || c.OptimizationLevel > 3:
		return fmt.Errorf("optimization level must be between 0 and 3, got %d", c.OptimizationLevel)
	case c.Backend == "":
		return errors.New("backend must be set")
	}
	return nil
}
