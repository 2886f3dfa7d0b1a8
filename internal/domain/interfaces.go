// Package domain holds the execution-service contracts shared by local and cloud backends.
package domain

import (
	"context"

	"github.com/aristath/qaoa/internal/modules/transpiler"
)

// Estimator computes expectation values of observables on parameterized circuits.
// Run blocks until every pub is evaluated or ctx is done.
type Estimator interface {
	Run(ctx context.Context, pubs []EstimatorPub) ([]EstimatorResult, error)
}

// Sampler draws measurement outcomes from parameterized circuits.
// Run blocks until every pub is sampled or ctx is done.
type Sampler interface {
	Run(ctx context.Context, pubs []SamplerPub) ([]SamplerResult, error)
}

// Backend is an execution target: a device descriptor plus the primitives that run on it.
type Backend interface {
	Name() string
	NumQubits() int
	IsSimulator() bool
	// Operational reports whether the backend accepts jobs.
	Operational(ctx context.Context) (bool, error)
	// PendingJobs returns the current queue length.
	PendingJobs(ctx context.Context) (int, error)
	Target() transpiler.Target
	Estimator(opts EstimatorOptions) Estimator
	Sampler(opts SamplerOptions) Sampler
}
