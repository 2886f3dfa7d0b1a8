// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/qaoa/internal/clients/runtime"
	"github.com/aristath/qaoa/internal/database"
	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/account"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/runs"
	"github.com/aristath/qaoa/internal/modules/simulator"
	"github.com/aristath/qaoa/internal/reliability"
	"github.com/aristath/qaoa/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire() and handed to the binaries and the HTTP server.
type Container struct {
	// Databases
	RunsDB *database.DB

	// Repositories
	RunRepo *runs.Repository

	// Execution targets
	Guard         *simulator.Guard
	Catalog       *backends.Catalog
	Accounts      *account.Store
	RuntimeClient *runtime.Client          // nil without credentials
	CloudBackends experiment.CloudBackends // nil without credentials

	// Services
	EventBus          *events.Bus
	ChartService      *charts.Service
	ObjectStore       reliability.ObjectStore // nil when artifact storage is disabled
	ArtifactUploader  *reliability.ArtifactUploader
	ExperimentService *experiment.Service

	// Graph is the problem instance used by scheduled and default runs.
	Graph *graph.Graph
}

// JobInstances holds the background jobs registered with the scheduler.
type JobInstances struct {
	Experiment  *scheduler.ExperimentJob // nil when no schedule is configured
	Maintenance *reliability.DailyMaintenanceJob
}

// Close releases the container's resources.
func (c *Container) Close() error {
	if c.RunsDB == nil {
		return nil
	}
	return c.RunsDB.Close()
}
