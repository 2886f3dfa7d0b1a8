package di

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/config"
	"github.com/aristath/qaoa/internal/reliability"
	"github.com/aristath/qaoa/internal/scheduler"
)

const (
	// MaintenanceSchedule runs backups and cleanup daily at 02:00
	MaintenanceSchedule = "0 2 * * *"
	// experimentTimeout bounds one scheduled run, queue time included
	experimentTimeout = 6 * time.Hour
)

// RegisterJobs creates the background jobs and adds them to sched.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	instances := &JobInstances{}

	instances.Maintenance = reliability.NewDailyMaintenanceJob(
		container.RunsDB,
		filepath.Join(cfg.DataDir, "backups"),
		container.ObjectStore,
		log,
	)
	if err := sched.AddJob(MaintenanceSchedule, instances.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if cfg.Schedule != "" {
		instances.Experiment = scheduler.NewExperimentJob(container.ExperimentService, container.Graph, experimentTimeout, log)
		if err := sched.AddJob(cfg.Schedule, instances.Experiment); err != nil {
			return nil, fmt.Errorf("failed to register experiment job: %w", err)
		}
	}

	log.Info().Int("jobs", sched.Entries()).Msg("Background jobs registered")
	return instances, nil
}
