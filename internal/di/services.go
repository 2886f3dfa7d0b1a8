package di

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/clients/runtime"
	"github.com/aristath/qaoa/internal/config"
	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/account"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/runs"
	"github.com/aristath/qaoa/internal/modules/simulator"
	"github.com/aristath/qaoa/internal/reliability"
)

// InitializeRepositories creates the repositories backed by the container's databases.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.RunsDB == nil {
		return errors.New("runs database not initialized")
	}
	container.RunRepo = runs.NewRepository(container.RunsDB.Conn(), log)
	return nil
}

// InitializeServices creates the execution targets and services. cfg is updated with
// credentials from the saved account when the environment provides none.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventBus = events.NewBus(log)
	container.ChartService = charts.NewService(log)

	// Accounts
	container.Accounts = account.NewStore(cfg.IBM.AccountFile, log)
	if err := cfg.UpdateFromAccount(container.Accounts); err != nil {
		log.Warn().Err(err).Msg("Failed to read saved account, using environment credentials")
	}

	// Local fleet: fake Eagle devices plus the ideal simulator
	container.Guard = simulator.NewGuard(cfg.Experiment.MaxSimQubits)
	container.Catalog = backends.NewCatalog(backends.FakeEagles(container.Guard, log)...)
	container.Catalog.Register(backends.NewAerSimulator(0, container.Guard, log))

	// Cloud fleet
	client, err := runtime.NewClient(cfg.Runtime(), log)
	switch {
	case errors.Is(err, runtime.ErrMissingCredentials):
		log.Info().Msg("No runtime credentials configured, cloud backends disabled")
	case err != nil:
		return fmt.Errorf("failed to create runtime client: %w", err)
	default:
		container.RuntimeClient = client
		container.CloudBackends = runtime.NewService(client, log)
		log.Info().Str("channel", cfg.IBM.Channel).Msg("Runtime client initialized")
	}

	// Graph
	g, err := LoadGraph(cfg.GraphFile)
	if err != nil {
		return err
	}
	container.Graph = g

	// Experiment service
	svc, err := experiment.NewService(
		cfg.ExperimentSettings(),
		container.Catalog,
		container.CloudBackends,
		container.RunRepo,
		container.EventBus,
		log,
	)
	if err != nil {
		return fmt.Errorf("invalid experiment settings: %w", err)
	}
	container.ExperimentService = svc

	// Artifact storage
	store, err := reliability.NewS3Store(ctx, cfg.Uploader(), log)
	switch {
	case errors.Is(err, reliability.ErrStorageDisabled):
		log.Info().Msg("Artifact storage disabled")
	case err != nil:
		return fmt.Errorf("failed to create artifact store: %w", err)
	default:
		container.ObjectStore = store
		container.ArtifactUploader = reliability.NewArtifactUploader(store, container.ChartService, container.EventBus, log)
		svc.AddPublisher(container.ArtifactUploader)
	}

	return nil
}

// LoadGraph reads the graph file, or returns the default five-node graph when path is empty.
func LoadGraph(path string) (*graph.Graph, error) {
	if path == "" {
		return graph.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	g, err := graph.Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", path, err)
	}
	return g, nil
}
