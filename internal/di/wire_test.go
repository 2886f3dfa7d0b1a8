package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/config"
	"github.com/aristath/qaoa/internal/modules/account"
	"github.com/aristath/qaoa/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QAOA_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("IBM_ACCOUNT_FILE", filepath.Join(dir, "accounts.json"))
	t.Setenv("IBM_API_TOKEN", "")
	t.Setenv("ARTIFACT_BUCKET", "")
	t.Setenv("QAOA_SCHEDULE", "")
	t.Setenv("QAOA_GRAPH_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()

	container, err := Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.RunsDB)
	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.ExperimentService)
	assert.NotNil(t, container.EventBus)
	assert.Len(t, container.Catalog.List(), 4)
	assert.Equal(t, 5, container.Graph.NumNodes())

	// no credentials, no bucket
	assert.Nil(t, container.RuntimeClient)
	assert.Nil(t, container.CloudBackends)
	assert.Nil(t, container.ObjectStore)
	assert.Nil(t, container.ArtifactUploader)
}

func TestWire_SavedAccountEnablesCloud(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()

	store := account.NewStore(cfg.IBM.AccountFile, log)
	require.NoError(t, store.Save(cfg.IBM.AccountName, account.Account{
		Channel: "ibm_cloud",
		Token:   "saved-token",
	}, false))

	container, err := Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.Equal(t, "saved-token", cfg.IBM.Token)
	assert.NotNil(t, container.RuntimeClient)
	assert.NotNil(t, container.CloudBackends)
}

func TestWire_InvalidSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Experiment.Reps = 0

	_, err := Wire(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadGraph(t *testing.T) {
	g, err := LoadGraph("")
	require.NoError(t, err)
	assert.Equal(t, 6, g.Len())

	path := filepath.Join(t.TempDir(), "triangle.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes":3,"edges":[{"u":0,"v":1,"weight":1},{"u":1,"v":2,"weight":1},{"u":0,"v":2,"weight":1}]}`), 0644))
	g, err = LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, 3, g.NumNodes())

	_, err = LoadGraph(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	log := zerolog.Nop()
	container, err := Wire(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	sched := scheduler.New(log)
	jobs, err := RegisterJobs(container, cfg, sched, log)
	require.NoError(t, err)
	assert.NotNil(t, jobs.Maintenance)
	assert.Nil(t, jobs.Experiment)
	assert.Equal(t, 1, sched.Entries())

	cfg.Schedule = "@every 1h"
	sched = scheduler.New(log)
	jobs, err = RegisterJobs(container, cfg, sched, log)
	require.NoError(t, err)
	assert.NotNil(t, jobs.Experiment)
	assert.Equal(t, 2, sched.Entries())

	cfg.Schedule = "not a schedule"
	_, err = RegisterJobs(container, cfg, scheduler.New(log), log)
	assert.Error(t, err)
}
