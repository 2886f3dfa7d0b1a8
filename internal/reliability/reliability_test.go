package reliability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/experiment"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/optimization"
	"github.com/aristath/qaoa/internal/modules/sampling"
	testutil "github.com/aristath/qaoa/internal/testing"
	"github.com/aristath/qaoa/pkg/logger"
)

// memStore records uploads in memory.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader, contentType string) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func sampleReport(t *testing.T) *experiment.Report {
	t.Helper()
	trace := optimization.NewTrace()
	trace.Append([]float64{1.57, 1.57, 3.14, 3.14}, -0.4)
	trace.Append([]float64{2.07, 1.57, 3.14, 3.14}, -1.9)

	counts := map[uint64]int{0b10011: 60, 0b01100: 30, 0b00000: 10}
	dist, err := sampling.NewDistribution(counts)
	require.NoError(t, err)
	binary, err := sampling.BinaryDistribution(counts, 5)
	require.NoError(t, err)

	return &experiment.Report{
		RunID:              "run-42",
		Graph:              graph.Default(),
		BackendName:        "fake_kyiv",
		Result:             &optimization.Result{X: []float64{2.07, 1.57, 3.14, 3.14}, Fun: -1.9, NFev: 2},
		Trace:              trace,
		Counts:             counts,
		Shots:              100,
		Distribution:       dist,
		BinaryDistribution: binary,
		Bitstring:          []int{1, 1, 0, 0, 1},
		CutValue:           4,
		OptimalCut:         5,
		HasOptimum:         true,
	}
}

func TestArtifactUploader_Publish(t *testing.T) {
	store := newMemStore()
	bus := events.NewBus(logger.Nop())
	var uploaded *events.ArtifactsUploadedData
	bus.Subscribe(events.ArtifactsUploaded, func(e *events.Event) {
		uploaded = e.Data.(*events.ArtifactsUploadedData)
	})

	uploader := NewArtifactUploader(store, charts.NewService(logger.Nop()), bus, logger.Nop())
	require.NoError(t, uploader.Publish(context.Background(), sampleReport(t)))

	require.Len(t, store.objects, 3)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(store.objects["runs/run-42/report.json"], &summary))
	assert.Equal(t, "run-42", summary["run_id"])
	assert.Equal(t, "fake_kyiv", summary["backend"])
	assert.Equal(t, 5.0, summary["optimal_cut"])

	pngMagic := []byte("\x89PNG")
	for _, name := range []string{charts.CostFile, charts.DistributionFile} {
		key := "runs/run-42/" + name
		assert.True(t, bytes.HasPrefix(store.objects[key], pngMagic), key)
		assert.Equal(t, "image/png", store.types[key])
	}

	require.NotNil(t, uploaded)
	assert.Len(t, uploaded.Keys, 3)
}

func TestArtifactUploader_UploadError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("access denied")
	uploader := NewArtifactUploader(store, charts.NewService(logger.Nop()), nil, logger.Nop())

	err := uploader.Publish(context.Background(), sampleReport(t))
	assert.ErrorContains(t, err, "access denied")
}

func TestRunPrefix(t *testing.T) {
	assert.Equal(t, "runs/abc/", RunPrefix("abc"))
}

func newMaintenanceJob(t *testing.T, store ObjectStore) *DailyMaintenanceJob {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, "runs")
	t.Cleanup(cleanup)

	job := NewDailyMaintenanceJob(db, filepath.Join(t.TempDir(), "backups"), store, logger.Nop())
	job.freeBytes = func(string) (uint64, error) { return 100 << 30, nil }
	return job
}

func TestDailyMaintenanceJob_BacksUpAndPrunes(t *testing.T) {
	store := newMemStore()
	job := newMaintenanceJob(t, store)
	job.keep = 2

	start := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	for day := 0; day < 3; day++ {
		job.now = func() time.Time { return start.AddDate(0, 0, day) }
		require.NoError(t, job.Run())
	}

	names, err := job.Backups()
	require.NoError(t, err)
	assert.Equal(t, []string{"runs-2026-05-03-020000.db", "runs-2026-05-02-020000.db"}, names)

	assert.Len(t, store.objects, 3)
	assert.Contains(t, store.objects, "backups/runs-2026-05-01-020000.db")
	assert.Equal(t, "daily_maintenance", job.Name())
}

func TestDailyMaintenanceJob_LowDiskHalts(t *testing.T) {
	job := newMaintenanceJob(t, nil)
	job.freeBytes = func(string) (uint64, error) { return 1 << 20, nil }

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRITICAL")

	names, err := job.Backups()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewS3Store_Disabled(t *testing.T) {
	_, err := NewS3Store(context.Background(), UploaderConfig{}, logger.Nop())
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.False(t, UploaderConfig{}.Enabled())
}

func TestS3Store_UploadUsesPathStyle(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store, err := NewS3Store(context.Background(), UploaderConfig{
		Bucket:    "artifacts",
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "key",
		SecretKey: "secret",
	}, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, store.Upload(context.Background(), "runs/r1/report.json", bytes.NewReader([]byte(`{}`)), "application/json"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"PUT /artifacts/runs/r1/report.json"}, paths)
}
