package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/events"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/simulator"
	testutil "github.com/aristath/qaoa/internal/testing"
)

type stubCloud struct {
	backends []domain.Backend
	err      error
}

func (c *stubCloud) Backends(ctx context.Context) ([]domain.Backend, error) {
	return c.backends, c.err
}

type stubSubmitter struct{ id string }

func (s *stubSubmitter) Submit(ctx context.Context, g *graph.Graph) (string, error) {
	return s.id, nil
}

func newTestServer(t *testing.T, cloud *stubCloud) (*Server, *events.Bus) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	db, cleanup := testutil.NewTestDB(t, "server")
	t.Cleanup(cleanup)

	guard := simulator.NewGuard(0)
	catalog := backends.NewCatalog(backends.FakeEagles(guard, logger)...)
	catalog.Register(backends.NewAerSimulator(0, guard, logger))
	bus := events.NewBus(logger)

	cfg := Config{
		Log:        logger,
		Port:       0,
		DevMode:    true,
		DB:         db,
		Runs:       testutil.NewMockRunStore(),
		Experiment: &stubSubmitter{id: "run-42"},
		Catalog:    catalog,
		Bus:        bus,
	}
	if cloud != nil {
		cfg.Cloud = cloud
	}
	srv := New(cfg)
	srv.systemHandlers.hostStats = func() (float64, float64) { return 12.5, 40 }
	return srv, bus
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, path := range []string{"/health", "/api/health"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)

		var response map[string]interface{}
		decode(t, w, &response)
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "qaoa", response["service"])
	}
}

func TestSystemStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/system/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response SystemStatusResponse
	decode(t, w, &response)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, 12.5, response.CPUPercent)
	assert.Equal(t, 40.0, response.MemoryPercent)
	require.NotNil(t, response.Database)
	assert.Greater(t, response.Database.PageSize, int64(0))
	assert.GreaterOrEqual(t, response.UptimeSeconds, 0.0)
}

func TestBackends(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	remote := backends.NewFakeEagle("ibm_remote", 9, simulator.NewGuard(0), logger)
	srv, _ := newTestServer(t, &stubCloud{backends: []domain.Backend{remote}})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/backends", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response BackendsResponse
	decode(t, w, &response)
	require.Len(t, response.Backends, 5)
	assert.Empty(t, response.CloudError)

	byName := map[string]BackendInfo{}
	for _, b := range response.Backends {
		byName[b.Name] = b
	}
	assert.Equal(t, 3, byName["fake_kyiv"].PendingJobs)
	assert.Equal(t, "local", byName["fake_kyiv"].Source)
	assert.Equal(t, 127, byName["fake_kyiv"].NumQubits)
	assert.True(t, byName["aer_simulator"].Simulator)
	assert.Equal(t, "cloud", byName["ibm_remote"].Source)
	assert.Equal(t, 9, byName["ibm_remote"].PendingJobs)
	assert.True(t, byName["ibm_remote"].Operational)
}

func TestBackends_CloudError(t *testing.T) {
	srv, _ := newTestServer(t, &stubCloud{err: errors.New("unauthorized")})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/backends", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response BackendsResponse
	decode(t, w, &response)
	assert.Len(t, response.Backends, 4)
	assert.Equal(t, "unauthorized", response.CloudError)
}

func TestRunsRoutesMounted(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/api/runs", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "run-42")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventsStream(t *testing.T) {
	srv, bus := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/runs/stream?types=RUN_COMPLETED"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, conn, &hello))
	assert.Equal(t, "connected", hello["type"])

	// filtered out
	bus.Emit("experiment", &events.CostEvaluatedData{RunID: "r1", Iteration: 1, Value: -1})
	bus.Emit("experiment", &events.RunCompletedData{RunID: "r1", Bitstring: []int{1, 0, 0, 1, 0}, CutValue: 5})

	var msg struct {
		Type   string                 `json:"type"`
		Module string                 `json:"module"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, string(events.RunCompleted), msg.Type)
	assert.Equal(t, "experiment", msg.Module)
	assert.Equal(t, "r1", msg.Data["run_id"])
}

func TestEventsStream_NoBus(t *testing.T) {
	h := NewEventsStreamHandler(nil, zerolog.New(nil).Level(zerolog.Disabled))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/runs/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
