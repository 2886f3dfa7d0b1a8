package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/runs"
	testutil "github.com/aristath/qaoa/internal/testing"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(ctx context.Context, g *graph.Graph) (string, error) {
	args := m.Called(ctx, g)
	return args.String(0), args.Error(1)
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func setupRouter(t *testing.T) (*chi.Mux, *testutil.MockRunStore, *MockSubmitter) {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	store := testutil.NewMockRunStore()
	submitter := &MockSubmitter{}
	handler := NewHandler(context.Background(), store, submitter, charts.NewService(logger), nil, logger)

	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router, store, submitter
}

func completedRun(id string) *runs.Run {
	cut := 5.0
	return &runs.Run{
		ID:        id,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Status:    runs.StatusCompleted,
		Backend:   "fake_kyiv",
		NumNodes:  5,
		Reps:      2,
		Params:    []float64{1.1, 2.2, 0.3, 0.4},
		Trace:     []float64{-1.2, -1.9, -2.4, -2.6, -2.7},
		Counts:    map[uint64]int{0b01001: 60, 0b10110: 40},
		Bitstring: []int{1, 0, 0, 1, 0},
		CutValue:  &cut,
	}
}

func serve(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleListRuns(t *testing.T) {
	router, store, _ := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), completedRun("a")))
	require.NoError(t, store.Create(context.Background(), completedRun("b")))

	w := serve(router, "GET", "/api/runs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response["data"], 2)
	metadata := response["metadata"].(map[string]interface{})
	assert.Equal(t, float64(2), metadata["count"])

	w = serve(router, "GET", "/api/runs?limit=1", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Len(t, response["data"], 1)

	w = serve(router, "GET", "/api/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetRun(t *testing.T) {
	router, store, _ := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), completedRun("abc")))

	w := serve(router, "GET", "/api/runs/abc", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data runs.Run `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "abc", response.Data.ID)
	assert.Equal(t, []int{1, 0, 0, 1, 0}, response.Data.Bitstring)
	require.NotNil(t, response.Data.CutValue)
	assert.Equal(t, 5.0, *response.Data.CutValue)

	w = serve(router, "GET", "/api/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetRun_StoreError(t *testing.T) {
	router, store, _ := setupRouter(t)
	store.SetError(errors.New("disk on fire"))

	w := serve(router, "GET", "/api/runs/abc", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleCreateRun_DefaultGraph(t *testing.T) {
	router, _, submitter := setupRouter(t)
	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(g *graph.Graph) bool {
		return g.NumNodes() == 5 && g.Len() == 6
	})).Return("run-1", nil)

	w := serve(router, "POST", "/api/runs", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "run-1", data["id"])
	assert.Equal(t, "running", data["status"])
	submitter.AssertExpectations(t)
}

func TestHandleCreateRun_CustomGraph(t *testing.T) {
	router, _, submitter := setupRouter(t)
	submitter.On("Submit", mock.Anything, mock.MatchedBy(func(g *graph.Graph) bool {
		return g.NumNodes() == 3 && g.Len() == 2
	})).Return("run-2", nil)

	body, _ := json.Marshal(map[string]interface{}{
		"nodes": 3,
		"edges": []map[string]interface{}{
			{"u": 0, "v": 1, "weight": 1.0},
			{"u": 1, "v": 2, "weight": 2.5},
		},
	})
	w := serve(router, "POST", "/api/runs", body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	submitter.AssertExpectations(t)
}

func TestHandleCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"nodes":`, http.StatusBadRequest},
		{"self loop", `{"nodes":2,"edges":[{"u":1,"v":1,"weight":1}]}`, http.StatusBadRequest},
		{"no nodes", `{"nodes":0,"edges":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, submitter := setupRouter(t)
			w := serve(router, "POST", "/api/runs", []byte(tt.body))
			assert.Equal(t, tt.status, w.Code)
			submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}

	router, _, submitter := setupRouter(t)
	submitter.On("Submit", mock.Anything, mock.Anything).Return("", errors.New("store down"))
	w := serve(router, "POST", "/api/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleDeleteRun(t *testing.T) {
	router, store, _ := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), completedRun("gone")))

	w := serve(router, "DELETE", "/api/runs/gone", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, store.Len())

	w = serve(router, "DELETE", "/api/runs/gone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePlots(t *testing.T) {
	router, store, _ := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), completedRun("p")))

	for _, path := range []string{"/api/runs/p/plots/cost.png", "/api/runs/p/plots/distribution.png"} {
		w := serve(router, "GET", path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(w.Body.Bytes(), pngMagic), path)
	}
}

func TestHandlePlots_PendingRun(t *testing.T) {
	router, store, _ := setupRouter(t)
	require.NoError(t, store.Create(context.Background(), &runs.Run{
		ID:       "pending",
		Status:   runs.StatusRunning,
		NumNodes: 5,
	}))

	w := serve(router, "GET", "/api/runs/pending/plots/cost.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(router, "GET", "/api/runs/pending/plots/distribution.png", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterRoutes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	handler := NewHandler(context.Background(), testutil.NewMockRunStore(), &MockSubmitter{}, charts.NewService(logger), graph.Default(), logger)

	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
}
