// Package handlers provides HTTP handlers for experiment runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/qaoa/internal/modules/charts"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/runs"
	"github.com/aristath/qaoa/internal/modules/sampling"
)

// Submitter starts an experiment in the background and returns its run ID.
type Submitter interface {
	Submit(ctx context.Context, g *graph.Graph) (string, error)
}

// Handler handles run HTTP requests
type Handler struct {
	store        runs.Store
	submitter    Submitter
	charts       *charts.Service
	defaultGraph *graph.Graph
	// runs outlive the request that submitted them
	baseCtx context.Context
	log     zerolog.Logger
}

// NewHandler creates a new runs handler. Submitted runs are bound to baseCtx.
func NewHandler(
	baseCtx context.Context,
	store runs.Store,
	submitter Submitter,
	chartService *charts.Service,
	defaultGraph *graph.Graph,
	log zerolog.Logger,
) *Handler {
	if defaultGraph == nil {
		defaultGraph = graph.Default()
	}
	return &Handler{
		store:        store,
		submitter:    submitter,
		charts:       chartService,
		defaultGraph: defaultGraph,
		baseCtx:      baseCtx,
		log:          log.With().Str("handler", "runs").Logger(),
	}
}

// HandleListRuns handles GET /api/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := runs.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": list,
		"metadata": map[string]interface{}{
			"count":     len(list),
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetRun handles GET /api/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCreateRun handles POST /api/runs. An empty body runs the default graph.
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	g := h.defaultGraph
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		var custom graph.Graph
		if err := json.Unmarshal(body, &custom); err != nil {
			h.log.Warn().Err(err).Msg("Rejected graph")
			http.Error(w, "Invalid graph: "+err.Error(), http.StatusBadRequest)
			return
		}
		g = &custom
	}

	id, err := h.submitter.Submit(h.baseCtx, g)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to submit run")
		http.Error(w, "Failed to submit run", http.StatusInternalServerError)
		return
	}

	h.log.Info().Str("run_id", id).Int("nodes", g.NumNodes()).Msg("Run submitted")
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"data": map[string]interface{}{
			"id":     id,
			"status": runs.StatusRunning,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteRun handles DELETE /api/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.loadRun(w, r); !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to delete run")
		http.Error(w, "Failed to delete run", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCostPlot handles GET /api/runs/{id}/plots/cost.png
func (h *Handler) HandleCostPlot(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if len(run.Trace) == 0 {
		http.Error(w, "Run has no cost trace", http.StatusNotFound)
		return
	}
	png, err := h.charts.CostPNG(run.Trace)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to render cost plot")
		http.Error(w, "Failed to render plot", http.StatusInternalServerError)
		return
	}
	h.writePNG(w, png)
}

// HandleDistributionPlot handles GET /api/runs/{id}/plots/distribution.png
func (h *Handler) HandleDistributionPlot(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if len(run.Counts) == 0 {
		http.Error(w, "Run has no samples", http.StatusNotFound)
		return
	}
	dist, err := sampling.BinaryDistribution(run.Counts, run.NumNodes)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to build distribution")
		http.Error(w, "Failed to render plot", http.StatusInternalServerError)
		return
	}
	png, err := h.charts.DistributionPNG(dist)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to render distribution plot")
		http.Error(w, "Failed to render plot", http.StatusInternalServerError)
		return
	}
	h.writePNG(w, png)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.store.Get(r.Context(), id)
	if errors.Is(err, runs.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to load run")
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func (h *Handler) writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Debug().Err(err).Msg("Client went away while writing plot")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
