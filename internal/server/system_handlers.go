package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/qaoa/internal/database"
	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/modules/backends"
	"github.com/aristath/qaoa/internal/modules/experiment"
)

// SystemHandlers contains system-related HTTP handlers
type SystemHandlers struct {
	log       zerolog.Logger
	db        *database.DB
	catalog   *backends.Catalog
	cloud     experiment.CloudBackends
	startedAt time.Time
	hostStats func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	db *database.DB,
	catalog *backends.Catalog,
	cloud experiment.CloudBackends,
	startedAt time.Time,
) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		db:        db,
		catalog:   catalog,
		cloud:     cloud,
		startedAt: startedAt,
	}
	h.hostStats = h.getSystemStats
	return h
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string          `json:"status"`
	UptimeSeconds float64         `json:"uptime_seconds"`
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	Goroutines    int             `json:"goroutines"`
	Database      *database.Stats `json:"database,omitempty"`
	LastCheck     string          `json:"last_check"`
}

// BackendInfo describes one execution target
type BackendInfo struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	NumQubits   int    `json:"num_qubits"`
	Simulator   bool   `json:"simulator"`
	Operational bool   `json:"operational"`
	PendingJobs int    `json:"pending_jobs"`
	Error       string `json:"error,omitempty"`
}

// BackendsResponse lists local and cloud backends
type BackendsResponse struct {
	Backends   []BackendInfo `json:"backends"`
	CloudError string        `json:"cloud_error,omitempty"`
}

// HandleSystemStatus returns host and database status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.hostStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		LastCheck:     time.Now().Format(time.RFC3339),
	}

	if h.db != nil {
		stats, err := h.db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
			response.Status = "degraded"
		} else {
			response.Database = stats
		}
	}

	h.writeJSON(w, response)
}

// HandleBackends lists the backends an experiment can select from
// GET /api/backends
func (h *SystemHandlers) HandleBackends(w http.ResponseWriter, r *http.Request) {
	response := BackendsResponse{Backends: []BackendInfo{}}

	if h.catalog != nil {
		for _, b := range h.catalog.List() {
			response.Backends = append(response.Backends, describeBackend(r.Context(), b, "local"))
		}
	}

	if h.cloud != nil {
		remote, err := h.cloud.Backends(r.Context())
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to list cloud backends")
			response.CloudError = err.Error()
		}
		for _, b := range remote {
			response.Backends = append(response.Backends, describeBackend(r.Context(), b, "cloud"))
		}
	}

	h.writeJSON(w, response)
}

func describeBackend(ctx context.Context, b domain.Backend, source string) BackendInfo {
	info := BackendInfo{
		Name:      b.Name(),
		Source:    source,
		NumQubits: b.NumQubits(),
		Simulator: b.IsSimulator(),
	}
	operational, err := b.Operational(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Operational = operational
	if pending, err := b.PendingJobs(ctx); err != nil {
		info.Error = err.Error()
	} else {
		info.PendingJobs = pending
	}
	return info
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the status call responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
