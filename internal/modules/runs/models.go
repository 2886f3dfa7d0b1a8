// Package runs keeps the history of experiment runs.
package runs

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/qaoa/internal/modules/graph"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one persisted experiment.
type Run struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	Status     Status         `json:"status"`
	Backend    string         `json:"backend"`
	NumNodes   int            `json:"num_nodes"`
	Reps       int            `json:"reps"`
	Edges      []graph.Edge   `json:"edges,omitempty"`
	Params     []float64      `json:"params,omitempty"`
	Trace      []float64      `json:"trace,omitempty"`
	Counts     map[uint64]int `json:"counts,omitempty"`
	Bitstring  []int          `json:"bitstring,omitempty"`
	CutValue   *float64       `json:"cut_value,omitempty"`
	OptimalCut *float64       `json:"optimal_cut,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Finish marks the run completed or failed at now.
func (r *Run) Finish(now time.Time, err error) {
	r.FinishedAt = &now
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusCompleted
}

// encodeBits renders [0,0,1] as "001".
func encodeBits(bits []int) string {
	var sb strings.Builder
	for _, b := range bits {
		sb.WriteString(strconv.Itoa(b))
	}
	return sb.String()
}

func decodeBits(s string) []int {
	if s == "" {
		return nil
	}
	bits := make([]int, len(s))
	for i, c := range s {
		bits[i] = int(c - '0')
	}
	return bits
}

// Store is the run persistence contract used by the experiment service and handlers.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]*Run, error)
	Delete(ctx context.Context, id string) error
}
