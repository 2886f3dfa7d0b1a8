package experiment

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
	"github.com/aristath/qaoa/internal/modules/optimization"
	"github.com/aristath/qaoa/internal/modules/sampling"
)

// TopOutcomes is the number of outcomes listed in summaries.
const TopOutcomes = 4

// Report is everything a run produced.
type Report struct {
	RunID       string
	Graph       *graph.Graph
	Hamiltonian *hamiltonian.SparsePauliOp
	// BackendName is the device the ansatz was compiled for; ExecutedOn the backend
	// that ran the primitives.
	BackendName string
	ExecutedOn  string
	Transpiled  *circuit.Circuit
	Optimized   *circuit.Circuit
	Result      *optimization.Result
	Trace       *optimization.Trace

	Counts             map[uint64]int
	Shots              int
	Distribution       sampling.Distribution
	BinaryDistribution map[string]float64
	Bitstring          []int
	CutValue           float64
	OptimalCut         float64
	HasOptimum         bool

	StartedAt time.Time
	Duration  time.Duration
}

// Summary is the JSON form of a report.
type Summary struct {
	RunID       string             `json:"run_id"`
	Graph       *graph.Graph       `json:"graph"`
	Hamiltonian string             `json:"hamiltonian"`
	Backend     string             `json:"backend"`
	ExecutedOn  string             `json:"executed_on"`
	Params      []float64          `json:"params"`
	Fun         float64            `json:"fun"`
	Evaluations int                `json:"evaluations"`
	Status      string             `json:"status"`
	Costs       []float64          `json:"costs"`
	Shots       int                `json:"shots"`
	Top         []sampling.Outcome `json:"top"`
	Bitstring   []int              `json:"bitstring"`
	CutValue    float64            `json:"cut_value"`
	OptimalCut  *float64           `json:"optimal_cut,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	DurationMS  int64              `json:"duration_ms"`
}

// Summary returns the JSON form of r.
func (r *Report) Summary() Summary {
	s := Summary{
		RunID:      r.RunID,
		Graph:      r.Graph,
		Backend:    r.BackendName,
		ExecutedOn: r.ExecutedOn,
		Shots:      r.Shots,
		Bitstring:  r.Bitstring,
		CutValue:   r.CutValue,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Hamiltonian != nil {
		s.Hamiltonian = r.Hamiltonian.String()
	}
	if r.Result != nil {
		s.Params = r.Result.X
		s.Fun = r.Result.Fun
		s.Evaluations = r.Result.NFev
		s.Status = r.Result.Status
	}
	if r.Trace != nil {
		s.Costs = r.Trace.Values
	}
	if r.Distribution != nil && r.Graph != nil {
		s.Top = sampling.Top(r.Distribution, TopOutcomes, r.Graph.NumNodes())
	}
	if r.HasOptimum {
		optimal := r.OptimalCut
		s.OptimalCut = &optimal
	}
	return s
}

// Print writes the console report: Hamiltonian, backend, compiled circuit, optimizer
// result, bound circuit, final distribution and the decoded cut.
func (r *Report) Print(w io.Writer) error {
	pw := &printer{w: w}
	pw.printf("Cost Function Hamiltonian: %s\n", r.Hamiltonian)
	pw.printf("<Backend('%s')>\n", r.BackendName)
	if r.ExecutedOn != "" && r.ExecutedOn != r.BackendName {
		pw.printf("Executed on: %s\n", r.ExecutedOn)
	}
	if r.Transpiled != nil {
		pw.printf("%s\n", r.Transpiled.Draw())
	}
	if r.Result != nil {
		pw.printf("%s\n", r.Result)
	}
	if r.Optimized != nil {
		pw.printf("%s\n", r.Optimized.Draw())
	}
	pw.printf("%s\n", FormatDistribution(r.Distribution))
	pw.printf("Result bitstring: %s\n", FormatBits(r.Bitstring))
	if r.HasOptimum {
		pw.printf("Cut value: %g (optimum %g)\n", r.CutValue, r.OptimalCut)
	} else {
		pw.printf("Cut value: %g\n", r.CutValue)
	}
	return pw.err
}

// FormatDistribution renders {value: probability, ...} in ascending key order.
func FormatDistribution(d sampling.Distribution) string {
	parts := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		parts = append(parts, fmt.Sprintf("%d: %s", k, strconv.FormatFloat(d[k], 'g', -1, 64)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FormatBits renders [1, 0, 1].
func FormatBits(bits []int) string {
	parts := make([]string, len(bits))
	for i, b := range bits {
		parts[i] = strconv.Itoa(b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
