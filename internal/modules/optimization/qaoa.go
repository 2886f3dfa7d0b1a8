package optimization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/qaoa/internal/domain"
	"github.com/aristath/qaoa/internal/modules/circuit"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

// Defaults of the variational loop.
const (
	DefaultMaxIter     = 5
	DefaultTol         = 1e-2
	DefaultSimplexSize = 0.5
	DefaultBeta        = math.Pi / 2
	DefaultGamma       = math.Pi
)

// ErrNoEvaluations is returned when the search stops before evaluating any point.
var ErrNoEvaluations = errors.New("optimizer stopped before the first evaluation")

// Cost evaluates the objective at params and records the evaluation in trace.
type Cost func(params []float64, trace *Trace) (float64, error)

// Settings configure Minimize.
type Settings struct {
	MaxIter     int     // cap on cost evaluations
	Tol         float64 // absolute and relative function tolerance
	SimplexSize float64 // initial simplex edge length
}

// DefaultSettings returns maxiter 5, tol 1e-2.
func DefaultSettings() Settings {
	return Settings{MaxIter: DefaultMaxIter, Tol: DefaultTol, SimplexSize: DefaultSimplexSize}
}

// Result summarises an optimisation run.
type Result struct {
	X       []float64 `json:"x"`
	Fun     float64   `json:"fun"`
	NFev    int       `json:"nfev"`
	NIt     int       `json:"nit"`
	Success bool      `json:"success"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

// String renders the result the way optimizer results are usually printed.
func (r *Result) String() string {
	xs := make([]string, len(r.X))
	for i, v := range r.X {
		xs[i] = fmt.Sprintf("%10.3e", v)
	}
	var b strings.Builder
	fmt.Fprintf(&b, " message: %s\n", r.Message)
	fmt.Fprintf(&b, " success: %t\n", r.Success)
	fmt.Fprintf(&b, "  status: %s\n", r.Status)
	fmt.Fprintf(&b, "     fun: %v\n", r.Fun)
	fmt.Fprintf(&b, "       x: [%s]\n", strings.Join(xs, " "))
	fmt.Fprintf(&b, "     nit: %d\n", r.NIt)
	fmt.Fprintf(&b, "    nfev: %d", r.NFev)
	return b.String()
}

// InitialPoint returns [β…β, γ…γ] for reps layers, matching the ansatz parameter order.
func InitialPoint(reps int, beta, gamma float64) []float64 {
	x := make([]float64, 2*reps)
	for k := 0; k < reps; k++ {
		x[k] = beta
		x[reps+k] = gamma
	}
	return x
}

// CostFunction returns the QAOA objective: one estimator pub of the mapped ansatz and
// the Hamiltonian re-indexed onto the ansatz layout, blocking until the value returns.
func CostFunction(ctx context.Context, estimator domain.Estimator, ansatz *circuit.Circuit, cost *hamiltonian.SparsePauliOp) (Cost, error) {
	observable := cost
	if ansatz.Layout != nil {
		mapped, err := cost.ApplyLayout(ansatz.Layout.FinalIndexLayout(), ansatz.NumQubits)
		if err != nil {
			return nil, fmt.Errorf("failed to map hamiltonian onto layout: %w", err)
		}
		observable = mapped
	}

	return func(params []float64, trace *Trace) (float64, error) {
		res, err := estimator.Run(ctx, []domain.EstimatorPub{{Circuit: ansatz, Observable: observable, Params: params}})
		if err != nil {
			return 0, err
		}
		if len(res) != 1 {
			return 0, fmt.Errorf("estimator returned %d results for 1 pub", len(res))
		}
		trace.Append(params, res[0].EV)
		return res[0].EV, nil
	}, nil
}

// Minimize runs a derivative-free Nelder-Mead search from x0. At most MaxIter costs are
// evaluated; the first evaluation error stops the search and is returned. The search
// converges once the best value moves less than Tol over a full simplex of iterations.
func Minimize(ctx context.Context, cost Cost, x0 []float64, settings Settings, log zerolog.Logger) (*Result, *Trace, error) {
	if len(x0) == 0 {
		return nil, nil, errors.New("initial point is empty")
	}
	if settings.MaxIter <= 0 {
		settings.MaxIter = DefaultMaxIter
	}
	if settings.Tol <= 0 {
		settings.Tol = DefaultTol
	}
	if settings.SimplexSize <= 0 {
		settings.SimplexSize = DefaultSimplexSize
	}

	trace := NewTrace()
	var (
		nfev    int
		evalErr error
	)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if evalErr != nil {
				return math.Inf(1)
			}
			v, err := cost(x, trace)
			if err != nil {
				evalErr = fmt.Errorf("evaluation %d: %w", nfev+1, err)
				return math.Inf(1)
			}
			nfev++
			log.Debug().Int("eval", nfev).Float64("cost", v).Floats64("params", x).Msg("Cost evaluated")
			return v
		},
		Status: func() (optimize.Status, error) {
			if evalErr != nil {
				return optimize.Failure, evalErr
			}
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	res, err := optimize.Minimize(problem, x0, &optimize.Settings{
		FuncEvaluations: settings.MaxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   settings.Tol,
			Relative:   settings.Tol,
			Iterations: len(x0) + 1,
		},
	}, &optimize.NelderMead{SimplexSize: settings.SimplexSize})
	if evalErr != nil {
		return nil, trace, evalErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, trace, ctxErr
	}
	if err != nil && res == nil {
		return nil, trace, fmt.Errorf("optimization failed: %w", err)
	}

	x, fun, ok := trace.Best()
	if !ok {
		return nil, trace, ErrNoEvaluations
	}

	result := &Result{
		X:       x,
		Fun:     fun,
		NFev:    nfev,
		NIt:     res.Stats.MajorIterations,
		Success: err == nil && isConverged(res.Status),
		Status:  res.Status.String(),
		Message: statusMessage(res.Status, settings),
	}
	log.Info().
		Float64("fun", result.Fun).
		Int("nfev", result.NFev).
		Str("status", result.Status).
		Msg("Optimization finished")
	return result, trace, nil
}

func isConverged(s optimize.Status) bool {
	switch s {
	case optimize.Success, optimize.FunctionConvergence, optimize.FunctionThreshold:
		return true
	}
	return false
}

func statusMessage(s optimize.Status, settings Settings) string {
	switch s {
	case optimize.FunctionEvaluationLimit:
		return fmt.Sprintf("Maximum number of function evaluations (%d) has been exceeded.", settings.MaxIter)
	case optimize.FunctionConvergence:
		return fmt.Sprintf("Objective changed by less than tol=%g.", settings.Tol)
	case optimize.Success:
		return "Optimization terminated successfully."
	default:
		return s.String()
	}
}
