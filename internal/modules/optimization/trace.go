package optimization

import "math"

// Trace accumulates every cost evaluation of one optimisation run. It is owned by the
// loop that creates it and passed to each evaluation explicitly.
type Trace struct {
	Values []float64   `json:"values"`
	Points [][]float64 `json:"points"`
}

// NewTrace creates an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Append records one evaluation. x is copied.
func (t *Trace) Append(x []float64, value float64) {
	t.Points = append(t.Points, append([]float64(nil), x...))
	t.Values = append(t.Values, value)
}

// Len returns the number of evaluations recorded.
func (t *Trace) Len() int {
	return len(t.Values)
}

// Best returns the lowest recorded value and its point. ok is false for an empty trace.
func (t *Trace) Best() (x []float64, value float64, ok bool) {
	if t.Len() == 0 {
		return nil, math.NaN(), false
	}
	best := 0
	for i, v := range t.Values {
		if v < t.Values[best] {
			best = i
		}
	}
	return append([]float64(nil), t.Points[best]...), t.Values[best], true
}
