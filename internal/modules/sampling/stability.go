package sampling

import (
	"context"
	"fmt"
	"sort"

	"github.com/aristath/qaoa/internal/domain"
)

// Stability summarises repeated samplings of one circuit.
type Stability struct {
	Runs int `json:"runs"`
	// Modes counts how often each outcome was the most likely one.
	Modes map[uint64]int `json:"modes"`
	Mode  uint64         `json:"mode"`
	// Agreement is the fraction of runs whose most likely outcome equals Mode.
	Agreement float64 `json:"agreement"`
}

// StabilityCheck samples pub runs times and reports how consistently the same outcome wins.
func StabilityCheck(ctx context.Context, sampler domain.Sampler, pub domain.SamplerPub, runs int) (*Stability, error) {
	if runs <= 0 {
		return nil, fmt.Errorf("runs must be positive, got %d", runs)
	}

	st := &Stability{Runs: runs, Modes: make(map[uint64]int)}
	for i := 0; i < runs; i++ {
		res, err := sampler.Run(ctx, []domain.SamplerPub{pub})
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		dist, err := NewDistribution(res[0].Counts)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		mode, err := MostLikely(dist)
		if err != nil {
			return nil, err
		}
		st.Modes[mode]++
	}

	keys := make([]uint64, 0, len(st.Modes))
	for k := range st.Modes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	best := 0
	for _, k := range keys {
		if st.Modes[k] > best {
			st.Mode, best = k, st.Modes[k]
		}
	}
	st.Agreement = float64(st.Modes[st.Mode]) / float64(runs)
	return st, nil
}
