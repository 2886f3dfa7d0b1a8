// Package sampling turns sampler counts into probability distributions and decodes the
// most likely outcome into a node partition.
package sampling

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrEmptyCounts  = errors.New("counts are empty")
	ErrInvalidWidth = errors.New("bitstring width must be between 1 and 64")
)

// Distribution maps register values to probabilities.
type Distribution map[uint64]float64

// Outcome is one entry of a distribution.
type Outcome struct {
	Value       uint64  `json:"value"`
	Bitstring   string  `json:"bitstring"`
	Probability float64 `json:"probability"`
}

// NewDistribution normalises counts by the total number of shots.
func NewDistribution(counts map[uint64]int) (Distribution, error) {
	total := 0
	for k, n := range counts {
		if n < 0 {
			return nil, fmt.Errorf("negative count %d for outcome %d", n, k)
		}
		total += n
	}
	if total == 0 {
		return nil, ErrEmptyCounts
	}

	dist := make(Distribution, len(counts))
	for k, n := range counts {
		dist[k] = float64(n) / float64(total)
	}
	return dist, nil
}

// BinaryDistribution normalises counts keyed by zero-padded bitstrings, qubit 0 rightmost.
func BinaryDistribution(counts map[uint64]int, width int) (map[string]float64, error) {
	if width < 1 || width > 64 {
		return nil, ErrInvalidWidth
	}
	dist, err := NewDistribution(counts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(dist))
	for k, p := range dist {
		out[fmt.Sprintf("%0*b", width, k)] += p
	}
	return out, nil
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, p := range d {
		s += p
	}
	return s
}

// Keys returns the outcomes in ascending order.
func (d Distribution) Keys() []uint64 {
	keys := make([]uint64, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// MostLikely returns the outcome with the largest probability magnitude; ties go to the
// smaller value.
func MostLikely(d Distribution) (uint64, error) {
	if len(d) == 0 {
		return 0, ErrEmptyCounts
	}
	var (
		best  uint64
		bestP = -1.0
	)
	for _, k := range d.Keys() {
		if p := math.Abs(d[k]); p > bestP {
			best, bestP = k, p
		}
	}
	return best, nil
}

// Top returns the k most probable outcomes, most probable first.
func Top(d Distribution, k, width int) []Outcome {
	out := make([]Outcome, 0, len(d))
	for _, v := range d.Keys() {
		out = append(out, Outcome{Value: v, Bitstring: fmt.Sprintf("%0*b", width, v), Probability: d[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if k >= 0 && k < len(out) {
		out = out[:k]
	}
	return out
}

// ToBitstring returns the width low bits of v, most significant first.
func ToBitstring(v uint64, width int) ([]int, error) {
	if width < 1 || width > 64 {
		return nil, ErrInvalidWidth
	}
	if width < 64 && v>>uint(width) != 0 {
		return nil, fmt.Errorf("value %d does not fit in %d bits", v, width)
	}
	bits := make([]int, width)
	for i := 0; i < width; i++ {
		bits[width-1-i] = int(v >> uint(i) & 1)
	}
	return bits, nil
}

// ReverseBits returns bits in reverse order.
func ReverseBits(bits []int) []int {
	out := make([]int, len(bits))
	for i, b := range bits {
		out[len(bits)-1-i] = b
	}
	return out
}

// DecodeMostLikely returns the most likely outcome as a partition indexed by node:
// element i is the measured bit of qubit i.
func DecodeMostLikely(d Distribution, width int) ([]int, error) {
	v, err := MostLikely(d)
	if err != nil {
		return nil, err
	}
	bits, err := ToBitstring(v, width)
	if err != nil {
		return nil, err
	}
	return ReverseBits(bits), nil
}
