package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplerResult_BitCounts(t *testing.T) {
	tests := []struct {
		name     string
		result   SamplerResult
		expected map[string]int
	}{
		{
			name:     "fixed width with leading zeros",
			result:   SamplerResult{Counts: map[uint64]int{0: 3, 16: 5, 9: 2}, NumBits: 5},
			expected: map[string]int{"00000": 3, "10000": 5, "01001": 2},
		},
		{
			name:     "single bit",
			result:   SamplerResult{Counts: map[uint64]int{1: 7}, NumBits: 1},
			expected: map[string]int{"1": 7},
		},
		{
			name:     "empty",
			result:   SamplerResult{Counts: map[uint64]int{}, NumBits: 3},
			expected: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.BitCounts())
		})
	}
}

func TestSamplerResult_Keys(t *testing.T) {
	r := SamplerResult{Counts: map[uint64]int{22: 1, 3: 4, 9: 1}, NumBits: 5}
	assert.Equal(t, []uint64{3, 9, 22}, r.Keys())
}
