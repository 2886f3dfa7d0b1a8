package hamiltonian

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/modules/graph"
)

func TestBuildMaxCutPaulis_OneTermPerEdge(t *testing.T) {
	g, err := graph.New(4, []graph.Edge{
		{U: 0, V: 1, Weight: 1.5},
		{U: 2, V: 3, Weight: -0.25},
		{U: 0, V: 1, Weight: 2},
	})
	require.NoError(t, err)

	terms := BuildMaxCutPaulis(g)
	require.Len(t, terms, g.Len())
	for i, e := range g.Edges() {
		assert.Equal(t, "ZZ", terms[i].Pauli)
		assert.Equal(t, []int{e.U, e.V}, terms[i].Qubits)
		assert.Equal(t, e.Weight, terms[i].Coeff)
	}
}

func TestMaxCut_DefaultGraph(t *testing.T) {
	op, err := MaxCut(graph.Default())
	require.NoError(t, err)

	assert.Equal(t, 5, op.NumQubits)
	assert.Equal(t, 6, op.Len())
	assert.Equal(t, []string{"IIIZZ", "IIZIZ", "ZIIIZ", "IIZZI", "IZZII", "ZZIII"}, op.Labels())
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, op.Coeffs())
	assert.True(t, op.IsDiagonal())
}

func TestString(t *testing.T) {
	op, err := FromSparseList([]Term{
		{Pauli: "ZZ", Qubits: []int{0, 1}, Coeff: 1},
		{Pauli: "Z", Qubits: []int{2}, Coeff: 2.5},
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, "SparsePauliOp(['IZZ', 'ZII'],\n              coeffs=[1.+0.j, 2.5+0.j])", op.String())
}

func TestFromSparseList_Validation(t *testing.T) {
	tests := []struct {
		name    string
		terms   []Term
		n       int
		wantErr error
	}{
		{"bad letter", []Term{{Pauli: "ZQ", Qubits: []int{0, 1}, Coeff: 1}}, 2, ErrInvalidPauli},
		{"out of range", []Term{{Pauli: "ZZ", Qubits: []int{0, 2}, Coeff: 1}}, 2, ErrQubitOutOfRange},
		{"length mismatch", []Term{{Pauli: "Z", Qubits: []int{0, 1}, Coeff: 1}}, 2, nil},
		{"repeated qubit", []Term{{Pauli: "ZZ", Qubits: []int{1, 1}, Coeff: 1}}, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromSparseList(tt.terms, tt.n)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	_, err := FromSparseList(nil, 0)
	assert.Error(t, err)
}

func TestDiagonalEnergy(t *testing.T) {
	op, err := MaxCut(graph.Default())
	require.NoError(t, err)

	// All nodes on one side: every ZZ term is +1.
	e, err := op.DiagonalEnergy(0)
	require.NoError(t, err)
	assert.Equal(t, 6.0, e)

	// Optimal cut {0,3}: five edges cut (-1 each), one uncut (+1).
	e, err = op.DiagonalEnergy(0b01001)
	require.NoError(t, err)
	assert.Equal(t, -4.0, e)

	nd, err := FromSparseList([]Term{{Pauli: "X", Qubits: []int{0}, Coeff: 1}}, 1)
	require.NoError(t, err)
	assert.False(t, nd.IsDiagonal())
	_, err = nd.DiagonalEnergy(0)
	assert.ErrorIs(t, err, ErrNotDiagonal)
}

func TestApplyLayout(t *testing.T) {
	op, err := MaxCut(graph.Default())
	require.NoError(t, err)

	mapped, err := op.ApplyLayout([]int{10, 3, 7, 0, 126}, 127)
	require.NoError(t, err)
	assert.Equal(t, 127, mapped.NumQubits)
	assert.Equal(t, []int{10, 3}, mapped.Terms[0].Qubits)
	assert.Equal(t, []int{7, 0}, mapped.Terms[4].Qubits)
	assert.Equal(t, op.Coeffs(), mapped.Coeffs())

	// original untouched
	assert.Equal(t, []int{0, 1}, op.Terms[0].Qubits)

	_, err = op.ApplyLayout([]int{0, 1, 2}, 127)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = op.ApplyLayout([]int{0, 1, 2, 3, 3}, 127)
	assert.ErrorIs(t, err, ErrInvalidLayout)
	_, err = op.ApplyLayout([]int{0, 1, 2, 3, 200}, 127)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
