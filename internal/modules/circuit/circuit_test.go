package circuit

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qaoa/internal/modules/graph"
	"github.com/aristath/qaoa/internal/modules/hamiltonian"
)

func defaultCost(t *testing.T) *hamiltonian.SparsePauliOp {
	t.Helper()
	op, err := hamiltonian.MaxCut(graph.Default())
	require.NoError(t, err)
	return op
}

func TestQAOAAnsatz_Structure(t *testing.T) {
	c, err := QAOAAnsatz(defaultCost(t), 2)
	require.NoError(t, err)

	assert.Equal(t, 5, c.NumQubits)
	assert.Equal(t, 0, c.NumClbits)
	require.Equal(t, 4, c.NumParameters())
	assert.Equal(t, []Parameter{
		{Name: "β[0]", Index: 0},
		{Name: "β[1]", Index: 1},
		{Name: "γ[0]", Index: 2},
		{Name: "γ[1]", Index: 3},
	}, c.Params)

	ops := c.CountOps()
	assert.Equal(t, 5, ops[GateH])
	assert.Equal(t, 12, ops[GateRZZ])
	assert.Equal(t, 10, ops[GateRX])
	assert.False(t, c.IsBound())
}

func TestQAOAAnsatz_Angles(t *testing.T) {
	cost, err := hamiltonian.FromSparseList([]hamiltonian.Term{
		{Pauli: "ZZ", Qubits: []int{0, 1}, Coeff: 0.5},
		{Pauli: "Z", Qubits: []int{1}, Coeff: -1},
	}, 2)
	require.NoError(t, err)

	c, err := QAOAAnsatz(cost, 1)
	require.NoError(t, err)

	bound, err := c.AssignParameters([]float64{0.3, 0.7})
	require.NoError(t, err)
	require.True(t, bound.IsBound())

	// h h rzz rz rx rx
	require.Len(t, bound.Gates, 6)
	assert.Equal(t, GateRZZ, bound.Gates[2].Name)
	assert.InDelta(t, 2*0.5*0.7, bound.Gates[2].Angles[0].Value(), 1e-12)
	assert.Equal(t, GateRZ, bound.Gates[3].Name)
	assert.InDelta(t, 2*-1*0.7, bound.Gates[3].Angles[0].Value(), 1e-12)
	assert.InDelta(t, 0.6, bound.Gates[4].Angles[0].Value(), 1e-12)
}

func TestQAOAAnsatz_Errors(t *testing.T) {
	_, err := QAOAAnsatz(defaultCost(t), 0)
	assert.Error(t, err)

	_, err = QAOAAnsatz(nil, 1)
	assert.Error(t, err)

	xx, err := hamiltonian.FromSparseList([]hamiltonian.Term{{Pauli: "XX", Qubits: []int{0, 1}, Coeff: 1}}, 2)
	require.NoError(t, err)
	_, err = QAOAAnsatz(xx, 1)
	assert.ErrorIs(t, err, ErrUnsupportedTerm)
}

func TestMeasureAll(t *testing.T) {
	c, err := QAOAAnsatz(defaultCost(t), 2)
	require.NoError(t, err)
	depth := c.Depth()

	c.MeasureAll()
	assert.Equal(t, 5, c.NumClbits)
	assert.Equal(t, 5, c.CountOps()[GateMeasure])
	assert.Equal(t, 1, c.CountOps()[GateBarrier])
	assert.True(t, c.HasMeasurements())
	assert.Equal(t, depth+1, c.Depth())

	last := c.Gates[len(c.Gates)-1]
	assert.Equal(t, []int{4}, last.Qubits)
	assert.Equal(t, []int{4}, last.Clbits)
}

func TestAssignParameters(t *testing.T) {
	c, err := QAOAAnsatz(defaultCost(t), 2)
	require.NoError(t, err)

	_, err = c.AssignParameters([]float64{1, 2})
	assert.ErrorIs(t, err, ErrParameterCount)

	bound, err := c.AssignParameters([]float64{math.Pi / 2, math.Pi / 2, math.Pi, math.Pi})
	require.NoError(t, err)
	assert.Empty(t, bound.Params)
	assert.False(t, c.IsBound(), "source circuit must stay parameterized")
	assert.InDelta(t, math.Pi, bound.Gates[len(bound.Gates)-1].Angles[0].Value(), 1e-12)
}

func TestAngleArithmetic(t *testing.T) {
	a := Param(0, 2).Add(Const(1))
	b := Param(0, -2).Add(Param(1, 3))

	sum := a.Add(b)
	assert.Equal(t, map[int]float64{1: 3}, sum.Coeffs)
	assert.Equal(t, 1.0, sum.Offset)

	v, err := sum.Eval([]float64{10, 2})
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = Param(3, 1).Eval([]float64{1})
	assert.Error(t, err)

	assert.True(t, Const(2*math.Pi).IsZero())
	assert.True(t, Const(-4*math.Pi).IsZero())
	assert.False(t, Const(math.Pi).IsZero())
	assert.False(t, Param(0, 1).IsZero())
	assert.True(t, Param(0, 1).Add(Param(0, -1)).IsConst())
}

func TestAngleFormat(t *testing.T) {
	names := func(i int) string { return []string{"β[0]", "γ[0]"}[i] }

	assert.Equal(t, "2*γ[0]", Param(1, 2).Format(names))
	assert.Equal(t, "π/2", Const(math.Pi/2).Format(names))
	assert.Equal(t, "β[0] + π", Param(0, 1).Add(Const(math.Pi)).Format(names))
	assert.Equal(t, "-β[0]", Param(0, -1).Format(names))
	assert.Equal(t, "0", Const(0).Format(names))
}

func TestDepthAndActiveQubits(t *testing.T) {
	c := New(4, 0)
	c.H(0).H(1).CX(0, 1).RZ(Const(0.1), 1).Barrier()
	assert.Equal(t, 3, c.Depth())
	assert.Equal(t, []int{0, 1}, c.ActiveQubits())
	assert.Equal(t, [][2]int{{0, 1}}, c.TwoQubitPairs())
	assert.Equal(t, 4, c.Size())
}

func TestAppend_Validation(t *testing.T) {
	c := New(2, 1)
	assert.Error(t, c.Append(Gate{Name: GateH, Qubits: []int{2}}))
	assert.Error(t, c.Append(Gate{Name: GateCX, Qubits: []int{1, 1}}))
	assert.Error(t, c.Append(Gate{Name: GateMeasure, Qubits: []int{0}, Clbits: []int{1}}))
	assert.Error(t, c.Append(Gate{Name: GateRZ, Qubits: []int{0}, Angles: []Angle{Param(0, 1)}}))
	assert.NoError(t, c.Append(Gate{Name: GateRZ, Qubits: []int{0}, Angles: []Angle{Const(1)}}))
	assert.Panics(t, func() { c.H(5) })
}

func TestDraw(t *testing.T) {
	c, err := QAOAAnsatz(defaultCost(t), 1)
	require.NoError(t, err)
	c.MeasureAll()

	out := c.Draw()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "q_0: "))
	assert.Contains(t, out, "Rzz(2*γ[0])")
	assert.Contains(t, out, "Rx(2*β[0])")
	assert.Contains(t, out, "M4")
	assert.Contains(t, lines[5], "5 classical bits")
}

func TestQASM3(t *testing.T) {
	c, err := QAOAAnsatz(defaultCost(t), 1)
	require.NoError(t, err)
	c.MeasureAll()

	out := c.QASM3()
	assert.True(t, strings.HasPrefix(out, "OPENQASM 3.0;\ninclude \"stdgates.inc\";\n"))
	assert.Contains(t, out, "input float[64] beta_0;")
	assert.Contains(t, out, "input float[64] gamma_0;")
	assert.Contains(t, out, "qubit[5] q;")
	assert.Contains(t, out, "bit[5] meas;")
	assert.Contains(t, out, "rzz(2.0*gamma_0) q[0], q[1];")
	assert.Contains(t, out, "rx(2.0*beta_0) q[4];")
	assert.Contains(t, out, "meas[3] = measure q[3];")

	c.Layout = &Layout{Initial: []int{5, 6, 7, 8, 9}, NumPhysical: 127}
	assert.Contains(t, c.QASM3(), "h $0;")
}
