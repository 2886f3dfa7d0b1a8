package circuit

import (
	"fmt"
	"strconv"
	"strings"
)

// QASMIdentifier converts a display parameter name such as "β[0]" into an OpenQASM identifier.
func QASMIdentifier(name string) string {
	r := strings.NewReplacer("β", "beta", "γ", "gamma", "θ", "theta", "[", "_", "]", "")
	return r.Replace(name)
}

// QASM3 exports the circuit as OpenQASM 3. Transpiled circuits address physical
// qubits ($n), logical circuits use a qubit register q.
func (c *Circuit) QASM3() string {
	var b strings.Builder
	b.WriteString("OPENQASM 3.0;\n")
	b.WriteString("include \"stdgates.inc\";\n")

	for _, p := range c.Params {
		fmt.Fprintf(&b, "input float[64] %s;\n", QASMIdentifier(p.Name))
	}
	if c.NumClbits > 0 {
		fmt.Fprintf(&b, "bit[%d] meas;\n", c.NumClbits)
	}

	physical := c.Layout != nil
	qubit := func(q int) string {
		if physical {
			return "$" + strconv.Itoa(q)
		}
		return fmt.Sprintf("q[%d]", q)
	}
	if !physical {
		fmt.Fprintf(&b, "qubit[%d] q;\n", c.NumQubits)
	}

	name := func(i int) string { return QASMIdentifier(c.ParameterName(i)) }

	for _, g := range c.Gates {
		operands := make([]string, len(g.Qubits))
		for i, q := range g.Qubits {
			operands[i] = qubit(q)
		}
		args := strings.Join(operands, ", ")

		switch g.Name {
		case GateMeasure:
			fmt.Fprintf(&b, "meas[%d] = measure %s;\n", g.Clbits[0], args)
		case GateBarrier:
			fmt.Fprintf(&b, "barrier %s;\n", args)
		case GateDelay:
			fmt.Fprintf(&b, "delay[%sdt] %s;\n", qasmFloat(g.Angles[0].Value()), args)
		case GateSwap, GateH, GateX, GateY, GateZ, GateSX, GateCX, GateCZ, GateECR:
			fmt.Fprintf(&b, "%s %s;\n", g.Name, args)
		default:
			params := make([]string, len(g.Angles))
			for i, a := range g.Angles {
				params[i] = qasmAngle(a, name)
			}
			fmt.Fprintf(&b, "%s(%s) %s;\n", g.Name, strings.Join(params, ", "), args)
		}
	}

	return b.String()
}

func qasmAngle(a Angle, names func(int) string) string {
	var parts []string
	for _, i := range a.sortedIndices() {
		parts = append(parts, qasmFloat(a.Coeffs[i])+"*"+names(i))
	}
	if a.Offset != 0 || len(parts) == 0 {
		parts = append(parts, qasmFloat(a.Offset))
	}
	return strings.Join(parts, " + ")
}

func qasmFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', 17, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
