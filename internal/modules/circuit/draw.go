package circuit

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Draw renders the circuit as a text diagram, one wire per active qubit.
func (c *Circuit) Draw() string {
	wires := c.ActiveQubits()
	if len(wires) == 0 {
		wires = make([]int, c.NumQubits)
		for i := range wires {
			wires[i] = i
		}
	}
	row := make(map[int]int, len(wires))
	for i, q := range wires {
		row[q] = i
	}

	// Greedy column packing: a gate occupies every row between its extreme wires.
	var columns [][]Gate
	free := make([]int, len(wires))
	for _, g := range c.Gates {
		lo, hi, ok := span(g, row)
		if !ok {
			continue
		}
		col := 0
		for r := lo; r <= hi; r++ {
			if free[r] > col {
				col = free[r]
			}
		}
		for len(columns) <= col {
			columns = append(columns, nil)
		}
		columns[col] = append(columns[col], g)
		for r := lo; r <= hi; r++ {
			free[r] = col + 1
		}
	}

	labelWidth := 0
	for _, q := range wires {
		if w := len(wireLabel(q, c.Layout)); w > labelWidth {
			labelWidth = w
		}
	}

	lines := make([]strings.Builder, len(wires))
	for i, q := range wires {
		lbl := wireLabel(q, c.Layout)
		lines[i].WriteString(strings.Repeat(" ", labelWidth-len(lbl)))
		lines[i].WriteString(lbl)
		lines[i].WriteString(": ─")
	}

	for _, col := range columns {
		cells := make([]string, len(wires))
		for _, g := range col {
			lo, hi, _ := span(g, row)
			for r := lo; r <= hi; r++ {
				cells[r] = "┼"
			}
			for k, q := range g.Qubits {
				cells[row[q]] = c.symbol(g, k)
			}
		}

		width := 1
		for _, s := range cells {
			if n := utf8.RuneCountInString(s); n > width {
				width = n
			}
		}
		for r := range cells {
			s := cells[r]
			if s == "" {
				s = "─"
			}
			pad := width - utf8.RuneCountInString(s)
			left := pad / 2
			lines[r].WriteString(strings.Repeat("─", left))
			lines[r].WriteString(s)
			lines[r].WriteString(strings.Repeat("─", pad-left))
			lines[r].WriteString("─")
		}
	}

	var out strings.Builder
	for i := range lines {
		out.WriteString(lines[i].String())
		out.WriteString("\n")
	}
	if c.NumClbits > 0 {
		fmt.Fprintf(&out, "%*s: %d classical bits\n", labelWidth, "meas", c.NumClbits)
	}
	return out.String()
}

func span(g Gate, row map[int]int) (int, int, bool) {
	lo, hi := -1, -1
	for _, q := range g.Qubits {
		r, ok := row[q]
		if !ok {
			continue
		}
		if lo == -1 || r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}
	return lo, hi, lo != -1
}

func wireLabel(q int, layout *Layout) string {
	if layout == nil {
		return fmt.Sprintf("q_%d", q)
	}
	for v, p := range layout.Initial {
		if p == q {
			return fmt.Sprintf("q_%d -> %d", v, p)
		}
	}
	return fmt.Sprintf("anc -> %d", q)
}

func (c *Circuit) symbol(g Gate, k int) string {
	angle := func() string {
		if len(g.Angles) == 0 {
			return ""
		}
		return "(" + g.Angles[0].Format(c.ParameterName) + ")"
	}

	switch g.Name {
	case GateCX:
		if k == 0 {
			return "■"
		}
		return "X"
	case GateCZ:
		return "■"
	case GateSwap:
		return "X"
	case GateECR:
		if k == 0 {
			return "Ecr0"
		}
		return "Ecr1"
	case GateRZZ:
		return "Rzz" + angle()
	case GateMeasure:
		return fmt.Sprintf("M%d", g.Clbits[0])
	case GateBarrier:
		return "░"
	case GateRZ:
		return "Rz" + angle()
	case GateRX:
		return "Rx" + angle()
	case GateSX:
		return "√X"
	case GateDelay:
		return "Delay" + angle()
	default:
		return strings.ToUpper(g.Name)
	}
}
