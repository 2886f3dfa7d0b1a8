package backends

// Eagle processors are laid out as seven rows of qubits joined by bridge qubits.
const (
	eagleRows        = 7
	eagleCols        = 15
	eagleNumQubits   = 127
	bridgesPerGap    = 4
	bridgeColumnStep = 4
)

// rowSpan returns the first and last column populated in row r.
func rowSpan(r int) (first, last int) {
	switch r {
	case 0:
		return 0, eagleCols - 2
	case eagleRows - 1:
		return 1, eagleCols - 1
	default:
		return 0, eagleCols - 1
	}
}

// HeavyHexCouplingMap returns the 127-qubit heavy-hex coupling map of an Eagle device.
// Every undirected link is listed in both directions.
func HeavyHexCouplingMap() [][2]int {
	rowStart := make([]int, eagleRows)
	bridgeStart := make([]int, eagleRows-1)
	next := 0
	for r := 0; r < eagleRows; r++ {
		rowStart[r] = next
		first, last := rowSpan(r)
		next += last - first + 1
		if r < eagleRows-1 {
			bridgeStart[r] = next
			next += bridgesPerGap
		}
	}

	at := func(r, col int) int {
		first, _ := rowSpan(r)
		return rowStart[r] + col - first
	}

	var edges [][2]int
	link := func(a, b int) {
		edges = append(edges, [2]int{a, b}, [2]int{b, a})
	}

	for r := 0; r < eagleRows; r++ {
		first, last := rowSpan(r)
		for col := first; col < last; col++ {
			link(at(r, col), at(r, col+1))
		}
	}
	for gap := 0; gap < eagleRows-1; gap++ {
		offset := 0
		if gap%2 == 1 {
			offset = 2
		}
		for k := 0; k < bridgesPerGap; k++ {
			col := offset + k*bridgeColumnStep
			bridge := bridgeStart[gap] + k
			link(at(gap, col), bridge)
			link(bridge, at(gap+1, col))
		}
	}
	return edges
}
