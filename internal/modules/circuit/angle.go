package circuit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Angle is a rotation angle that is linear in the circuit parameters:
// Offset + Σ Coeffs[i]·params[i].
type Angle struct {
	Offset float64         `json:"offset"`
	Coeffs map[int]float64 `json:"coeffs,omitempty"`
}

// Const returns a fixed angle.
func Const(v float64) Angle {
	return Angle{Offset: v}
}

// Param returns scale·params[index].
func Param(index int, scale float64) Angle {
	return Angle{Coeffs: map[int]float64{index: scale}}
}

// IsConst reports whether the angle depends on no parameter.
func (a Angle) IsConst() bool {
	for _, c := range a.Coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

// Eval binds params and returns the numeric angle.
func (a Angle) Eval(params []float64) (float64, error) {
	v := a.Offset
	for i, c := range a.Coeffs {
		if c == 0 {
			continue
		}
		if i < 0 || i >= len(params) {
			return 0, fmt.Errorf("angle references parameter %d, %d bound", i, len(params))
		}
		v += c * params[i]
	}
	return v, nil
}

// Value returns the constant value. Only meaningful when IsConst is true.
func (a Angle) Value() float64 {
	return a.Offset
}

// Add returns a + b.
func (a Angle) Add(b Angle) Angle {
	out := Angle{Offset: a.Offset + b.Offset}
	if len(a.Coeffs)+len(b.Coeffs) > 0 {
		out.Coeffs = make(map[int]float64, len(a.Coeffs)+len(b.Coeffs))
		for i, c := range a.Coeffs {
			out.Coeffs[i] += c
		}
		for i, c := range b.Coeffs {
			out.Coeffs[i] += c
		}
		for i, c := range out.Coeffs {
			if c == 0 {
				delete(out.Coeffs, i)
			}
		}
		if len(out.Coeffs) == 0 {
			out.Coeffs = nil
		}
	}
	return out
}

// Scale returns s·a.
func (a Angle) Scale(s float64) Angle {
	out := Angle{Offset: a.Offset * s}
	if len(a.Coeffs) > 0 {
		out.Coeffs = make(map[int]float64, len(a.Coeffs))
		for i, c := range a.Coeffs {
			out.Coeffs[i] = c * s
		}
	}
	return out
}

// Neg returns -a.
func (a Angle) Neg() Angle {
	return a.Scale(-1)
}

// IsZero reports whether the angle is a constant multiple of 2π.
func (a Angle) IsZero() bool {
	if !a.IsConst() {
		return false
	}
	r := math.Mod(a.Offset, 2*math.Pi)
	return math.Abs(r) < 1e-10 || math.Abs(math.Abs(r)-2*math.Pi) < 1e-10
}

func (a Angle) sortedIndices() []int {
	idx := make([]int, 0, len(a.Coeffs))
	for i, c := range a.Coeffs {
		if c != 0 {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}

// Format renders the angle using the given parameter names.
func (a Angle) Format(names func(int) string) string {
	var parts []string
	for _, i := range a.sortedIndices() {
		c := a.Coeffs[i]
		switch c {
		case 1:
			parts = append(parts, names(i))
		case -1:
			parts = append(parts, "-"+names(i))
		default:
			parts = append(parts, formatFloat(c)+"*"+names(i))
		}
	}
	if a.Offset != 0 || len(parts) == 0 {
		parts = append(parts, formatPi(a.Offset))
	}

	s := strings.Join(parts, " + ")
	return strings.ReplaceAll(s, "+ -", "- ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// formatPi prints simple multiples of π symbolically.
func formatPi(v float64) string {
	for _, den := range []float64{1, 2, 4} {
		num := v * den / math.Pi
		if math.Abs(num-math.Round(num)) < 1e-9 && math.Round(num) != 0 {
			n := int(math.Round(num))
			s := "π"
			switch n {
			case 1:
			case -1:
				s = "-π"
			default:
				s = strconv.Itoa(n) + "π"
			}
			if den != 1 {
				s += "/" + strconv.Itoa(int(den))
			}
			return s
		}
	}
	return formatFloat(v)
}
