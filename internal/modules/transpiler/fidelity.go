package transpiler

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/aristath/qaoa/internal/modules/circuit"
)

// Gate durations in device time units (dt), used for idle-window scheduling.
var gateDurations = map[string]float64{
	circuit.GateRZ:      0,
	circuit.GateSX:      160,
	circuit.GateX:       160,
	circuit.GateY:       160,
	circuit.GateZ:       0,
	circuit.GateH:       160,
	circuit.GateRX:      320,
	circuit.GateCX:      1600,
	circuit.GateCZ:      1600,
	circuit.GateECR:     660,
	circuit.GateRZZ:     3200,
	circuit.GateSwap:    4800,
	circuit.GateMeasure: 4000,
	circuit.GateBarrier: 0,
}

const pulseDuration = 160

// DD sequence names.
const (
	SequenceXX  = "XX"
	SequenceXY4 = "XY4"
)

func duration(g circuit.Gate) float64 {
	if g.Name == circuit.GateDelay {
		return g.Angles[0].Value()
	}
	return gateDurations[g.Name]
}

// ApplyDynamicalDecoupling fills idle windows between two operations on the same
// qubit with an evenly spaced pulse sequence that composes to the identity.
func ApplyDynamicalDecoupling(c *circuit.Circuit, sequence string) (*circuit.Circuit, error) {
	var pulses []string
	switch strings.ToUpper(sequence) {
	case SequenceXX:
		pulses = []string{circuit.GateX, circuit.GateX}
	case SequenceXY4:
		pulses = []string{circuit.GateX, circuit.GateY, circuit.GateX, circuit.GateY}
	default:
		return nil, fmt.Errorf("unknown dynamical decoupling sequence %q", sequence)
	}
	minWindow := float64(len(pulses)*pulseDuration) * 2

	// ASAP schedule
	start := make([]float64, len(c.Gates))
	end := make([]float64, len(c.Gates))
	clock := make([]float64, c.NumQubits)
	for i, g := range c.Gates {
		t := 0.0
		for _, q := range g.Qubits {
			t = math.Max(t, clock[q])
		}
		start[i], end[i] = t, t+duration(g)
		for _, q := range g.Qubits {
			clock[q] = end[i]
		}
	}

	insertAfter := make(map[int][]circuit.Gate)
	last := make([]int, c.NumQubits)
	for q := range last {
		last[q] = -1
	}
	for i, g := range c.Gates {
		if g.Name == circuit.GateBarrier {
			continue
		}
		for _, q := range g.Qubits {
			prev := last[q]
			last[q] = i
			if prev < 0 {
				continue
			}
			gap := start[i] - end[prev]
			if gap < minWindow {
				continue
			}
			insertAfter[prev] = append(insertAfter[prev], ddSequence(q, gap, pulses)...)
		}
	}

	out := c.Copy()
	out.Gates = make([]circuit.Gate, 0, len(c.Gates))
	for i, g := range c.Gates {
		out.Gates = append(out.Gates, g)
		out.Gates = append(out.Gates, insertAfter[i]...)
	}
	return out, nil
}

func ddSequence(q int, gap float64, pulses []string) []circuit.Gate {
	tau := math.Floor((gap - float64(len(pulses)*pulseDuration)) / float64(len(pulses)))
	delay := func(d float64) circuit.Gate {
		return circuit.Gate{Name: circuit.GateDelay, Qubits: []int{q}, Angles: []circuit.Angle{circuit.Const(d)}}
	}

	seq := []circuit.Gate{delay(math.Floor(tau / 2))}
	for k, p := range pulses {
		seq = append(seq, circuit.Gate{Name: p, Qubits: []int{q}})
		if k < len(pulses)-1 {
			seq = append(seq, delay(tau))
		}
	}
	return append(seq, delay(math.Floor(tau/2)))
}

// pauli is a single-qubit Pauli in (x, z) bit form: I=(0,0) X=(1,0) Z=(0,1) Y=(1,1).
type pauli struct{ x, z bool }

func (p pauli) gate(q int) []circuit.Gate {
	switch {
	case p.x && p.z:
		return []circuit.Gate{{Name: circuit.GateY, Qubits: []int{q}}}
	case p.x:
		return []circuit.Gate{{Name: circuit.GateX, Qubits: []int{q}}}
	case p.z:
		return []circuit.Gate{{Name: circuit.GateZ, Qubits: []int{q}}}
	}
	return nil
}

// conjugate pushes the Pauli frame (a on control, b on target) through the gate.
func conjugate(name string, a, b pauli) (pauli, pauli) {
	switch name {
	case circuit.GateCZ:
		return pauli{x: a.x, z: a.z != b.x}, pauli{x: b.x, z: b.z != a.x}
	case circuit.GateECR:
		// frames anticommuting with Z_a X_b pick it up
		if a.x != b.z {
			return pauli{x: a.x, z: !a.z}, pauli{x: !b.x, z: b.z}
		}
		return a, b
	}
	return pauli{x: a.x, z: a.z != b.z}, pauli{x: b.x != a.x, z: b.z}
}

// TwirlGates wraps every cx, cz and ecr in a random Pauli frame: P before the gate and
// the conjugated P' after it, so the overall unitary is unchanged up to phase.
func TwirlGates(c *circuit.Circuit, rng *rand.Rand) *circuit.Circuit {
	out := c.Copy()
	out.Gates = make([]circuit.Gate, 0, len(c.Gates))
	for _, g := range c.Gates {
		if g.Name != circuit.GateCX && g.Name != circuit.GateCZ && g.Name != circuit.GateECR {
			out.Gates = append(out.Gates, g)
			continue
		}
		r := rng.Intn(16)
		a := pauli{x: r&1 == 1, z: r&2 == 2}
		b := pauli{x: r&4 == 4, z: r&8 == 8}
		a2, b2 := conjugate(g.Name, a, b)

		out.Gates = append(out.Gates, a.gate(g.Qubits[0])...)
		out.Gates = append(out.Gates, b.gate(g.Qubits[1])...)
		out.Gates = append(out.Gates, g)
		out.Gates = append(out.Gates, a2.gate(g.Qubits[0])...)
		out.Gates = append(out.Gates, b2.gate(g.Qubits[1])...)
	}
	return out
}

// Randomizations splits shots across twirling randomizations. setting is "auto" or a
// positive integer. With "auto" each randomization gets at least 64 shots and at most
// 32 randomizations are drawn.
func Randomizations(setting string, shots int) ([]int, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("shots must be positive, got %d", shots)
	}

	var n int
	if setting == "" || strings.EqualFold(setting, "auto") {
		perRandomization := int(math.Max(64, math.Ceil(float64(shots)/32)))
		n = int(math.Ceil(float64(shots) / float64(perRandomization)))
	} else {
		v, err := strconv.Atoi(setting)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid num_randomizations %q", setting)
		}
		n = v
	}
	if n > shots {
		n = shots
	}

	split := make([]int, n)
	for i := range split {
		split[i] = shots / n
		if i < shots%n {
			split[i]++
		}
	}
	return split, nil
}
