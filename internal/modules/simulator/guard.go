package simulator

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultMaxQubits bounds simulation width regardless of available memory.
const DefaultMaxQubits = 26

// ErrTooManyQubits is returned when a state vector would not fit.
var ErrTooManyQubits = errors.New("too many active qubits to simulate")

// Guard refuses simulations whose amplitude vector exceeds the configured width
// or half of the currently available memory.
type Guard struct {
	MaxQubits int
	available func() (uint64, error)
}

// NewGuard creates a guard reading available memory from the host.
func NewGuard(maxQubits int) *Guard {
	if maxQubits <= 0 {
		maxQubits = DefaultMaxQubits
	}
	return &Guard{MaxQubits: maxQubits, available: hostAvailableMemory}
}

func hostAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// Check returns ErrTooManyQubits when numQubits cannot be simulated.
func (g *Guard) Check(numQubits int) error {
	if numQubits > g.MaxQubits {
		return fmt.Errorf("%d active qubits, limit %d: %w", numQubits, g.MaxQubits, ErrTooManyQubits)
	}
	if g.available == nil {
		return nil
	}

	avail, err := g.available()
	if err != nil {
		// memory stats unavailable (containers, some BSDs); rely on MaxQubits alone
		return nil
	}
	need := uint64(16) << numQubits
	if need > avail/2 {
		return fmt.Errorf("%d active qubits need %d bytes, %d available: %w", numQubits, need, avail, ErrTooManyQubits)
	}
	return nil
}
