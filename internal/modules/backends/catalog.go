// Package backends selects execution targets: the catalog of known devices, the
// least-busy selection rule, and the locally simulated device descriptors.
package backends

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aristath/qaoa/internal/domain"
)

// ErrNoBackend is returned when no backend satisfies a filter.
var ErrNoBackend = errors.New("no backend matches the filter")

// Filter restricts backend selection.
type Filter struct {
	// Operational keeps only backends currently accepting jobs.
	Operational bool
	// Simulator must match Backend.IsSimulator.
	Simulator    bool
	MinNumQubits int
}

// Catalog is a registry of backends keyed by name.
type Catalog struct {
	mu       sync.RWMutex
	backends map[string]domain.Backend
}

// NewCatalog creates a catalog holding the given backends.
func NewCatalog(backends ...domain.Backend) *Catalog {
	c := &Catalog{backends: make(map[string]domain.Backend)}
	for _, b := range backends {
		c.Register(b)
	}
	return c
}

// Register adds b, replacing any backend with the same name.
func (c *Catalog) Register(b domain.Backend) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backends[b.Name()] = b
}

// Get returns the backend registered under name.
func (c *Catalog) Get(name string) (domain.Backend, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.backends[name]
	return b, ok
}

// List returns all backends ordered by name.
func (c *Catalog) List() []domain.Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Backend, 0, len(c.backends))
	for _, b := range c.backends {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// LeastBusy picks the least-busy catalog backend matching f.
func (c *Catalog) LeastBusy(ctx context.Context, f Filter) (domain.Backend, error) {
	return LeastBusy(ctx, c.List(), f)
}

// LeastBusy returns the candidate with the fewest pending jobs among those matching f.
// Ties go to the earlier candidate. Backends whose status cannot be read are skipped.
func LeastBusy(ctx context.Context, candidates []domain.Backend, f Filter) (domain.Backend, error) {
	var (
		best      domain.Backend
		bestQueue int
		lastErr   error
	)
	for _, b := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.IsSimulator() != f.Simulator || b.NumQubits() < f.MinNumQubits {
			continue
		}
		if f.Operational {
			ok, err := b.Operational(ctx)
			if err != nil {
				lastErr = fmt.Errorf("%s status: %w", b.Name(), err)
				continue
			}
			if !ok {
				continue
			}
		}
		queue, err := b.PendingJobs(ctx)
		if err != nil {
			lastErr = fmt.Errorf("%s queue: %w", b.Name(), err)
			continue
		}
		if best == nil || queue < bestQueue {
			best, bestQueue = b, queue
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("%w (last error: %v)", ErrNoBackend, lastErr)
		}
		return nil, ErrNoBackend
	}
	return best, nil
}
