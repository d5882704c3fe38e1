package replay

import (
	"context"
	"sync"

	"marketplace-core/pkg/errno"
)

type MemoryGuard struct {
	mu       sync.Mutex
	consumed map[string]Consumption
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{consumed: make(map[string]Consumption)}
}

func (g *MemoryGuard) Consume(_ context.Context, c Consumption) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.consumed[c.Fingerprint]; ok {
		return errno.ErrReplayedRequest
	}
	g.consumed[c.Fingerprint] = c
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, fingerprint string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.consumed, fingerprint)
	return nil
}

func (g *MemoryGuard) Consumed(_ context.Context, fingerprint string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.consumed[fingerprint]
	return ok, nil
}
