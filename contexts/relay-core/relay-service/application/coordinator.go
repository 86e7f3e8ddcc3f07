package application

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"baton/contexts/relay-core/relay-service/domain/entities"
)

// Coordinator serializes transaction sessions per ledger. Every broadcast on a
// ledger spends the relayer account's sequence numbers, so only one session may
// hold a ledger at a time; waiting sessions queue on the context.
type Coordinator struct {
	mu    sync.Mutex
	slots map[entities.LedgerName]*semaphore.Weighted
}

func NewCoordinator() *Coordinator {
	return &Coordinator{slots: make(map[entities.LedgerName]*semaphore.Weighted)}
}

func (c *Coordinator) slot(ledger entities.LedgerName) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[ledger]
	if !ok {
		s = semaphore.NewWeighted(1)
		c.slots[ledger] = s
	}
	return s
}

// Acquire blocks until the ledger slot is free or the context is done. The
// returned release function must be called exactly once.
func (c *Coordinator) Acquire(ctx context.Context, ledger entities.LedgerName) (func(), error) {
	s := c.slot(ledger)
	if err := s.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire %s ledger slot: %w", ledger, err)
	}
	return func() { s.Release(1) }, nil
}
