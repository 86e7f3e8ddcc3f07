package memory

import (
	"sync"
	"time"

	"baton/contexts/relay-core/relay-service/ports"
)

// Clock follows the wall clock until Set pins it. Pinned time is what the
// freshness window and reconciler retry tests steer with.
type Clock struct {
	mu    sync.Mutex
	fixed *time.Time
}

func NewClock() *Clock {
	return &Clock{}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fixed != nil {
		return *c.fixed
	}
	return time.Now().UTC()
}

// Set pins the clock to t until the next Set.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pinned := t.UTC()
	c.fixed = &pinned
}

// Advance pins the clock d past its current reading.
func (c *Clock) Advance(d time.Duration) {
	now := c.Now().Add(d)
	c.Set(now)
}

var _ ports.Clock = (*Clock)(nil)
