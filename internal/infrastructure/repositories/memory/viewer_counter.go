package memory

import (
	"context"
	"sync"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// MemoryViewerCounter is the in-process counter store. Decrement clamps at
// zero so a missed increment can never drive a count negative.
type MemoryViewerCounter struct {
	counts map[domain.LiveID]int64
	mu     sync.Mutex
}

func NewMemoryViewerCounter() ports.ViewerCounter {
	return &MemoryViewerCounter{
		counts: make(map[domain.LiveID]int64),
	}
}

func (c *MemoryViewerCounter) Increment(ctx context.Context, liveID domain.LiveID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[liveID]++
	return c.counts[liveID], nil
}

func (c *MemoryViewerCounter) Decrement(ctx context.Context, liveID domain.LiveID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[liveID] > 0 {
		c.counts[liveID]--
	}
	return c.counts[liveID], nil
}

func (c *MemoryViewerCounter) Count(ctx context.Context, liveID domain.LiveID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counts[liveID], nil
}

func (c *MemoryViewerCounter) Reset(ctx context.Context, liveID domain.LiveID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts, liveID)
	return nil
}
