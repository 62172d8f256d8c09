package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1700000000000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type brokenViewport struct{}

func (brokenViewport) Size() (uint32, uint32, error) {
	return 0, 0, errors.New("window is undefined")
}

type batchCollector struct {
	mu      sync.Mutex
	batches [][]domain.Event
	err     error
}

func (c *batchCollector) Send(_ context.Context, batch []domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	return c.err
}

func (c *batchCollector) Batches() [][]domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]domain.Event, len(c.batches))
	copy(out, c.batches)
	return out
}

func newTestEnricher(clock *fakeClock) *Enricher {
	return NewEnricher(
		NewTracker(clock.Now()),
		StaticViewport{Width: 1280, Height: 720},
		WithClock(clock.Now),
	)
}
