package capture

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const DefaultDebounce = 500 * time.Millisecond

type Sender interface {
	Send(ctx context.Context, batch []domain.Event) error
}

// Buffer coalesces bursts of events. Every Enqueue restarts a single delay
// timer, so a batch leaves only after a quiet period.
type Buffer struct {
	delay  time.Duration
	sender Sender
	logger zerolog.Logger

	mu      sync.Mutex
	pending []domain.Event
	timer   *time.Timer
	gen     uint64
	closed  bool

	ctx      context.Context
	cancelFn context.CancelFunc
	inFlight sync.WaitGroup
}

func NewBuffer(delay time.Duration, sender Sender, logger zerolog.Logger) *Buffer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Buffer{
		delay:    delay,
		sender:   sender,
		logger:   logger,
		ctx:      ctx,
		cancelFn: cancelFn,
	}
}

func (b *Buffer) Enqueue(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		b.logger.Warn().Str("event_id", event.EventID).Msg("buffer closed, event dropped")
		return
	}

	b.pending = append(b.pending, event)

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() {
		b.fire(gen)
	})
}

func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush drains the buffer right away instead of waiting for the timer.
func (b *Buffer) Flush() {
	b.mu.Lock()
	batch := b.drainLocked()
	b.mu.Unlock()

	b.dispatch(batch)
}

// Close flushes what is left and waits for sends in flight.
func (b *Buffer) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	batch := b.drainLocked()
	b.mu.Unlock()

	b.dispatch(batch)
	b.inFlight.Wait()
	b.cancelFn()
}

func (b *Buffer) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		// re-armed after this timer had already started
		b.mu.Unlock()
		return
	}
	batch := b.drainLocked()
	b.mu.Unlock()

	b.dispatch(batch)
}

func (b *Buffer) drainLocked() []domain.Event {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++

	batch := b.pending
	b.pending = nil
	if len(batch) > 0 {
		// under mu, before Close can start waiting
		b.inFlight.Add(1)
	}
	return batch
}

func (b *Buffer) dispatch(batch []domain.Event) {
	if len(batch) == 0 {
		return
	}

	b.logger.Debug().Int("events", len(batch)).Msg("sending events after debounce")

	go func() {
		defer b.inFlight.Done()
		if err := b.sender.Send(b.ctx, batch); err != nil {
			b.logger.Error().Err(err).Int("events", len(batch)).Msg("failed to send events")
		}
	}()
}
