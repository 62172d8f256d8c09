package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/domain"
)

const (
	defaultNumWorkers   = 4
	errorPublishTimeout = 10 * time.Second
)

type WorkerPool interface {
	Start(executeFn func(ctx context.Context, batch domain.EventBatch) error)
	GracefulStop()
	Process(payload domain.EventBatch)
}

type Option func(*Pool)

// WithErrorQueue sends batches that failed to publish or to execute to p
// together with the failure reason. Without it they are only logged.
func WithErrorQueue(p Publisher) Option {
	return func(w *Pool) {
		w.errorQueue = p
	}
}

type Pool struct {
	numWorkers  int
	taskPayload chan domain.EventBatch
	queue       Queue
	errorQueue  Publisher
	start       sync.Once
	stop        sync.Once
	doneChan    chan struct{}
	ctx         context.Context
	cancelFn    context.CancelFunc
	wg          *sync.WaitGroup
	logger      zerolog.Logger

	mu         sync.RWMutex
	stopped    bool
	publishing sync.WaitGroup
}

func New(ctx context.Context, cfg Config, queue Queue, logger zerolog.Logger, opts ...Option) *Pool {
	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}

	c, cancelFn := context.WithCancel(ctx)
	w := &Pool{
		numWorkers:  numWorkers,
		taskPayload: make(chan domain.EventBatch, numWorkers),
		doneChan:    make(chan struct{}),
		queue:       queue,
		ctx:         c,
		cancelFn:    cancelFn,
		wg:          &sync.WaitGroup{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Pool) Start(
	executeFn func(ctx context.Context, eventBatch domain.EventBatch) error,
) {
	w.start.Do(func() {
		for i := 0; i < w.numWorkers; i++ {
			w.wg.Add(1)
			l := w.logger.With().Int("worker", i).Logger()
			go w.work(w.ctx, l, executeFn)
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.queue.Consume(w.ctx, w.taskPayload, w.doneChan)
		}()
	})
}

// GracefulStop stops accepting batches, cancels publishes still in flight and
// waits for workers and the consumer to return.
func (w *Pool) GracefulStop() {
	w.stop.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()

		close(w.doneChan)
		w.cancelFn()
		w.publishing.Wait()
		w.wg.Wait()
	})
}

// Process publishes the batch in the background and returns immediately.
func (w *Pool) Process(eventBatch domain.EventBatch) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.logger.Warn().Str("batch_id", eventBatch.ID).Int("events", len(eventBatch.Events)).Msg("pool stopped, batch dropped")
		return
	}

	w.publishing.Add(1)
	go func() {
		defer w.publishing.Done()
		if err := w.queue.Publish(w.ctx, eventBatch.ID, eventBatch); err != nil {
			w.onFailure(eventBatch, err)
		}
	}()
}

func (w *Pool) onFailure(eventBatch domain.EventBatch, err error) {
	l := w.logger.With().Str("batch_id", eventBatch.ID).Int("events", len(eventBatch.Events)).Logger()
	if w.errorQueue == nil {
		l.Error().Err(err).Msg("failed to process events")
		return
	}

	p := payload{
		Payload: eventBatch,
	}
	p.SetErrorReason(err)
	// the pool context may already be canceled during shutdown
	ctx, cancel := context.WithTimeout(context.Background(), errorPublishTimeout)
	defer cancel()
	if errPublish := w.errorQueue.Publish(ctx, eventBatch.ID, p); errPublish != nil {
		l.Error().Err(err).AnErr("publish_error", errPublish).Msg("failed to process events")
	}
}

func (w *Pool) work(
	ctx context.Context,
	logger zerolog.Logger,
	executeFn func(ctx context.Context, eventBatch domain.EventBatch) error,
) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.doneChan:
			return
		case pld, ok := <-w.taskPayload:
			if !ok {
				return
			}

			logger.Debug().Str("batch_id", pld.ID).Int("events", len(pld.Events)).Msg("start processing events")
			if err := executeFn(ctx, pld); err != nil {
				w.onFailure(pld, err)
			}
			logger.Debug().Str("batch_id", pld.ID).Msg("end processing events")
		}
	}
}

type payload struct {
	Payload domain.EventBatch `json:"payload"`
	Error   *errorReason      `json:"error_reason"`
}

func (c *payload) SetErrorReason(err error) {
	if c.Error == nil {
		c.Error = new(errorReason)
	}
	c.Error.Reason = err
}

func (c *payload) GetErrorReason() error {
	if c.Error != nil {
		return c.Error.Reason
	}
	return nil
}

type errorReason struct {
	Reason error
}

func (e errorReason) MarshalJSON() ([]byte, error) {
	if e.Reason != nil {
		return json.Marshal(e.Reason.Error())
	}
	return json.Marshal(nil)
}

func (e *errorReason) UnmarshalJSON(data []byte) error {
	var reason string
	if err := json.Unmarshal(data, &reason); err != nil {
		return err
	}
	e.Reason = errors.New(reason)
	return nil
}
