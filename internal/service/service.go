package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/domain"
	"github.com/leshachaplin/mouselog/internal/worker"
)

// EventLog is the durable append-only store.
type EventLog interface {
	Append(ctx context.Context, events []domain.Event) error
}

// Storage is the sink the mirror pool writes to.
type Storage interface {
	StoreEvents(ctx context.Context, batch domain.EventBatch) error
}

type EventLogger interface {
	LogEvents(ctx context.Context, clientIP string, events []domain.Event) error
}

type Option func(*Service)

// WithMirror starts pool with storage as its sink and publishes every
// appended batch to it.
func WithMirror(pool worker.WorkerPool, storage Storage) Option {
	return func(s *Service) {
		pool.Start(storage.StoreEvents)
		s.eventPool = pool
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	eventLog  EventLog
	eventPool worker.WorkerPool
	now       func() time.Time
	logger    zerolog.Logger
}

func New(eventLog EventLog, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		eventLog: eventLog,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogEvents appends events to the log. Only a successful append is mirrored;
// mirroring never fails the call.
func (s *Service) LogEvents(ctx context.Context, clientIP string, events []domain.Event) error {
	if err := s.eventLog.Append(ctx, events); err != nil {
		return err
	}

	if s.eventPool != nil && len(events) > 0 {
		s.eventPool.Process(domain.NewEventBatch(events, clientIP, s.now()))
	}
	s.logger.Debug().Str("client_ip", clientIP).Int("events", len(events)).Msg("events logged")
	return nil
}
