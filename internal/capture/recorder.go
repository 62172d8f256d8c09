package capture

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/domain"
)

type Config struct {
	Debounce  time.Duration   `yaml:"debounce"`
	Transport TransportConfig `yaml:"transport"`
}

// Recorder is what page event handlers call. It counts every captured event,
// enriches it and queues the record for delivery. Handle calls are serialised
// so one enrichment completes before the next begins.
type Recorder struct {
	mu       sync.Mutex
	enricher *Enricher
	buffer   *Buffer
	captured atomic.Uint64
	logger   zerolog.Logger
}

func NewRecorder(enricher *Enricher, buffer *Buffer, logger zerolog.Logger) *Recorder {
	return &Recorder{
		enricher: enricher,
		buffer:   buffer,
		logger:   logger,
	}
}

// New wires a complete capture pipeline for one page load.
func New(cfg Config, viewport Viewport, logger zerolog.Logger, opts ...TransportOption) *Recorder {
	tracker := NewTracker(time.Now())
	l := logger.With().Str("session_id", tracker.SessionID()).Logger()

	transport := NewTransport(cfg.Transport, l, opts...)
	buffer := NewBuffer(cfg.Debounce, transport, l)
	return NewRecorder(NewEnricher(tracker, viewport), buffer, l)
}

// Handle counts the event before enriching it, so Captured reflects capture
// rather than persistence.
func (r *Recorder) Handle(raw RawEvent) (domain.Event, error) {
	r.captured.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	event, err := r.enricher.Enrich(raw)
	if err != nil {
		r.logger.Debug().Err(err).Str("event_type", string(raw.Type)).Msg("event skipped")
		return domain.Event{}, err
	}
	r.buffer.Enqueue(event)
	return event, nil
}

func (r *Recorder) Captured() uint64 {
	return r.captured.Load()
}

func (r *Recorder) SessionID() string {
	return r.enricher.Tracker().SessionID()
}

func (r *Recorder) Flush() {
	r.buffer.Flush()
}

func (r *Recorder) Close() {
	r.buffer.Close()
}
