package capture

import (
	"fmt"
	"math"
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

type EnricherOption func(*Enricher)

func WithClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) {
		e.now = now
	}
}

// Enricher turns raw browser events into complete records.
type Enricher struct {
	tracker  *Tracker
	viewport Viewport
	now      func() time.Time
}

func NewEnricher(tracker *Tracker, viewport Viewport, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		tracker:  tracker,
		viewport: viewport,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) Tracker() *Tracker {
	return e.tracker
}

// Enrich builds the record for raw. On error no event id is consumed and the
// tracker is left untouched.
func (e *Enricher) Enrich(raw RawEvent) (domain.Event, error) {
	if !raw.Type.Valid() {
		return domain.Event{}, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, raw.Type)
	}
	if e.viewport == nil {
		return domain.Event{}, ErrNoViewport
	}
	width, height, err := e.viewport.Size()
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", ErrNoViewport, err)
	}

	at := raw.At
	if at.IsZero() {
		at = e.now()
	}

	event := domain.Event{
		EventType:      raw.Type,
		Timestamp:      at.UnixMilli(),
		X:              raw.X,
		Y:              raw.Y,
		ScreenX:        ptr(raw.X),
		ScreenY:        ptr(raw.Y),
		PageX:          ptr(raw.X),
		PageY:          ptr(raw.Y),
		SessionID:      e.tracker.SessionID(),
		EventID:        e.tracker.NextEventID(),
		ViewportWidth:  ptr(width),
		ViewportHeight: ptr(height),
	}
	describeTarget(raw.Target, &event)

	if raw.Type.HasPosition() {
		if last, lastAt, ok := e.tracker.LastEvent(); ok {
			event.VelocityX, event.VelocityY, event.Distance = motion(last.X, last.Y, lastAt, raw.X, raw.Y, at)
		}
	}

	e.applyExtra(raw, &event)

	if raw.Type.HasPosition() {
		// best effort, a held cell only costs the next record its motion fields
		e.tracker.Remember(event, at)
	}
	return event, nil
}

func (e *Enricher) applyExtra(raw RawEvent, event *domain.Event) {
	extra := raw.Extra

	switch raw.Type {
	case domain.MouseMove:
		event.Buttons = buttons(extra)
	case domain.MouseDown, domain.MouseUp:
		button := domain.ButtonUnknown
		if extra.Button != nil {
			button = domain.ButtonFromCode(*extra.Button)
		}
		event.Button = ptr(button)
		event.Buttons = buttons(extra)
	case domain.Wheel:
		event.ScrollX = ptr(valueOr(extra.DeltaX, 0))
		event.ScrollY = ptr(valueOr(extra.DeltaY, 0))
	case domain.DragStart:
		e.tracker.StartDrag(event.EventID)
	case domain.Drag:
		if parent, ok := e.tracker.DragParent(); ok {
			event.ParentEventID = ptr(parent)
		}
	case domain.DragEnd:
		if parent, ok := e.tracker.DragParent(); ok {
			event.ParentEventID = ptr(parent)
		}
		e.tracker.EndDrag()
	case domain.KeyDown, domain.KeyUp:
		event.Key = ptr(extra.Key)
		event.Code = ptr(extra.Code)
		event.CtrlKey = ptr(extra.CtrlKey)
		event.ShiftKey = ptr(extra.ShiftKey)
		event.AltKey = ptr(extra.AltKey)
		event.MetaKey = ptr(extra.MetaKey)
	}
}

// motion returns velocity in px/ms per axis and the euclidean distance, or
// nothing when no time elapsed between the two millisecond timestamps.
func motion(x0, y0 int, t0 time.Time, x1, y1 int, t1 time.Time) (vx, vy, dist *float64) {
	dt := float64(t1.UnixMilli() - t0.UnixMilli())
	if dt <= 0 {
		return nil, nil, nil
	}

	dx := float64(x1 - x0)
	dy := float64(y1 - y0)
	return ptr(dx / dt), ptr(dy / dt), ptr(math.Sqrt(dx*dx + dy*dy))
}

func buttons(extra Extra) *uint16 {
	return ptr(valueOr(extra.Buttons, 0))
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
