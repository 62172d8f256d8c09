package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

// Tracker holds per page load state. It is owned by a single Recorder which
// serialises access; only the last event cell is guarded, and only with
// try-lock semantics so a reentrant enrichment skips instead of blocking.
type Tracker struct {
	sessionID string
	counter   uint64

	lastMu sync.Mutex
	last   *lastEvent

	dragID   string
	dragging bool
}

type lastEvent struct {
	event domain.Event
	at    time.Time
}

func NewTracker(now time.Time) *Tracker {
	return &Tracker{
		sessionID: fmt.Sprintf("session_%d", now.UnixMilli()),
	}
}

func (t *Tracker) SessionID() string {
	return t.sessionID
}

// NextEventID must be called at most once per captured event.
func (t *Tracker) NextEventID() string {
	id := fmt.Sprintf("event_%s_%d", t.sessionID, t.counter)
	t.counter++
	return id
}

func (t *Tracker) Counter() uint64 {
	return t.counter
}

func (t *Tracker) LastEvent() (domain.Event, time.Time, bool) {
	if !t.lastMu.TryLock() {
		return domain.Event{}, time.Time{}, false
	}
	defer t.lastMu.Unlock()

	if t.last == nil {
		return domain.Event{}, time.Time{}, false
	}
	return t.last.event, t.last.at, true
}

// Remember replaces the last event. It reports false when the cell is held
// elsewhere and the update was skipped.
func (t *Tracker) Remember(event domain.Event, at time.Time) bool {
	if !t.lastMu.TryLock() {
		return false
	}
	defer t.lastMu.Unlock()

	t.last = &lastEvent{event: event, at: at}
	return true
}

func (t *Tracker) StartDrag(eventID string) {
	t.dragID = eventID
	t.dragging = true
}

func (t *Tracker) DragParent() (string, bool) {
	return t.dragID, t.dragging
}

func (t *Tracker) EndDrag() {
	t.dragID = ""
	t.dragging = false
}
