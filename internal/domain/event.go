package domain

import (
	"errors"
	"fmt"
	"time"
)

type EventType string

const (
	MouseMove EventType = "mousemove"
	MouseDown EventType = "mousedown"
	MouseUp   EventType = "mouseup"
	Wheel     EventType = "wheel"
	DragStart EventType = "dragstart"
	Drag      EventType = "drag"
	DragEnd   EventType = "dragend"
	KeyDown   EventType = "keydown"
	KeyUp     EventType = "keyup"
)

var eventTypes = map[EventType]struct{}{
	MouseMove: {},
	MouseDown: {},
	MouseUp:   {},
	Wheel:     {},
	DragStart: {},
	Drag:      {},
	DragEnd:   {},
	KeyDown:   {},
	KeyUp:     {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// HasPosition reports whether records of this type carry a pointer position.
// Keyboard events are captured at (0, 0) and take no part in motion tracking.
func (t EventType) HasPosition() bool {
	return t.Valid() && t != KeyDown && t != KeyUp
}

type Button string

const (
	ButtonLeft    Button = "left"
	ButtonMiddle  Button = "middle"
	ButtonRight   Button = "right"
	ButtonUnknown Button = "unknown"
)

// ButtonFromCode maps a DOM MouseEvent.button code.
func ButtonFromCode(code int) Button {
	switch code {
	case 0:
		return ButtonLeft
	case 1:
		return ButtonMiddle
	case 2:
		return ButtonRight
	default:
		return ButtonUnknown
	}
}

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMissingSessionID = errors.New("session_id is empty")
	ErrMissingEventID   = errors.New("event_id is empty")
	ErrPartialMotion    = errors.New("velocity_x, velocity_y and distance must be set together")
)

// Event is a single captured interaction. Optional fields are nil when absent.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp int64     `json:"timestamp"`

	X       int  `json:"x"`
	Y       int  `json:"y"`
	ScreenX *int `json:"screen_x,omitempty"`
	ScreenY *int `json:"screen_y,omitempty"`
	PageX   *int `json:"page_x,omitempty"`
	PageY   *int `json:"page_y,omitempty"`

	Button  *Button `json:"button,omitempty"`
	Buttons *uint16 `json:"buttons,omitempty"`

	ScrollY *float64 `json:"scroll_y,omitempty"`
	ScrollX *float64 `json:"scroll_x,omitempty"`

	Target      *string `json:"target,omitempty"`
	TargetTag   *string `json:"target_tag,omitempty"`
	TargetID    *string `json:"target_id,omitempty"`
	TargetClass *string `json:"target_class,omitempty"`
	TargetText  *string `json:"target_text,omitempty"`

	SessionID     string  `json:"session_id"`
	EventID       string  `json:"event_id"`
	ParentEventID *string `json:"parent_event_id,omitempty"`

	VelocityX *float64 `json:"velocity_x,omitempty"`
	VelocityY *float64 `json:"velocity_y,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`

	Key      *string `json:"key,omitempty"`
	Code     *string `json:"code,omitempty"`
	CtrlKey  *bool   `json:"ctrl_key,omitempty"`
	ShiftKey *bool   `json:"shift_key,omitempty"`
	AltKey   *bool   `json:"alt_key,omitempty"`
	MetaKey  *bool   `json:"meta_key,omitempty"`

	ViewportWidth  *uint32 `json:"viewport_width,omitempty"`
	ViewportHeight *uint32 `json:"viewport_height,omitempty"`

	Metadata *string `json:"metadata,omitempty"`
}

func (e *Event) Validate() error {
	if !e.EventType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.EventType)
	}
	if e.SessionID == "" {
		return ErrMissingSessionID
	}
	if e.EventID == "" {
		return ErrMissingEventID
	}

	set := 0
	for _, f := range []*float64{e.VelocityX, e.VelocityY, e.Distance} {
		if f != nil {
			set++
		}
	}
	if set != 0 && set != 3 {
		return ErrPartialMotion
	}
	return nil
}

// CapturedAt converts the millisecond timestamp.
func (e *Event) CapturedAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// EventBatch is what the mirror pipeline moves around. Server side facts live
// here so that records stay exactly as the client sent them.
type EventBatch struct {
	ID         string    `json:"id"`
	ClientIP   string    `json:"client_ip"`
	ServerTime time.Time `json:"server_time"`
	Events     []Event   `json:"events"`
}

func NewEventBatch(events []Event, clientIP string, serverTime time.Time) EventBatch {
	batch := EventBatch{
		ClientIP:   clientIP,
		ServerTime: serverTime,
		Events:     events,
	}
	if len(events) > 0 {
		batch.ID = events[0].SessionID
	}
	return batch
}
