package capture

import (
	"errors"
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

var ErrNoViewport = errors.New("viewport not available")

// Element is the nearest element target of a DOM event.
type Element interface {
	TagName() string
	Attribute(name string) (string, bool)
	InnerText() string
}

type Viewport interface {
	Size() (width, height uint32, err error)
}

// RawEvent is a browser event before enrichment.
type RawEvent struct {
	Type domain.EventType
	X    int
	Y    int
	// At overrides the capture clock, used when replaying recorded input.
	At     time.Time
	Target Element
	Extra  Extra
}

// Extra holds type specific fields. Which of them end up in the record is
// decided by the event type, not by what is set here.
type Extra struct {
	Button  *int     `json:"button,omitempty"`
	Buttons *uint16  `json:"buttons,omitempty"`
	DeltaX  *float64 `json:"delta_x,omitempty"`
	DeltaY  *float64 `json:"delta_y,omitempty"`

	Key      string `json:"key,omitempty"`
	Code     string `json:"code,omitempty"`
	CtrlKey  bool   `json:"ctrl_key,omitempty"`
	ShiftKey bool   `json:"shift_key,omitempty"`
	AltKey   bool   `json:"alt_key,omitempty"`
	MetaKey  bool   `json:"meta_key,omitempty"`
}

func ptr[T any](v T) *T { return &v }
