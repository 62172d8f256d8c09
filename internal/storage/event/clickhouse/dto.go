package clickhouse

import (
	"time"

	"github.com/leshachaplin/mouselog/internal/domain"
)

type event struct {
	ServerTime     time.Time `ch:"server_time"`
	IP             string    `ch:"ip"`
	SessionID      string    `ch:"session_id"`
	EventID        string    `ch:"event_id"`
	ParentEventID  *string   `ch:"parent_event_id"`
	EventType      string    `ch:"event_type"`
	Timestamp      time.Time `ch:"timestamp"`
	X              int32     `ch:"x"`
	Y              int32     `ch:"y"`
	Button         *string   `ch:"button"`
	Buttons        *uint16   `ch:"buttons"`
	ScrollX        *float64  `ch:"scroll_x"`
	ScrollY        *float64  `ch:"scroll_y"`
	TargetTag      *string   `ch:"target_tag"`
	TargetID       *string   `ch:"target_id"`
	TargetClass    *string   `ch:"target_class"`
	TargetText     *string   `ch:"target_text"`
	VelocityX      *float64  `ch:"velocity_x"`
	VelocityY      *float64  `ch:"velocity_y"`
	Distance       *float64  `ch:"distance"`
	Key            *string   `ch:"key"`
	Code           *string   `ch:"code"`
	CtrlKey        *bool     `ch:"ctrl_key"`
	ShiftKey       *bool     `ch:"shift_key"`
	AltKey         *bool     `ch:"alt_key"`
	MetaKey        *bool     `ch:"meta_key"`
	ViewportWidth  *uint32   `ch:"viewport_width"`
	ViewportHeight *uint32   `ch:"viewport_height"`
	Metadata       *string   `ch:"metadata"`
}

func eventsFromBatch(batch domain.EventBatch) []event {
	events := make([]event, len(batch.Events))
	for i, e := range batch.Events {
		var button *string
		if e.Button != nil {
			b := string(*e.Button)
			button = &b
		}

		events[i] = event{
			ServerTime:     batch.ServerTime,
			IP:             batch.ClientIP,
			SessionID:      e.SessionID,
			EventID:        e.EventID,
			ParentEventID:  e.ParentEventID,
			EventType:      string(e.EventType),
			Timestamp:      e.CapturedAt(),
			X:              int32(e.X),
			Y:              int32(e.Y),
			Button:         button,
			Buttons:        e.Buttons,
			ScrollX:        e.ScrollX,
			ScrollY:        e.ScrollY,
			TargetTag:      e.TargetTag,
			TargetID:       e.TargetID,
			TargetClass:    e.TargetClass,
			TargetText:     e.TargetText,
			VelocityX:      e.VelocityX,
			VelocityY:      e.VelocityY,
			Distance:       e.Distance,
			Key:            e.Key,
			Code:           e.Code,
			CtrlKey:        e.CtrlKey,
			ShiftKey:       e.ShiftKey,
			AltKey:         e.AltKey,
			MetaKey:        e.MetaKey,
			ViewportWidth:  e.ViewportWidth,
			ViewportHeight: e.ViewportHeight,
			Metadata:       e.Metadata,
		}
	}
	return events
}
