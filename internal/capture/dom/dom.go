//go:build js && wasm

// Package dom binds a capture.Recorder to browser events.
package dom

import (
	"errors"
	"syscall/js"

	"github.com/leshachaplin/mouselog/internal/capture"
	"github.com/leshachaplin/mouselog/internal/domain"
)

var errNoWindow = errors.New("window is not available")

type element struct {
	v js.Value
}

func (e element) TagName() string {
	return e.v.Get("tagName").String()
}

func (e element) Attribute(name string) (string, bool) {
	if !e.v.Call("hasAttribute", name).Bool() {
		return "", false
	}
	return e.v.Call("getAttribute", name).String(), true
}

func (e element) InnerText() string {
	text := e.v.Get("innerText")
	if text.Type() != js.TypeString {
		return ""
	}
	return text.String()
}

// Window reads the viewport size from the global window object.
type Window struct{}

func (Window) Size() (uint32, uint32, error) {
	w := js.Global().Get("window")
	if w.IsUndefined() || w.IsNull() {
		return 0, 0, errNoWindow
	}
	width, height := w.Get("innerWidth"), w.Get("innerHeight")
	if width.Type() != js.TypeNumber || height.Type() != js.TypeNumber {
		return 0, 0, errNoWindow
	}
	return uint32(width.Int()), uint32(height.Int()), nil
}

func target(event js.Value) capture.Element {
	t := event.Get("target")
	if t.IsUndefined() || t.IsNull() {
		return nil
	}
	// text nodes and the document itself are not elements
	if t.Get("nodeType").Int() != 1 {
		return nil
	}
	return element{v: t}
}

func optInt(v js.Value) *int {
	if v.Type() != js.TypeNumber {
		return nil
	}
	n := v.Int()
	return &n
}

func optUint16(v js.Value) *uint16 {
	if v.Type() != js.TypeNumber {
		return nil
	}
	n := uint16(v.Int())
	return &n
}

func optFloat(v js.Value) *float64 {
	if v.Type() != js.TypeNumber {
		return nil
	}
	n := v.Float()
	return &n
}

func rawEvent(typ domain.EventType, event js.Value) capture.RawEvent {
	raw := capture.RawEvent{
		Type:   typ,
		Target: target(event),
	}

	switch typ {
	case domain.KeyDown, domain.KeyUp:
		raw.Extra = capture.Extra{
			Key:      event.Get("key").String(),
			Code:     event.Get("code").String(),
			CtrlKey:  event.Get("ctrlKey").Bool(),
			ShiftKey: event.Get("shiftKey").Bool(),
			AltKey:   event.Get("altKey").Bool(),
			MetaKey:  event.Get("metaKey").Bool(),
		}
		return raw
	}

	raw.X = event.Get("clientX").Int()
	raw.Y = event.Get("clientY").Int()
	raw.Extra = capture.Extra{
		Button:  optInt(event.Get("button")),
		Buttons: optUint16(event.Get("buttons")),
		DeltaX:  optFloat(event.Get("deltaX")),
		DeltaY:  optFloat(event.Get("deltaY")),
	}
	return raw
}

var boundTypes = []domain.EventType{
	domain.MouseMove,
	domain.MouseDown,
	domain.MouseUp,
	domain.Wheel,
	domain.DragStart,
	domain.Drag,
	domain.DragEnd,
	domain.KeyDown,
	domain.KeyUp,
}

// Bind attaches listeners for every captured event type to area and flushes
// pending events when the page is hidden. The returned func removes them.
func Bind(area js.Value, rec *capture.Recorder) func() {
	var (
		funcs   []js.Func
		removes []func()
	)

	listen := func(target js.Value, name string, fn js.Func) {
		target.Call("addEventListener", name, fn)
		funcs = append(funcs, fn)
		removes = append(removes, func() {
			target.Call("removeEventListener", name, fn)
		})
	}

	for _, typ := range boundTypes {
		typ := typ
		listen(area, string(typ), js.FuncOf(func(_ js.Value, args []js.Value) any {
			if len(args) == 0 {
				return nil
			}
			_, _ = rec.Handle(rawEvent(typ, args[0]))
			return nil
		}))
	}

	listen(js.Global().Get("window"), "pagehide", js.FuncOf(func(js.Value, []js.Value) any {
		rec.Flush()
		return nil
	}))

	return func() {
		for _, remove := range removes {
			remove()
		}
		for _, fn := range funcs {
			fn.Release()
		}
	}
}
