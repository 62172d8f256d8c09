//go:build js && wasm

package main

import (
	"net/http"
	"os"
	"syscall/js"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/capture"
	"github.com/leshachaplin/mouselog/internal/capture/dom"
)

const defaultArea = "#mouse-tracking-area"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	selector := defaultArea
	if s := js.Global().Get("mouselogArea"); s.Type() == js.TypeString {
		selector = s.String()
	}

	doc := js.Global().Get("document")
	area := doc.Call("querySelector", selector)
	if area.IsNull() {
		logger.Warn().Str("selector", selector).Msg("tracking area not found, listening on document")
		area = doc
	}

	origin := js.Global().Get("location").Get("origin").String()
	rec := capture.New(
		capture.Config{Transport: capture.TransportConfig{BaseURL: origin}},
		dom.Window{},
		logger,
		// no custom dialer, so requests go through the fetch API
		capture.WithHTTPClient(&http.Client{}),
	)
	unbind := dom.Bind(area, rec)
	defer unbind()

	logger.Info().Str("session_id", rec.SessionID()).Msg("mouse capture started")
	select {}
}
