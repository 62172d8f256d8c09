package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"

	"github.com/leshachaplin/mouselog/internal/apierror"
	"github.com/leshachaplin/mouselog/internal/domain"
)

const singleEventReply = "Event logged"

var (
	errEmptyBody   = errors.New("empty request body")
	errNotAnObject = errors.New("body must be a JSON array or object")
)

// recordError points at the first record of a batch that failed validation.
type recordError struct {
	index int
	err   error
}

func (e *recordError) Error() string {
	return fmt.Sprintf("event %d: %s", e.index, e.err)
}

func (e *recordError) Unwrap() error {
	return e.err
}

// Event accepts a JSON array of records, or a single record object, and
// appends them to the event log before replying.
func (h *Handler) Event(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.error(apierror.TooLarge(maxErr.Limit), w)
			return
		}
		h.error(apierror.BadRequest(err), w)
		return
	}

	events, single, err := decodeEvents(data)
	if err != nil {
		l.Debug().Err(err).Msg("rejected events")
		apiErr := apierror.BadRequest(err)
		var recErr *recordError
		if errors.As(err, &recErr) {
			apiErr = apiErr.WithDetail("index", recErr.index)
		}
		h.error(apiErr, w)
		return
	}

	if err = h.eventLogger.LogEvents(r.Context(), getClientIP(r), events); err != nil {
		l.Error().Stack().Err(err).Int("events", len(events)).Msg("failed to write events")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	reply := strconv.Itoa(len(events)) + " events logged"
	if single {
		reply = singleEventReply
	}
	writeText(w, http.StatusOK, reply)
}

// decodeEvents reports single when the body held one object instead of an
// array.
func decodeEvents(data []byte) (events []domain.Event, single bool, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false, errEmptyBody
	}

	switch data[0] {
	case '{':
		var event domain.Event
		if err = json.Unmarshal(data, &event); err != nil {
			return nil, true, fmt.Errorf("invalid event: %w", err)
		}
		events, single = []domain.Event{event}, true
	case '[':
		if err = json.Unmarshal(data, &events); err != nil {
			return nil, false, fmt.Errorf("invalid events: %w", err)
		}
	default:
		return nil, false, errNotAnObject
	}

	for i := range events {
		if err = events[i].Validate(); err != nil {
			return nil, single, &recordError{index: i, err: err}
		}
	}
	return events, single, nil
}
