package http

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/leshachaplin/mouselog/internal/apierror"
	"github.com/leshachaplin/mouselog/internal/service"
)

type Handler struct {
	eventLogger service.EventLogger
	logger      zerolog.Logger
}

func NewHandler(eventLogger service.EventLogger, logger zerolog.Logger) *Handler {
	return &Handler{
		eventLogger: eventLogger,
		logger:      logger,
	}
}

func (h *Handler) error(err error, w http.ResponseWriter) {
	var apiErr apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.NewAPIError(err.Error(), http.StatusInternalServerError)
	}

	if err = encodeJSONResponse(w, apiErr.StatusCode(), apiErr); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode error response")
	}
}
