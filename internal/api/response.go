package api

import (
	"errors"
	"net/http"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// retryAfterSeconds is advertised on every retriable error.
const retryAfterSeconds = "5"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidArgument     = "invalid_argument"
	CodeStoreUnavailable    = "store_unavailable"
	CodeGeocoderUnavailable = "geocoder_unavailable"
	CodeInternal            = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retriable bool   `json:"retriable"`
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(data); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write JSON response", "error", err)
	}
}

// respondError maps err onto a status code and error body.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		body   ErrorResponse
	)

	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		status = http.StatusBadRequest
		body = ErrorResponse{Error: err.Error(), Code: CodeInvalidArgument}
	case errors.Is(err, models.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		body = ErrorResponse{Error: models.ErrStoreUnavailable.Error(), Code: CodeStoreUnavailable, Retriable: true}
	case errors.Is(err, models.ErrGeocoderUnavailable):
		status = http.StatusServiceUnavailable
		body = ErrorResponse{Error: models.ErrGeocoderUnavailable.Error(), Code: CodeGeocoderUnavailable, Retriable: true}
	default:
		status = http.StatusInternalServerError
		body = ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}

	if body.Retriable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}

	level := h.log.WarnContext
	if status >= http.StatusInternalServerError {
		level = h.log.ErrorContext
	}
	level(r.Context(), "Request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	h.respondJSON(w, r, status, body)
}
