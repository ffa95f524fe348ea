// Package httperr renders service errors as JSON responses.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write sends err with its mapped status. Server-side failures are logged
// and their details are not exposed.
func Write(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := Status(err)
	text := err.Error()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), msg, "error", err)
		text = http.StatusText(status)
	} else {
		slog.InfoContext(r.Context(), msg, "error", err)
	}

	WriteJSON(w, r, status, errorResponse{Error: text})
}

// BadRequest sends a 400 for input that could not be decoded.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.InfoContext(r.Context(), msg, "error", err)
	WriteJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// WriteJSON encodes v as the response body.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Error sending response", "error", err)
	}
}

// OrderID reads the {id} path parameter.
func OrderID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id", fmt.Sprintf("must be a positive integer, got %q", raw))
	}

	return id, nil
}
