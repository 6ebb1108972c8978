package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-attachment/pkg/simpleattachment"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, simpleattachment.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, simpleattachment.ErrForbidden):
		return http.StatusForbidden
	case simpleattachment.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = http.StatusText(status)
	} else {
		// Return the root cause, not the operation wrapper
		msg = rootCause(err).Error()
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Error: msg})
}

func rootCause(err error) error {
	var attErr *simpleattachment.AttachmentError
	if errors.As(err, &attErr) {
		return attErr.Err
	}
	return err
}
