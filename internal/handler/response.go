package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// AJAX endpoints answer failures with
//   {"success": false, "error": "Comment cannot be empty"}
// The settings endpoints use the shorter {"error": "..."} / {"message": "..."}
// pair that their forms expect.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/bird-dropper/internal/apperror"
)

// internalErrorMessage replaces every error the user is not meant to see.
const internalErrorMessage = "An internal error occurred"

// ErrorResponse is the standard failure body of the AJAX endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body is written; once Encode
// writes, later header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The headers are already sent; logging is all we can do.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps a domain error to an HTTP status and a message that is safe
// to show.
//
// errors.Is walks the whole chain, so a service error such as
//
//	fmt.Errorf("deleting post: %w", apperror.Forbidden("..."))
//
// still maps to 403. Anything that is not an *AppError is a 500 with a
// generic message: raw errors can contain SQL or file paths.
func statusFor(err error) (int, string) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		if errors.Is(err, errUploadTooLarge) {
			return http.StatusRequestEntityTooLarge, "Upload is too large"
		}
		return http.StatusInternalServerError, internalErrorMessage
	}

	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, appErr.Message
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, appErr.Message
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, appErr.Message
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, appErr.Message
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, appErr.Message
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// writeError sends {"success": false, "error": msg} with the mapped status.
// Unexpected errors are logged with the request path.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	logFailure(r, logger, status, err)
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// writeSettingsError sends {"error": msg}, the shape the settings forms use.
func writeSettingsError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, msg := statusFor(err)
	logFailure(r, logger, status, err)
	writeJSON(w, status, map[string]string{"error": msg})
}

func logFailure(r *http.Request, logger *slog.Logger, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
}
