package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	errs "github.com/jmgilman/go/errors"

	"github.com/sagarc03/stowdav"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the response for a stowdav error kind. The error code
// in the body is the kind's platform code in lower case.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	code := strings.ToLower(string(errs.GetCode(err)))

	message := http.StatusText(status)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}

	WriteError(w, status, code, message)
}

// StatusFor maps an error to the HTTP status the gateway answers with.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, stowdav.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, stowdav.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, stowdav.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, stowdav.ErrConditionNotMatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, stowdav.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, stowdav.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, stowdav.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, stowdav.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
