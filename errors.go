package stowdav

import (
	"encoding/xml"
	"fmt"
	"net/http"

	errs "github.com/jmgilman/go/errors"
)

// Error kinds shared by every backend. They are PlatformErrors, so callers can
// use errors.Is for identity and errs.IsRetryable for the retry classification.
var (
	// ErrNotFound is returned when the object or directory does not exist.
	ErrNotFound = errs.New(errs.CodeNotFound, "not found")
	// ErrPermissionDenied is returned when the backend refuses access (401/403).
	ErrPermissionDenied = errs.New(errs.CodeForbidden, "permission denied")
	// ErrAlreadyExists is returned when the target already exists.
	ErrAlreadyExists = errs.New(errs.CodeAlreadyExists, "already exists")
	// ErrConditionNotMatch is returned when a precondition failed (412).
	ErrConditionNotMatch = errs.New(errs.CodeConflict, "condition not match")
	// ErrRateLimited is returned when the backend throttles the caller (429).
	ErrRateLimited = errs.New(errs.CodeRateLimit, "rate limited")
	// ErrUnavailable is returned for temporary backend failures (5xx).
	ErrUnavailable = errs.New(errs.CodeUnavailable, "backend unavailable")
	// ErrUnexpected is returned for any status without a more specific kind.
	ErrUnexpected = errs.New(errs.CodeInternal, "unexpected backend response")

	// ErrUnsupported is returned for operations the backend does not offer.
	// It is permanent: retrying with the same call shape never succeeds.
	ErrUnsupported = errs.New(errs.CodeNotImplemented, "operation not supported")
	// ErrSigningFailed is returned when a request could not be signed.
	ErrSigningFailed = errs.New(errs.CodeUnauthorized, "request signing failed")
	// ErrTransportFailed is returned when no response status was obtained.
	ErrTransportFailed = errs.New(errs.CodeNetwork, "transport failed")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errs.New(errs.CodeInvalidInput, "invalid input")
	// ErrClosed is returned when an operator or writer is used after Close.
	ErrClosed = errs.New(errs.CodeInvalidInput, "closed")
)

// BackendError describes a non-success response from a storage backend.
// It unwraps to the kind derived from Status, so errors.Is(err, ErrNotFound)
// holds for a 404.
type BackendError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
	Body      []byte
	Kind      error
}

// NewBackendError builds a BackendError classified by status.
func NewBackendError(status int, body []byte) *BackendError {
	return &BackendError{
		Status: status,
		Body:   body,
		Kind:   KindFromStatus(status),
	}
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend rejected request: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("backend rejected request: %d: %s", e.Status, msg)
}

// errorDocument is the S3-style XML error body.
type errorDocument struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message,omitempty"`
	RequestID string   `xml:"RequestId,omitempty"`
}

// SynthesizeBody fills an empty Body with an S3-style XML error document built
// from Code, Message and RequestID. It is for client libraries that decode the
// response and drop the raw bytes.
func (e *BackendError) SynthesizeBody() {
	if len(e.Body) > 0 || (e.Code == "" && e.Message == "") {
		return
	}
	body, err := xml.Marshal(errorDocument{Code: e.Code, Message: e.Message, RequestID: e.RequestID})
	if err != nil {
		return
	}
	e.Body = append([]byte(xml.Header), body...)
}

func (e *BackendError) Unwrap() error {
	return e.Kind
}

// KindFromStatus maps a backend HTTP status to an error kind.
func KindFromStatus(status int) error {
	switch status {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusConflict:
		return ErrAlreadyExists
	case http.StatusPreconditionFailed:
		return ErrConditionNotMatch
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return ErrUnexpected
	}
}
