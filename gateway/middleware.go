package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sagarc03/stowdav"
	"github.com/sagarc03/stowdav/signing"
)

// responseRecorder wraps http.ResponseWriter to capture the status code and
// total bytes written.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// RequestLog emits one access log line per request after it completes.
func RequestLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_bytes", rec.written,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Recover turns a panic in next into a 500 response. If the handler had
// already started the response, the connection is left to the client to
// notice the truncated body.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				logger.Error("panic while serving request",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(v),
					"stack", string(debug.Stack()),
				)

				if !rec.wroteHeader {
					WriteError(rec, http.StatusInternalServerError, "internal_error", "Internal server error")
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

const (
	// defaultMaxConcurrent is the fallback slot count when the limit is <= 0.
	defaultMaxConcurrent = 256

	// retryAfterSeconds is the value of the Retry-After header sent on 503.
	retryAfterSeconds = 5
)

// Limiter caps the number of requests in flight with a non-blocking
// semaphore. Requests over the cap get 503 and Retry-After immediately.
type Limiter struct {
	sem chan struct{}
}

// NewLimiter allows at most maxConcurrent requests at once.
func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Limiter{sem: make(chan struct{}, maxConcurrent)}
}

// Limit wraps next so each request must acquire a slot first.
func (l *Limiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
			WriteError(w, http.StatusServiceUnavailable, "unavailable",
				fmt.Sprintf("server at capacity, retry in %ds", retryAfterSeconds))
		}
	})
}

// Active returns the number of slots in use.
func (l *Limiter) Active() int { return len(l.sem) }

// Cap returns the maximum number of concurrent requests.
func (l *Limiter) Cap() int { return cap(l.sem) }

// Authenticator checks a basic-auth credential pair.
type Authenticator interface {
	Verify(accessKey, secret string) bool
}

type presignedKey struct{}

// Presigned verifies requests carrying presigned query parameters and marks
// them so BasicAuth lets them through. A bad signature gets 403. Unsigned
// requests pass untouched.
func Presigned(v signing.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !v.Signed(r) {
				next.ServeHTTP(w, r)
				return
			}
			if err := v.Verify(r); err != nil {
				HandleError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), presignedKey{}, true)))
		})
	}
}

func isPresigned(r *http.Request) bool {
	ok, _ := r.Context().Value(presignedKey{}).(bool)
	return ok
}

// BasicAuth rejects requests without valid credentials with 401 and a
// WWW-Authenticate challenge for realm. Requests already verified by
// Presigned skip the check.
func BasicAuth(realm string, auth Authenticator) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPresigned(r) {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok || !auth.Verify(user, pass) {
				w.Header().Set("WWW-Authenticate", challenge)
				WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var errRenameUnsupported = fmt.Errorf("MOVE: %w: the storage backend cannot rename", stowdav.ErrUnsupported)

// rejectMove answers MOVE with 501 for filesystems that cannot rename.
func rejectMove(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "MOVE" {
			HandleError(w, errRenameUnsupported)
			return
		}
		next.ServeHTTP(w, r)
	})
}
