package httpx

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pulsekit/pulsekit-go/pkg/sdk/event"
)

// Event types reported by the middleware
const (
	TypePanic       = event.TypeError
	TypeServerError = "http.server_error"
)

// Capturer is the part of *sdk.Client the middleware needs
type Capturer interface {
	Capture(e event.Event, opts ...event.Option)
}

var (
	numericIDPattern = regexp.MustCompile(`/\d+`)
	uuidPattern      = regexp.MustCompile(`/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// Middleware returns HTTP middleware that reports failures as events.
// It reports:
//   - handler panics: type "error", level fatal, with the panic stack; the
//     client gets a 500
//   - 5xx responses: type "http.server_error", level error
//
// Usage:
//
//	client := sdk.New(sdk.Config{...})
//	defer client.Close()
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", handler)
//	handler := httpx.Middleware(client)(mux)
//	http.ListenAndServe(":8080", handler)
func Middleware(client Capturer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap ResponseWriter to capture status code
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				client.Capture(event.Event{
					Type:       TypePanic,
					Level:      event.LevelFatal,
					Message:    fmt.Sprintf("panic: %v", recovered),
					Stacktrace: panicStack(),
					Tags:       requestTags(r, http.StatusInternalServerError),
					Metadata:   requestMetadata(r, start),
				})

				if !rw.wroteHeader {
					http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(rw, r)

			if rw.statusCode >= http.StatusInternalServerError {
				client.Capture(event.Event{
					Type:     TypeServerError,
					Level:    event.LevelError,
					Message:  fmt.Sprintf("%s %s returned %d", r.Method, normalizePath(r.URL.Path), rw.statusCode),
					Tags:     requestTags(r, rw.statusCode),
					Metadata: requestMetadata(r, start),
				})
			}
		})
	}
}

// panicStack captures the stack from inside the deferred recover and drops
// the panic machinery, so the first frame is the one that panicked.
func panicStack() []event.StackFrame {
	frames := event.CaptureStack(3)
	for i, f := range frames {
		if f.Function == "runtime.gopanic" {
			frames = frames[i+1:]
			break
		}
	}
	// Runtime-raised panics (nil map writes, bad indexes) add their own frames
	for len(frames) > 0 && strings.HasPrefix(frames[0].Function, "runtime.") {
		frames = frames[1:]
	}
	return frames
}

// requestTags are low-cardinality by construction: the path is normalized
func requestTags(r *http.Request, status int) map[string]string {
	return map[string]string{
		"method": r.Method,
		"path":   normalizePath(r.URL.Path),
		"status": strconv.Itoa(status),
	}
}

func requestMetadata(r *http.Request, start time.Time) map[string]any {
	return map[string]any{
		"url":         r.URL.String(),
		"user_agent":  r.UserAgent(),
		"duration_ms": time.Since(start).Milliseconds(),
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// normalizePath normalizes paths to avoid cardinality explosion.
// Examples:
//   - /api/users/123 → /api/users/{id}
//   - /posts/456/comments → /posts/{id}/comments
//   - /api/users/0b6c1f0e-8a4e-4c1a-9d55-3f2d3a1b9c7e → /api/users/{id}
func normalizePath(path string) string {
	path = uuidPattern.ReplaceAllString(path, "/{id}")
	return numericIDPattern.ReplaceAllString(path, "/{id}")
}
