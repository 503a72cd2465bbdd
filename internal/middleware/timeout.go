package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Timeout bounds request handling. A handler that has not started its
// response when the deadline passes gets a 503 JSON error instead; one that
// has started is allowed to finish with its context cancelled. Event streams
// (Accept: text/event-stream) pass through untouched.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isEventStream(r) {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			tw := &timeoutWriter{ResponseWriter: w}

			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				tw.mu.Lock()
				if !tw.wroteHeader {
					tw.timedOut = true
					WriteAPIError(w, http.StatusServiceUnavailable, "timeout", "Request timeout", nil)
					tw.mu.Unlock()
					return
				}
				tw.mu.Unlock()
				// The handler is already responding; w must not be
				// released while it still writes.
				<-done
			}
		})
	}
}

func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}

// timeoutWriter wraps http.ResponseWriter to track if headers have been
// written and to discard writes after a timeout response.
type timeoutWriter struct {
	http.ResponseWriter
	mu          sync.Mutex
	wroteHeader bool
	timedOut    bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.wroteHeader && !tw.timedOut {
		tw.wroteHeader = true
		tw.ResponseWriter.WriteHeader(code)
	}
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.ResponseWriter.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}
