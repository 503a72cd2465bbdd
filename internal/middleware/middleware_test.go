package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var e APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	return e
}

func TestBearerAuth(t *testing.T) {
	const token = "s3cret-token-value-0123456789"
	h := BearerAuth(token)(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
		{"case insensitive scheme", "bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", decodeAPIError(t, rec).Error.Code)
			}
		})
	}
}

func TestBearerAuth_EmptyTokenDisablesCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	BearerAuth("")(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGlobalRateLimiter(t *testing.T) {
	h := NewGlobalRateLimiter(1, 2).Middleware()(okHandler)

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"), "other clients have their own bucket")
}

func TestGlobalRateLimiter_RetryAfter(t *testing.T) {
	h := NewGlobalRateLimiter(0.25, 1).Middleware()(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeAPIError(t, rec).Error.Code)
}

func TestGlobalRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	rl := NewGlobalRateLimiter(10, 10)
	rl.now = func() time.Time { return now }

	for i := 0; i <= maxTrackedClients; i++ {
		rl.allow(fmt.Sprintf("10.1.%d.%d", i/256, i%256))
	}
	now = now.Add(clientIdleTTL + time.Minute)
	rl.allow("10.9.9.9")
	rl.allow("10.9.9.8")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.clients, 2, "idle clients are dropped, active ones kept")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", getClientIP(req))
	req.RemoteAddr = "192.0.2.11"
	assert.Equal(t, "192.0.2.11", getClientIP(req))
}

func TestTimeout(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	})

	rec := httptest.NewRecorder()
	Timeout(20*time.Millisecond)(slow).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "timeout", decodeAPIError(t, rec).Error.Code)

	rec = httptest.NewRecorder()
	Timeout(time.Second)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestTimeout_StartedResponseFinishes(t *testing.T) {
	h := Timeout(20*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
		_, _ = w.Write([]byte("late"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "late", rec.Body.String())
}

func TestTimeout_SkipsEventStreams(t *testing.T) {
	var hasDeadline bool
	h := Timeout(time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, hasDeadline)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(DefaultSecurityHeadersConfig(false))(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=31536000")

	rec = httptest.NewRecorder()
	SecurityHeaders(DefaultSecurityHeadersConfig(true))(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestTracing(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := chi.NewRouter()
	r.Use(Tracing(tp))
	r.Get("/api/v1/entities/{type}/{id}/status", okHandler)
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/entities/survey/abc/status", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /api/v1/entities/{type}/{id}/status", spans[0].Name)
	assert.Equal(t, "GET /boom", spans[1].Name)
	assert.Equal(t, "Error", spans[1].Status.Code.String())
}
