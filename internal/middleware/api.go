// Package middleware provides HTTP middleware for API authentication,
// rate limiting, tracing and request deadlines.
package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// APIError represents a JSON error response for the API.
type APIError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message
	apiErr.Error.Details = details

	_ = json.NewEncoder(w).Encode(apiErr)
}

// BearerAuth creates middleware that requires "Authorization: Bearer <token>".
// An empty token disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	want := []byte(token)

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header", nil)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format. Use: Bearer <token>", nil)
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), want) != 1 {
				slog.Warn("rejected API request with invalid token", "ip", getClientIP(r), "path", r.URL.Path)
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Invalid API token", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientLimiter is one client's token bucket.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter bookkeeping. Idle clients are swept once the table grows past
// maxTrackedClients.
const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

// GlobalRateLimiter rate limits API requests per client IP.
type GlobalRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

// NewGlobalRateLimiter creates a new per-IP rate limiter.
func NewGlobalRateLimiter(rps float64, burst int) *GlobalRateLimiter {
	return &GlobalRateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// allow consumes a token for ip. When none is left it returns how long
// the client should wait.
func (rl *GlobalRateLimiter) allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.clients) > maxTrackedClients {
		rl.sweepLocked(now)
	}

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now

	res := c.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Second
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (rl *GlobalRateLimiter) sweepLocked(now time.Time) {
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > clientIdleTTL {
			delete(rl.clients, ip)
		}
	}
	// Every client is active: start over rather than grow without bound.
	if len(rl.clients) > maxTrackedClients {
		rl.clients = make(map[string]*clientLimiter)
	}
}

// Middleware returns the rate limiting middleware (JSON errors).
func (rl *GlobalRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.allow(getClientIP(r))
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please slow down.", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP returns the request's client address without the port.
// chi's RealIP middleware has already applied X-Real-IP/X-Forwarded-For.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
