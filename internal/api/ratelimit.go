package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

// anonymousClient identifies requests with no forwarded-IP header.
const anonymousClient = "anonymous"

// RateLimiter is a fixed-window request counter per client identifier.
// The window resets wholesale when it elapses; no sliding behavior.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	counts  map[string]*windowCount
	nowFunc func() time.Time // overridable in tests
}

type windowCount struct {
	start time.Time
	count int
}

// NewRateLimiter creates a limiter allowing limit requests per window per
// client.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		counts:  make(map[string]*windowCount),
		nowFunc: time.Now,
	}
}

// Allow records one request for the client and reports whether it is within
// the limit.
func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	wc, ok := rl.counts[clientID]
	if !ok || now.Sub(wc.start) >= rl.window {
		rl.counts[clientID] = &windowCount{start: now, count: 1}
		return true
	}

	wc.count++
	return wc.count <= rl.limit
}

// ClientID derives the rate-limit key from the forwarded-IP header, falling
// back to a constant placeholder when absent.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	return anonymousClient
}

// Middleware gates a handler behind the limiter, answering 429 when the
// client's window is exhausted.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientID(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "rate limit exceeded, try again shortly",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
