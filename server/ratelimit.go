package server

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vinoflow/concierge/cache"
)

const (
	// limiterIdleTTL is how long a client's limiter survives without
	// traffic before being dropped.
	limiterIdleTTL = 10 * time.Minute
	// maxTrackedClients bounds memory under client address churn.
	maxTrackedClients = 4096
)

// ipRateLimiter enforces a per-client request budget keyed by remote IP.
// Idle clients are forgotten after limiterIdleTTL; a forgotten client starts
// over with a full burst.
type ipRateLimiter struct {
	mu      sync.Mutex
	clients *cache.Cache[*rate.Limiter]
	perMin  int
	burst   int
}

func newIPRateLimiter(requestsPerMinute, burst int) *ipRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &ipRateLimiter{
		clients: cache.New[*rate.Limiter](maxTrackedClients, limiterIdleTTL),
		perMin:  requestsPerMinute,
		burst:   burst,
	}
}

func (l *ipRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients.Get(ip)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMin)/60.0), l.burst)
	}
	// Re-store on every request so the idle clock restarts and active
	// clients stay off the eviction end.
	l.clients.Put(ip, lim)
	return lim
}

// acquire consumes one token for the request's client. When the budget is
// exhausted it writes a 429 response with Retry-After and X-RateLimit
// headers, and returns false.
func (l *ipRateLimiter) acquire(w http.ResponseWriter, r *http.Request) bool {
	ip := clientIP(r)
	lim := l.limiterFor(ip)

	w.Header().Set("X-RateLimit-Limit", fmt.Sprint(l.perMin))

	res := lim.Reserve()
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		retryAfter := int(math.Ceil(delay.Seconds()))

		w.Header().Set("Retry-After", fmt.Sprint(retryAfter))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintf(w, `{"detail": "Rate limit exceeded", "retry_after": "%d seconds"}`, retryAfter)
		return false
	}

	remaining := int(lim.TokensAt(time.Now()))
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprint(remaining))
	return true
}

// clientIP extracts the client address, honoring X-Forwarded-For from a
// fronting proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
