package web

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter applies a token bucket per client IP and evicts idle
// entries as a side effect of lookups, so no background goroutine is
// needed.
type rateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu   sync.Mutex
	byIP map[string]*visitor
	hits uint64
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter builds a per-IP limiter allowing perMinute sustained
// requests with the given burst. Returns nil for non-positive inputs;
// a nil limiter allows everything.
func newRateLimiter(perMinute, burst int) *rateLimiter {
	if perMinute <= 0 || burst <= 0 {
		return nil
	}
	return &rateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byIP:    make(map[string]*visitor),
	}
}

// allow reports whether one token can be consumed for ip at now.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	if rl == nil || ip == "" {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.byIP[ip]
	if !ok {
		v = &visitor{
			limiter:  rate.NewLimiter(rl.limit, rl.burst),
			lastSeen: now,
		}
		rl.byIP[ip] = v
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)

	rl.hits++
	if rl.hits%512 == 0 {
		cutoff := now.Add(-rl.idleTTL)
		for k, e := range rl.byIP {
			if e.lastSeen.Before(cutoff) {
				delete(rl.byIP, k)
			}
		}
	}

	return allowed
}

// middleware rejects over-limit requests with 429.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip, time.Now()) {
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the X-Real-IP header set by the RealIP middleware.
func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
