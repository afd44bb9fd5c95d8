package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// minCleanupInterval floors how often allow() sweeps expired entries even
// when ConfigureRateLimit is given a very short ttl — the sweep itself
// walks every tracked IP under the lock, so it must not run on every
// request.
const minCleanupInterval = 10 * time.Second

type ipLimiter struct {
	mu          sync.Mutex
	entries     map[string]*ipLimiterEntry
	lastCleanup time.Time

	rps   rate.Limit
	burst int
	ttl   time.Duration
}

// cleanupInterval ties the stale-entry sweep cadence to the configured
// ttl (a fifteenth of it) rather than a fixed constant, so a deployment
// that lowers ttl via ConfigureRateLimit also gets more frequent sweeps
// instead of leaving expired entries sitting for up to a stale fixed
// window.
func (l *ipLimiter) cleanupInterval() time.Duration {
	interval := l.ttl / 15
	if interval < minCleanupInterval {
		return minCleanupInterval
	}
	return interval
}

// apiIPLimiter is a package-level singleton since the limiter must be
// shared across every request regardless of which goroutine is serving
// it; cmd/solflow/main.go supplies the actual rps/burst/ttl from config
// via ConfigureRateLimit before the server starts serving, rather than
// this package reading the environment itself.
var apiIPLimiter = &ipLimiter{
	entries: make(map[string]*ipLimiterEntry),
	rps:     10,
	burst:   20,
	ttl:     15 * time.Minute,
}

// ConfigureRateLimit lets cmd/solflow/main.go apply config-file values
// before the server starts serving. ttl of zero keeps whatever ttl is
// already set (callers that only care about rps/burst don't have to
// re-specify it).
func ConfigureRateLimit(rps float64, burst int, ttl time.Duration) {
	apiIPLimiter.mu.Lock()
	defer apiIPLimiter.mu.Unlock()
	apiIPLimiter.rps = rate.Limit(rps)
	apiIPLimiter.burst = burst
	if ttl > 0 {
		apiIPLimiter.ttl = ttl
	}
}

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ws":
			next.ServeHTTP(w, r)
			return
		}

		if apiIPLimiter.rps <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}

		if !apiIPLimiter.allow(ip) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastCleanup.IsZero() || now.Sub(l.lastCleanup) > l.cleanupInterval() {
		for k, v := range l.entries {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	ent := l.entries[ip]
	if ent == nil {
		ent = &ipLimiterEntry{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
		l.entries[ip] = ent
	} else {
		ent.lastSeen = now
	}

	return ent.limiter.Allow()
}

// clientIP extracts the caller's address from, in order, X-Forwarded-For,
// X-Real-IP, then RemoteAddr. Unlike trusting whatever string a proxy
// header happens to contain, each forwarded candidate is parsed with
// netip.ParseAddr before being accepted — a malformed or spoofed header
// value (empty port-less garbage, a hostname, a stray comma fragment)
// falls through to the next source instead of becoming the bucket key
// every rate-limit entry is keyed on.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if candidate := strings.TrimSpace(part); isValidIP(candidate) {
				return candidate
			}
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); isValidIP(xr) {
		return xr
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && isValidIP(host) {
		return host
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if isValidIP(remote) {
		return remote
	}
	return remote
}

func isValidIP(s string) bool {
	if s == "" {
		return false
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
