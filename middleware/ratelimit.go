package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/halcyonlab/sessiongate"
	"github.com/halcyonlab/sessiongate/ratelimit"
)

// RateLimit bills each request against the per-address bucket of the given
// class before any other work happens.
func RateLimit(limiter *ratelimit.Limiter, class ratelimit.Class, reject Reject) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(class, sourceAddr(r)) {
				reject(w, r, sessiongate.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sourceAddr extracts the client address, preferring the first
// X-Forwarded-For hop when a trusted proxy sits in front of the gateway.
func sourceAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
