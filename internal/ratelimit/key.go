package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownKey is the rate limit key used when no caller address can be
// derived from a request. All such callers share one bucket.
const UnknownKey = "unknown"

// KeyFunc is a function that extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns the client IP as the rate limit key.
func IPKeyFunc(r *http.Request) string {
	return GetClientIP(r)
}

// PerRouteKeyFunc returns a KeyFunc that includes the route name in the key.
func PerRouteKeyFunc(routeName string, baseKeyFunc KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return routeName + ":" + baseKeyFunc(r)
	}
}

// GetClientIP extracts the caller address from the request. The first
// hop of X-Forwarded-For wins, then the host part of RemoteAddr. When
// neither yields anything it returns UnknownKey.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return UnknownKey
}
