package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the identity of requests that carry no usable address.
// All such requests share one bucket.
const UnknownClient = "unknown"

// KeyGenerator maps a request to the identity it is counted under. It must be
// deterministic and free of side effects.
type KeyGenerator func(r *http.Request) string

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then UnknownClient.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownClient
}

// DefaultKeyGenerator counts requests per proxied client IP.
func DefaultKeyGenerator(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// RemoteAddrKeyGenerator ignores forwarding headers and counts per socket peer.
// Use it when the service is not behind a trusted proxy.
func RemoteAddrKeyGenerator(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		host = UnknownClient
	}
	return "ip:" + host
}
