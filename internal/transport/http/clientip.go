package http

import (
	"net/http"
	"strings"
)

// clientIP returns the caller address. With hops trusted proxies in front,
// the hops-th X-Forwarded-For entry from the right is the client, since each
// proxy appends the peer it saw. Zero hops ignores the header entirely.
func clientIP(r *http.Request, hops int) string {
	if hops <= 0 {
		return r.RemoteAddr
	}
	var entries []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		for _, part := range strings.Split(header, ",") {
			if p := strings.TrimSpace(part); p != "" {
				entries = append(entries, p)
			}
		}
	}
	if len(entries) < hops {
		if len(entries) > 0 {
			return entries[0]
		}
		return r.RemoteAddr
	}
	return entries[len(entries)-hops]
}
