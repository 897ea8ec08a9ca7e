package server

import (
	"net"
	"net/http"
	"strings"
)

// RealIP returns the best-effort client IP address for a request. Proxy
// headers are consulted first so rate limiting keys on the actual client
// rather than the reverse proxy in front of the service.
func RealIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("Forwarded"); forwarded != "" {
		if ip := forwardedFor(forwarded); ip != "" {
			return ip
		}
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := normalizeIP(part); ip != "" {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		if ip := normalizeIP(xrip); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// forwardedFor extracts the first usable for= element of an RFC 7239 header.
func forwardedFor(value string) string {
	for _, element := range strings.Split(value, ",") {
		for _, pair := range strings.Split(element, ";") {
			pair = strings.TrimSpace(pair)
			if !strings.HasPrefix(strings.ToLower(pair), "for=") {
				continue
			}
			if ip := normalizeIP(strings.Trim(pair[4:], "\"")); ip != "" {
				return ip
			}
		}
	}
	return ""
}

func normalizeIP(value string) string {
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), "\""))
	if value == "" || strings.EqualFold(value, "unknown") {
		return ""
	}
	// Bracketed IPv6, with or without port.
	if strings.HasPrefix(value, "[") {
		if idx := strings.Index(value, "]"); idx > 0 {
			value = value[1:idx]
		}
	}
	if host, _, err := net.SplitHostPort(value); err == nil && host != "" {
		value = host
	}
	if ip := net.ParseIP(value); ip != nil {
		return ip.String()
	}
	return value
}
