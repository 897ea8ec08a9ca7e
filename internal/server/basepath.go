package server

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// NormalizeBasePath ensures a base path is well-formed and ready for routing.
// It returns an empty string for the root ("/") base.
func NormalizeBasePath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "/" {
		return "", nil
	}

	if strings.Contains(trimmed, "://") || strings.ContainsAny(trimmed, "?#") {
		return "", fmt.Errorf("base path must be a URL path without scheme, query, or fragment")
	}

	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}

	for _, seg := range strings.Split(strings.TrimPrefix(trimmed, "/"), "/") {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("base path must not contain '.' or '..' segments")
		}
	}

	cleaned := path.Clean(trimmed)
	if cleaned == "/" || cleaned == "." {
		return "", nil
	}

	return cleaned, nil
}

// WrapBasePath mounts the handler under the provided base path.
func WrapBasePath(base string, handler http.Handler) http.Handler {
	if base == "" {
		return handler
	}

	root := http.NewServeMux()
	root.Handle(base+"/", http.StripPrefix(base, handler))
	root.HandleFunc(base, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/", http.StatusMovedPermanently)
	})
	return root
}
