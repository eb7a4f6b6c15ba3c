package httpapi

import "strings"

// normalizeBasePath returns "" for the root mount, otherwise a path with a
// leading slash and no trailing slash.
func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}
