package schema

import (
	"strings"
	"unicode"
)

// NormalizeServerID validates and normalizes a server identifier.
// Allowed characters: letters, digits, '.', '_', '-'.
func NormalizeServerID(id string) (ServerID, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrInvalidServer
	}
	for _, r := range trimmed {
		if r == '.' || r == '_' || r == '-' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return "", ErrInvalidServer
	}
	if trimmed == "." || trimmed == ".." {
		return "", ErrInvalidServer
	}
	return ServerID(trimmed), nil
}

// FileComponent maps a server id to a string safe for file names.
// Characters outside [A-Za-z0-9._-] become '_'.
func FileComponent(id ServerID) string {
	value := strings.TrimSpace(string(id))
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if strings.Trim(out, ".") == "" {
		return "unknown"
	}
	return out
}
