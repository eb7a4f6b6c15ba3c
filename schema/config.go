package schema

import "strings"

// ConsoleConfig defines defaults and limits for a console.
type ConsoleConfig struct {
	// BufferMaxLines caps the display buffer; 0 selects the default, negative is unbounded.
	BufferMaxLines    int
	AutoScroll        bool
	EventsLimit       int
	TailLines         int
	ExportDir         string
	ExportCompression Compression
}

// DefaultBufferMaxLines is the default display buffer cap.
const DefaultBufferMaxLines = 10000

// DefaultEventsLimit is the default number of events requested.
const DefaultEventsLimit = 50

// DefaultTailLines is the default tail snapshot size.
const DefaultTailLines = 100

// Compression selects the export artifact encoding.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates an export compression name.
func ParseCompression(value string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(value))); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd:
		return c, nil
	default:
		return "", ErrUnknownCompression
	}
}

// NormalizeConsoleConfig applies defaults.
func NormalizeConsoleConfig(cfg ConsoleConfig) (ConsoleConfig, error) {
	if cfg.BufferMaxLines == 0 {
		cfg.BufferMaxLines = DefaultBufferMaxLines
	}
	if cfg.EventsLimit <= 0 {
		cfg.EventsLimit = DefaultEventsLimit
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = DefaultTailLines
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	compression, err := ParseCompression(string(cfg.ExportCompression))
	if err != nil {
		return ConsoleConfig{}, err
	}
	cfg.ExportCompression = compression
	return cfg, nil
}
