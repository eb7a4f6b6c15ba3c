package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"pkt.systems/hostconsole/schema"
)

// BufferView is a snapshot of a buffer's visible state.
type BufferView struct {
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
	AutoScroll   bool
}

// Buffer is the ordered display log of a console. Lines are only ever
// appended or evicted from the front once the cap is reached; no line is
// edited in place. Buffer is safe for concurrent use.
// ScrollOffset is the number of lines from the bottom; 0 means at bottom.
type Buffer struct {
	mu           sync.Mutex
	lines        []string
	scrollOffset int
	maxLines     int
	autoScroll   bool
}

// NewBuffer returns a buffer with the given cap. Zero selects
// schema.DefaultBufferMaxLines and a negative cap means unbounded.
func NewBuffer(maxLines int) *Buffer {
	if maxLines == 0 {
		maxLines = schema.DefaultBufferMaxLines
	}
	return &Buffer{maxLines: maxLines, autoScroll: true}
}

// Append adds lines as one atomic step. With auto-scroll on the view
// returns to the bottom; otherwise the view stays anchored on the lines it
// showed, including when it was at the bottom.
func (b *Buffer) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, lines...)
	if b.autoScroll {
		b.scrollOffset = 0
	} else {
		b.scrollOffset += len(lines)
	}
	if b.maxLines > 0 && len(b.lines) > b.maxLines {
		trim := len(b.lines) - b.maxLines
		kept := make([]string, b.maxLines)
		copy(kept, b.lines[trim:])
		b.lines = kept
		if b.scrollOffset > len(b.lines) {
			b.scrollOffset = len(b.lines)
		}
	}
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
	b.scrollOffset = 0
}

// Len returns the number of lines held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// Lines returns a copy of every line held, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// MaxLines returns the cap; a negative value means unbounded.
func (b *Buffer) MaxLines() int {
	return b.maxLines
}

// SetAutoScroll toggles the auto-scroll presentation policy. Turning it on
// returns the view to the bottom; turning it off freezes the view.
func (b *Buffer) SetAutoScroll(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoScroll = on
	if on {
		b.scrollOffset = 0
	}
}

// AutoScroll reports whether auto-scroll is on.
func (b *Buffer) AutoScroll() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.autoScroll
}

// ResetScroll returns the view to the bottom.
func (b *Buffer) ResetScroll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollOffset = 0
}

// Scroll adjusts the scroll offset by delta. Positive delta scrolls up (older lines),
// negative delta scrolls down. Limit is the viewport height.
func (b *Buffer) Scroll(delta, limit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scrollOffset = clampScroll(b.scrollOffset+delta, len(b.lines), limit)
}

// Snapshot returns a view of the buffer for the given viewport limit.
func (b *Buffer) Snapshot(limit int) BufferView {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.lines)
	if limit <= 0 || limit > total {
		limit = total
	}

	maxScroll := maxScroll(total, limit)
	if b.scrollOffset > maxScroll {
		b.scrollOffset = maxScroll
	}

	end := total - b.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, end-start)
	copy(lines, b.lines[start:end])

	return BufferView{
		Lines:        lines,
		TotalLines:   total,
		ScrollOffset: b.scrollOffset,
		AtBottom:     b.scrollOffset == 0,
		AutoScroll:   b.autoScroll,
	}
}

// Text returns every line newline-joined.
func (b *Buffer) Text() string {
	return strings.Join(b.Lines(), "\n")
}

// WriteTo writes the newline-joined lines to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, b.Text())
	return int64(n), err
}

// ExportFileName returns the deterministic export file name for a server.
func ExportFileName(id schema.ServerID, compression schema.Compression) string {
	name := "console-" + schema.FileComponent(id) + ".log"
	switch compression {
	case schema.CompressionGzip:
		name += ".gz"
	case schema.CompressionZstd:
		name += ".zst"
	}
	return name
}

// ExportToFile writes the current lines to dir under ExportFileName and
// returns the path. The file is replaced atomically. It may be called while
// the stream is still appending; the export holds whatever was appended so far.
func (b *Buffer) ExportToFile(dir string, id schema.ServerID, compression schema.Compression) (string, error) {
	compression, err := schema.ParseCompression(string(compression))
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ExportFileName(id, compression))
	text := b.Text()

	tmp, err := os.CreateTemp(dir, ".console-*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	fail := func(err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	writer, err := compressWriter(tmp, compression)
	if err != nil {
		return fail(err)
	}
	if _, err := io.WriteString(writer, text); err != nil {
		_ = writer.Close()
		return fail(err)
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return path, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, compression schema.Compression) (io.WriteCloser, error) {
	switch compression {
	case schema.CompressionNone:
		return nopWriteCloser{w}, nil
	case schema.CompressionGzip:
		return gzip.NewWriter(w), nil
	case schema.CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, schema.ErrUnknownCompression
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	if total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	max := maxScroll(total, limit)
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}
