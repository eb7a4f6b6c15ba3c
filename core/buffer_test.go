package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"pkt.systems/hostconsole/schema"
)

func TestBufferScrollAnchorsOnAppend(t *testing.T) {
	b := NewBuffer(100)
	b.SetAutoScroll(false)
	b.Append("one", "two", "three", "four", "five")
	b.Scroll(2, 3) // scroll up two lines with viewport size 3
	if b.scrollOffset != 2 {
		t.Fatalf("expected scroll offset 2, got %d", b.scrollOffset)
	}
	b.Append("six", "seven")
	if b.scrollOffset != 4 {
		t.Fatalf("expected scroll offset 4 after append, got %d", b.scrollOffset)
	}
	view := b.Snapshot(3)
	if view.AtBottom {
		t.Fatalf("expected not at bottom after scroll")
	}
	if len(view.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(view.Lines))
	}
	if view.Lines[0] != "one" || view.Lines[2] != "three" {
		t.Fatalf("expected anchored view, got %v", view.Lines)
	}
}

func TestBufferAutoScrollOffFreezesViewAtBottom(t *testing.T) {
	tests := []struct {
		name   string
		seed   []string
		limit  int
		append []string
		want   []string
	}{
		{name: "full-view", seed: []string{"one", "two", "three"}, limit: 2, append: []string{"four"}, want: []string{"two", "three"}},
		{name: "burst", seed: []string{"one", "two", "three"}, limit: 2, append: []string{"four", "five", "six"}, want: []string{"two", "three"}},
		{name: "short-buffer", seed: []string{"one"}, limit: 3, append: []string{"two", "three", "four", "five"}, want: []string{"one", "two", "three"}},
	}
	for _, tc := range tests {
		b := NewBuffer(100)
		b.Append(tc.seed...)
		b.SetAutoScroll(false)
		before := b.Snapshot(tc.limit)
		if !before.AtBottom {
			t.Fatalf("%s: expected to start at bottom", tc.name)
		}
		b.Append(tc.append...)
		after := b.Snapshot(tc.limit)
		if strings.Join(after.Lines, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("%s: view moved: before %v after %v, want %v", tc.name, before.Lines, after.Lines, tc.want)
		}
		if after.AtBottom {
			t.Fatalf("%s: frozen view reports bottom", tc.name)
		}
	}
}

func TestBufferAutoScrollFollowsAppends(t *testing.T) {
	b := NewBuffer(100)
	b.Append("one", "two", "three", "four", "five")
	b.Scroll(2, 3)
	b.Append("six")
	view := b.Snapshot(3)
	if !view.AtBottom || !view.AutoScroll {
		t.Fatalf("expected auto-scroll to return to bottom, got %+v", view)
	}
	if view.Lines[2] != "six" {
		t.Fatalf("expected newest line visible, got %v", view.Lines)
	}
}

func TestBufferAutoScrollToggleKeepsLines(t *testing.T) {
	b := NewBuffer(100)
	b.Append("one", "two", "three")
	b.SetAutoScroll(false)
	b.Scroll(1, 2)
	b.SetAutoScroll(true)
	if b.scrollOffset != 0 {
		t.Fatalf("expected re-enabling auto-scroll to reset offset, got %d", b.scrollOffset)
	}
	if got := b.Lines(); strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("toggle must not touch lines, got %v", got)
	}
}

func TestBufferRespectsMaxLines(t *testing.T) {
	b := NewBuffer(3)
	b.Append("one", "two", "three", "four", "five")
	view := b.Snapshot(10)
	if view.TotalLines != 3 {
		t.Fatalf("expected total lines 3, got %d", view.TotalLines)
	}
	if len(view.Lines) != 3 {
		t.Fatalf("expected 3 visible lines, got %d", len(view.Lines))
	}
	if view.Lines[0] != "three" || view.Lines[2] != "five" {
		t.Fatalf("unexpected lines: %+v", view.Lines)
	}
}

func TestBufferCapPolicy(t *testing.T) {
	if got := NewBuffer(0).MaxLines(); got != schema.DefaultBufferMaxLines {
		t.Fatalf("expected default cap, got %d", got)
	}
	unbounded := NewBuffer(-1)
	for i := 0; i < schema.DefaultBufferMaxLines+10; i++ {
		unbounded.Append(fmt.Sprint(i))
	}
	if unbounded.Len() != schema.DefaultBufferMaxLines+10 {
		t.Fatalf("expected unbounded buffer to keep every line, got %d", unbounded.Len())
	}
}

func TestBufferResetScroll(t *testing.T) {
	b := NewBuffer(10)
	b.Append("one", "two", "three")
	b.Scroll(1, 2)
	if b.scrollOffset == 0 {
		t.Fatalf("expected scroll offset > 0")
	}
	b.ResetScroll()
	if b.scrollOffset != 0 {
		t.Fatalf("expected scroll offset 0, got %d", b.scrollOffset)
	}
}

func TestBufferScrollClampsToBounds(t *testing.T) {
	b := NewBuffer(10)
	b.Append("one", "two", "three", "four", "five")

	b.Scroll(10, 3)
	if b.scrollOffset != 2 {
		t.Fatalf("expected scroll offset 2, got %d", b.scrollOffset)
	}

	b.Scroll(-10, 3)
	if b.scrollOffset != 0 {
		t.Fatalf("expected scroll offset 0, got %d", b.scrollOffset)
	}
}

func TestBufferSnapshotClampsOffset(t *testing.T) {
	b := NewBuffer(10)
	b.Append("one", "two", "three", "four", "five")
	b.scrollOffset = 10

	view := b.Snapshot(3)
	if view.ScrollOffset != 2 {
		t.Fatalf("expected scroll offset 2, got %d", view.ScrollOffset)
	}
	if len(view.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(view.Lines))
	}
	if view.Lines[0] != "one" || view.Lines[2] != "three" {
		t.Fatalf("unexpected lines: %v", view.Lines)
	}
}

func TestBufferClear(t *testing.T) {
	b := NewBuffer(10)
	b.Append("one", "two")
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer, got %d lines", b.Len())
	}
	b.Append("three")
	if got := b.Lines(); len(got) != 1 || got[0] != "three" {
		t.Fatalf("unexpected lines after clear: %v", got)
	}
}

func TestBufferConcurrentAppendsKeepPerWriterOrder(t *testing.T) {
	b := NewBuffer(-1)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Append(fmt.Sprintf("%d:%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	next := map[string]int{}
	for _, line := range b.Lines() {
		var w, i int
		if _, err := fmt.Sscanf(line, "%d:%d", &w, &i); err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		key := fmt.Sprint(w)
		if i != next[key] {
			t.Fatalf("writer %d out of order: got %d want %d", w, i, next[key])
		}
		next[key]++
	}
	if b.Len() != 800 {
		t.Fatalf("expected 800 lines, got %d", b.Len())
	}
}

func TestExportFileName(t *testing.T) {
	cases := []struct {
		id          schema.ServerID
		compression schema.Compression
		want        string
	}{
		{id: "srv-1", compression: schema.CompressionNone, want: "console-srv-1.log"},
		{id: "srv-1", compression: schema.CompressionGzip, want: "console-srv-1.log.gz"},
		{id: "srv-1", compression: schema.CompressionZstd, want: "console-srv-1.log.zst"},
		{id: "a/b", compression: schema.CompressionNone, want: "console-a_b.log"},
	}
	for _, tc := range cases {
		if got := ExportFileName(tc.id, tc.compression); got != tc.want {
			t.Fatalf("ExportFileName(%q, %q) = %q, want %q", tc.id, tc.compression, got, tc.want)
		}
	}
}

func TestExportToFileMatchesLines(t *testing.T) {
	cases := []struct {
		compression schema.Compression
		open        func(io.Reader) (io.Reader, error)
	}{
		{compression: schema.CompressionNone, open: func(r io.Reader) (io.Reader, error) { return r, nil }},
		{compression: schema.CompressionGzip, open: func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{compression: schema.CompressionZstd, open: func(r io.Reader) (io.Reader, error) {
			dec, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return dec.IOReadCloser(), nil
		}},
	}
	for _, tc := range cases {
		t.Run(string(tc.compression), func(t *testing.T) {
			b := NewBuffer(0)
			var want []string
			for i := 0; i < 25; i++ {
				line := fmt.Sprintf("line %d", i)
				want = append(want, line)
				b.Append(line)
			}
			dir := t.TempDir()
			path, err := b.ExportToFile(dir, "srv-1", tc.compression)
			if err != nil {
				t.Fatalf("export: %v", err)
			}
			if filepath.Base(path) != ExportFileName("srv-1", tc.compression) {
				t.Fatalf("unexpected export path %q", path)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read export: %v", err)
			}
			reader, err := tc.open(bytes.NewReader(raw))
			if err != nil {
				t.Fatalf("open export: %v", err)
			}
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read export body: %v", err)
			}
			if string(got) != strings.Join(want, "\n") {
				t.Fatalf("export mismatch:\n%q\n%q", got, strings.Join(want, "\n"))
			}
		})
	}
}

func TestExportToFileMidStream(t *testing.T) {
	b := NewBuffer(0)
	b.Append("first")
	dir := t.TempDir()
	path, err := b.ExportToFile(dir, "srv-1", schema.CompressionNone)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	b.Append("second")
	data, _ := os.ReadFile(path)
	if string(data) != "first" {
		t.Fatalf("expected first export to hold one line, got %q", data)
	}
	if _, err := b.ExportToFile(dir, "srv-1", schema.CompressionNone); err != nil {
		t.Fatalf("second export: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "first\nsecond" {
		t.Fatalf("expected second export to replace the first, got %q", data)
	}
}

func TestExportRejectsUnknownCompression(t *testing.T) {
	b := NewBuffer(0)
	if _, err := b.ExportToFile(t.TempDir(), "srv-1", "brotli"); err == nil {
		t.Fatalf("expected unknown compression error")
	}
}

func TestWriteTo(t *testing.T) {
	b := NewBuffer(0)
	b.Append("a", "b")
	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	if err != nil || n != 3 || out.String() != "a\nb" {
		t.Fatalf("unexpected WriteTo result n=%d err=%v out=%q", n, err, out.String())
	}
}
