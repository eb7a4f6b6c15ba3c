package command

import (
	"strings"
	"sync"
)

// DefaultHistoryMax bounds the number of remembered inputs.
const DefaultHistoryMax = 200

// History remembers submitted console inputs and walks them for recall.
type History struct {
	mu      sync.Mutex
	entries []string
	max     int
	// cursor indexes entries during recall; len(entries) means the fresh line.
	cursor int
	draft  string
}

// NewHistory returns a history seeded with previously persisted entries.
func NewHistory(max int, entries []string) *History {
	if max <= 0 {
		max = DefaultHistoryMax
	}
	if len(entries) > max {
		entries = entries[len(entries)-max:]
	}
	h := &History{max: max, entries: append([]string(nil), entries...)}
	h.cursor = len(h.entries)
	return h
}

// Append records an input. Blank inputs and immediate repeats are skipped.
// Recall restarts from the newest entry.
func (h *History) Append(entry string) bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.resetLocked()
	if strings.TrimSpace(entry) == "" {
		return false
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		return false
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	return true
}

// Prev steps back one entry. current is the line being edited; it is kept
// as the draft restored when Next walks past the newest entry.
func (h *History) Prev(current string) (string, bool) {
	if h == nil {
		return current, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 || len(h.entries) == 0 {
		return current, false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Next steps forward one entry, ending at the saved draft.
func (h *History) Next() (string, bool) {
	if h == nil {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.draft, true
	}
	return h.entries[h.cursor], true
}

// Entries returns a copy of the remembered inputs, oldest first.
func (h *History) Entries() []string {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

func (h *History) resetLocked() {
	h.cursor = len(h.entries)
	h.draft = ""
}
