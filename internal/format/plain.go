package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pkt.systems/hostconsole/schema"
)

// PlainRenderer formats frames and panel events as plain text lines.
type PlainRenderer struct {
	// TimeLayout formats event timestamps; empty selects time.DateTime.
	TimeLayout string
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{}
}

// FormatFrame converts a decoded frame into exactly one display line.
func (p *PlainRenderer) FormatFrame(frame schema.Frame) string {
	switch frame.Origin {
	case schema.FrameComment:
		return schema.KeepAliveNotice
	default:
		return FormatPayload(frame)
	}
}

// FormatFrames converts frames into display lines, preserving order.
func (p *PlainRenderer) FormatFrames(frames []schema.Frame) []string {
	if len(frames) == 0 {
		return nil
	}
	lines := make([]string, 0, len(frames))
	for _, frame := range frames {
		lines = append(lines, p.FormatFrame(frame))
	}
	return lines
}

// FormatEvents converts panel events into display lines, oldest first as given.
func (p *PlainRenderer) FormatEvents(events []schema.ServerEvent) []string {
	if len(events) == 0 {
		return []string{"no events"}
	}
	layout := p.TimeLayout
	if layout == "" {
		layout = time.DateTime
	}
	lines := make([]string, 0, len(events))
	for _, event := range events {
		ts := "-"
		if !event.Timestamp.IsZero() {
			ts = event.Timestamp.Local().Format(layout)
		}
		label := strings.TrimSpace(event.Type)
		if label == "" {
			label = "event"
		}
		lines = append(lines, fmt.Sprintf("%s [%s] %s", ts, label, strings.TrimSpace(event.Message)))
	}
	return lines
}

// FormatPayload renders a data frame. JSON strings render unquoted, other
// JSON values render compacted, and raw fallbacks render unmodified.
func FormatPayload(frame schema.Frame) string {
	if !frame.Structured {
		return frame.Raw
	}
	if text, ok := frame.Payload.(string); ok {
		return text
	}
	var out bytes.Buffer
	if err := json.Compact(&out, []byte(frame.Raw)); err != nil {
		return frame.Raw
	}
	return out.String()
}

// SplitOutput splits command output into lines, dropping one trailing newline.
func SplitOutput(text string) []string {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

// MarkCommand prefixes operator input for echoing into the buffer.
func MarkCommand(text string) string {
	return schema.CommandEchoPrefix + text
}
