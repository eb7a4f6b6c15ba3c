package core

import "pkt.systems/hostconsole/schema"

// Renderer formats decoded frames and panel events into display lines.
type Renderer interface {
	FormatFrames(frames []schema.Frame) []string
	FormatEvents(events []schema.ServerEvent) []string
}
