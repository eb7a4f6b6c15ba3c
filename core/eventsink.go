package core

import "pkt.systems/hostconsole/schema"

// EventSink receives console events: buffer appends, status transitions,
// transient notifications, and clears.
type EventSink interface {
	OnLines(event schema.LinesEvent)
	OnStatus(event schema.StatusEvent)
	OnNotice(event schema.NoticeEvent)
	OnClear(event schema.ClearEvent)
}

type nopSink struct{}

func (nopSink) OnLines(schema.LinesEvent)   {}
func (nopSink) OnStatus(schema.StatusEvent) {}
func (nopSink) OnNotice(schema.NoticeEvent) {}
func (nopSink) OnClear(schema.ClearEvent)   {}

func sinkOrNop(sink EventSink) EventSink {
	if sink == nil {
		return nopSink{}
	}
	return sink
}
