package hostconsole

import (
	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnLines(event schema.LinesEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnLines(event)
	}
}

func (f eventFanout) OnStatus(event schema.StatusEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStatus(event)
	}
}

func (f eventFanout) OnNotice(event schema.NoticeEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnNotice(event)
	}
}

func (f eventFanout) OnClear(event schema.ClearEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnClear(event)
	}
}
