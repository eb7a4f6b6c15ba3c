package eventbus

import (
	"context"
	"sync"

	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventLines carries lines appended to a display buffer.
	EventLines EventType = "lines"
	// EventStatus carries session status transitions.
	EventStatus EventType = "status"
	// EventNotice carries transient notifications.
	EventNotice EventType = "notice"
	// EventClear reports a cleared display buffer.
	EventClear EventType = "clear"
)

// Event represents a UI-facing event emitted by a console.
type Event struct {
	Type   EventType
	Lines  schema.LinesEvent
	Status schema.StatusEvent
	Notice schema.NoticeEvent
	Clear  schema.ClearEvent
}

// ServerID returns the server the event belongs to.
func (e Event) ServerID() schema.ServerID {
	switch e.Type {
	case EventLines:
		return e.Lines.ServerID
	case EventStatus:
		return e.Status.ServerID
	case EventNotice:
		return e.Notice.ServerID
	case EventClear:
		return e.Clear.ServerID
	}
	return ""
}

// Bus fans events out to per-server subscribers. The empty server id
// subscribes to every server.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ServerID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ServerID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the server and returns a channel + cancel.
func (b *Bus) Subscribe(id schema.ServerID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	serverSubs := b.subs[id]
	if serverSubs == nil {
		serverSubs = make(map[chan Event]struct{})
		b.subs[id] = serverSubs
	}
	serverSubs[ch] = struct{}{}
	count := len(serverSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("server", id).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[id]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, id)
				}
			}
			close(ch)
			b.mu.Unlock()
			if b.log != nil {
				b.log.With("server", id).Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnLines publishes a lines event.
func (b *Bus) OnLines(event schema.LinesEvent) {
	b.publish(Event{Type: EventLines, Lines: event})
}

// OnStatus publishes a status event.
func (b *Bus) OnStatus(event schema.StatusEvent) {
	b.publish(Event{Type: EventStatus, Status: event})
}

// OnNotice publishes a notice event.
func (b *Bus) OnNotice(event schema.NoticeEvent) {
	b.publish(Event{Type: EventNotice, Notice: event})
}

// OnClear publishes a clear event.
func (b *Bus) OnClear(event schema.ClearEvent) {
	b.publish(Event{Type: EventClear, Clear: event})
}

// publish never blocks; a full subscriber misses the event.
func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	id := event.ServerID()
	dropped := 0
	b.mu.Lock()
	for _, key := range []schema.ServerID{id, ""} {
		for sub := range b.subs[key] {
			select {
			case sub <- event:
			default:
				dropped++
			}
		}
		if id == "" {
			break
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("server", id).Trace("eventbus dropped", "count", dropped)
	}
}
