package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/schema"
)

// ErrServerNotFound is returned for unknown server ids.
var ErrServerNotFound = errors.New("server not found")

// LogRecord is one line of server output.
type LogRecord struct {
	Seq  uint64
	Line string
}

// Hub holds the mock servers and broadcasts their output to log streams.
type Hub struct {
	mu          sync.Mutex
	servers     map[schema.ServerID]*serverHub
	historySize int
	eventsSize  int
	now         func() time.Time
}

// NewHub constructs a hub with the given history sizes.
func NewHub(historySize, eventsSize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	if eventsSize <= 0 {
		eventsSize = 200
	}
	return &Hub{
		servers:     make(map[schema.ServerID]*serverHub),
		historySize: historySize,
		eventsSize:  eventsSize,
		now:         time.Now,
	}
}

type serverHub struct {
	info    schema.ServerInfo
	seq     uint64
	history []LogRecord
	events  []schema.ServerEvent
	eventID uint64
	subs    map[chan LogRecord]struct{}
}

// AddServer registers a server. Re-adding an existing id updates its name.
func (h *Hub) AddServer(id schema.ServerID, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sh := h.servers[id]; sh != nil {
		sh.info.Name = name
		return
	}
	h.servers[id] = &serverHub{
		info: schema.ServerInfo{ID: id, Name: name, Status: "running"},
		subs: make(map[chan LogRecord]struct{}),
	}
}

// Servers lists registered server ids in order.
func (h *Hub) Servers() []schema.ServerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]schema.ServerID, 0, len(h.servers))
	for id := range h.servers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Info returns server metadata.
func (h *Hub) Info(id schema.ServerID) (schema.ServerInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return schema.ServerInfo{}, ErrServerNotFound
	}
	return sh.info, nil
}

// SetState updates the reported status and state hint.
func (h *Hub) SetState(id schema.ServerID, status string, hint schema.StateHint) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return ErrServerNotFound
	}
	sh.info.Status = status
	sh.info.StateHint = hint
	return nil
}

// Publish appends lines to a server's output and fans them out.
func (h *Hub) Publish(id schema.ServerID, lines ...string) error {
	h.mu.Lock()
	sh := h.servers[id]
	if sh == nil {
		h.mu.Unlock()
		return ErrServerNotFound
	}
	records := make([]LogRecord, 0, len(lines))
	for _, line := range lines {
		sh.seq++
		records = append(records, LogRecord{Seq: sh.seq, Line: line})
	}
	sh.history = append(sh.history, records...)
	if len(sh.history) > h.historySize {
		sh.history = append([]LogRecord(nil), sh.history[len(sh.history)-h.historySize:]...)
	}
	dropped := 0
	for sub := range sh.subs {
		for _, record := range records {
			select {
			case sub <- record:
			default:
				dropped++
			}
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.WithServer(context.Background(), id).Warn("hub output dropped", "dropped", dropped)
	}
	return nil
}

// Subscribe registers a log subscriber and returns the replay history.
func (h *Hub) Subscribe(id schema.ServerID) (<-chan LogRecord, func(), []LogRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return nil, nil, nil, ErrServerNotFound
	}
	ch := make(chan LogRecord, 256)
	sh.subs[ch] = struct{}{}
	history := append([]LogRecord(nil), sh.history...)
	log := logx.WithServer(context.Background(), id)
	log.Info("hub subscribe", "subs", len(sh.subs), "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(sh.subs, ch)
			close(ch)
			remaining := len(sh.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, history, nil
}

// Tail returns the last n lines newline-joined. n <= 0 returns everything held.
func (h *Hub) Tail(id schema.ServerID, n int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return "", ErrServerNotFound
	}
	records := sh.history
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	var b strings.Builder
	for _, record := range records {
		b.WriteString(record.Line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// RecordEvent appends a discrete event to a server's event history.
func (h *Hub) RecordEvent(id schema.ServerID, kind, message string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return ErrServerNotFound
	}
	sh.eventID++
	sh.events = append(sh.events, schema.ServerEvent{
		ID:        "evt-" + strconv.FormatUint(sh.eventID, 10),
		Timestamp: h.now().UTC(),
		Type:      kind,
		Message:   message,
	})
	if len(sh.events) > h.eventsSize {
		sh.events = append([]schema.ServerEvent(nil), sh.events[len(sh.events)-h.eventsSize:]...)
	}
	return nil
}

// Events returns up to limit most recent events, oldest first.
func (h *Hub) Events(id schema.ServerID, limit int) ([]schema.ServerEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh := h.servers[id]
	if sh == nil {
		return nil, ErrServerNotFound
	}
	events := sh.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]schema.ServerEvent{}, events...), nil
}

// Power applies a lifecycle action and returns the resulting status.
func (h *Hub) Power(id schema.ServerID, action schema.PowerAction) (string, error) {
	info, err := h.Info(id)
	if err != nil {
		return "", err
	}
	status, hint := info.Status, info.StateHint
	switch action {
	case schema.PowerStart, schema.PowerRestart:
		if hint == schema.HintSuspended {
			return "", fmt.Errorf("server is suspended")
		}
		status, hint = "running", ""
	case schema.PowerStop:
		status = "offline"
	case schema.PowerKill:
		status, hint = "offline", schema.HintRuntimeExited
	case schema.PowerSuspend:
		status, hint = "suspended", schema.HintSuspended
	case schema.PowerUnsuspend:
		status, hint = "offline", ""
	default:
		return "", schema.ErrUnknownPowerAction
	}
	if err := h.SetState(id, status, hint); err != nil {
		return "", err
	}
	_ = h.RecordEvent(id, "power", fmt.Sprintf("%s requested; server is %s", action, status))
	_ = h.Publish(id, fmt.Sprintf("[panel] power %s: server is %s", action, status))
	return status, nil
}
