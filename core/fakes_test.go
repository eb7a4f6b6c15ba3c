package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"pkt.systems/hostconsole/schema"
)

var errFakeCancelled = errors.New("fake stream cancelled")

type fakeStream struct {
	id        schema.ServerID
	chunks    chan []byte
	cancelled chan struct{}
	once      sync.Once
	owner     *fakeStreamer

	mu      sync.Mutex
	cancels int
}

func (f *fakeStream) Next(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-f.chunks:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-f.cancelled:
		return nil, errFakeCancelled
	case <-ctx.Done():
		return nil, errFakeCancelled
	}
}

func (f *fakeStream) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	f.once.Do(func() {
		close(f.cancelled)
		if f.owner != nil {
			f.owner.record("cancel " + string(f.id))
			f.owner.release()
		}
	})
}

func (f *fakeStream) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// send queues a chunk, failing the test if the reader never takes it.
func (f *fakeStream) send(t *testing.T, chunk string) {
	t.Helper()
	select {
	case f.chunks <- []byte(chunk):
	case <-time.After(5 * time.Second):
		t.Fatalf("reader did not consume chunk %q", chunk)
	}
}

func (f *fakeStream) end() { close(f.chunks) }

type fakeStreamer struct {
	mu        sync.Mutex
	streams   []*fakeStream
	log       []string
	active    int
	maxActive int
	err       error
	block     bool
	opened    chan *fakeStream
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{opened: make(chan *fakeStream, 16)}
}

func (f *fakeStreamer) OpenStream(ctx context.Context, id schema.ServerID) (LogStream, error) {
	f.mu.Lock()
	err, block := f.err, f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	stream := &fakeStream{id: id, chunks: make(chan []byte), cancelled: make(chan struct{}), owner: f}
	f.mu.Lock()
	f.streams = append(f.streams, stream)
	f.log = append(f.log, "open "+string(id))
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()
	f.opened <- stream
	return stream, nil
}

func (f *fakeStreamer) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, entry)
}

func (f *fakeStreamer) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

func (f *fakeStreamer) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case stream := <-f.opened:
		return stream
	case <-time.After(5 * time.Second):
		t.Fatalf("stream was not opened")
		return nil
	}
}

func (f *fakeStreamer) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

type recordingSink struct {
	mu       sync.Mutex
	lines    []schema.LinesEvent
	statuses []schema.StatusEvent
	notices  []schema.NoticeEvent
	clears   int
}

func (r *recordingSink) OnLines(event schema.LinesEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, event)
}

func (r *recordingSink) OnStatus(event schema.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, event)
}

func (r *recordingSink) OnNotice(event schema.NoticeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, event)
}

func (r *recordingSink) OnClear(schema.ClearEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recordingSink) Notices() []schema.NoticeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.NoticeEvent(nil), r.notices...)
}

func (r *recordingSink) Statuses() []schema.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.Status, 0, len(r.statuses))
	for _, event := range r.statuses {
		out = append(out, event.To)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitStatus(t *testing.T, s *Session, want schema.Status) {
	t.Helper()
	waitFor(t, "status "+string(want), func() bool { return s.Status() == want })
}

func waitLines(t *testing.T, b *Buffer, n int) {
	t.Helper()
	waitFor(t, "buffer lines", func() bool { return b.Len() >= n })
}

type fakeAPI struct {
	mu       sync.Mutex
	calls    int
	output   string
	err      error
	gate     chan struct{}
	info     schema.ServerInfo
	events   []schema.ServerEvent
	blob     string
	power    string
	lastTail int
}

func (f *fakeAPI) Exec(ctx context.Context, id schema.ServerID, cmd string) (string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.output, f.err
}

func (f *fakeAPI) Info(ctx context.Context, id schema.ServerID) (schema.ServerInfo, error) {
	return f.info, f.err
}

func (f *fakeAPI) Events(ctx context.Context, id schema.ServerID, limit int) ([]schema.ServerEvent, error) {
	return f.events, f.err
}

func (f *fakeAPI) LogsLast(ctx context.Context, id schema.ServerID, tail int) (string, error) {
	f.mu.Lock()
	f.lastTail = tail
	f.mu.Unlock()
	return f.blob, f.err
}

func (f *fakeAPI) Power(ctx context.Context, id schema.ServerID, action schema.PowerAction) (string, error) {
	return f.power, f.err
}

func (f *fakeAPI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
