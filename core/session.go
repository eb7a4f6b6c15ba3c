package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/internal/sse"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// Session tracks the connection lifecycle of one server console across
// many connection attempts. At most one connection is active at a time;
// starting a new one tears the previous one down first and waits for its
// reader to exit.
type Session struct {
	opMu sync.Mutex

	mu       sync.Mutex
	id       schema.ServerID
	status   schema.Status
	attempt  uint64
	current  *connection
	streams  Streamer
	buffer   *Buffer
	renderer Renderer
	sink     EventSink
	logger   pslog.Logger
}

// connection is a single attempt. It owns the cancellation handle of the
// stream it opens; the handle is never shared or reused.
type connection struct {
	id      schema.ServerID
	attempt uint64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu      sync.Mutex
	stream  LogStream
	stopped bool
	release sync.Once
}

// NewSession returns a disconnected session appending into buffer.
func NewSession(id schema.ServerID, buffer *Buffer, deps ConsoleDeps) (*Session, error) {
	id, err := schema.NormalizeServerID(string(id))
	if err != nil {
		return nil, err
	}
	if deps.Streamer == nil {
		return nil, errors.New("session requires a streamer")
	}
	if buffer == nil {
		buffer = NewBuffer(0)
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Session{
		id:       id,
		status:   schema.StatusDisconnected,
		streams:  deps.Streamer,
		buffer:   buffer,
		renderer: rendererOrDefault(deps.Renderer),
		sink:     sinkOrNop(deps.EventSink),
		logger:   logger,
	}, nil
}

// ID returns the current server id.
func (s *Session) ID() schema.ServerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Status returns the current status.
func (s *Session) Status() schema.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Attempt returns the number of connection attempts started so far.
func (s *Session) Attempt() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Connect cancels any prior connection, waits for its reader to exit, and
// starts a new attempt. The request runs on its own goroutine; Connect
// returns once the session is Connecting.
func (s *Session) Connect(ctx context.Context) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stop()
	s.start(ctx)
	return nil
}

// Reconnect is an explicit operator retry; it behaves like Connect.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.Connect(ctx)
}

// SwitchServer cancels the active connection exactly once and connects to id.
func (s *Session) SwitchServer(ctx context.Context, id schema.ServerID) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	id, err := schema.NormalizeServerID(string(id))
	if err != nil {
		return err
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stop()
	s.mu.Lock()
	previous := s.id
	s.id = id
	s.mu.Unlock()
	s.logger.Info("session switch", "from", previous, "to", id)
	s.start(ctx)
	return nil
}

// Cancel tears down the active connection, if any, and leaves the session
// Disconnected. It is idempotent and never records an error.
func (s *Session) Cancel() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	stopped := s.stop()
	s.mu.Lock()
	event, changed := s.setStatusLocked(schema.StatusDisconnected)
	s.mu.Unlock()
	if changed {
		s.sink.OnStatus(event)
	}
	if stopped {
		s.logger.Debug("session cancel ok", "server", event.ServerID)
	}
}

// stop detaches and stops the current connection. It reports whether one was active.
func (s *Session) stop() bool {
	s.mu.Lock()
	conn := s.current
	s.current = nil
	s.mu.Unlock()
	if conn == nil {
		return false
	}
	conn.stop()
	return true
}

func (s *Session) start(ctx context.Context) {
	s.mu.Lock()
	s.attempt++
	conn := &connection{
		id:      s.id,
		attempt: s.attempt,
		done:    make(chan struct{}),
	}
	conn.ctx, conn.cancel = context.WithCancel(logx.ContextWithServer(ctx, s.id))
	s.current = conn
	event, changed := s.setStatusLocked(schema.StatusConnecting)
	s.mu.Unlock()
	if changed {
		s.sink.OnStatus(event)
	}
	go s.run(conn)
}

func (s *Session) run(conn *connection) {
	defer close(conn.done)
	log := logx.WithAttempt(s.logger.With("server", conn.id), conn.attempt)
	log.Debug("session connect start")

	stream, err := s.streams.OpenStream(conn.ctx, conn.id)
	if err != nil {
		if conn.ctx.Err() != nil {
			log.Debug("session connect cancelled")
			s.finish(conn, schema.StatusDisconnected, "", nil)
			return
		}
		log.Warn("session connect failed", "err", err)
		s.finish(conn, schema.StatusErrored, fmt.Sprintf(schema.ConnectFailedNotice, err), err)
		return
	}
	if !conn.attach(stream) {
		stream.Cancel()
		return
	}
	defer conn.closeStream()
	log.Info("session connect ok")
	s.transition(conn, schema.StatusConnected)

	dec := sse.NewDecoder()
	for {
		chunk, err := stream.Next(conn.ctx)
		if err != nil {
			discarded := dec.Close()
			switch {
			case conn.isStopped() || conn.ctx.Err() != nil:
				log.Debug("session stream cancelled")
				s.finish(conn, schema.StatusDisconnected, "", nil)
			case errors.Is(err, io.EOF):
				log.Info("session stream ended", "discarded_bytes", discarded)
				s.finish(conn, schema.StatusEnded, schema.StreamEndedNotice, nil)
			default:
				log.Warn("session stream failed", "err", err, "discarded_bytes", discarded)
				s.finish(conn, schema.StatusErrored, fmt.Sprintf(schema.StreamErrorNotice, err), err)
			}
			return
		}
		if lines := s.renderer.FormatFrames(dec.Feed(chunk)); len(lines) > 0 {
			s.appendLines(conn, lines)
		}
	}
}

// appendLines appends on behalf of conn, dropping lines from a connection
// that is no longer current.
func (s *Session) appendLines(conn *connection, lines []string) {
	s.mu.Lock()
	if s.current != conn {
		s.mu.Unlock()
		return
	}
	s.buffer.Append(lines...)
	s.mu.Unlock()
	s.sink.OnLines(schema.LinesEvent{ServerID: conn.id, Lines: lines})
}

func (s *Session) transition(conn *connection, to schema.Status) {
	s.mu.Lock()
	if s.current != conn {
		s.mu.Unlock()
		return
	}
	event, changed := s.setStatusLocked(to)
	s.mu.Unlock()
	if changed {
		s.sink.OnStatus(event)
	}
}

// finish ends conn with a terminal status and an optional descriptive line.
func (s *Session) finish(conn *connection, to schema.Status, line string, cause error) {
	s.mu.Lock()
	if s.current != conn {
		s.mu.Unlock()
		return
	}
	s.current = nil
	if line != "" {
		s.buffer.Append(line)
	}
	event, changed := s.setStatusLocked(to)
	s.mu.Unlock()
	conn.cancel()

	if line != "" {
		s.sink.OnLines(schema.LinesEvent{ServerID: conn.id, Lines: []string{line}})
	}
	if cause != nil {
		s.sink.OnNotice(schema.NoticeEvent{ServerID: conn.id, Level: schema.NoticeError, Message: cause.Error()})
	}
	if changed {
		s.sink.OnStatus(event)
	}
}

func (s *Session) setStatusLocked(to schema.Status) (schema.StatusEvent, bool) {
	event := schema.StatusEvent{ServerID: s.id, From: s.status, To: to, Attempt: s.attempt}
	if s.status == to {
		return event, false
	}
	s.status = to
	return event, true
}

func (c *connection) attach(stream LogStream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	c.stream = stream
	return true
}

func (c *connection) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// stop cancels the attempt and waits for its reader to exit.
func (c *connection) stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cancel()
	c.closeStream()
	<-c.done
}

func (c *connection) closeStream() {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return
	}
	c.release.Do(stream.Cancel)
}
