package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"pkt.systems/hostconsole/internal/format"
	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/schema"
)

// CommandChannel sends operator commands over the request/response API and
// splices echo and output into the display buffer. It is independent of the
// stream: it never pauses the reader and never changes session status.
type CommandChannel struct {
	exec   Executor
	buffer *Buffer
	sink   EventSink
	busy   atomic.Bool
}

// NewCommandChannel returns a command channel appending into buffer.
func NewCommandChannel(exec Executor, buffer *Buffer, sink EventSink) (*CommandChannel, error) {
	if exec == nil {
		return nil, errors.New("command channel requires an executor")
	}
	if buffer == nil {
		return nil, errors.New("command channel requires a buffer")
	}
	return &CommandChannel{exec: exec, buffer: buffer, sink: sinkOrNop(sink)}, nil
}

// Busy reports whether a command is in flight.
func (c *CommandChannel) Busy() bool {
	return c.busy.Load()
}

// Run executes text on server id. Whitespace-only text is rejected with
// schema.ErrEmptyCommand before any network call, and a second Run while
// one is in flight gets schema.ErrCommandBusy. The request is awaited
// first; on success the echo and the output lines are appended together,
// on failure the buffer is left untouched and a notice is published.
func (c *CommandChannel) Run(ctx context.Context, id schema.ServerID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", schema.ErrEmptyCommand
	}
	if id == "" {
		return "", schema.ErrInvalidServer
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", schema.ErrCommandBusy
	}
	defer c.busy.Store(false)

	log := logx.WithServer(ctx, id)
	log.Debug("command exec start", "cmd", text)
	output, err := c.exec.Exec(ctx, id, text)
	if err != nil {
		log.Warn("command exec failed", "err", err)
		c.sink.OnNotice(schema.NoticeEvent{ServerID: id, Level: schema.NoticeError, Message: "command failed: " + err.Error()})
		return "", err
	}
	lines := append([]string{format.MarkCommand(text)}, format.SplitOutput(output)...)
	c.buffer.Append(lines...)
	c.sink.OnLines(schema.LinesEvent{ServerID: id, Lines: lines})
	log.Info("command exec ok", "output_lines", len(lines)-1)
	return output, nil
}
