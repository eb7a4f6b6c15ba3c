package core

import (
	"context"

	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// LogStream is one open console stream.
type LogStream interface {
	// Next returns the next raw chunk, io.EOF at the end of the stream, or
	// an error once the stream is cancelled.
	Next(ctx context.Context) ([]byte, error)
	// Cancel aborts the stream. It must be idempotent.
	Cancel()
}

// Streamer opens console streams.
type Streamer interface {
	OpenStream(ctx context.Context, id schema.ServerID) (LogStream, error)
}

// StreamerFunc adapts a function to Streamer.
type StreamerFunc func(ctx context.Context, id schema.ServerID) (LogStream, error)

// OpenStream implements Streamer.
func (f StreamerFunc) OpenStream(ctx context.Context, id schema.ServerID) (LogStream, error) {
	return f(ctx, id)
}

// Executor runs console commands.
type Executor interface {
	Exec(ctx context.Context, id schema.ServerID, cmd string) (string, error)
}

// PanelAPI is the request/response side of the panel.
type PanelAPI interface {
	Executor
	Info(ctx context.Context, id schema.ServerID) (schema.ServerInfo, error)
	Events(ctx context.Context, id schema.ServerID, limit int) ([]schema.ServerEvent, error)
	LogsLast(ctx context.Context, id schema.ServerID, tail int) (string, error)
	Power(ctx context.Context, id schema.ServerID, action schema.PowerAction) (string, error)
}

// ConsoleDeps captures dependencies for a console.
type ConsoleDeps struct {
	Streamer  Streamer
	API       PanelAPI
	Renderer  Renderer
	EventSink EventSink
	Logger    pslog.Logger
}
