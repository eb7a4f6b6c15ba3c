package core

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/hostconsole/internal/format"
	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// Console bundles the session, command channel, display buffer, and the
// panel API calls surrounding one server console.
type Console struct {
	cfg      schema.ConsoleConfig
	session  *Session
	commands *CommandChannel
	buffer   *Buffer
	api      PanelAPI
	renderer Renderer
	sink     EventSink
	logger   pslog.Logger
}

// NewConsole constructs a disconnected console for id.
func NewConsole(id schema.ServerID, cfg schema.ConsoleConfig, deps ConsoleDeps) (*Console, error) {
	cfg, err := schema.NormalizeConsoleConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.API == nil {
		return nil, errors.New("console requires a panel api")
	}
	deps.Renderer = rendererOrDefault(deps.Renderer)
	deps.EventSink = sinkOrNop(deps.EventSink)
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	buffer := NewBuffer(cfg.BufferMaxLines)
	buffer.SetAutoScroll(cfg.AutoScroll)
	session, err := NewSession(id, buffer, deps)
	if err != nil {
		return nil, err
	}
	commands, err := NewCommandChannel(deps.API, buffer, deps.EventSink)
	if err != nil {
		return nil, err
	}
	return &Console{
		cfg:      cfg,
		session:  session,
		commands: commands,
		buffer:   buffer,
		api:      deps.API,
		renderer: deps.Renderer,
		sink:     deps.EventSink,
		logger:   deps.Logger,
	}, nil
}

// ID returns the server the console is attached to.
func (c *Console) ID() schema.ServerID { return c.session.ID() }

// Status returns the session status.
func (c *Console) Status() schema.Status { return c.session.Status() }

// Buffer returns the display buffer.
func (c *Console) Buffer() *Buffer { return c.buffer }

// Config returns the normalized console config.
func (c *Console) Config() schema.ConsoleConfig { return c.cfg }

// CommandBusy reports whether a command is in flight.
func (c *Console) CommandBusy() bool { return c.commands.Busy() }

// Connect starts a connection attempt.
func (c *Console) Connect(ctx context.Context) error { return c.session.Connect(ctx) }

// Reconnect restarts the connection.
func (c *Console) Reconnect(ctx context.Context) error { return c.session.Reconnect(ctx) }

// Cancel disconnects.
func (c *Console) Cancel() { c.session.Cancel() }

// SwitchServer moves the console to another server. The buffer is kept.
func (c *Console) SwitchServer(ctx context.Context, id schema.ServerID) error {
	return c.session.SwitchServer(ctx, id)
}

// Exec runs a command on the current server.
func (c *Console) Exec(ctx context.Context, text string) (string, error) {
	return c.commands.Run(ctx, c.ID(), text)
}

// Clear empties the buffer without touching the connection.
func (c *Console) Clear() {
	c.buffer.Clear()
	c.sink.OnClear(schema.ClearEvent{ServerID: c.ID()})
}

// SetAutoScroll toggles auto-scroll.
func (c *Console) SetAutoScroll(on bool) { c.buffer.SetAutoScroll(on) }

// AutoScroll reports whether auto-scroll is on.
func (c *Console) AutoScroll() bool { return c.buffer.AutoScroll() }

// Export writes the buffer to the configured export directory.
func (c *Console) Export() (string, error) {
	id := c.ID()
	path, err := c.buffer.ExportToFile(c.cfg.ExportDir, id, c.cfg.ExportCompression)
	if err != nil {
		c.logger.Warn("console export failed", "server", id, "err", err)
		c.notify(id, schema.NoticeError, "export failed: "+err.Error())
		return "", err
	}
	c.logger.Info("console export ok", "server", id, "path", path)
	c.notify(id, schema.NoticeInfo, "exported to "+path)
	return path, nil
}

// Info fetches metadata and returns it with the advisory banner for its hint.
func (c *Console) Info(ctx context.Context) (schema.ServerInfo, string, error) {
	id := c.ID()
	info, err := c.api.Info(ctx, id)
	if err != nil {
		logx.WithServer(ctx, id).Warn("console info failed", "err", err)
		return schema.ServerInfo{}, "", err
	}
	return info, HintBanner(info.StateHint), nil
}

// Events returns the configured number of recent events as display lines.
// Events are shown in their own panel and not appended to the buffer.
func (c *Console) Events(ctx context.Context) ([]string, error) {
	id := c.ID()
	events, err := c.api.Events(ctx, id, c.cfg.EventsLimit)
	if err != nil {
		logx.WithServer(ctx, id).Warn("console events failed", "err", err)
		c.notify(id, schema.NoticeError, "events failed: "+err.Error())
		return nil, err
	}
	return c.renderer.FormatEvents(events), nil
}

// Tail appends a snapshot of the last configured lines between markers.
func (c *Console) Tail(ctx context.Context) error {
	id := c.ID()
	blob, err := c.api.LogsLast(ctx, id, c.cfg.TailLines)
	if err != nil {
		logx.WithServer(ctx, id).Warn("console tail failed", "err", err)
		c.notify(id, schema.NoticeError, "snapshot failed: "+err.Error())
		return err
	}
	lines := SnapshotLines(c.cfg.TailLines, blob)
	c.buffer.Append(lines...)
	c.sink.OnLines(schema.LinesEvent{ServerID: id, Lines: lines})
	return nil
}

// Power requests a lifecycle action and records the outcome as a notice line.
func (c *Console) Power(ctx context.Context, action schema.PowerAction) error {
	id := c.ID()
	action, err := schema.ParsePowerAction(string(action))
	if err != nil {
		return err
	}
	msg, err := c.api.Power(ctx, id, action)
	if err != nil {
		logx.WithServer(ctx, id).Warn("console power failed", "action", action, "err", err)
		c.notify(id, schema.NoticeError, fmt.Sprintf("power %s failed: %v", action, err))
		return err
	}
	line := fmt.Sprintf(schema.PowerNotice, msg)
	c.buffer.Append(line)
	c.sink.OnLines(schema.LinesEvent{ServerID: id, Lines: []string{line}})
	return nil
}

// SnapshotLines frames a tail snapshot blob with start and end markers.
func SnapshotLines(tail int, blob string) []string {
	lines := []string{fmt.Sprintf(schema.SnapshotStartMarker, tail)}
	lines = append(lines, format.SplitOutput(blob)...)
	return append(lines, schema.SnapshotEndMarker)
}

func (c *Console) notify(id schema.ServerID, level schema.NoticeLevel, msg string) {
	c.sink.OnNotice(schema.NoticeEvent{ServerID: id, Level: level, Message: msg})
}

func rendererOrDefault(renderer Renderer) Renderer {
	if renderer == nil {
		return format.NewPlainRenderer()
	}
	return renderer
}
