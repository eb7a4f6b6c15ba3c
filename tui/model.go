package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/command"
	"pkt.systems/hostconsole/internal/eventbus"
	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/schema"
)

const maxPanelLines = 12

// keyCommands maps shortcut keys to the slash commands they run.
var keyCommands = map[string]string{
	"ctrl+r": "/reconnect",
	"ctrl+x": "/disconnect",
	"ctrl+l": "/clear",
	"ctrl+s": "/export",
	"ctrl+a": "/autoscroll",
	"ctrl+t": "/tail",
	"ctrl+e": "/events",
	"ctrl+o": "/info",
	"f1":     "/help",
}

// Options configures the interactive console.
type Options struct {
	Theme schema.ThemeName
	// Bus carries the console's events; it must be the console's EventSink.
	Bus     *eventbus.Bus
	Handler command.HandlerConfig
	// NoConnect skips opening the stream on start.
	NoConnect bool
	// History recalls submitted inputs with up and down; nil starts empty.
	History *command.History
}

type busMsg struct {
	event eventbus.Event
}

type busClosedMsg struct{}

type handledMsg struct {
	input  string
	result command.Result
	err    error
}

type infoMsg struct {
	info   schema.ServerInfo
	banner string
	err    error
}

type connectMsg struct {
	err error
}

// Model is the bubbletea model of one console.
type Model struct {
	ctx         context.Context
	console     *core.Console
	handler     *command.Handler
	opts        Options
	events      <-chan eventbus.Event
	unsubscribe func()
	theme       theme

	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int

	status     schema.Status
	banner     string
	notice     schema.NoticeEvent
	panelTitle string
	panel      []string
	pending    int
	quitting   bool
	// view is the buffer view last rendered.
	view core.BufferView
}

// New constructs the model and subscribes it to the bus.
func New(ctx context.Context, console *core.Console, opts Options) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	in := textinput.New()
	in.Placeholder = "command, or /help"
	in.Prompt = "> "
	in.CharLimit = 0
	in.Focus()

	if opts.History == nil {
		opts.History = command.NewHistory(0, nil)
	}
	events, unsubscribe := opts.Bus.Subscribe("")
	m := &Model{
		ctx:         ctx,
		console:     console,
		handler:     command.NewHandler(console, opts.Handler),
		opts:        opts,
		events:      events,
		unsubscribe: unsubscribe,
		theme:       themeForName(opts.Theme),
		viewport:    viewport.New(80, 20),
		input:       in,
		width:       80,
		height:      24,
		status:      console.Status(),
	}
	m.input.PromptStyle = m.theme.Prompt
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.waitEvent(), m.fetchInfo()}
	if !m.opts.NoConnect {
		cmds = append(cmds, m.connect())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case busMsg:
		m.handleEvent(msg.event)
		return m, m.waitEvent()
	case busClosedMsg:
		m.events = nil
		return m, nil
	case connectMsg:
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil
	case infoMsg:
		// Info fetched before a switch belongs to the previous server.
		if msg.err == nil && msg.info.ID == m.console.ID() {
			m.banner = msg.banner
			m.layout()
		}
		return m, nil
	case handledMsg:
		return m.handleResult(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "ctrl+d":
		return m, m.quit()
	case "esc":
		if m.panel != nil {
			m.closePanel()
			return m, nil
		}
		return m, m.quit()
	case "enter":
		text := m.input.Value()
		m.input.Reset()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.opts.History.Append(text)
		return m, m.run(text)
	case "up":
		if prev, ok := m.opts.History.Prev(m.input.Value()); ok {
			m.input.SetValue(prev)
			m.input.CursorEnd()
		}
		return m, nil
	case "down":
		if next, ok := m.opts.History.Next(); ok {
			m.input.SetValue(next)
			m.input.CursorEnd()
		}
		return m, nil
	case "pgup", "pgdown", "shift+up", "shift+down", "home", "end":
		m.scroll(key)
		return m, nil
	}
	if slash, ok := keyCommands[key]; ok {
		return m, m.run(slash)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(ev eventbus.Event) {
	if ev.ServerID() != "" && ev.ServerID() != m.console.ID() {
		return
	}
	switch ev.Type {
	case eventbus.EventLines, eventbus.EventClear:
		m.refresh()
	case eventbus.EventStatus:
		m.status = ev.Status.To
	case eventbus.EventNotice:
		m.notice = ev.Notice
	}
}

func (m *Model) handleResult(msg handledMsg) (tea.Model, tea.Cmd) {
	m.pending--
	if msg.err != nil {
		m.setError(msg.err)
		return m, nil
	}
	result := msg.result
	if result.Quit {
		return m, m.quit()
	}
	if result.Switched {
		m.banner = ""
		m.status = m.console.Status()
		m.refresh()
		m.layout()
		return m, m.fetchInfo()
	}
	if result.Info != nil {
		m.banner = result.Banner
	}
	if result.Panel != nil {
		m.panelTitle = result.PanelTitle
		m.panel = result.Panel
	}
	if result.Export != "" {
		m.notice = schema.NoticeEvent{Level: schema.NoticeInfo, Message: "exported to " + result.Export}
	}
	m.refresh()
	m.layout()
	return m, nil
}

func (m *Model) run(input string) tea.Cmd {
	m.pending++
	handler := m.handler
	ctx := m.ctx
	return func() tea.Msg {
		result, err := handler.Handle(ctx, input)
		return handledMsg{input: input, result: result, err: err}
	}
}

func (m *Model) connect() tea.Cmd {
	console := m.console
	ctx := m.ctx
	return func() tea.Msg {
		return connectMsg{err: console.Connect(ctx)}
	}
}

func (m *Model) fetchInfo() tea.Cmd {
	console := m.console
	ctx := m.ctx
	return func() tea.Msg {
		info, banner, err := console.Info(ctx)
		return infoMsg{info: info, banner: banner, err: err}
	}
}

func (m *Model) waitEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return busClosedMsg{}
		}
		return busMsg{event: ev}
	}
}

func (m *Model) quit() tea.Cmd {
	if !m.quitting {
		m.quitting = true
		logx.WithServer(m.ctx, m.console.ID()).Info("tui exit")
		m.console.Cancel()
		m.unsubscribe()
	}
	return tea.Quit
}

func (m *Model) setError(err error) {
	m.notice = schema.NoticeEvent{ServerID: m.console.ID(), Level: schema.NoticeError, Message: err.Error()}
}

func (m *Model) closePanel() {
	m.panel = nil
	m.panelTitle = ""
	m.layout()
}

// scroll moves the buffer's view. The buffer owns the scroll offset so that
// auto-scroll and anchoring apply to what is rendered.
func (m *Model) scroll(key string) {
	buffer := m.console.Buffer()
	page := m.viewport.Height
	switch key {
	case "pgup":
		buffer.Scroll(page, page)
	case "pgdown":
		buffer.Scroll(-page, page)
	case "shift+up":
		buffer.Scroll(1, page)
	case "shift+down":
		buffer.Scroll(-1, page)
	case "home":
		buffer.Scroll(buffer.Len(), page)
	case "end":
		buffer.ResetScroll()
	}
	m.refresh()
}

// refresh renders the buffer's current view into the viewport.
func (m *Model) refresh() {
	view := m.console.Buffer().Snapshot(m.viewport.Height)
	styled := make([]string, len(view.Lines))
	for i, line := range view.Lines {
		styled[i] = m.styleLine(line)
	}
	m.view = view
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoTop()
}

func (m *Model) styleLine(line string) string {
	switch {
	case strings.HasPrefix(line, schema.CommandEchoPrefix):
		return m.theme.Echo.Render(line)
	case line == schema.KeepAliveNotice, line == schema.StreamEndedNotice, line == schema.SnapshotEndMarker:
		return m.theme.Meta.Render(line)
	case strings.HasPrefix(line, "[connect failed]"), strings.HasPrefix(line, "[stream error]"):
		return m.theme.Error.Render(line)
	case strings.HasPrefix(line, "--- last "):
		return m.theme.Meta.Render(line)
	}
	return line
}

func (m *Model) layout() {
	m.input.Width = max(m.width-4, 10)
	height := m.height - 3
	if m.banner != "" {
		height--
	}
	if m.panel != nil {
		height -= min(len(m.panel), maxPanelLines) + 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(height, 1)
	m.refresh()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	parts := []string{m.statusBar()}
	if m.banner != "" {
		parts = append(parts, m.theme.Banner.Render("! "+m.banner))
	}
	parts = append(parts, m.viewport.View())
	if m.panel != nil {
		parts = append(parts, m.panelView())
	}
	parts = append(parts, m.noticeLine(), m.input.View())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) statusBar() string {
	status := m.theme.status(m.status).Render(string(m.status))
	scroll := "follow"
	if !m.console.AutoScroll() {
		scroll = "paused"
	}
	info := fmt.Sprintf(" %s  %d lines  %s ", m.console.ID(), m.view.TotalLines, scroll)
	if !m.view.AtBottom {
		info += fmt.Sprintf(" +%d ", m.view.ScrollOffset)
	}
	if m.pending > 0 || m.console.CommandBusy() {
		info += " busy "
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, status, m.theme.Bar.Render(info))
	if pad := m.width - lipgloss.Width(bar); pad > 0 {
		bar += m.theme.Bar.Render(strings.Repeat(" ", pad))
	}
	return bar
}

func (m *Model) panelView() string {
	lines := m.panel
	if len(lines) > maxPanelLines {
		lines = lines[len(lines)-maxPanelLines:]
	}
	body := m.theme.Title.Render(m.panelTitle) + m.theme.Meta.Render("  (esc to close)")
	if len(lines) > 0 {
		body += "\n" + strings.Join(lines, "\n")
	}
	return m.theme.Panel.Width(max(m.width-2, 10)).Render(body)
}

func (m *Model) noticeLine() string {
	if m.notice.Message == "" {
		return m.theme.Meta.Render("F1 help  ctrl+r reconnect  ctrl+t tail  ctrl+e events  ctrl+s export  esc quit")
	}
	if m.notice.Level == schema.NoticeError {
		return m.theme.Error.Render(m.notice.Message)
	}
	return m.theme.Meta.Render(m.notice.Message)
}
