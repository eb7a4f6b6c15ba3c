package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/internal/version"
	"pkt.systems/hostconsole/schema"
)

// Console is the set of console operations reachable from the input line.
type Console interface {
	ID() schema.ServerID
	Reconnect(ctx context.Context) error
	Cancel()
	SwitchServer(ctx context.Context, id schema.ServerID) error
	Exec(ctx context.Context, text string) (string, error)
	Clear()
	SetAutoScroll(on bool)
	AutoScroll() bool
	Export() (string, error)
	Info(ctx context.Context) (schema.ServerInfo, string, error)
	Events(ctx context.Context) ([]string, error)
	Tail(ctx context.Context) error
	Power(ctx context.Context, action schema.PowerAction) error
}

// HandlerConfig configures input handling.
type HandlerConfig struct {
	DisableAuditLogging bool
}

// Result describes what a handled line produced besides buffer output.
type Result struct {
	// Slash is true when the line was a slash command rather than a server command.
	Slash bool
	// Panel carries lines for a side panel (help, info, events).
	Panel      []string
	PanelTitle string
	// Banner is the state hint advisory from /info.
	Banner string
	// Info is set by /info.
	Info *schema.ServerInfo
	// Export is the path written by /export.
	Export string
	// Switched is set when /switch moved the console to another server.
	Switched bool
	Quit     bool
}

// Handler routes input lines to console operations.
type Handler struct {
	console Console
	cfg     HandlerConfig
}

// NewHandler constructs an input handler over console.
func NewHandler(console Console, cfg HandlerConfig) *Handler {
	return &Handler{console: console, cfg: cfg}
}

// Handle runs one input line. Lines starting with "/" are console commands;
// everything else is sent to the server's command channel.
func (h *Handler) Handle(ctx context.Context, input string) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("missing context")
	}
	id := h.console.ID()
	log := logx.WithServer(ctx, id).With("input_len", len(input))
	cmd, ok := Parse(input)
	if !ok {
		text := Unescape(input)
		if !h.cfg.DisableAuditLogging {
			log.Debug("audit command", "command_type", "server", "command", strings.TrimSpace(text))
		}
		_, err := h.console.Exec(ctx, text)
		return Result{}, err
	}
	if !h.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "slash", "command", strings.TrimSpace(input))
	}
	log = log.With("command", cmd.Name, "args", len(cmd.Args))
	log.Info("command slash request")
	result := Result{Slash: true}
	var err error
	switch cmd.Name {
	case "":
		log.Warn("command slash rejected", "reason", "empty")
		return result, fmt.Errorf("invalid command")
	case "help", "?":
		result.PanelTitle = "Help"
		result.Panel = HelpLines()
	case "reconnect", "connect":
		err = h.console.Reconnect(ctx)
	case "disconnect":
		h.console.Cancel()
	case "switch":
		err = h.handleSwitch(ctx, cmd)
		result.Switched = err == nil
	case "clear":
		h.console.Clear()
	case "autoscroll":
		err = h.handleAutoScroll(cmd)
	case "export":
		result.Export, err = h.console.Export()
	case "tail":
		err = h.console.Tail(ctx)
	case "events":
		result.PanelTitle = "Events"
		result.Panel, err = h.console.Events(ctx)
	case "info":
		err = h.handleInfo(ctx, &result)
	case "power":
		err = h.handlePower(ctx, cmd)
	case "version":
		result.PanelTitle = "About"
		result.Panel = []string{fmt.Sprintf("%s %s", version.Module(), version.Current())}
	case "quit", "exit", "q":
		result.Quit = true
	default:
		log.Warn("command slash rejected", "reason", "unknown")
		return result, fmt.Errorf("unknown command: /%s", cmd.Name)
	}
	if err != nil {
		log.Warn("command slash failed", "err", err)
		return result, err
	}
	log.Debug("command slash completed")
	return result, nil
}

func (h *Handler) handleSwitch(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /switch <server-id>")
	}
	id, err := schema.NormalizeServerID(cmd.Args[0])
	if err != nil {
		return err
	}
	return h.console.SwitchServer(ctx, id)
}

func (h *Handler) handleAutoScroll(cmd Command) error {
	switch {
	case len(cmd.Args) == 0:
		h.console.SetAutoScroll(!h.console.AutoScroll())
	case len(cmd.Args) == 1 && strings.EqualFold(cmd.Args[0], "on"):
		h.console.SetAutoScroll(true)
	case len(cmd.Args) == 1 && strings.EqualFold(cmd.Args[0], "off"):
		h.console.SetAutoScroll(false)
	default:
		return fmt.Errorf("usage: /autoscroll [on|off]")
	}
	return nil
}

func (h *Handler) handleInfo(ctx context.Context, result *Result) error {
	info, banner, err := h.console.Info(ctx)
	if err != nil {
		return err
	}
	result.Info = &info
	result.Banner = banner
	result.PanelTitle = "Server"
	result.Panel = InfoLines(info, banner)
	return nil
}

func (h *Handler) handlePower(ctx context.Context, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("usage: /power <%s>", strings.Join(powerActionNames(), "|"))
	}
	action, err := schema.ParsePowerAction(cmd.Args[0])
	if err != nil {
		return err
	}
	return h.console.Power(ctx, action)
}

// InfoLines renders server metadata for display.
func InfoLines(info schema.ServerInfo, banner string) []string {
	lines := []string{
		fmt.Sprintf("id: %s", info.ID),
		fmt.Sprintf("name: %s", info.Name),
		fmt.Sprintf("status: %s", info.Status),
	}
	if info.StateHint != "" {
		lines = append(lines, fmt.Sprintf("state: %s", info.StateHint))
	}
	if banner != "" {
		lines = append(lines, banner)
	}
	return lines
}

// HelpLines lists the console commands.
func HelpLines() []string {
	return []string{
		"<text>                 send a command to the server",
		"//<text>               send a command starting with /",
		"/reconnect             reopen the log stream",
		"/disconnect            close the log stream",
		"/switch <server-id>    follow another server",
		"/clear                 clear the display",
		"/autoscroll [on|off]   toggle following new output",
		"/export                write the display to a file",
		"/tail                  append the last log lines",
		"/events                show recent server events",
		"/info                  show server status",
		"/power <" + strings.Join(powerActionNames(), "|") + ">",
		"/version               show version",
		"/quit                  leave the console",
	}
}

func powerActionNames() []string {
	actions := schema.PowerActions()
	names := make([]string, 0, len(actions))
	for _, action := range actions {
		names = append(names, string(action))
	}
	return names
}
