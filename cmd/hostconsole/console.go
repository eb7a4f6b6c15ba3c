package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/hostconsole"
	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/hostconsole/internal/command"
	"pkt.systems/hostconsole/internal/persist"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/hostconsole/tui"
	"pkt.systems/pslog"
)

func newConsoleCmd(cfgPath *string) *cobra.Command {
	var plain bool
	var logFile string
	cmd := &cobra.Command{
		Use:   "console <server-id>",
		Short: "Attach to a server's live console",
		Long: "Attach to a server's live console. An interactive terminal gets the full-screen console; " +
			"otherwise output is streamed line by line and stdin lines are sent as commands.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			id, err := parseServerID(args[0])
			if err != nil {
				return err
			}
			if !plain && isTerminal(cmd.OutOrStdout()) {
				return runInteractive(ctx, cfg, id, logFile)
			}
			return runPlain(ctx, cmd, cfg, id)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "stream plain lines even on a terminal")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the full-screen console runs")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runInteractive(ctx context.Context, cfg appconfig.Config, id schema.ServerID, logFile string) error {
	// Log lines on stderr would tear the alternate screen.
	logOut := io.Discard
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
			return err
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		logOut = f
	}
	logger := pslog.NewWithOptions(logOut, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel})
	ctx = pslog.ContextWithLogger(ctx, logger)

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	console, err := client.OpenConsole(id)
	if err != nil {
		return err
	}
	state := openState(ctx, cfg, id)
	if state.AutoScroll != nil {
		console.SetAutoScroll(*state.AutoScroll)
	}
	history := command.NewHistory(0, state.History)
	theme, _ := schema.NormalizeThemeName(cfg.Console.Theme)
	runErr := tui.Run(ctx, console, tui.Options{
		Theme:   theme,
		Bus:     client.Bus(),
		Handler: command.HandlerConfig{DisableAuditLogging: cfg.Logging.DisableAuditTrails},
		History: history,
	})
	saveState(ctx, cfg, console.ID(), history, console.AutoScroll())
	return runErr
}

// openState loads the saved console state for id. Failures only cost the
// recall history, so they are logged and an empty state is returned.
func openState(ctx context.Context, cfg appconfig.Config, id schema.ServerID) persist.ConsoleState {
	if cfg.Console.StateDir == "" {
		return persist.ConsoleState{}
	}
	store, err := persist.NewStoreWithLogger(cfg.Console.StateDir, pslog.Ctx(ctx))
	if err != nil {
		return persist.ConsoleState{}
	}
	state, _, err := store.Load(id)
	if err != nil {
		return persist.ConsoleState{}
	}
	return state
}

func saveState(ctx context.Context, cfg appconfig.Config, id schema.ServerID, history *command.History, autoScroll bool) {
	if cfg.Console.StateDir == "" {
		return
	}
	store, err := persist.NewStoreWithLogger(cfg.Console.StateDir, pslog.Ctx(ctx))
	if err != nil {
		return
	}
	state := persist.ConsoleState{History: history.Entries()}
	if autoScroll != cfg.Console.AutoScroll {
		state.AutoScroll = &autoScroll
	}
	_ = store.Save(id, state)
}

func runPlain(ctx context.Context, cmd *cobra.Command, cfg appconfig.Config, id schema.ServerID) error {
	sink := newPlainSink(cmd.OutOrStdout(), cmd.ErrOrStderr())
	client, err := newClient(ctx, cfg, hostconsole.WithEventSink(sink))
	if err != nil {
		return err
	}
	console, err := client.OpenConsole(id)
	if err != nil {
		return err
	}
	defer console.Cancel()
	handler := command.NewHandler(console, command.HandlerConfig{DisableAuditLogging: cfg.Logging.DisableAuditTrails})

	if err := console.Connect(ctx); err != nil {
		return err
	}

	return pumpPlain(ctx, console, handler, sink, cmd.InOrStdin())
}

// pumpPlain sends stdin lines to the handler until the stream ends, the
// user quits, or stdin closes while no stream is open.
func pumpPlain(ctx context.Context, console *core.Console, handler *command.Handler, sink *plainSink, in io.Reader) error {
	inputs := make(chan string)
	go readLines(ctx, in, inputs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case status := <-sink.terminal:
			return plainExit(console.ID(), status)
		case line, ok := <-inputs:
			if !ok {
				inputs = nil
				switch status := console.Status(); status {
				case schema.StatusConnected, schema.StatusConnecting:
					continue
				default:
					return plainExit(console.ID(), status)
				}
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			result, err := handler.Handle(ctx, line)
			if err != nil {
				sink.printErr(err.Error())
				continue
			}
			if result.Quit {
				return nil
			}
			sink.printPanel(result)
		}
	}
}

func plainExit(id schema.ServerID, status schema.Status) error {
	if status == schema.StatusErrored {
		return fmt.Errorf("console %s: stream failed", id)
	}
	return nil
}

func readLines(ctx context.Context, in io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case out <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// plainSink writes console events as plain lines. Buffer lines go to out;
// status changes and notices go to errOut.
type plainSink struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	terminal chan schema.Status
}

func newPlainSink(out, errOut io.Writer) *plainSink {
	return &plainSink{out: out, errOut: errOut, terminal: make(chan schema.Status, 1)}
}

func (s *plainSink) OnLines(event schema.LinesEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range event.Lines {
		_, _ = fmt.Fprintln(s.out, line)
	}
}

func (s *plainSink) OnStatus(event schema.StatusEvent) {
	s.mu.Lock()
	_, _ = fmt.Fprintf(s.errOut, "[%s] %s\n", event.ServerID, event.To)
	s.mu.Unlock()
	if event.To.Terminal() {
		select {
		case s.terminal <- event.To:
		default:
		}
	}
}

func (s *plainSink) OnNotice(event schema.NoticeEvent) {
	if event.Level == schema.NoticeError {
		s.printErr(event.Message)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.errOut, event.Message)
}

func (s *plainSink) OnClear(schema.ClearEvent) {}

func (s *plainSink) printErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.errOut, "error: %s\n", msg)
}

func (s *plainSink) printPanel(result command.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Export != "" {
		_, _ = fmt.Fprintf(s.errOut, "exported to %s\n", result.Export)
	}
	if len(result.Panel) == 0 {
		return
	}
	if result.PanelTitle != "" {
		_, _ = fmt.Fprintf(s.out, "== %s ==\n", result.PanelTitle)
	}
	for _, line := range result.Panel {
		_, _ = fmt.Fprintln(s.out, line)
	}
}
