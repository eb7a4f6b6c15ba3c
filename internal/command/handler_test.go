package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"pkt.systems/hostconsole/schema"
)

type fakeConsole struct {
	mu         sync.Mutex
	calls      []string
	execErr    error
	autoScroll bool
	info       schema.ServerInfo
	banner     string
	events     []string
}

func (f *fakeConsole) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeConsole) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeConsole) ID() schema.ServerID { return "srv-1" }

func (f *fakeConsole) Reconnect(context.Context) error {
	f.record("reconnect")
	return nil
}

func (f *fakeConsole) Cancel() { f.record("cancel") }

func (f *fakeConsole) SwitchServer(_ context.Context, id schema.ServerID) error {
	f.record("switch " + string(id))
	return nil
}

func (f *fakeConsole) Exec(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", schema.ErrEmptyCommand
	}
	f.record("exec " + text)
	return "", f.execErr
}

func (f *fakeConsole) Clear() { f.record("clear") }

func (f *fakeConsole) SetAutoScroll(on bool) {
	f.mu.Lock()
	f.autoScroll = on
	f.mu.Unlock()
}

func (f *fakeConsole) AutoScroll() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autoScroll
}

func (f *fakeConsole) Export() (string, error) {
	f.record("export")
	return "/tmp/console-srv-1.log", nil
}

func (f *fakeConsole) Info(context.Context) (schema.ServerInfo, string, error) {
	f.record("info")
	return f.info, f.banner, nil
}

func (f *fakeConsole) Events(context.Context) ([]string, error) {
	f.record("events")
	return f.events, nil
}

func (f *fakeConsole) Tail(context.Context) error {
	f.record("tail")
	return nil
}

func (f *fakeConsole) Power(_ context.Context, action schema.PowerAction) error {
	f.record("power " + string(action))
	return nil
}

func TestParse(t *testing.T) {
	cases := []struct {
		in        string
		ok        bool
		name      string
		args      int
		remainder string
	}{
		{"say hi", false, "", 0, ""},
		{"//kick bob", false, "", 0, ""},
		{"/", true, "", 0, ""},
		{"  /Power  restart", true, "power", 1, "restart"},
		{"/switch srv-2 extra", true, "switch", 2, "srv-2 extra"},
	}
	for _, tc := range cases {
		cmd, ok := Parse(tc.in)
		if ok != tc.ok || cmd.Name != tc.name || len(cmd.Args) != tc.args || cmd.Remainder != tc.remainder {
			t.Fatalf("Parse(%q) = %+v, %v", tc.in, cmd, ok)
		}
	}
	if got := Unescape("//kick bob"); got != "/kick bob" {
		t.Fatalf("Unescape = %q", got)
	}
}

func TestHandleRoutesServerCommands(t *testing.T) {
	console := &fakeConsole{}
	handler := NewHandler(console, HandlerConfig{})

	result, err := handler.Handle(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Slash {
		t.Fatalf("expected server command")
	}
	if _, err := handler.Handle(context.Background(), "//op alice"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := handler.Handle(context.Background(), "   "); !errors.Is(err, schema.ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
	calls := console.Calls()
	if len(calls) != 2 || calls[0] != "exec say hello" || calls[1] != "exec /op alice" {
		t.Fatalf("calls = %q", calls)
	}
}

func TestHandleSlashCommands(t *testing.T) {
	cases := []struct {
		input string
		call  string
	}{
		{"/reconnect", "reconnect"},
		{"/disconnect", "cancel"},
		{"/switch srv-2", "switch srv-2"},
		{"/clear", "clear"},
		{"/export", "export"},
		{"/tail", "tail"},
		{"/events", "events"},
		{"/info", "info"},
		{"/power KILL", "power kill"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			console := &fakeConsole{}
			result, err := NewHandler(console, HandlerConfig{}).Handle(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if !result.Slash {
				t.Fatalf("expected slash command")
			}
			calls := console.Calls()
			if len(calls) != 1 || calls[0] != tc.call {
				t.Fatalf("calls = %q, want %q", calls, tc.call)
			}
		})
	}
}

func TestHandleSlashErrors(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"/", "invalid command"},
		{"/frobnicate", "unknown command: /frobnicate"},
		{"/power", "usage: /power <start|stop|restart|kill|suspend|unsuspend>"},
		{"/power explode", schema.ErrUnknownPowerAction.Error()},
		{"/switch", "usage: /switch <server-id>"},
		{"/autoscroll maybe", "usage: /autoscroll [on|off]"},
	}
	for _, tc := range cases {
		console := &fakeConsole{}
		_, err := NewHandler(console, HandlerConfig{}).Handle(context.Background(), tc.input)
		if err == nil || err.Error() != tc.want {
			t.Fatalf("Handle(%q) error = %v, want %q", tc.input, err, tc.want)
		}
		if calls := console.Calls(); len(calls) != 0 {
			t.Fatalf("Handle(%q) made calls %q", tc.input, calls)
		}
	}
}

func TestHandleAutoScrollToggle(t *testing.T) {
	console := &fakeConsole{autoScroll: true}
	handler := NewHandler(console, HandlerConfig{})
	ctx := context.Background()
	if _, err := handler.Handle(ctx, "/autoscroll"); err != nil || console.AutoScroll() {
		t.Fatalf("toggle off failed: %v", err)
	}
	if _, err := handler.Handle(ctx, "/autoscroll on"); err != nil || !console.AutoScroll() {
		t.Fatalf("explicit on failed: %v", err)
	}
}

func TestHandleInfoAndPanels(t *testing.T) {
	console := &fakeConsole{
		info:   schema.ServerInfo{ID: "srv-1", Name: "Survival", Status: "offline", StateHint: schema.HintRuntimeExited},
		banner: "The server process exited.",
		events: []string{"e1", "e2"},
	}
	handler := NewHandler(console, HandlerConfig{})
	ctx := context.Background()

	result, err := handler.Handle(ctx, "/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if result.Info == nil || result.Info.Status != "offline" || result.Banner == "" {
		t.Fatalf("unexpected info result: %+v", result)
	}
	if last := result.Panel[len(result.Panel)-1]; last != console.banner {
		t.Fatalf("banner line = %q", last)
	}

	result, err = handler.Handle(ctx, "/events")
	if err != nil || result.PanelTitle != "Events" || len(result.Panel) != 2 {
		t.Fatalf("events result = %+v (%v)", result, err)
	}

	result, err = handler.Handle(ctx, "/help")
	if err != nil || len(result.Panel) != len(HelpLines()) {
		t.Fatalf("help result = %+v (%v)", result, err)
	}

	result, err = handler.Handle(ctx, "/quit")
	if err != nil || !result.Quit {
		t.Fatalf("quit result = %+v (%v)", result, err)
	}
}
