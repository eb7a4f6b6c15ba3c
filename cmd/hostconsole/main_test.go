package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/hostconsole"
	"pkt.systems/hostconsole/httpapi"
	"pkt.systems/hostconsole/internal/appconfig"
	"pkt.systems/hostconsole/internal/command"
	"pkt.systems/hostconsole/schema"
)

func TestRootHasSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"console", "exec", "info", "events", "tail", "power", "login", "logout", "init-config", "mock-panel", "version"} {
		if !names[want] {
			t.Fatalf("expected root command to include %s", want)
		}
	}
}

func TestParseServerID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    schema.ServerID
		wantErr bool
	}{
		{name: "plain", raw: "srv-1", want: "srv-1"},
		{name: "trimmed", raw: "  srv-2 ", want: "srv-2"},
		{name: "empty", raw: "", wantErr: true},
		{name: "slash", raw: "a/b", wantErr: true},
	}
	for _, tc := range tests {
		got, err := parseServerID(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: parseServerID: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: parseServerID(%q) = %q, want %q", tc.name, tc.raw, got, tc.want)
		}
	}
}

func TestMockPanelConfigFromAppConfig(t *testing.T) {
	got := mockPanelConfig(appconfig.MockConfig{
		Addr:             ":9000",
		Token:            "secret",
		KeepaliveSeconds: 15,
		BasePath:         "/api",
		DemoSeconds:      2,
	})
	if got.HTTP.Addr != ":9000" || got.HTTP.Token != "secret" || got.HTTP.BasePath != "/api" {
		t.Fatalf("unexpected http config: %+v", got.HTTP)
	}
	if got.HTTP.KeepaliveInterval != 15*time.Second {
		t.Fatalf("keepalive = %v, want 15s", got.HTTP.KeepaliveInterval)
	}
	if got.DemoInterval != 2*time.Second {
		t.Fatalf("demo interval = %v, want 2s", got.DemoInterval)
	}
}

func TestInitConfigWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, _, err := runRoot(t, "-c", path, "init-config"); err != nil {
		t.Fatalf("init-config: %v", err)
	}
	cfg, err := appconfig.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Console.Theme != string(schema.DefaultTheme) {
		t.Fatalf("theme = %q, want %q", cfg.Console.Theme, schema.DefaultTheme)
	}
	if _, _, err := runRoot(t, "-c", path, "init-config"); err == nil {
		t.Fatalf("expected init-config without --force to refuse overwrite")
	}
	if _, _, err := runRoot(t, "-c", path, "init-config", "--force"); err != nil {
		t.Fatalf("init-config --force: %v", err)
	}
}

func TestOneShotCommands(t *testing.T) {
	hub := httpapi.NewHub(0, 0)
	hub.AddServer("srv-1", "Survival")
	if err := hub.Publish("srv-1", "one", "two"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	_ = hub.RecordEvent("srv-1", "install", "server provisioned")
	srv := httptest.NewServer(httpapi.NewServer(httpapi.Config{Token: "t0k"}, hub, nil).Handler())
	t.Cleanup(srv.Close)
	cfgPath := writeTestConfig(t, srv.URL, "t0k")

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "exec", args: []string{"exec", "srv-1", "echo", "hello", "world"}, want: []string{"hello world"}},
		{name: "info", args: []string{"info", "srv-1"}, want: []string{"id: srv-1", "name: Survival"}},
		{name: "events", args: []string{"events", "srv-1", "-n", "5"}, want: []string{"server provisioned"}},
		{name: "tail", args: []string{"tail", "srv-1", "--markers", "-n", "2"}, want: []string{"--- last 2 lines ---", "one", "two", "--- end of snapshot ---"}},
		{name: "power", args: []string{"power", "srv-1", "stop"}, want: []string{"[power] stop accepted"}},
	}
	for _, tc := range tests {
		out, _, err := runRoot(t, append([]string{"-c", cfgPath}, tc.args...)...)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		for _, want := range tc.want {
			if !strings.Contains(out, want) {
				t.Fatalf("%s: output %q missing %q", tc.name, out, want)
			}
		}
	}
}

func TestOneShotRejectsBadInput(t *testing.T) {
	cfgPath := writeTestConfig(t, "http://127.0.0.1:1", "")
	tests := []struct {
		name string
		args []string
	}{
		{name: "power-action", args: []string{"power", "srv-1", "explode"}},
		{name: "server-id", args: []string{"info", "a/b"}},
		{name: "blank-command", args: []string{"exec", "srv-1", "  "}},
	}
	for _, tc := range tests {
		if _, _, err := runRoot(t, append([]string{"-c", cfgPath}, tc.args...)...); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestPlainSinkWritesLinesAndSignalsEnd(t *testing.T) {
	var out, errOut bytes.Buffer
	sink := newPlainSink(&out, &errOut)
	sink.OnLines(schema.LinesEvent{ServerID: "srv-1", Lines: []string{"a", "b"}})
	sink.OnNotice(schema.NoticeEvent{ServerID: "srv-1", Level: schema.NoticeError, Message: "boom"})
	sink.OnStatus(schema.StatusEvent{ServerID: "srv-1", From: schema.StatusConnected, To: schema.StatusEnded})
	sink.printPanel(command.Result{PanelTitle: "events", Panel: []string{"evt"}})

	if got := out.String(); got != "a\nb\n== events ==\nevt\n" {
		t.Fatalf("stdout = %q", got)
	}
	if !strings.Contains(errOut.String(), "error: boom") || !strings.Contains(errOut.String(), "[srv-1] ended") {
		t.Fatalf("stderr = %q", errOut.String())
	}
	select {
	case status := <-sink.terminal:
		if status != schema.StatusEnded {
			t.Fatalf("terminal status = %q", status)
		}
	default:
		t.Fatalf("expected terminal status signal")
	}
}

func TestResolveTokenFromStdin(t *testing.T) {
	cmd := newLoginCmd(new(string))
	cmd.SetIn(strings.NewReader("  abc123\n"))
	token, err := resolveToken(cmd, true)
	if err != nil {
		t.Fatalf("resolveToken: %v", err)
	}
	if token != "abc123" {
		t.Fatalf("token = %q, want abc123", token)
	}
	cmd.SetIn(strings.NewReader("\n"))
	if _, err := resolveToken(cmd, true); err == nil {
		t.Fatalf("expected empty token error")
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("config_version: 1\napi:\n  base_url: http://127.0.0.1:1\nauth:\n  token_env: \"\"\n  key_store_path: %s\n  token_file: %s\n",
		filepath.Join(dir, "keys.bundle"), filepath.Join(dir, "token.enc"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	root := newRootCmd()
	root.SetIn(strings.NewReader("s3cret\n"))
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"-c", cfgPath, "login", "--token-stdin"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	loaded, err := appconfig.Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	store, err := tokenStore(loaded, nil)
	if err != nil {
		t.Fatalf("token store: %v", err)
	}
	token, err := store.Load()
	if err != nil || token != "s3cret" {
		t.Fatalf("stored token = %q, %v", token, err)
	}
	if _, _, err := runRoot(t, "-c", cfgPath, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "token.enc")); !os.IsNotExist(err) {
		t.Fatalf("expected token file removed, stat err = %v", err)
	}
}

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeTestConfig(t *testing.T, baseURL, token string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf("config_version: 1\napi:\n  base_url: %s\n  timeout_seconds: 5\nauth:\n  token: %q\n  token_env: \"\"\n  key_store_path: \"\"\n  token_file: \"\"\n", baseURL, token)
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConsoleStateRoundTrip(t *testing.T) {
	cfg := appconfig.Config{Console: appconfig.ConsoleConfig{AutoScroll: true, StateDir: t.TempDir()}}
	ctx := context.Background()
	if got := openState(ctx, cfg, "srv-1"); len(got.History) != 0 || got.AutoScroll != nil {
		t.Fatalf("expected empty state, got %+v", got)
	}
	history := command.NewHistory(0, nil)
	history.Append("say hi")
	saveState(ctx, cfg, "srv-1", history, false)

	got := openState(ctx, cfg, "srv-1")
	if strings.Join(got.History, "|") != "say hi" {
		t.Fatalf("history = %v", got.History)
	}
	if got.AutoScroll == nil || *got.AutoScroll {
		t.Fatalf("expected saved auto-scroll override off, got %v", got.AutoScroll)
	}

	saveState(ctx, cfg, "srv-1", history, true)
	if got := openState(ctx, cfg, "srv-1"); got.AutoScroll != nil {
		t.Fatalf("expected no override when matching config, got %v", *got.AutoScroll)
	}
}

func TestConsoleStateDisabled(t *testing.T) {
	cfg := appconfig.Config{}
	saveState(context.Background(), cfg, "srv-1", command.NewHistory(0, []string{"x"}), true)
	if got := openState(context.Background(), cfg, "srv-1"); got.History != nil {
		t.Fatalf("expected no state when state dir is empty, got %+v", got)
	}
}

func TestPlainConsoleExitsWhenInputEndsWithoutStream(t *testing.T) {
	hub := httpapi.NewHub(0, 0)
	hub.AddServer("srv-1", "Survival")
	srv := httptest.NewServer(httpapi.NewServer(httpapi.Config{}, hub, nil).Handler())
	t.Cleanup(srv.Close)

	tests := []struct {
		name    string
		server  schema.ServerID
		input   string
		wantErr bool
	}{
		{name: "disconnect-then-eof", server: "srv-1", input: "/disconnect\n"},
		{name: "quit", server: "srv-1", input: "/quit\n"},
		{name: "unknown-server", server: "srv-9", input: "", wantErr: true},
	}
	for _, tc := range tests {
		var out, errOut bytes.Buffer
		sink := newPlainSink(&out, &errOut)
		client, err := hostconsole.NewClient(hostconsole.ClientConfig{BaseURL: srv.URL}, hostconsole.WithEventSink(sink))
		if err != nil {
			t.Fatalf("%s: new client: %v", tc.name, err)
		}
		console, err := client.OpenConsole(tc.server)
		if err != nil {
			t.Fatalf("%s: open console: %v", tc.name, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := console.Connect(ctx); err != nil {
			cancel()
			t.Fatalf("%s: connect: %v", tc.name, err)
		}
		done := make(chan error, 1)
		go func() {
			done <- pumpPlain(ctx, console, command.NewHandler(console, command.HandlerConfig{}), sink, strings.NewReader(tc.input))
		}()
		select {
		case err := <-done:
			if tc.wantErr && err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("%s: unexpected error: %v", tc.name, err)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("%s: plain console kept waiting after stdin closed", tc.name)
		}
		console.Cancel()
		cancel()
	}
}
