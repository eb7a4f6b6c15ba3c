package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/credential"
)

func TestConnectSendsHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: 1\n\n")
	}))
	defer srv.Close()

	conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL + "/api", Credentials: credential.Static("tok")}
	handle, err := conn.Connect(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer handle.Cancel()
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotAccept != "text/event-stream" {
		t.Fatalf("expected event-stream accept, got %q", gotAccept)
	}
	if gotPath != "/api/servers/srv-1/logs" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	var all strings.Builder
	for {
		chunk, err := handle.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		all.Write(chunk)
	}
	if all.String() != "data: 1\n\n" {
		t.Fatalf("unexpected body %q", all.String())
	}
	handle.Cancel()
	handle.Cancel()
}

func TestConnectOmitsAuthWithoutCredential(t *testing.T) {
	gotAuth := "unset"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, ": hi\n\n")
	}))
	defer srv.Close()

	conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL, Credentials: credential.Env("HOSTCONSOLE_UNSET_FOR_TEST")}
	handle, err := conn.Connect(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	handle.Cancel()
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}
}

func TestConnectErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "json error", status: http.StatusForbidden, body: `{"error":"forbidden"}`, want: "forbidden"},
		{name: "json message", status: http.StatusNotFound, body: `{"message":"no such server"}`, want: "no such server"},
		{name: "nested error", status: http.StatusBadRequest, body: `{"error":{"message":"bad id"}}`, want: "bad id"},
		{name: "raw body", status: http.StatusBadGateway, body: "  upstream down \n", want: "upstream down"},
		{name: "empty body", status: http.StatusInternalServerError, body: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()
			conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL}
			_, err := conn.Connect(context.Background(), "srv-1")
			var connErr *ConnectError
			if !errors.As(err, &connErr) {
				t.Fatalf("expected ConnectError, got %v", err)
			}
			if connErr.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, connErr.Status)
			}
			if connErr.Message != tc.want {
				t.Fatalf("expected message %q, got %q", tc.want, connErr.Message)
			}
		})
	}
}

func TestCancelUnblocksSuspendedRead(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL}
	handle, err := conn.Connect(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := handle.Next(context.Background())
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	handle.Cancel()
	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("suspended read was not released")
	}
	if _, err := handle.Next(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled after cancel, got %v", err)
	}
	handle.Cancel()
}

func TestNextContextCancelCancelsHandle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL}
	handle, err := conn.Connect(context.Background(), "srv-1")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := handle.Next(ctx); !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !handle.Cancelled() {
		t.Fatalf("expected handle to be cancelled")
	}
}

func TestServerURL(t *testing.T) {
	cases := []struct {
		base string
		want string
		err  bool
	}{
		{base: "http://panel.local", want: "http://panel.local/servers/a1/logs"},
		{base: "http://panel.local/api/", want: "http://panel.local/api/servers/a1/logs"},
		{base: "", err: true},
		{base: "panel.local", err: true},
	}
	for _, tc := range cases {
		got, err := ServerURL(tc.base, "a1", "logs")
		if tc.err {
			if err == nil {
				t.Fatalf("expected error for %q", tc.base)
			}
			continue
		}
		if err != nil {
			t.Fatalf("server url %q: %v", tc.base, err)
		}
		if got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestConnectorIsStreamer(t *testing.T) {
	var _ core.Streamer = (*Connector)(nil)
	var _ core.LogStream = (*Handle)(nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("User-Agent"), "hostconsole/") {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"forbidden"}`)
	}))
	defer srv.Close()
	conn := &Connector{HTTP: srv.Client(), BaseURL: srv.URL}
	stream, err := conn.OpenStream(context.Background(), "srv-1")
	if err == nil || stream != nil {
		t.Fatalf("expected error and nil stream, got %v %v", stream, err)
	}
}
