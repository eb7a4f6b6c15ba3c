// Package stream opens the authenticated console log stream of a server.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/credential"
	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/internal/version"
	"pkt.systems/hostconsole/schema"
)

const (
	defaultChunkSize = 32 * 1024
	maxErrorBody     = 64 * 1024
)

// ErrCancelled is returned by Handle.Next once the handle has been cancelled.
var ErrCancelled = errors.New("stream cancelled")

// ConnectError reports a connection attempt the server refused.
type ConnectError struct {
	Status  int
	Message string
}

func (e *ConnectError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stream connect: HTTP %d", e.Status)
	}
	return fmt.Sprintf("stream connect: HTTP %d: %s", e.Status, e.Message)
}

// Connector opens console streams against the panel API.
type Connector struct {
	HTTP        *http.Client
	BaseURL     string
	Credentials credential.Source
	ChunkSize   int
}

// Connect issues GET {base}/servers/{id}/logs and returns a handle on the
// open body. The request carries no timeout; it ends only when the server
// closes the stream or the handle is cancelled.
func (c *Connector) Connect(ctx context.Context, id schema.ServerID) (*Handle, error) {
	log := logx.WithServer(ctx, id)
	if id == "" {
		return nil, schema.ErrInvalidServer
	}
	token, err := credential.Optional(ctx, c.Credentials)
	if err != nil {
		log.Warn("stream credential failed", "err", err)
		return nil, err
	}
	endpoint, err := ServerURL(c.BaseURL, id, "logs")
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("User-Agent", version.UserAgent())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	log.Debug("stream connect start", "url", endpoint)
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		log.Warn("stream connect failed", "err", err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		connErr := &ConnectError{Status: resp.StatusCode, Message: readErrorMessage(resp.Body)}
		_ = resp.Body.Close()
		cancel()
		log.Warn("stream connect failed", "status", resp.StatusCode, "err", connErr.Message)
		return nil, connErr
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		log.Warn("stream connect failed", "status", resp.StatusCode, "err", "no body")
		return nil, &ConnectError{Status: resp.StatusCode, Message: "response has no streamable body"}
	}
	log.Info("stream connect ok", "status", resp.StatusCode)

	size := c.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Handle{body: resp.Body, cancel: cancel, buf: make([]byte, size)}, nil
}

// OpenStream implements core.Streamer.
func (c *Connector) OpenStream(ctx context.Context, id schema.ServerID) (core.LogStream, error) {
	handle, err := c.Connect(ctx, id)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Handle is one open stream. Next must not be called concurrently; Cancel
// may be called from any goroutine.
type Handle struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	buf    []byte

	once      sync.Once
	mu        sync.Mutex
	cancelled bool
}

// Next returns the next chunk in arrival order. It returns io.EOF when the
// server ends the stream and ErrCancelled once the handle is cancelled,
// including when the cancellation interrupts a suspended read. Cancelling
// ctx cancels the handle.
func (h *Handle) Next(ctx context.Context) ([]byte, error) {
	if h.isCancelled() {
		return nil, ErrCancelled
	}
	if ctx != nil {
		if ctx.Err() != nil {
			h.Cancel()
			return nil, ErrCancelled
		}
		stop := context.AfterFunc(ctx, h.Cancel)
		defer stop()
	}
	for {
		n, err := h.body.Read(h.buf)
		if h.isCancelled() {
			return nil, ErrCancelled
		}
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, h.buf[:n])
			return chunk, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

// Cancel aborts the request and releases the body. It is idempotent and
// safe after the stream has ended.
func (h *Handle) Cancel() {
	h.once.Do(func() {
		h.mu.Lock()
		h.cancelled = true
		h.mu.Unlock()
		h.cancel()
		_ = h.body.Close()
	})
}

// Cancelled reports whether Cancel has run.
func (h *Handle) Cancelled() bool {
	return h.isCancelled()
}

func (h *Handle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// ServerURL joins base with /servers/{id}/{parts...}, escaping the id.
func ServerURL(base string, id schema.ServerID, parts ...string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("api base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("api base url %q must be absolute", base)
	}
	segments := append([]string{"servers", string(id)}, parts...)
	return parsed.JoinPath(segments...).String(), nil
}

// readErrorMessage extracts the error or message field of a JSON body, or
// falls back to the trimmed raw body.
func readErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return ErrorMessage(data)
}

// ErrorMessage picks a human readable message out of an error response body.
func ErrorMessage(data []byte) string {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return ""
	}
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return raw
	}
	if msg := errorField(payload.Error); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return raw
}

func errorField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}
