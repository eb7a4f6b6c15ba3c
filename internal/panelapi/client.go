// Package panelapi is the request/response client of the panel REST API.
package panelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"pkt.systems/hostconsole/internal/credential"
	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/internal/stream"
	"pkt.systems/hostconsole/internal/version"
	"pkt.systems/hostconsole/schema"
)

const maxResponseBody = 8 << 20

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// APIError reports a non-success API response.
type APIError struct {
	Op        string
	Status    int
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
}

// Client calls the panel API. Timeout bounds each call; zero means none.
type Client struct {
	HTTP        *http.Client
	BaseURL     string
	Credentials credential.Source
	Timeout     time.Duration
}

// ExecRequest is the body of POST /servers/{id}/exec.
type ExecRequest struct {
	Cmd string `json:"cmd"`
}

// ExecResponse is the reply of POST /servers/{id}/exec.
type ExecResponse struct {
	Output string `json:"output"`
}

// PowerRequest is the body of POST /servers/{id}/power.
type PowerRequest struct {
	Action schema.PowerAction `json:"action"`
}

// PowerResponse is the reply of POST /servers/{id}/power.
type PowerResponse struct {
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

// LogsLastResponse is the JSON form of GET /servers/{id}/logs-last.
type LogsLastResponse struct {
	Logs string `json:"logs"`
}

// Exec runs a console command and returns its textual output.
func (c *Client) Exec(ctx context.Context, id schema.ServerID, cmd string) (string, error) {
	var resp ExecResponse
	if err := c.do(ctx, "exec", http.MethodPost, id, []string{"exec"}, nil, ExecRequest{Cmd: cmd}, &resp); err != nil {
		return "", err
	}
	return resp.Output, nil
}

// Info fetches server metadata including the optional state hint.
func (c *Client) Info(ctx context.Context, id schema.ServerID) (schema.ServerInfo, error) {
	var info schema.ServerInfo
	if err := c.do(ctx, "info", http.MethodGet, id, nil, nil, nil, &info); err != nil {
		return schema.ServerInfo{}, err
	}
	if info.ID == "" {
		info.ID = id
	}
	return info, nil
}

// Events returns up to limit recent events. A non-positive limit leaves the
// bound to the server.
func (c *Client) Events(ctx context.Context, id schema.ServerID, limit int) ([]schema.ServerEvent, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var raw json.RawMessage
	if err := c.do(ctx, "events", http.MethodGet, id, []string{"events"}, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeEvents(raw)
}

// LogsLast returns a best-effort snapshot of the last tail lines as one blob.
func (c *Client) LogsLast(ctx context.Context, id schema.ServerID, tail int) (string, error) {
	query := url.Values{}
	if tail > 0 {
		query.Set("tail", strconv.Itoa(tail))
	}
	var blob string
	if err := c.do(ctx, "logs-last", http.MethodGet, id, []string{"logs-last"}, query, nil, &blob); err != nil {
		return "", err
	}
	return blob, nil
}

// Power requests a lifecycle action and returns the server's message.
func (c *Client) Power(ctx context.Context, id schema.ServerID, action schema.PowerAction) (string, error) {
	action, err := schema.ParsePowerAction(string(action))
	if err != nil {
		return "", err
	}
	var resp PowerResponse
	if err := c.do(ctx, "power", http.MethodPost, id, []string{"power"}, nil, PowerRequest{Action: action}, &resp); err != nil {
		return "", err
	}
	if msg := strings.TrimSpace(resp.Message); msg != "" {
		return msg, nil
	}
	if status := strings.TrimSpace(resp.Status); status != "" {
		return fmt.Sprintf("power %s: %s", action, status), nil
	}
	return fmt.Sprintf("power %s accepted", action), nil
}

func (c *Client) do(ctx context.Context, op, method string, id schema.ServerID, parts []string, query url.Values, body any, out any) error {
	if id == "" {
		return schema.ErrInvalidServer
	}
	log := logx.WithServer(ctx, id)
	endpoint, err := stream.ServerURL(c.BaseURL, id, parts...)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	token, err := credential.Optional(ctx, c.Credentials)
	if err != nil {
		log.Warn("panel "+op+" credential failed", "err", err)
		return err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("panel "+op+" failed", "err", err, "request_id", requestID)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warn("panel "+op+" failed", "err", err, "request_id", requestID)
		return fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, Status: resp.StatusCode, Message: stream.ErrorMessage(data), RequestID: requestID}
		log.Warn("panel "+op+" failed", "status", resp.StatusCode, "err", apiErr.Message, "request_id", requestID)
		return apiErr
	}
	if err := decodeBody(resp.Header.Get("Content-Type"), data, out); err != nil {
		log.Warn("panel "+op+" decode failed", "err", err, "request_id", requestID)
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	log.Debug("panel "+op+" ok", "status", resp.StatusCode, "request_id", requestID, "duration_ms", time.Since(started).Milliseconds())
	return nil
}

// decodeBody decodes JSON into out. A *string target also accepts a plain
// text body, or a JSON object with a logs or output field.
func decodeBody(contentType string, data []byte, out any) error {
	if out == nil {
		return nil
	}
	if text, ok := out.(*string); ok {
		*text = decodeText(contentType, data)
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func decodeText(contentType string, data []byte) string {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" {
		return string(data)
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}
	var payload struct {
		Logs   *string `json:"logs"`
		Output *string `json:"output"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Logs != nil {
			return *payload.Logs
		}
		if payload.Output != nil {
			return *payload.Output
		}
	}
	return string(data)
}

func decodeEvents(raw json.RawMessage) ([]schema.ServerEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var events []schema.ServerEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return events, nil
	}
	var wrapped struct {
		Events []schema.ServerEvent `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return wrapped.Events, nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
