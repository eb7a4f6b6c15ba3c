package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/hostconsole/internal/logx"
	"pkt.systems/hostconsole/internal/panelapi"
	"pkt.systems/hostconsole/schema"
)

// CommandHandler executes console commands on a mock server.
type CommandHandler interface {
	Exec(ctx context.Context, id schema.ServerID, cmd string) (string, error)
}

// Server serves the mock panel API.
type Server struct {
	cfg      Config
	hub      *Hub
	commands CommandHandler
	basePath string
}

// NewServer constructs a mock panel server. A nil handler selects the
// built-in command set.
func NewServer(cfg Config, hub *Hub, handler CommandHandler) *Server {
	if hub == nil {
		hub = NewHub(cfg.HistorySize, cfg.EventsSize)
	}
	if handler == nil {
		handler = NewBuiltinCommands(hub)
	}
	return &Server{
		cfg:      cfg,
		hub:      hub,
		commands: handler,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /servers/{id}", s.requireToken(s.handleInfo))
	mux.HandleFunc("GET /servers/{id}/logs", s.requireToken(s.handleLogs))
	mux.HandleFunc("GET /servers/{id}/logs-last", s.requireToken(s.handleLogsLast))
	mux.HandleFunc("GET /servers/{id}/events", s.requireToken(s.handleEvents))
	mux.HandleFunc("POST /servers/{id}/exec", s.requireToken(s.handleExec))
	mux.HandleFunc("POST /servers/{id}/power", s.requireToken(s.handlePower))

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	root := http.NewServeMux()
	root.Handle(s.basePath+"/", http.StripPrefix(s.basePath, handler))
	return root
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	info, err := s.hub.Info(id)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	ch, unsubscribe, history, err := s.hub.Subscribe(id)
	if err != nil {
		writeHubError(w, err)
		return
	}
	defer unsubscribe()
	log := logx.WithServer(r.Context(), id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replayed := 0
	for _, record := range history {
		if record.Seq <= lastID {
			continue
		}
		_ = writeSSEvent(w, record)
		replayed++
	}
	flusher.Flush()

	var keepalive <-chan time.Time
	if s.cfg.KeepaliveInterval > 0 {
		ticker := time.NewTicker(s.cfg.KeepaliveInterval)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayed)
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case record, ok := <-ch:
			if !ok {
				return
			}
			_ = writeSSEvent(w, record)
			flusher.Flush()
		case <-keepalive:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleLogsLast(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	tail := parseInt(r.URL.Query().Get("tail"), schema.DefaultTailLines)
	blob, err := s.hub.Tail(id, tail)
	if err != nil {
		writeHubError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, blob)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	limit := parseInt(r.URL.Query().Get("limit"), schema.DefaultEventsLimit)
	events, err := s.hub.Events(id, limit)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	var req panelapi.ExecRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Cmd) == "" {
		writeError(w, http.StatusBadRequest, schema.ErrEmptyCommand)
		return
	}
	if _, err := s.hub.Info(id); err != nil {
		writeHubError(w, err)
		return
	}
	log := logx.WithServer(r.Context(), id)
	output, err := s.commands.Exec(r.Context(), id, req.Cmd)
	if err != nil {
		log.Warn("http exec failed", "err", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	log.Debug("http exec ok", "cmd", req.Cmd)
	writeJSON(w, http.StatusOK, panelapi.ExecResponse{Output: output})
}

func (s *Server) handlePower(w http.ResponseWriter, r *http.Request, id schema.ServerID) {
	var req panelapi.PowerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	action, err := schema.ParsePowerAction(string(req.Action))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := s.hub.Power(id, action)
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			writeHubError(w, err)
			return
		}
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, panelapi.PowerResponse{
		Status:  status,
		Message: fmt.Sprintf("%s accepted; server is %s", action, status),
	})
}

func (s *Server) requireToken(next func(http.ResponseWriter, *http.Request, schema.ServerID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logx.Ctx(r.Context()).With("remote", clientIP(r))
		if s.cfg.Token != "" {
			token, ok := bearerToken(r)
			if !ok {
				log.Warn("http auth missing")
				writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
				return
			}
			if token != s.cfg.Token {
				log.Warn("http auth invalid")
				writeError(w, http.StatusForbidden, errors.New("forbidden"))
				return
			}
		}
		id, err := schema.NormalizeServerID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ctx := logx.ContextWithServerLogger(r.Context(), log.With("server", id), id)
		next(w, r.WithContext(ctx), id)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeHubError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrServerNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

// writeSSEvent writes one record with its line as a JSON string payload.
func writeSSEvent(w io.Writer, record LogRecord) error {
	data, err := json.Marshal(record.Line)
	if err != nil {
		return err
	}
	if record.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", record.Seq)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
