package hostconsole

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/hostconsole/httpapi"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// Server is a long-running service.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// MockServer seeds one server on the mock panel.
type MockServer struct {
	ID   schema.ServerID
	Name string
}

// MockPanelConfig configures the mock panel.
type MockPanelConfig struct {
	HTTP    httpapi.Config
	Servers []MockServer
	// DemoInterval, when positive, publishes synthetic output on every running server.
	DemoInterval time.Duration
}

// DefaultMockServers are seeded when no servers are configured.
var DefaultMockServers = []MockServer{
	{ID: "srv-1", Name: "Survival"},
	{ID: "srv-2", Name: "Creative"},
}

// NewMockPanel constructs the mock panel server.
func NewMockPanel(cfg MockPanelConfig) (Server, error) {
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = DefaultMockServers
	}
	hub := httpapi.NewHub(cfg.HTTP.HistorySize, cfg.HTTP.EventsSize)
	for _, server := range servers {
		id, err := schema.NormalizeServerID(string(server.ID))
		if err != nil {
			return nil, err
		}
		name := server.Name
		if name == "" {
			name = string(id)
		}
		hub.AddServer(id, name)
		_ = hub.RecordEvent(id, "install", "server provisioned")
	}
	return &mockPanel{
		cfg:  cfg,
		hub:  hub,
		http: httpapi.NewServer(cfg.HTTP, hub, nil),
	}, nil
}

type mockPanel struct {
	cfg  MockPanelConfig
	hub  *httpapi.Hub
	http *httpapi.Server

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
	logger  pslog.Logger
}

func (s *mockPanel) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("mock panel start rejected", "reason", "already started")
		return errors.New("mock panel already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info("mock panel start", "servers", len(s.hub.Servers()), "demo", s.cfg.DemoInterval)
	go func() {
		if err := s.http.ListenAndServe(s.ctx); err != nil {
			log.Error("mock panel http failed", "err", err)
			s.errCh <- err
		}
	}()
	if s.cfg.DemoInterval > 0 {
		go httpapi.RunDemo(s.ctx, s.hub, s.cfg.DemoInterval)
	}
	return nil
}

func (s *mockPanel) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("mock panel not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("mock panel stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *mockPanel) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("mock panel stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("mock panel stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("mock panel stopped")
		return nil
	}
}
