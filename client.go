// Package hostconsole composes the live console client and the mock panel.
package hostconsole

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"pkt.systems/hostconsole/core"
	"pkt.systems/hostconsole/internal/credential"
	"pkt.systems/hostconsole/internal/eventbus"
	"pkt.systems/hostconsole/internal/panelapi"
	"pkt.systems/hostconsole/internal/stream"
	"pkt.systems/hostconsole/schema"
	"pkt.systems/pslog"
)

// ClientConfig configures the panel client.
type ClientConfig struct {
	BaseURL string
	// Timeout bounds REST calls only; log streams have no timeout.
	Timeout     time.Duration
	Credentials credential.Source
	Console     schema.ConsoleConfig
}

// ClientOption customises a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	logger     pslog.Logger
	sinks      []core.EventSink
}

// WithHTTPClient sets the HTTP client used for streams and REST calls.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

// WithLogger sets the logger handed to consoles.
func WithLogger(logger pslog.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithEventSink adds a sink receiving every console event next to the bus.
func WithEventSink(sink core.EventSink) ClientOption {
	return func(o *clientOptions) { o.sinks = append(o.sinks, sink) }
}

// Client opens consoles against one panel.
type Client struct {
	cfg     ClientConfig
	bus     *eventbus.Bus
	streams *stream.Connector
	api     *panelapi.Client
	sink    core.EventSink
	logger  pslog.Logger
}

// NewClient constructs a panel client.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	options := clientOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("panel base url is required")
	}
	if _, err := stream.ServerURL(cfg.BaseURL, "check"); err != nil {
		return nil, err
	}
	bus := eventbus.New(options.logger)
	var sink core.EventSink = bus
	if len(options.sinks) > 0 {
		sinks := append([]core.EventSink{bus}, options.sinks...)
		sink = eventFanout{sinks: sinks}
	}
	return &Client{
		cfg: cfg,
		bus: bus,
		streams: &stream.Connector{
			HTTP:        options.httpClient,
			BaseURL:     cfg.BaseURL,
			Credentials: cfg.Credentials,
		},
		api: &panelapi.Client{
			HTTP:        options.httpClient,
			BaseURL:     cfg.BaseURL,
			Credentials: cfg.Credentials,
			Timeout:     cfg.Timeout,
		},
		sink:   sink,
		logger: options.logger,
	}, nil
}

// Bus returns the event bus every console publishes to.
func (c *Client) Bus() *eventbus.Bus {
	return c.bus
}

// API returns the REST client.
func (c *Client) API() *panelapi.Client {
	return c.api
}

// OpenConsole constructs a disconnected console for id.
func (c *Client) OpenConsole(id schema.ServerID) (*core.Console, error) {
	return core.NewConsole(id, c.cfg.Console, core.ConsoleDeps{
		Streamer:  c.streams,
		API:       c.api,
		EventSink: c.sink,
		Logger:    c.logger,
	})
}
