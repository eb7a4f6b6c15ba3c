package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/hostconsole/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	API           APIConfig     `mapstructure:"api" yaml:"api"`
	Auth          AuthConfig    `mapstructure:"auth" yaml:"auth"`
	Console       ConsoleConfig `mapstructure:"console" yaml:"console"`
	Mock          MockConfig    `mapstructure:"mock" yaml:"mock"`
	Logging       LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// DefaultTokenEnv is the environment variable consulted for a bearer token.
const DefaultTokenEnv = "HOSTCONSOLE_TOKEN"

// APIConfig locates the panel API.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// TimeoutSeconds bounds request/response calls. The log stream is never timed out.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the request timeout; zero means none.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig configures where the bearer credential comes from.
type AuthConfig struct {
	Token        string `mapstructure:"token" yaml:"token"`
	TokenEnv     string `mapstructure:"token_env" yaml:"token_env"`
	KeyStorePath string `mapstructure:"key_store_path" yaml:"key_store_path"`
	TokenFile    string `mapstructure:"token_file" yaml:"token_file"`
}

// ConsoleConfig controls console buffering, panels, and export.
type ConsoleConfig struct {
	BufferMaxLines    int    `mapstructure:"buffer_max_lines" yaml:"buffer_max_lines"`
	AutoScroll        bool   `mapstructure:"auto_scroll" yaml:"auto_scroll"`
	EventsLimit       int    `mapstructure:"events_limit" yaml:"events_limit"`
	TailLines         int    `mapstructure:"tail_lines" yaml:"tail_lines"`
	ExportDir         string `mapstructure:"export_dir" yaml:"export_dir"`
	ExportCompression string `mapstructure:"export_compression" yaml:"export_compression"`
	Theme             string `mapstructure:"theme" yaml:"theme"`
	// StateDir keeps per-server input history; empty disables it.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// Schema converts to the console config consumed by core.
func (c ConsoleConfig) Schema() schema.ConsoleConfig {
	return schema.ConsoleConfig{
		BufferMaxLines:    c.BufferMaxLines,
		AutoScroll:        c.AutoScroll,
		EventsLimit:       c.EventsLimit,
		TailLines:         c.TailLines,
		ExportDir:         c.ExportDir,
		ExportCompression: schema.Compression(c.ExportCompression),
	}
}

// MockConfig configures the mock panel backend.
type MockConfig struct {
	Addr             string `mapstructure:"addr" yaml:"addr"`
	Token            string `mapstructure:"token" yaml:"token"`
	KeepaliveSeconds int    `mapstructure:"keepalive_seconds" yaml:"keepalive_seconds"`
	BasePath         string `mapstructure:"base_path" yaml:"base_path"`
	// DemoSeconds spaces synthetic output lines; zero disables them.
	DemoSeconds int `mapstructure:"demo_seconds" yaml:"demo_seconds"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		API: APIConfig{
			BaseURL:        "http://127.0.0.1:27580",
			TimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			Token:        "",
			TokenEnv:     DefaultTokenEnv,
			KeyStorePath: filepath.Join(home, ".hostconsole", "state", "keys.bundle"),
			TokenFile:    filepath.Join(home, ".hostconsole", "state", "token.enc"),
		},
		Console: ConsoleConfig{
			BufferMaxLines:    schema.DefaultBufferMaxLines,
			AutoScroll:        true,
			EventsLimit:       schema.DefaultEventsLimit,
			TailLines:         schema.DefaultTailLines,
			ExportDir:         ".",
			ExportCompression: string(schema.CompressionNone),
			Theme:             string(schema.DefaultTheme),
			StateDir:          filepath.Join(home, ".hostconsole", "state", "consoles"),
		},
		Mock: MockConfig{
			Addr:             "127.0.0.1:27580",
			Token:            "",
			KeepaliveSeconds: 15,
			DemoSeconds:      2,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hostconsole", "config.yaml"), nil
}
