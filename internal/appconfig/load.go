package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/hostconsole/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.timeout_seconds", cfg.API.TimeoutSeconds)
	v.SetDefault("auth.token", cfg.Auth.Token)
	v.SetDefault("auth.token_env", cfg.Auth.TokenEnv)
	v.SetDefault("auth.key_store_path", cfg.Auth.KeyStorePath)
	v.SetDefault("auth.token_file", cfg.Auth.TokenFile)
	v.SetDefault("console.buffer_max_lines", cfg.Console.BufferMaxLines)
	v.SetDefault("console.auto_scroll", cfg.Console.AutoScroll)
	v.SetDefault("console.events_limit", cfg.Console.EventsLimit)
	v.SetDefault("console.tail_lines", cfg.Console.TailLines)
	v.SetDefault("console.export_dir", cfg.Console.ExportDir)
	v.SetDefault("console.export_compression", cfg.Console.ExportCompression)
	v.SetDefault("mock.addr", cfg.Mock.Addr)
	v.SetDefault("mock.token", cfg.Mock.Token)
	v.SetDefault("console.theme", cfg.Console.Theme)
	v.SetDefault("console.state_dir", cfg.Console.StateDir)
	v.SetDefault("mock.keepalive_seconds", cfg.Mock.KeepaliveSeconds)
	v.SetDefault("mock.base_path", cfg.Mock.BasePath)
	v.SetDefault("mock.demo_seconds", cfg.Mock.DemoSeconds)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateAPIConfig(cfg.API); err != nil {
		return Config{}, err
	}
	if _, err := schema.ParseCompression(cfg.Console.ExportCompression); err != nil {
		return Config{}, fmt.Errorf("console.export_compression %q: %w", cfg.Console.ExportCompression, err)
	}
	theme, ok := schema.NormalizeThemeName(cfg.Console.Theme)
	if !ok {
		return Config{}, fmt.Errorf("console.theme %q is not supported", cfg.Console.Theme)
	}
	cfg.Console.Theme = string(theme)
	return cfg, nil
}

// isNotFound reports a missing config file. viper returns its own error type
// when searching paths and a plain fs error for an explicit file.
func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

func validateAPIConfig(cfg APIConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must include scheme and host (e.g. https://panel.example.com/api)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https")
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("api.timeout_seconds must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.API.BaseURL = expandEnv(cfg.API.BaseURL)
	cfg.Auth.KeyStorePath = expandEnv(cfg.Auth.KeyStorePath)
	cfg.Auth.TokenFile = expandEnv(cfg.Auth.TokenFile)
	cfg.Console.ExportDir = expandEnv(cfg.Console.ExportDir)
	cfg.Console.StateDir = expandEnv(cfg.Console.StateDir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
