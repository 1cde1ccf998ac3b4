package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk mvnd.yaml document. It carries the settings a
// user might reasonably want to pin across invocations; everything
// else in daemoninfo.Parameters has a sensible built-in default and an
// environment-variable override (see DefaultDaemonParameters).
type Config struct {
	Daemon DaemonConfig `yaml:"daemon"`
	Client ClientConfig `yaml:"client"`
}

// DaemonConfig holds settings that shape a spawned daemon.
type DaemonConfig struct {
	KeepAliveMs      int      `yaml:"keep_alive_ms"`       // 0 means "use the built-in default"
	MaxLostKeepAlive int      `yaml:"max_lost_keep_alive"` // 0 means "use the built-in default"
	IdleTimeoutMs    int      `yaml:"idle_timeout_ms"`     // 0 means "use the built-in default"
	JavaHome         string   `yaml:"java_home"`           // empty means "inherit JAVA_HOME"
	JvmArgs          []string `yaml:"jvm_args"`
}

// ClientConfig holds settings for the client side of a build.
type ClientConfig struct {
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"` // 0 means "use the built-in default"
	LogLevel         string `yaml:"log_level"`          // debug, info, warn, error
}

// DefaultConfig returns the configuration used when mvnd.yaml does not
// exist: every daemon field left at its zero value so
// DefaultDaemonParameters falls back to its own built-in defaults, and
// the client log level set to "warn".
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{},
		Client: ClientConfig{LogLevel: "warn"},
	}
}

// Load reads mvnd.yaml from the default location.
func Load() (*Config, error) {
	return LoadFromFile(DefaultPaths().ConfigFile())
}

// LoadFromFile reads the configuration at path. A missing file is not
// an error: it yields DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the default location.
func (c *Config) Save() error {
	return c.SaveToFile(DefaultPaths().ConfigFile())
}

// SaveToFile writes the configuration to path, creating its parent
// directory if necessary.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
