// Package config provides configuration management for mvndc: on-disk
// layout and daemon launch parameters.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/mvnd-go/mvndc/internal/daemoninfo"
)

// Paths holds all the path configurations for mvndc.
// All paths are relative to the base directory (~/.mvnd on Unix,
// %APPDATA%\mvnd on Windows).
type Paths struct {
	// BaseDir is the root directory for all mvnd files (~/.mvnd).
	BaseDir string
}

// DefaultPaths returns the default paths.
// Unix: ~/.mvnd
// Windows: %APPDATA%\mvnd
func DefaultPaths() *Paths {
	// Check for MVND_HOME override first (works on all platforms).
	if mvndHome := os.Getenv("MVND_HOME"); mvndHome != "" {
		return &Paths{BaseDir: mvndHome}
	}

	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return &Paths{BaseDir: filepath.Join(appData, "mvnd")}
	}

	return &Paths{BaseDir: filepath.Join(home, ".mvnd")}
}

// RegistryFile returns the path to the daemon registry file, the JSON
// document tracking every daemon this client knows about.
func (p *Paths) RegistryFile() string {
	return filepath.Join(p.BaseDir, "registry.json")
}

// RegistryLockFile returns the path to the flock(2) lock file guarding
// concurrent registry mutation.
func (p *Paths) RegistryLockFile() string {
	return filepath.Join(p.BaseDir, "registry.lock")
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir, "mvnd.yaml")
}

// LogDir returns the path to the per-daemon log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.BaseDir, "daemon-logs")
}

// DaemonLogFile returns the path to a single daemon's log file, named
// by daemon ID so multiple daemons never clobber each other's output.
func (p *Paths) DaemonLogFile(daemonID string) string {
	return filepath.Join(p.LogDir(), daemonID+".log")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.BaseDir, p.LogDir()}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}

// Default daemon parameters, used when the environment does not
// override them (spec §3 DaemonParameters; §6 Connector config).
const (
	DefaultKeepAlive        = 10 * time.Second
	DefaultMaxLostKeepAlive = 3
	DefaultConnectTimeout   = 20 * time.Second
	DefaultIdleTimeout      = 3 * time.Hour
	envKeepAliveMillis      = "MVND_KEEP_ALIVE_MS"
	envMaxLostKeepAlive     = "MVND_MAX_LOST_KEEP_ALIVE"
	envConnectTimeoutMillis = "MVND_CONNECT_TIMEOUT_MS"
	envIdleTimeoutMillis    = "MVND_IDLE_TIMEOUT_MS"
)

// LoadDaemonParameters builds daemon launch/liveness parameters
// layering, from lowest to highest precedence: the package defaults,
// mvnd.yaml, and environment variables. A missing mvnd.yaml is not an
// error and yields DefaultConfig. An unreadable or malformed one is not
// fatal either: the error is returned, for the caller to log, together
// with parameters built from DefaultConfig.
func LoadDaemonParameters(paths *Paths) (daemoninfo.Parameters, error) {
	cfg, err := LoadFromFile(paths.ConfigFile())
	if err != nil {
		return DefaultDaemonParameters(paths), err
	}
	return daemonParametersFromConfig(paths, cfg), nil
}

// DefaultDaemonParameters builds daemon launch/liveness parameters from
// the environment, falling back to the package defaults. Malformed
// overrides are ignored rather than rejected, matching the teacher's
// tolerant env-parsing style elsewhere in this codebase.
func DefaultDaemonParameters(paths *Paths) daemoninfo.Parameters {
	return daemonParametersFromConfig(paths, DefaultConfig())
}

func daemonParametersFromConfig(paths *Paths, cfg *Config) daemoninfo.Parameters {
	p := daemoninfo.Parameters{
		KeepAlive:        DefaultKeepAlive,
		MaxLostKeepAlive: DefaultMaxLostKeepAlive,
		ConnectTimeout:   DefaultConnectTimeout,
		IdleTimeout:      DefaultIdleTimeout,
		LogDir:           paths.LogDir(),
	}

	if cfg.Daemon.KeepAliveMs > 0 {
		p.KeepAlive = durationMillis(cfg.Daemon.KeepAliveMs)
	}
	if cfg.Daemon.MaxLostKeepAlive > 0 {
		p.MaxLostKeepAlive = cfg.Daemon.MaxLostKeepAlive
	}
	if cfg.Daemon.IdleTimeoutMs > 0 {
		p.IdleTimeout = durationMillis(cfg.Daemon.IdleTimeoutMs)
	}
	if cfg.Client.ConnectTimeoutMs > 0 {
		p.ConnectTimeout = durationMillis(cfg.Client.ConnectTimeoutMs)
	}

	if ms, ok := envMillis(envKeepAliveMillis); ok {
		p.KeepAlive = ms
	}
	if n, ok := envInt(envMaxLostKeepAlive); ok && n > 0 {
		p.MaxLostKeepAlive = n
	}
	if ms, ok := envMillis(envConnectTimeoutMillis); ok {
		p.ConnectTimeout = ms
	}
	if ms, ok := envMillis(envIdleTimeoutMillis); ok {
		p.IdleTimeout = ms
	}

	return p
}

func durationMillis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func envMillis(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
