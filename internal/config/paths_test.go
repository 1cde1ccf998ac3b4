package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPaths(t *testing.T) {
	paths := DefaultPaths()

	if paths.BaseDir == "" {
		t.Error("BaseDir is empty")
	}
	if !filepath.IsAbs(paths.BaseDir) {
		t.Errorf("BaseDir should be absolute: %s", paths.BaseDir)
	}
	if !strings.Contains(paths.BaseDir, "mvnd") {
		t.Errorf("BaseDir should contain 'mvnd': %s", paths.BaseDir)
	}
}

func TestDefaultPaths_MVNDHome(t *testing.T) {
	origHome := os.Getenv("MVND_HOME")
	defer func() {
		if origHome != "" {
			os.Setenv("MVND_HOME", origHome)
		} else {
			os.Unsetenv("MVND_HOME")
		}
	}()

	os.Setenv("MVND_HOME", "/custom/mvnd/home")

	paths := DefaultPaths()
	if paths.BaseDir != "/custom/mvnd/home" {
		t.Errorf("BaseDir should respect MVND_HOME: %s", paths.BaseDir)
	}
}

func TestPaths_DerivedFiles(t *testing.T) {
	paths := &Paths{BaseDir: "/test/mvnd"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"RegistryFile", paths.RegistryFile(), "/test/mvnd/registry.json"},
		{"RegistryLockFile", paths.RegistryLockFile(), "/test/mvnd/registry.lock"},
		{"ConfigFile", paths.ConfigFile(), "/test/mvnd/mvnd.yaml"},
		{"LogDir", paths.LogDir(), "/test/mvnd/daemon-logs"},
		{"DaemonLogFile", paths.DaemonLogFile("abc123"), "/test/mvnd/daemon-logs/abc123.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestPaths_EnsureDirectories(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mvndc-paths-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	paths := &Paths{BaseDir: filepath.Join(tmpDir, "mvnd")}

	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{paths.BaseDir, paths.LogDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("Directory should exist: %s", dir)
			continue
		}
		if !info.IsDir() {
			t.Errorf("Should be a directory: %s", dir)
		}
	}
}

func TestHomeDir(t *testing.T) {
	home := homeDir()
	if home == "" {
		t.Error("homeDir returned empty string")
	}
	if !filepath.IsAbs(home) {
		t.Errorf("homeDir should return absolute path: %s", home)
	}
}

func TestDefaultDaemonParameters(t *testing.T) {
	paths := &Paths{BaseDir: "/test/mvnd"}
	params := DefaultDaemonParameters(paths)

	if params.KeepAlive != DefaultKeepAlive {
		t.Errorf("KeepAlive = %v, want %v", params.KeepAlive, DefaultKeepAlive)
	}
	if params.MaxLostKeepAlive != DefaultMaxLostKeepAlive {
		t.Errorf("MaxLostKeepAlive = %d, want %d", params.MaxLostKeepAlive, DefaultMaxLostKeepAlive)
	}
	if params.LogDir != paths.LogDir() {
		t.Errorf("LogDir = %s, want %s", params.LogDir, paths.LogDir())
	}
}

func TestDefaultDaemonParameters_EnvOverride(t *testing.T) {
	for _, name := range []string{envKeepAliveMillis, envMaxLostKeepAlive, envConnectTimeoutMillis, envIdleTimeoutMillis} {
		orig := os.Getenv(name)
		defer func(name, orig string) {
			if orig != "" {
				os.Setenv(name, orig)
			} else {
				os.Unsetenv(name)
			}
		}(name, orig)
	}

	os.Setenv(envKeepAliveMillis, "5000")
	os.Setenv(envMaxLostKeepAlive, "7")

	paths := &Paths{BaseDir: "/test/mvnd"}
	params := DefaultDaemonParameters(paths)

	if params.KeepAlive.Milliseconds() != 5000 {
		t.Errorf("KeepAlive = %v, want 5000ms", params.KeepAlive)
	}
	if params.MaxLostKeepAlive != 7 {
		t.Errorf("MaxLostKeepAlive = %d, want 7", params.MaxLostKeepAlive)
	}
}

func TestDefaultDaemonParameters_MalformedEnvIgnored(t *testing.T) {
	orig := os.Getenv(envKeepAliveMillis)
	defer func() {
		if orig != "" {
			os.Setenv(envKeepAliveMillis, orig)
		} else {
			os.Unsetenv(envKeepAliveMillis)
		}
	}()

	os.Setenv(envKeepAliveMillis, "not-a-number")

	paths := &Paths{BaseDir: "/test/mvnd"}
	params := DefaultDaemonParameters(paths)

	if params.KeepAlive != DefaultKeepAlive {
		t.Errorf("KeepAlive = %v, want default %v when env is malformed", params.KeepAlive, DefaultKeepAlive)
	}
}
