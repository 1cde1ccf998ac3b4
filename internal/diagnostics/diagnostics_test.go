package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/registry"
)

func TestRender_NeverFailsOnMissingLogFile(t *testing.T) {
	reg := registry.New(filepath.Join(t.TempDir(), "registry.json"), filepath.Join(t.TempDir(), "registry.lock"))
	out := Render(reg, filepath.Join(t.TempDir(), "does-not-exist.log"), "d-1")
	assert.Contains(t, out, "d-1")
	assert.Contains(t, out, placeholder)
}

func TestRender_NeverFailsOnNilRegistry(t *testing.T) {
	out := Render(nil, "", "d-1")
	assert.Contains(t, out, "d-1")
}

func TestCollect_ReportsAliveForCurrentProcess(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	require.NoError(t, reg.Register(daemoninfo.Info{ID: "d-1", PID: os.Getpid(), Address: "/tmp/d-1.sock"}))

	report := Collect(reg, "", "d-1")
	require.NotNil(t, report.Info)
	assert.True(t, report.Alive)
	assert.Equal(t, "/tmp/d-1.sock", report.Info.Address)
}

func TestCollect_ReportsDeadForImplausiblePID(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	require.NoError(t, reg.Register(daemoninfo.Info{ID: "d-1", PID: 999999, Address: "/tmp/d-1.sock"}))

	report := Collect(reg, "", "d-1")
	assert.False(t, report.Alive)
}

func TestCollect_UnknownDaemonHasNilInfo(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))

	report := Collect(reg, "", "unknown")
	assert.Nil(t, report.Info)
	assert.False(t, report.Alive)
}

func TestCollect_TailsLogFile(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	logPath := filepath.Join(dir, "d.log")
	content := strings.Repeat("line\n", 5) + "line6\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	report := Collect(reg, logPath, "d-1")
	require.Len(t, report.LogTail, 6)
	assert.Equal(t, "line6", report.LogTail[len(report.LogTail)-1])
}
