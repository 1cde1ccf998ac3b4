package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvnd-go/mvndc/internal/daemoninfo"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
}

func TestRegistry_EmptyListOnFreshFile(t *testing.T) {
	r := newTestRegistry(t)

	daemons, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, daemons)
}

func TestRegistry_RegisterAndList(t *testing.T) {
	r := newTestRegistry(t)

	info := daemoninfo.Info{
		ID:           "d-1",
		PID:          1234,
		Address:      "/tmp/mvnd/d-1.sock",
		RegisteredAt: time.Now(),
		State:        daemoninfo.StateIdle,
	}
	require.NoError(t, r.Register(info))

	daemons, err := r.List()
	require.NoError(t, err)
	require.Len(t, daemons, 1)
	assert.Equal(t, info.ID, daemons[0].ID)
	assert.Equal(t, info.PID, daemons[0].PID)
}

func TestRegistry_RegisterOverwritesByID(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register(daemoninfo.Info{ID: "d-1", PID: 1}))
	require.NoError(t, r.Register(daemoninfo.Info{ID: "d-1", PID: 2}))

	daemons, err := r.List()
	require.NoError(t, err)
	require.Len(t, daemons, 1)
	assert.Equal(t, 2, daemons[0].PID)
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register(daemoninfo.Info{ID: "d-1"}))
	require.NoError(t, r.Register(daemoninfo.Info{ID: "d-2"}))

	require.NoError(t, r.Remove("d-1"))

	daemons, err := r.List()
	require.NoError(t, err)
	require.Len(t, daemons, 1)
	assert.Equal(t, "d-2", daemons[0].ID)
}

func TestRegistry_RemoveMissingIsNotAnError(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Remove("does-not-exist"))
}

func TestRegistry_RegisterRejectsEmptyID(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(daemoninfo.Info{})
	assert.Error(t, err)
}

func TestRegistry_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "registry.json")
	lockPath := filepath.Join(dir, "registry.lock")

	r1 := New(dataPath, lockPath)
	require.NoError(t, r1.Register(daemoninfo.Info{ID: "d-1", PID: 99}))

	r2 := New(dataPath, lockPath)
	daemons, err := r2.List()
	require.NoError(t, err)
	require.Len(t, daemons, 1)
	assert.Equal(t, 99, daemons[0].PID)

	_, statErr := os.Stat(dataPath)
	assert.NoError(t, statErr)
}
