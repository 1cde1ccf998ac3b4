package connector

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvnd-go/mvndc/internal/daemonconn"
	"github.com/mvnd-go/mvndc/internal/daemoninfo"
	"github.com/mvnd-go/mvndc/internal/protocol"
	"github.com/mvnd-go/mvndc/internal/registry"
	"github.com/mvnd-go/mvndc/internal/spawner"
	"github.com/mvnd-go/mvndc/internal/transport"
)

func testParams() daemoninfo.Parameters {
	return daemoninfo.Parameters{
		KeepAlive:        200 * time.Millisecond,
		MaxLostKeepAlive: 3,
		ConnectTimeout:   time.Second,
		IdleTimeout:      time.Minute,
	}
}

// serveOnce accepts one connection on ln and plays back a scripted
// exchange: receive the BuildRequest, then dispatch each of replies.
func serveOnce(t *testing.T, ln net.Listener, replies []protocol.Message) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		ft := daemonconn.NewFrameTransport(conn)
		if _, err := ft.Receive(); err != nil {
			return
		}
		for _, m := range replies {
			if err := ft.Dispatch(m); err != nil {
				return
			}
			if err := ft.Flush(); err != nil {
				return
			}
		}
	}()
}

func TestConnector_HappyPath(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "d.sock")

	ln, err := transport.Listen(transport.KindUnix, sockPath)
	require.NoError(t, err)
	defer ln.Close()

	serveOnce(t, ln, []protocol.Message{
		protocol.BuildStarted{PID: 4242},
		protocol.LogLine{Text: "compiling"},
		protocol.BuildFinished{ExitCode: 0},
	})

	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	require.NoError(t, reg.Register(daemoninfo.Info{
		ID:              "d-1",
		Address:         sockPath,
		ProtocolVersion: ProtocolVersion,
	}))

	c := New(reg, spawner.New(nil), testParams(), dir, nil)

	var events []protocol.Message
	finished, err := c.Run(context.Background(), BuildRequest{ProjectDir: dir, Args: []string{"install"}}, func(m protocol.Message) {
		events = append(events, m)
	}, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, finished.ExitCode)
	assert.Len(t, events, 3)
}

func TestConnector_StaleAddressRetriesAgainstNextCandidate(t *testing.T) {
	dir := t.TempDir()
	deadSock := filepath.Join(dir, "dead.sock")
	// Create and immediately close so the path exists but nothing listens.
	ln, err := net.Listen("unix", deadSock)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	ln.Close()

	goodSock := filepath.Join(dir, "good.sock")
	goodLn, err := transport.Listen(transport.KindUnix, goodSock)
	require.NoError(t, err)
	defer goodLn.Close()
	serveOnce(t, goodLn, []protocol.Message{protocol.BuildFinished{ExitCode: 0}})

	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	require.NoError(t, reg.Register(daemoninfo.Info{ID: "dead", Address: deadSock, ProtocolVersion: ProtocolVersion}))

	fakeBin := filepath.Join(dir, "mvnddaemon")
	require.NoError(t, os.WriteFile(fakeBin, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("MVND_DAEMON_PATH", fakeBin)

	probed := false
	spawn := spawner.New(func(address string) bool {
		if probed {
			return true
		}
		probed = true
		return false
	})

	// "dead" sorts before "good", so pickCandidate tries it first; once
	// evicted, the retry's registry scan lands on "good" without ever
	// needing the Spawner.
	require.NoError(t, reg.Register(daemoninfo.Info{ID: "good", Address: goodSock, ProtocolVersion: ProtocolVersion}))

	c := New(reg, spawn, testParams(), dir, nil)

	finished, err := c.Run(context.Background(), BuildRequest{ProjectDir: dir}, nil, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, finished.ExitCode)

	daemons, err := reg.List()
	require.NoError(t, err)
	for _, d := range daemons {
		assert.NotEqual(t, "dead", d.ID)
	}
}

// TestConnector_CancelBuildDispatchesWireMessage verifies that closing
// the cancelBuild channel makes the Connector write a CancelBuild
// frame to the daemon, rather than tearing the connection down
// locally (spec §4.7 step 1).
func TestConnector_CancelBuildDispatchesWireMessage(t *testing.T) {
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "d.sock")

	ln, err := transport.Listen(transport.KindUnix, sockPath)
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan protocol.Kind, 2)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		ft := daemonconn.NewFrameTransport(conn)
		for i := 0; i < 2; i++ {
			m, err := ft.Receive()
			if err != nil {
				return
			}
			received <- m.Kind()
		}
		_ = ft.Dispatch(protocol.BuildFinished{ExitCode: 130})
		_ = ft.Flush()
	}()

	reg := registry.New(filepath.Join(dir, "registry.json"), filepath.Join(dir, "registry.lock"))
	require.NoError(t, reg.Register(daemoninfo.Info{ID: "d-1", Address: sockPath, ProtocolVersion: ProtocolVersion}))

	c := New(reg, spawner.New(nil), testParams(), dir, nil)

	cancelBuild := make(chan struct{})
	go func() {
		<-received // wait for the BuildRequest before asking to cancel
		close(cancelBuild)
	}()

	finished, err := c.Run(context.Background(), BuildRequest{ProjectDir: dir}, nil, nil, cancelBuild)
	require.NoError(t, err)
	assert.EqualValues(t, 130, finished.ExitCode)
	assert.Equal(t, protocol.KindCancelBuild, <-received)
}
