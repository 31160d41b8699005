// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spyglass-foundation/spyglass/lib/testutil"
)

func TestResolveTCPPeer(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	conn := <-accepted
	defer conn.Close()

	peer, ok := Resolve(conn).(NetworkPeer)
	if !ok {
		t.Fatalf("provenance = %T, want NetworkPeer", Resolve(conn))
	}
	if peer.Address != "127.0.0.1" {
		t.Errorf("address = %q, want %q (port must be stripped)", peer.Address, "127.0.0.1")
	}
}

func TestResolveUnixPeer(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skipf("no peer credential facility on %s", runtime.GOOS)
	}

	socketPath := filepath.Join(testutil.SocketDir(t), "peer.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	conn := <-accepted
	defer conn.Close()

	peer, ok := Resolve(conn).(LocalPeer)
	if !ok {
		t.Fatalf("provenance = %T, want LocalPeer", Resolve(conn))
	}

	// The connecting process is this test process.
	if got, want := peer.UID, uint32(os.Getuid()); got != want {
		t.Errorf("uid = %d, want %d", got, want)
	}
	switch runtime.GOOS {
	case "linux":
		if got, want := peer.PID, int32(os.Getpid()); got != want {
			t.Errorf("pid = %d, want %d", got, want)
		}
		if got, want := peer.GID, uint32(os.Getgid()); got != want {
			t.Errorf("gid = %d, want %d", got, want)
		}
	case "darwin":
		// LOCAL_PEERCRED carries no pid; the sentinel marks it absent.
		if peer.PID != -1 {
			t.Errorf("pid = %d, want -1", peer.PID)
		}
	}
}
