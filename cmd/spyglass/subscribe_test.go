// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spyglass-foundation/spyglass/lib/testutil"
)

func TestSubscribeCopiesStreamUntilClose(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(testutil.SocketDir(t), "pub.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("{\"a\":1}\n{\"b\":2}\n"))
		conn.Close()
	}()

	var out strings.Builder
	err = runSubscribe(context.Background(), socketPath, &out, discardLogger())
	if err != nil {
		t.Fatalf("runSubscribe: %v", err)
	}
	if got := out.String(); got != "{\"a\":1}\n{\"b\":2}\n" {
		t.Errorf("copied stream = %q", got)
	}
}

func TestSubscribeStopsOnCancel(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(testutil.SocketDir(t), "pub.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	// Publisher that never sends: the subscriber must still come back
	// when cancelled.
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(10 * time.Second)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out strings.Builder
	go func() {
		done <- runSubscribe(ctx, socketPath, &out, discardLogger())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	err = testutil.RequireReceive(t, done, 5*time.Second, "subscriber exit")
	if err != nil {
		t.Errorf("runSubscribe returned %v, want nil on cancel", err)
	}
}

func TestSubscribeUnreachableSocket(t *testing.T) {
	t.Parallel()

	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	var out strings.Builder
	err := runSubscribe(context.Background(), socketPath, &out, discardLogger())
	if err == nil {
		t.Error("subscribing to a missing socket should fail")
	}
}
