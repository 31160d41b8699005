// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for spyglass packages.
package testutil

import (
	"os"
	"testing"
	"time"
)

// SocketDir creates a temporary directory suitable for unix domain
// sockets.
//
// Unix socket paths are limited to 108 bytes (sun_path in
// sockaddr_un). Test runners sometimes set TMPDIR to deeply nested
// paths that exceed this limit, making t.TempDir() unsuitable for
// socket files, so this creates a short-named directory directly in
// /tmp. It is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "spyglass-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// RequireReceive reads one value from ch within timeout, or fails the
// test. Encapsulates the timeout safety valve so individual tests do
// not need their own time.After plumbing.
func RequireReceive[T any](t *testing.T, ch <-chan T, timeout time.Duration, message string) T {
	t.Helper()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("channel closed without sending a value: %s", message)
		}
		return value
	case <-time.After(timeout):
		t.Fatalf("timed out after %v: %s", timeout, message)
	}
	panic("unreachable")
}

// RequireClosed waits for ch to close (or receive) within timeout, or
// fails the test.
func RequireClosed(t *testing.T, ch <-chan struct{}, timeout time.Duration, message string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out after %v waiting for channel close: %s", timeout, message)
	}
}
