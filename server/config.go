// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"io/fs"

	"github.com/spyglass-foundation/spyglass/lib/render"
)

// Transport selects the listener kind.
type Transport string

const (
	// TransportTCP listens on a network address. Peers are identified
	// by IP address only.
	TransportTCP Transport = "tcp"

	// TransportUnix listens on a filesystem socket. Peer process
	// credentials are kernel-asserted.
	TransportUnix Transport = "unix"
)

// Built-in defaults. Environment overrides apply only when the
// corresponding flag was left at these values; an explicit flag always
// wins.
const (
	DefaultBindAddress = "127.0.0.1"
	DefaultPort        = 23518
	DefaultSocketPath  = "/tmp/spyglass.sock"
	DefaultSocketMode  = fs.FileMode(0o660)
)

// Config is the server's startup configuration. Immutable once the
// server is running.
type Config struct {
	// Transport is the listener kind.
	Transport Transport

	// BindAddress and Port are the TCP bind target.
	BindAddress string
	Port        int

	// SocketPath is the unix-socket bind target.
	SocketPath string

	// SocketMode is applied to the socket file after bind.
	// Best-effort: failure is a warning, not fatal.
	SocketMode fs.FileMode

	// RenderMode selects the output encoding.
	RenderMode render.Mode

	// StdoutIsTerminal reports whether the primary destination is an
	// interactive terminal. Affects only the PrettyYAML encoding.
	StdoutIsTerminal bool

	// OutputSocketPath, when set, binds a secondary broadcast socket
	// that readers connect to for a copy of the event stream.
	OutputSocketPath string

	// Tee writes events to both stdout and the broadcast readers.
	// Meaningful only with OutputSocketPath.
	Tee bool

	// Stdout is the primary event destination. Defaults to
	// os.Stdout; tests substitute a buffer.
	Stdout io.Writer
}
