// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package fanout owns the output side of the observatory: the primary
// destination (stdout) and an optional secondary unix socket whose
// connected readers each receive a copy of every published line.
//
// Readers are unreliable by design — they connect and vanish at will,
// and a dead reader must never take the event stream down with it. A
// failed write evicts the reader after the broadcast pass completes;
// nothing is buffered and nothing is retried, matching PUB/SUB "slow
// subscribers are dropped" semantics.
package fanout

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// writeTimeout bounds a broadcast write to one reader. A reader that
// cannot drain a line this fast is treated the same as a dead one.
const writeTimeout = time.Second

// acceptDrainWindow bounds one AcceptPending pass. The deadline must
// sit in the future: Go's poller fails a deadline already in the past
// before attempting the accept, so an expired deadline would never
// drain the backlog.
const acceptDrainWindow = time.Millisecond

// Options configures an Output.
type Options struct {
	// SocketPath is the secondary broadcast socket. Empty means no
	// secondary destination: every publish goes to Stdout.
	SocketPath string

	// SocketMode, when nonzero, is applied to the socket file after
	// bind. Best-effort; failure is logged, not fatal.
	SocketMode fs.FileMode

	// Tee writes each line to Stdout in addition to the broadcast
	// readers. Only meaningful with a SocketPath.
	Tee bool

	// Stdout is the primary destination. Defaults to os.Stdout.
	Stdout io.Writer

	// Logger receives connect/evict diagnostics. Required.
	Logger *slog.Logger
}

// Output is the destination set for published event lines. All
// mutation of the reader set goes through Output's methods; it is the
// single mutation point for the only state shared across connections.
type Output struct {
	stdout     io.Writer
	logger     *slog.Logger
	tee        bool
	socketPath string

	mu       sync.Mutex
	listener *net.UnixListener
	readers  []net.Conn
}

// New creates the output manager. When a socket path is configured,
// any stale file at that path is removed, the listener is bound, and
// the path is reported on the diagnostic stream.
func New(options Options) (*Output, error) {
	output := &Output{
		stdout:     options.Stdout,
		logger:     options.Logger,
		tee:        options.Tee,
		socketPath: options.SocketPath,
	}
	if output.stdout == nil {
		output.stdout = os.Stdout
	}

	if options.SocketPath == "" {
		return output, nil
	}

	if err := os.Remove(options.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale output socket %s: %w", options.SocketPath, err)
	}

	address, err := net.ResolveUnixAddr("unix", options.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("resolving output socket %s: %w", options.SocketPath, err)
	}
	listener, err := net.ListenUnix("unix", address)
	if err != nil {
		return nil, fmt.Errorf("listening on output socket %s: %w", options.SocketPath, err)
	}
	output.listener = listener

	if options.SocketMode != 0 {
		if err := os.Chmod(options.SocketPath, options.SocketMode); err != nil {
			output.logger.Warn("setting output socket permissions",
				"path", options.SocketPath, "error", err)
		}
	}

	output.logger.Info("output socket listening", "path", options.SocketPath)
	return output, nil
}

// AcceptPending drains every connection currently queued on the
// secondary listener without blocking. The owning loop calls this
// between request cycles — never on the per-request hot path.
func (o *Output) AcceptPending() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.listener == nil {
		return
	}

	// Queued connections are returned immediately; once the backlog
	// is empty the final Accept fails with a timeout at the window's
	// edge, bounding the pass.
	o.listener.SetDeadline(time.Now().Add(acceptDrainWindow))
	for {
		conn, err := o.listener.Accept()
		if err != nil {
			return
		}
		o.readers = append(o.readers, conn)
		o.logger.Info("output reader connected", "total", len(o.readers))
	}
}

// Publish writes one rendered line to the configured destinations:
// stdout when no secondary socket exists, the broadcast readers when
// one does, and both under tee. Reader write failures mark the reader
// for eviction; eviction happens after the full pass so iteration
// stays stable.
func (o *Output) Publish(line string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	toStdout := o.listener == nil || o.tee
	if toStdout {
		// Primary destination errors are not actionable here; a
		// closed stdout ends the process soon enough anyway.
		io.WriteString(o.stdout, line)
	}
	if o.listener != nil {
		o.broadcastLocked([]byte(line))
	}
}

// broadcastLocked writes to every reader, then prunes the dead ones.
// Callers hold o.mu.
func (o *Output) broadcastLocked(data []byte) {
	var dead []int
	for i, reader := range o.readers {
		reader.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := reader.Write(data); err != nil {
			dead = append(dead, i)
		}
	}

	// Remove in reverse so earlier indices stay valid.
	for i := len(dead) - 1; i >= 0; i-- {
		position := dead[i]
		o.readers[position].Close()
		o.readers = append(o.readers[:position], o.readers[position+1:]...)
	}
	if len(dead) > 0 {
		o.logger.Info("dropped output readers",
			"dropped", len(dead), "remaining", len(o.readers))
	}
}

// ReaderCount returns the number of currently connected readers.
func (o *Output) ReaderCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.readers)
}

// Close drops all readers, stops listening, and removes the socket
// file if one was created. Safe to call more than once.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, reader := range o.readers {
		reader.Close()
	}
	o.readers = nil

	if o.listener == nil {
		return nil
	}
	err := o.listener.Close()
	o.listener = nil
	if removeErr := os.Remove(o.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		err = errors.Join(err, removeErr)
	}
	return err
}
