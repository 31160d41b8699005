// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package server runs the observatory's accept loop: it listens on a
// TCP or unix socket, decodes one HTTP request per connection, tags
// the event payload with peer provenance, and hands the rendered line
// to the output fanout.
//
// Connection handling is fully synchronous — one request in flight at
// a time. Hook payloads are small and arrive at human speed, so the
// single-threaded loop is a deliberate simplification: a slow peer
// can stall the loop for the duration of its read, which is accepted.
// The fanout's reader set is the only cross-connection state, and it
// is already mutex-guarded, so making the loop concurrent later only
// requires spawning handleConnection onto its own goroutine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spyglass-foundation/spyglass/lib/clock"
	"github.com/spyglass-foundation/spyglass/lib/envelope"
	"github.com/spyglass-foundation/spyglass/lib/fanout"
	"github.com/spyglass-foundation/spyglass/lib/peercred"
	"github.com/spyglass-foundation/spyglass/lib/render"
	"github.com/spyglass-foundation/spyglass/lib/wire"
)

// acceptPollInterval bounds how long Accept blocks before the loop
// rechecks the shutdown context and the pending output readers. Short
// enough to feel instant on Ctrl-C, long enough to not spin.
const acceptPollInterval = 50 * time.Millisecond

// readBufferSize is the per-read buffer. A single read captures the
// whole request for typical hook payloads; larger bodies are completed
// against content-length.
const readBufferSize = 64 * 1024

// healthBody is the fixed GET /health response payload.
var healthBody = []byte(`{"status":"ok"}`)

// deadlineListener is the subset of net.TCPListener and
// net.UnixListener the accept loop needs: Accept with a deadline so
// the loop can poll for shutdown.
type deadlineListener interface {
	net.Listener
	SetDeadline(time.Time) error
}

// Server owns the listener lifecycle and the per-connection pipeline.
type Server struct {
	config   Config
	logger   *slog.Logger
	clock    clock.Clock
	renderer *render.Renderer

	ready chan struct{}
	addr  net.Addr
}

// New creates a server from config. Call Run to bind and serve.
func New(config Config, logger *slog.Logger, clk clock.Clock) *Server {
	return &Server{
		config:   config,
		logger:   logger,
		clock:    clk,
		renderer: render.New(config.RenderMode, config.StdoutIsTerminal),
		ready:    make(chan struct{}),
	}
}

// Ready is closed once the server is listening. Addr is valid after
// Ready closes.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listener address. Only valid after Ready.
func (s *Server) Addr() net.Addr { return s.addr }

// Run binds the listener and serves until ctx is cancelled. Bind
// failures are returned (the process exits non-zero); everything that
// happens after a successful bind is contained per connection. On
// return the listener is closed and any socket files this server
// created are removed, on every exit path.
func (s *Server) Run(ctx context.Context) error {
	listener, err := s.bind()
	if err != nil {
		return err
	}
	defer listener.Close()

	if s.config.Transport == TransportUnix {
		// The socket file is exclusively ours: remove it on normal
		// return, error, and cancellation alike. Closing a unix
		// listener unlinks the file too; the explicit remove covers
		// listeners that died before Close.
		defer os.Remove(s.config.SocketPath)

		if err := os.Chmod(s.config.SocketPath, s.config.SocketMode); err != nil {
			s.logger.Warn("setting socket permissions",
				"path", s.config.SocketPath, "error", err)
		} else {
			s.logger.Info("socket permissions set",
				"mode", fmt.Sprintf("%#o", s.config.SocketMode))
		}
	}

	output, err := fanout.New(fanout.Options{
		SocketPath: s.config.OutputSocketPath,
		Tee:        s.config.Tee,
		Stdout:     s.config.Stdout,
		Logger:     s.logger,
	})
	if err != nil {
		return err
	}
	defer output.Close()

	s.addr = listener.Addr()
	s.logger.Info("observatory listening",
		"transport", string(s.config.Transport),
		"address", s.addr.String(),
	)
	close(s.ready)

	for ctx.Err() == nil {
		// Pick up new broadcast readers between request cycles —
		// never on the per-request hot path.
		output.AcceptPending()

		// A short accept deadline doubles as the idle sleep: the
		// loop wakes at least every poll interval to observe ctx.
		listener.SetDeadline(time.Now().Add(acceptPollInterval))
		conn, err := listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.handleConnection(conn, output)
	}

	s.logger.Info("shutting down")
	return nil
}

// handleConnection runs the full pipeline for one connection:
// decode → route → resolve provenance → enrich → render → publish →
// respond. The connection is blocking for the duration of the request
// and closed on return. Transport errors abandon the connection
// silently; they never affect the loop.
func (s *Server) handleConnection(conn net.Conn, output *fanout.Output) {
	defer conn.Close()

	// Reads and writes block for the duration of the request. No
	// per-connection deadline: a slow peer stalls the loop, which the
	// synchronous design accepts.
	buffer := make([]byte, readBufferSize)
	n, err := conn.Read(buffer)
	if err != nil || n == 0 {
		return
	}

	request := wire.ParseRequest(buffer[:n])

	// Health matches on the full request target, query string included:
	// "/health?x=1" is not the health endpoint.
	if request.Method == "GET" && request.Path == "/health" {
		conn.Write(wire.BuildResponse(200, healthBody))
		return
	}
	if request.Method != "POST" {
		conn.Write(wire.BuildResponse(404, nil))
		return
	}

	eventName := "Unknown"
	if query := request.Query(); query != "" {
		if name, ok := wire.ParseQuery(query)["event"]; ok {
			eventName = name
		}
	}

	body := completeBody(conn, request)
	provenance := peercred.Resolve(conn)
	event := envelope.Build(body, eventName, provenance, s.clock.Now())

	line, err := s.renderer.Render(event)
	if err != nil {
		// Render failures should be impossible for decoded JSON;
		// log and still acknowledge so the hook client never hangs.
		s.logger.Error("rendering event", "event", eventName, "error", err)
	} else {
		output.Publish(line)
	}

	conn.Write(wire.BuildResponse(200, nil))
}

// completeBody extends the initially read body until the declared
// content-length is satisfied or the connection ends. Truncation is
// best-effort: a short body is processed as-is rather than failing
// the request.
func completeBody(conn net.Conn, request wire.Request) []byte {
	body := request.Body
	expected, ok := request.ContentLength()
	if !ok {
		return body
	}

	for len(body) < expected {
		chunk := make([]byte, readBufferSize)
		n, err := conn.Read(chunk)
		if n > 0 {
			body = append(body, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return body
}

// bind resolves the configured bind target and listens. For unix
// sockets, any stale file from a previous crash is removed first.
func (s *Server) bind() (deadlineListener, error) {
	switch s.config.Transport {
	case TransportUnix:
		if err := os.Remove(s.config.SocketPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale socket %s: %w", s.config.SocketPath, err)
		}
		address, err := net.ResolveUnixAddr("unix", s.config.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("resolving socket path %s: %w", s.config.SocketPath, err)
		}
		listener, err := net.ListenUnix("unix", address)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", s.config.SocketPath, err)
		}
		return listener, nil

	case TransportTCP:
		target := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
		listener, err := net.Listen("tcp", target)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", target, err)
		}
		return listener.(*net.TCPListener), nil
	}

	return nil, fmt.Errorf("unknown transport %q", s.config.Transport)
}
