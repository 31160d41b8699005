// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
	"github.com/spyglass-foundation/spyglass/lib/clock"
	"github.com/spyglass-foundation/spyglass/lib/fanout"
)

// DefaultFanoutSocket is where the standalone fan-out daemon listens
// when no path is given.
const DefaultFanoutSocket = "/tmp/spyglass-fanout.sock"

const envFanoutSocket = "SPYGLASS_FANOUT_SOCKET"

// statsInterval is how often --stats reports subscriber and line
// counts on the diagnostic stream.
const statsInterval = 5 * time.Second

// acceptInterval is how often queued subscribers are accepted while
// stdin is quiet.
const acceptInterval = 50 * time.Millisecond

func fanoutCommand() *cli.Command {
	var (
		socketPath string
		mode       string
		stats      bool
		flagSet    = pflag.NewFlagSet("fanout", pflag.ContinueOnError)
	)
	flagSet.StringVar(&socketPath, "socket", DefaultFanoutSocket, "unix socket readers connect to")
	flagSet.StringVar(&mode, "mode", "0660", "octal permission bits for the socket file")
	flagSet.BoolVar(&stats, "stats", false, "periodically report subscriber and line counts")

	return &cli.Command{
		Name:    "fanout",
		Summary: "Broadcast a line stream from stdin to socket readers",
		Description: `Read lines from stdin and broadcast each complete line to every
reader connected to the socket. Lines are the unit of delivery: a
reader that connects mid-line never sees a partial event.

This decouples the observation server from its consumers. Pipe the
server's stdout into fanout and any number of readers can subscribe
and drop off without the server noticing.

The socket path can also be set with ` + envFanoutSocket + `; an
explicit --socket wins over the environment.`,
		Examples: []cli.Example{
			{Description: "Broadcast the event stream", Command: "spyglass unix | spyglass fanout"},
			{Description: "Watch it from another terminal", Command: "spyglass subscribe"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			socketPath = stringFromEnv(socketPath, DefaultFanoutSocket, envFanoutSocket)
			socketMode, err := parseSocketMode(mode)
			if err != nil {
				return err
			}
			return runFanout(ctx, os.Stdin, fanout.Options{
				SocketPath: socketPath,
				SocketMode: socketMode,
				Logger:     logger,
			}, stats, clock.Real(), logger)
		},
	}
}

// runFanout pumps complete lines from input to the broadcast socket
// until input is exhausted or the context is cancelled.
func runFanout(ctx context.Context, input io.Reader, options fanout.Options,
	stats bool, clk clock.Clock, logger *slog.Logger) error {

	output, err := fanout.New(options)
	if err != nil {
		return err
	}
	defer output.Close()

	lines := make(chan []byte)
	go readLines(input, lines)

	// The ticker drives reader accepts while stdin is quiet, so a
	// subscriber never waits for the next event to get connected.
	ticker := clk.NewTicker(acceptInterval)
	defer ticker.Stop()

	var published int
	lastStats := clk.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted", "lines", published)
			return nil

		case line, ok := <-lines:
			if !ok {
				logger.Info("input closed", "lines", published)
				return nil
			}
			output.AcceptPending()
			output.Publish(string(line))
			published++

		case <-ticker.C:
			output.AcceptPending()
			if stats && clk.Now().Sub(lastStats) >= statsInterval {
				logger.Info("fanout stats",
					"subscribers", output.ReaderCount(), "lines", published)
				lastStats = clk.Now()
			}
		}
	}
}

// readLines sends each complete newline-terminated line from r on
// lines, then closes the channel. A trailing partial line is dropped:
// half an event is worse than none for downstream readers.
func readLines(r io.Reader, lines chan<- []byte) {
	defer close(lines)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}
		lines <- line
	}
}
