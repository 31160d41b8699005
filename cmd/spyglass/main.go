// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Spyglass is an event observation server for Claude Code hooks. It
// accepts hook payloads over TCP or a unix socket, tags each event
// with verifiable provenance, and emits an ordered JSONL/YAML stream
// to stdout and optional broadcast readers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
	"github.com/spyglass-foundation/spyglass/lib/process"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output return an ExitError
		// with the desired code; don't add a redundant "error:" line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return root().Execute(ctx, os.Args[1:], cli.NewLogger())
}

// root assembles the spyglass command tree.
func root() *cli.Command {
	return &cli.Command{
		Name:    "spyglass",
		Summary: "Observe Claude Code hook events in real time",
		Description: `Spyglass is a transparent observation server for Claude Code hook
events. Hooks POST their JSON payloads to it; spyglass tags each event
with a timestamp and peer provenance and emits one line per event.

The event stream goes to stdout. Diagnostics go to stderr. Pipe stdout
to jq, tee it to a log file, or broadcast it to multiple readers with
an output socket.`,
		Subcommands: []*cli.Command{
			tcpCommand(),
			unixCommand(),
			fanoutCommand(),
			subscribeCommand(),
			installHooksCommand(),
			queryCommand(),
			versionCommand(),
		},
	}
}
