// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
)

func subscribeCommand() *cli.Command {
	var (
		socketPath string
		flagSet    = pflag.NewFlagSet("subscribe", pflag.ContinueOnError)
	)
	flagSet.StringVar(&socketPath, "socket", "",
		"unix socket to subscribe to (default "+DefaultFanoutSocket+")")

	return &cli.Command{
		Name:    "subscribe",
		Summary: "Stream events from a broadcast socket to stdout",
		Description: `Connect to a broadcast socket (the server's --output-socket or a
standalone fanout daemon) and copy its stream to stdout until the
publisher goes away or the subscription is interrupted.

The socket path can also be set with ` + envFanoutSocket + `; an
explicit --socket wins over the environment.`,
		Examples: []cli.Example{
			{Description: "Follow the default broadcast socket", Command: "spyglass subscribe"},
			{Description: "Filter the stream with jq", Command: "spyglass subscribe | jq .tool_name"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if socketPath == "" {
				socketPath = os.Getenv(envFanoutSocket)
			}
			if socketPath == "" {
				socketPath = DefaultFanoutSocket
			}
			return runSubscribe(ctx, socketPath, os.Stdout, logger)
		},
	}
}

func runSubscribe(ctx context.Context, socketPath string, out io.Writer, logger *slog.Logger) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		logger.Error("cannot connect, is the publisher running?",
			"socket", socketPath, "error", err)
		return &cli.ExitError{Code: 1}
	}
	defer conn.Close()
	logger.Info("subscribed", "socket", socketPath)

	// Closing the connection is the only way to unblock the copy when
	// the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if _, err := io.Copy(out, conn); err != nil {
		if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
			logger.Info("subscription interrupted")
			return nil
		}
		return fmt.Errorf("reading event stream: %w", err)
	}
	logger.Info("publisher closed the stream")
	return nil
}
