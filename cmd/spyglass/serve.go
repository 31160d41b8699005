// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
	"github.com/spyglass-foundation/spyglass/lib/clock"
	"github.com/spyglass-foundation/spyglass/lib/render"
	"github.com/spyglass-foundation/spyglass/server"
)

// Environment overrides for the serve commands. An override applies
// only when the corresponding flag was left at its built-in default,
// so an explicit flag always wins.
const (
	envTCPPort    = "SPYGLASS_TCP_PORT"
	envUnixSocket = "SPYGLASS_UNIX_SOCKET"
)

// renderFlags are the output-shape flags shared by both serve
// commands.
type renderFlags struct {
	prettyJSON   bool
	prettyYAML   bool
	outputSocket string
	tee          bool
}

func (f *renderFlags) register(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&f.prettyJSON, "pretty-json", false,
		"emit indented multi-line JSON instead of JSONL")
	flagSet.BoolVar(&f.prettyYAML, "pretty-yaml", false,
		"emit YAML documents instead of JSONL")
	flagSet.StringVar(&f.outputSocket, "output-socket", "",
		"broadcast events to readers on this unix socket instead of stdout")
	flagSet.BoolVar(&f.tee, "tee", false,
		"with --output-socket, write events to stdout as well")
}

func (f *renderFlags) validate() error {
	if f.prettyJSON && f.prettyYAML {
		return fmt.Errorf("--pretty-json and --pretty-yaml are mutually exclusive")
	}
	if f.tee && f.outputSocket == "" {
		return fmt.Errorf("--tee requires --output-socket")
	}
	return nil
}

func (f *renderFlags) apply(config *server.Config) {
	config.RenderMode = render.ParseMode(f.prettyJSON, f.prettyYAML)
	config.OutputSocketPath = f.outputSocket
	config.Tee = f.tee
}

func tcpCommand() *cli.Command {
	var (
		bind    string
		port    int
		flags   renderFlags
		flagSet = pflag.NewFlagSet("tcp", pflag.ContinueOnError)
	)
	flagSet.IntVar(&port, "port", server.DefaultPort, "TCP port to listen on")
	flagSet.StringVar(&bind, "bind", server.DefaultBindAddress, "address to bind")
	flags.register(flagSet)

	return &cli.Command{
		Name:    "tcp",
		Summary: "Serve hook events over TCP",
		Description: `Listen for hook events on a TCP address. Peers are identified by IP
address only; for kernel-asserted process credentials use the unix
transport instead.

The port can also be set with ` + envTCPPort + `; an explicit --port
wins over the environment.`,
		Examples: []cli.Example{
			{Description: "Listen on the default loopback port", Command: "spyglass tcp"},
			{Description: "Pretty-print events on a custom port", Command: "spyglass tcp --port 9000 --pretty-yaml"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := flags.validate(); err != nil {
				return err
			}
			port, err := portFromEnv(port, envTCPPort)
			if err != nil {
				return err
			}

			config := server.Config{
				Transport:   server.TransportTCP,
				BindAddress: bind,
				Port:        port,
			}
			flags.apply(&config)
			return runServe(ctx, config, logger)
		},
	}
}

func unixCommand() *cli.Command {
	var (
		socketPath string
		mode       string
		flags      renderFlags
		flagSet    = pflag.NewFlagSet("unix", pflag.ContinueOnError)
	)
	flagSet.StringVar(&socketPath, "socket", server.DefaultSocketPath, "unix socket path to listen on")
	flagSet.StringVar(&mode, "mode", "0660", "octal permission bits for the socket file")
	flags.register(flagSet)

	return &cli.Command{
		Name:    "unix",
		Summary: "Serve hook events over a unix socket",
		Description: `Listen for hook events on a filesystem socket. Each event carries the
kernel-asserted pid, uid, and gid of the posting process, which a TCP
peer cannot forge.

The socket path can also be set with ` + envUnixSocket + `; an
explicit --socket wins over the environment.`,
		Examples: []cli.Example{
			{Description: "Listen on the default socket", Command: "spyglass unix"},
			{Description: "Group-readable socket in a project directory", Command: "spyglass unix --socket ./hooks.sock --mode 0664"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := flags.validate(); err != nil {
				return err
			}
			socketPath = stringFromEnv(socketPath, server.DefaultSocketPath, envUnixSocket)
			socketMode, err := parseSocketMode(mode)
			if err != nil {
				return err
			}

			config := server.Config{
				Transport:  server.TransportUnix,
				SocketPath: socketPath,
				SocketMode: socketMode,
			}
			flags.apply(&config)
			return runServe(ctx, config, logger)
		},
	}
}

// runServe finishes the config with process-level facts and runs the
// server until the context is cancelled.
func runServe(ctx context.Context, config server.Config, logger *slog.Logger) error {
	config.Stdout = os.Stdout
	config.StdoutIsTerminal = term.IsTerminal(int(os.Stdout.Fd()))

	srv := server.New(config, logger, clock.Real())
	return srv.Run(ctx)
}

// stringFromEnv resolves the explicit-flag > environment > default
// precedence for a string setting: the environment applies only when
// the flag was left at its built-in default.
func stringFromEnv(flagValue, defaultValue, envName string) string {
	if flagValue != defaultValue {
		return flagValue
	}
	if value := os.Getenv(envName); value != "" {
		return value
	}
	return flagValue
}

// portFromEnv resolves the same precedence for the TCP port.
func portFromEnv(flagValue int, envName string) (int, error) {
	if flagValue != server.DefaultPort {
		return flagValue, nil
	}
	value := os.Getenv(envName)
	if value == "" {
		return flagValue, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s %q: want a port number", envName, value)
	}
	return port, nil
}

// parseSocketMode parses an octal permission string like "0660" or
// "660" into file mode bits.
func parseSocketMode(mode string) (fs.FileMode, error) {
	bits, err := strconv.ParseUint(mode, 8, 32)
	if err != nil || bits > 0o777 {
		return 0, fmt.Errorf("invalid socket mode %q: want octal permission bits like 0660", mode)
	}
	return fs.FileMode(bits), nil
}
