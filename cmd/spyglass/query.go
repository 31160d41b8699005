// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
	"github.com/spyglass-foundation/spyglass/lib/envelope"
	"github.com/spyglass-foundation/spyglass/lib/render"
)

func queryCommand() *cli.Command {
	var (
		jsonl   bool
		tool    string
		session string
		files   []string
		flagSet = pflag.NewFlagSet("query", pflag.ContinueOnError)
	)
	flagSet.BoolVar(&jsonl, "jsonl", false, "emit compact JSONL instead of indented JSON")
	flagSet.StringVar(&tool, "tool", "", "keep only events with this tool_name")
	flagSet.StringVar(&session, "session", "", "keep only events with this session_id")
	flagSet.StringArrayVar(&files, "file", nil, "JSONL log file to read (default stdin, repeatable)")

	return &cli.Command{
		Name:    "query",
		Summary: "Filter a captured event stream",
		Usage:   "spyglass query [event ...] [flags]",
		Description: `Read JSONL event logs (captured server output) and keep the events
matching the given event types and filters. Lines that are not JSON
objects are skipped. Output is indented JSON for reading, or compact
JSONL with --jsonl for piping into jq.`,
		Examples: []cli.Example{
			{Description: "All tool invocations from a log", Command: "spyglass query PreToolUse --file events.jsonl"},
			{Description: "Bash commands only, as a jq pipeline", Command: "spyglass query PreToolUse --tool Bash --jsonl | jq .tool_input"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			mode := render.PrettyJSON
			if jsonl {
				mode = render.JSONL
			}
			query := &eventQuery{
				events:   args,
				tool:     tool,
				session:  session,
				renderer: render.New(mode, term.IsTerminal(int(os.Stdout.Fd()))),
				out:      os.Stdout,
			}

			if len(files) == 0 {
				return query.filter(os.Stdin)
			}
			for _, path := range files {
				file, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				err = query.filter(file)
				file.Close()
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			return nil
		},
	}
}

type eventQuery struct {
	events   []string
	tool     string
	session  string
	renderer *render.Renderer
	out      io.Writer
}

// filter copies the events from one JSONL stream that match the query
// to the output. Unparseable lines are skipped, not fatal: logs
// captured with tee often have a truncated last line.
func (q *eventQuery) filter(input io.Reader) error {
	reader := bufio.NewReader(input)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if event, decodeErr := envelope.DecodeObject(line); decodeErr == nil && q.matches(event) {
				rendered, renderErr := q.renderer.Render(event)
				if renderErr != nil {
					return renderErr
				}
				if _, err := io.WriteString(q.out, rendered); err != nil {
					return err
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (q *eventQuery) matches(event *envelope.Envelope) bool {
	if len(q.events) > 0 && !hasStringField(event, "_event", q.events...) {
		return false
	}
	if q.tool != "" && !hasStringField(event, "tool_name", q.tool) {
		return false
	}
	if q.session != "" && !hasStringField(event, "session_id", q.session) {
		return false
	}
	return true
}

func hasStringField(event *envelope.Envelope, key string, accepted ...string) bool {
	value, ok := event.Get(key)
	if !ok {
		return false
	}
	text, ok := value.(string)
	if !ok {
		return false
	}
	for _, want := range accepted {
		if text == want {
			return true
		}
	}
	return false
}
