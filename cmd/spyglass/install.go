// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/spyglass-foundation/spyglass/cmd/spyglass/cli"
	"github.com/spyglass-foundation/spyglass/lib/clock"
	"github.com/spyglass-foundation/spyglass/lib/envelope"
	"github.com/spyglass-foundation/spyglass/server"
)

// hookEvents are the Claude Code hook event types the installer
// registers, in the order they appear in the written settings.
var hookEvents = []string{
	"SessionStart",
	"UserPromptSubmit",
	"PreToolUse",
	"PostToolUse",
	"PostToolUseFailure",
	"PermissionRequest",
	"Notification",
	"Stop",
	"SubagentStop",
	"SubagentStart",
	"PreCompact",
	"SessionEnd",
}

// matcherEvents maps the events that take a matcher to the matcher
// value the installer writes. Events absent from this map take no
// matcher field at all.
var matcherEvents = map[string]string{
	"PreToolUse":         "*",
	"PostToolUse":        "*",
	"PostToolUseFailure": "*",
	"PermissionRequest":  "*",
	"Notification":       "",
	"PreCompact":         "",
	"SubagentStart":      "*",
	"SubagentStop":       "*",
	"SessionStart":       "",
	"SessionEnd":         "",
}

// hookMarker identifies hook commands written by this installer, for
// uninstall. Every generated command posts to /hook?event=, whichever
// transport it uses.
const hookMarker = "/hook?event="

func installHooksCommand() *cli.Command {
	var (
		globalScope  bool
		projectScope bool
		socketPath   string
		useTCP       bool
		bind         string
		port         int
		dryRun       bool
		uninstall    bool
		flagSet      = pflag.NewFlagSet("install-hooks", pflag.ContinueOnError)
	)
	flagSet.BoolVar(&globalScope, "global", false, "install to ~/.claude/settings.json")
	flagSet.BoolVar(&projectScope, "project", false, "install to .claude/settings.json")
	flagSet.StringVar(&socketPath, "socket", "",
		"unix socket the hooks post to (default "+server.DefaultSocketPath+")")
	flagSet.BoolVar(&useTCP, "tcp", false, "generate TCP hooks instead of unix-socket hooks")
	flagSet.StringVar(&bind, "bind", server.DefaultBindAddress, "TCP address for --tcp hooks")
	flagSet.IntVar(&port, "port", server.DefaultPort, "TCP port for --tcp hooks")
	flagSet.BoolVar(&dryRun, "dry-run", false, "show the diff without writing")
	flagSet.BoolVar(&uninstall, "uninstall", false, "remove previously installed hooks")

	return &cli.Command{
		Name:    "install-hooks",
		Summary: "Merge observation hooks into Claude Code settings",
		Description: `Register a hook for every Claude Code event type that posts the
event payload to a running spyglass server. The hook commands use curl
with short timeouts and '|| true', so they silently no-op when no
server is listening.

Existing settings are preserved: hooks for other tools are left alone,
a timestamped backup is written before any change, and the diff is
shown first. --uninstall removes exactly the hooks this command
installed and nothing else.`,
		Examples: []cli.Example{
			{Description: "Preview what would change", Command: "spyglass install-hooks --project --dry-run"},
			{Description: "Install unix-socket hooks globally", Command: "spyglass install-hooks --global"},
			{Description: "Remove them again", Command: "spyglass install-hooks --global --uninstall"},
		},
		Flags: func() *pflag.FlagSet { return flagSet },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if globalScope == projectScope {
				return fmt.Errorf("choose exactly one of --global or --project")
			}
			targetPath, err := settingsPath(globalScope)
			if err != nil {
				return err
			}

			if socketPath == "" {
				socketPath = os.Getenv(envUnixSocket)
			}
			if socketPath == "" {
				socketPath = server.DefaultSocketPath
			}

			commandFor := func(event string) string {
				return unixCurlCommand(socketPath, event)
			}
			if useTCP {
				commandFor = func(event string) string {
					return tcpCurlCommand(bind, port, event)
				}
			}

			installer := &hookInstaller{
				targetPath: targetPath,
				commandFor: commandFor,
				dryRun:     dryRun,
				uninstall:  uninstall,
				clock:      clock.Real(),
				logger:     logger,
			}
			return installer.run()
		},
	}
}

// settingsPath resolves the Claude Code settings file for the chosen
// scope.
func settingsPath(global bool) (string, error) {
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, ".claude", "settings.json"), nil
	}
	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolving working directory: %w", err)
	}
	return filepath.Join(workingDir, ".claude", "settings.json"), nil
}

// unixCurlCommand builds the hook command for a unix-socket server.
// curl requires a URL even over a unix socket; the hostname is ignored
// and only the socket path matters for routing. The trailing '|| true'
// keeps the hook silent when no server is listening, instead of curl's
// exit 7 surfacing as a hook error on every tool use.
func unixCurlCommand(socketPath, event string) string {
	return fmt.Sprintf("curl -s --connect-timeout 0.5 --max-time 1 "+
		"--unix-socket %s "+
		"-X POST -H 'Content-Type: application/json' -d @- "+
		"'http://localhost/hook?event=%s' || true", socketPath, event)
}

// tcpCurlCommand builds the hook command for a TCP server.
func tcpCurlCommand(bind string, port int, event string) string {
	return fmt.Sprintf("curl -s --connect-timeout 1 --max-time 2 "+
		"-X POST -H 'Content-Type: application/json' -d @- "+
		"'http://%s:%d/hook?event=%s' || true", bind, port, event)
}

// hookInstaller carries one install or uninstall run.
type hookInstaller struct {
	targetPath string
	commandFor func(event string) string
	dryRun     bool
	uninstall  bool
	clock      clock.Clock
	logger     *slog.Logger
}

func (in *hookInstaller) run() error {
	settings, err := loadSettings(in.targetPath)
	if err != nil {
		return err
	}
	oldContent, err := renderSettings(settings)
	if err != nil {
		return err
	}

	if in.uninstall {
		removeObservationHooks(settings)
	} else {
		mergeObservationHooks(settings, in.commandFor)
	}

	newContent, err := renderSettings(settings)
	if err != nil {
		return err
	}

	diff := unifiedDiff(oldContent, newContent, in.targetPath)
	if diff == "" {
		fmt.Println("No changes.")
		return nil
	}
	fmt.Print(diff)

	if in.dryRun {
		fmt.Println("\nDry run, nothing written.")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(in.targetPath), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}
	if _, err := os.Stat(in.targetPath); err == nil {
		backupPath, err := in.backup()
		if err != nil {
			return err
		}
		in.logger.Info("backup created", "path", backupPath)
	}
	if err := os.WriteFile(in.targetPath, []byte(newContent), 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	in.logger.Info("settings written", "path", in.targetPath)
	return nil
}

// backup copies the current settings file aside with a timestamp
// suffix before it is rewritten.
func (in *hookInstaller) backup() (string, error) {
	data, err := os.ReadFile(in.targetPath)
	if err != nil {
		return "", fmt.Errorf("reading settings for backup: %w", err)
	}
	backupPath := in.targetPath + ".bak-" + in.clock.Now().Format("060102-1504")
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	return backupPath, nil
}

// loadSettings reads a settings file into an order-preserving
// envelope. Comments and trailing commas are tolerated on the way in;
// the file is rewritten as plain JSON. A missing file is an empty
// settings object.
func loadSettings(path string) (*envelope.Envelope, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return envelope.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	settings, err := envelope.DecodeObject(jsonc.ToJSON(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return settings, nil
}

// renderSettings encodes settings as indented JSON with a trailing
// newline, the form written to disk and diffed.
func renderSettings(settings *envelope.Envelope) (string, error) {
	compact, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, compact, "", "  "); err != nil {
		return "", fmt.Errorf("indenting settings: %w", err)
	}
	return indented.String() + "\n", nil
}

// mergeObservationHooks sets this installer's hook list for every
// event type, replacing any previous install for those events and
// leaving everything else in the file untouched.
func mergeObservationHooks(settings *envelope.Envelope, commandFor func(event string) string) {
	hooks := hooksSection(settings)
	for _, event := range hookEvents {
		entry := envelope.New()
		entry.Set("hooks", []any{hookCommand(commandFor(event))})
		if matcher, ok := matcherEvents[event]; ok {
			entry.Set("matcher", matcher)
		}
		hooks.Set(event, []any{entry})
	}
	settings.Set("hooks", hooks)
}

func hooksSection(settings *envelope.Envelope) *envelope.Envelope {
	if value, ok := settings.Get("hooks"); ok {
		if hooks, ok := value.(*envelope.Envelope); ok {
			return hooks
		}
	}
	return envelope.New()
}

func hookCommand(command string) *envelope.Envelope {
	hook := envelope.New()
	hook.Set("type", "command")
	hook.Set("command", command)
	return hook
}

// removeObservationHooks strips every hook command carrying the
// installer's marker, dropping entries and events that end up empty.
// Hooks belonging to other tools survive even when they share an event
// with ours.
func removeObservationHooks(settings *envelope.Envelope) {
	hooks := hooksSection(settings)

	remaining := envelope.New()
	for _, field := range hooks.Fields() {
		entries, ok := field.Value.([]any)
		if !ok {
			remaining.Set(field.Key, field.Value)
			continue
		}
		var kept []any
		for _, value := range entries {
			entry, ok := value.(*envelope.Envelope)
			if !ok {
				kept = append(kept, value)
				continue
			}
			if filtered := filterHookEntry(entry); filtered != nil {
				kept = append(kept, filtered)
			}
		}
		if len(kept) > 0 {
			remaining.Set(field.Key, kept)
		}
	}

	if remaining.Len() == 0 {
		settings.Delete("hooks")
		return
	}
	settings.Set("hooks", remaining)
}

// filterHookEntry returns entry with marked commands removed, or nil
// when nothing is left.
func filterHookEntry(entry *envelope.Envelope) *envelope.Envelope {
	value, ok := entry.Get("hooks")
	if !ok {
		return entry
	}
	commands, ok := value.([]any)
	if !ok {
		return entry
	}

	var kept []any
	for _, item := range commands {
		hook, ok := item.(*envelope.Envelope)
		if ok {
			if command, ok := hook.Get("command"); ok {
				if text, ok := command.(string); ok && strings.Contains(text, hookMarker) {
					continue
				}
			}
		}
		kept = append(kept, item)
	}
	if len(kept) == 0 {
		return nil
	}
	entry.Set("hooks", kept)
	return entry
}

// unifiedDiff renders a minimal unified diff between two texts: the
// shared prefix and suffix are elided and the changed middle is shown
// as one hunk with up to three lines of context on each side.
func unifiedDiff(oldText, newText, path string) string {
	if oldText == newText {
		return ""
	}
	oldLines := strings.SplitAfter(oldText, "\n")
	newLines := strings.SplitAfter(newText, "\n")
	// SplitAfter leaves a trailing "" when the text ends in a newline.
	if n := len(oldLines); n > 0 && oldLines[n-1] == "" {
		oldLines = oldLines[:n-1]
	}
	if n := len(newLines); n > 0 && newLines[n-1] == "" {
		newLines = newLines[:n-1]
	}

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	const context = 3
	contextBefore := min(context, prefix)
	contextAfter := min(context, suffix)

	oldStart := prefix - contextBefore
	oldCount := (len(oldLines) - suffix + contextAfter) - oldStart
	newStart := prefix - contextBefore
	newCount := (len(newLines) - suffix + contextAfter) - newStart

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s (current)\n", path)
	fmt.Fprintf(&out, "+++ %s (new)\n", path)
	fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", oldStart+1, oldCount, newStart+1, newCount)

	for _, line := range oldLines[oldStart:prefix] {
		out.WriteString(" " + line)
	}
	for _, line := range oldLines[prefix : len(oldLines)-suffix] {
		out.WriteString("-" + line)
	}
	for _, line := range newLines[prefix : len(newLines)-suffix] {
		out.WriteString("+" + line)
	}
	for _, line := range oldLines[len(oldLines)-suffix : len(oldLines)-suffix+contextAfter] {
		out.WriteString(" " + line)
	}
	return out.String()
}
