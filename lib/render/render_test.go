// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"strings"
	"testing"
	"time"

	"github.com/spyglass-foundation/spyglass/lib/envelope"
	"github.com/spyglass-foundation/spyglass/lib/peercred"
)

func testEvent(t *testing.T) *envelope.Envelope {
	t.Helper()
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return envelope.Build(
		[]byte(`{"tool_name":"Bash","tool_input":{"command":"ls -la"},"count":3}`),
		"PreToolUse", peercred.NetworkPeer{Address: "127.0.0.1"}, when)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prettyJSON bool
		prettyYAML bool
		want       Mode
	}{
		{false, false, JSONL},
		{true, false, PrettyJSON},
		{false, true, PrettyYAML},
	}
	for _, test := range tests {
		if got := ParseMode(test.prettyJSON, test.prettyYAML); got != test.want {
			t.Errorf("ParseMode(%v, %v) = %v, want %v",
				test.prettyJSON, test.prettyYAML, got, test.want)
		}
	}
}

func TestJSONLIsOneLine(t *testing.T) {
	t.Parallel()

	line, err := New(JSONL, false).Render(testEvent(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Error("output must be newline-terminated")
	}
	if strings.Count(line, "\n") != 1 {
		t.Errorf("JSONL output must be a single line, got %q", line)
	}
	if !strings.HasPrefix(line, `{"_ts":"2026-03-14T09:26:53+00:00","_event":"PreToolUse"`) {
		t.Errorf("metadata fields not first: %q", line)
	}
}

func TestJSONLRoundTrips(t *testing.T) {
	t.Parallel()

	event := testEvent(t)
	line, err := New(JSONL, false).Render(event)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	decoded, err := envelope.DecodeObject([]byte(line))
	if err != nil {
		t.Fatalf("decoding rendered line: %v", err)
	}
	again, err := New(JSONL, false).Render(decoded)
	if err != nil {
		t.Fatalf("re-render: %v", err)
	}
	if again != line {
		t.Errorf("round trip changed output:\n first = %q\nsecond = %q", line, again)
	}
}

func TestPrettyJSONIsIndented(t *testing.T) {
	t.Parallel()

	output, err := New(PrettyJSON, false).Render(testEvent(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(output, "\n  \"_event\": \"PreToolUse\"") {
		t.Errorf("expected two-space indentation, got %q", output)
	}
	if !strings.Contains(output, "    \"command\": \"ls -la\"") {
		t.Errorf("nested object not indented deeper: %q", output)
	}
	if !strings.HasSuffix(output, "}\n") {
		t.Errorf("output should end with closing brace and newline: %q", output)
	}
}

func TestPrettyYAMLPiped(t *testing.T) {
	t.Parallel()

	output, err := New(PrettyYAML, false).Render(testEvent(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if !strings.HasPrefix(output, "---\n") {
		t.Errorf("document should start with plain separator: %q", output)
	}
	if strings.Contains(output, "\x1b[") {
		t.Errorf("piped output must not contain escape codes: %q", output)
	}

	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	want := []string{
		"---",
		"_ts: \"2026-03-14T09:26:53+00:00\"",
		"_event: PreToolUse",
		"_client: 127.0.0.1",
		"tool_name: Bash",
		"tool_input:",
		"  command: ls -la",
		"count: 3",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), output)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPrettyYAMLTerminal(t *testing.T) {
	t.Parallel()

	output, err := New(PrettyYAML, true).Render(testEvent(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(output, "\x1b[") {
		t.Error("terminal output should contain escape codes")
	}
	// Keys are styled, values are not.
	if !strings.Contains(output, "_event:\x1b[0m PreToolUse") {
		t.Errorf("key should be bold up to and including the colon: %q", output)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{JSONL, PrettyJSON, PrettyYAML} {
		renderer := New(mode, false)
		event := testEvent(t)
		first, err := renderer.Render(event)
		if err != nil {
			t.Fatalf("mode %v: %v", mode, err)
		}
		second, err := renderer.Render(event)
		if err != nil {
			t.Fatalf("mode %v: %v", mode, err)
		}
		if first != second {
			t.Errorf("mode %v: same envelope rendered differently", mode)
		}
	}
}

func TestHighlightLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want string
	}{
		{"empty", "", ""},
		{"list item", "- item", "- item"},
		{"comment", "# note", "# note"},
		{"no colon", "just text", "just text"},
		{"key value", "key: value", "\x1b[1mkey:\x1b[0m value"},
		{"indented key", "  nested: x", "\x1b[1m  nested:\x1b[0m x"},
		{"bare key", "parent:", "\x1b[1mparent:\x1b[0m"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := highlightLine(test.line); got != test.want {
				t.Errorf("highlightLine(%q) = %q, want %q", test.line, got, test.want)
			}
		})
	}
}
