// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns event envelopes into their textual output
// encodings: compact JSONL, indented JSON, or YAML with
// terminal-native highlighting.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spyglass-foundation/spyglass/lib/envelope"
)

// Mode selects the output encoding. Chosen once at startup.
type Mode int

const (
	// JSONL is compact single-line JSON, newline-terminated. The
	// default: one event per line, pipeable to jq.
	JSONL Mode = iota

	// PrettyJSON is indented multi-line JSON, newline-terminated.
	PrettyJSON

	// PrettyYAML is a line-oriented YAML document per event. On a
	// terminal, keys are bolded and each event is preceded by a dim
	// gray "---" separator; piped output is plain "---\n" + YAML so
	// that no escape codes leak into files.
	PrettyYAML
)

// ParseMode maps the CLI flag pair to a Mode.
func ParseMode(prettyJSON, prettyYAML bool) Mode {
	switch {
	case prettyYAML:
		return PrettyYAML
	case prettyJSON:
		return PrettyJSON
	default:
		return JSONL
	}
}

// Renderer renders envelopes in a fixed mode. Rendering is pure:
// the same envelope always produces byte-identical output.
type Renderer struct {
	mode     Mode
	terminal bool
}

// New returns a renderer. terminal reports whether the primary output
// destination is an interactive terminal; it only affects PrettyYAML.
func New(mode Mode, terminal bool) *Renderer {
	return &Renderer{mode: mode, terminal: terminal}
}

// Render produces the textual encoding of one envelope, always
// newline-terminated.
func (r *Renderer) Render(event *envelope.Envelope) (string, error) {
	switch r.mode {
	case PrettyJSON:
		compact, err := json.Marshal(event)
		if err != nil {
			return "", fmt.Errorf("encoding event: %w", err)
		}
		var indented bytes.Buffer
		if err := json.Indent(&indented, compact, "", "  "); err != nil {
			return "", fmt.Errorf("indenting event: %w", err)
		}
		return indented.String() + "\n", nil

	case PrettyYAML:
		var body bytes.Buffer
		encoder := yaml.NewEncoder(&body)
		encoder.SetIndent(2)
		if err := encoder.Encode(event.YAMLNode()); err != nil {
			return "", fmt.Errorf("encoding event as YAML: %w", err)
		}
		if err := encoder.Close(); err != nil {
			return "", fmt.Errorf("encoding event as YAML: %w", err)
		}
		if r.terminal {
			return separator + "\n" + Highlight(body.String()), nil
		}
		return "---\n" + body.String(), nil

	default: // JSONL
		compact, err := json.Marshal(event)
		if err != nil {
			return "", fmt.Errorf("encoding event: %w", err)
		}
		return string(compact) + "\n", nil
	}
}

// Mode returns the renderer's output mode.
func (r *Renderer) Mode() Mode { return r.mode }

// trimIndent strips leading spaces only — YAML indentation is spaces.
func trimIndent(line string) string {
	return strings.TrimLeft(line, " ")
}
