// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"strings"

	"github.com/muesli/termenv"
)

// profile is fixed at ANSI rather than detected from the environment:
// the highlighter only runs when the caller has already established
// the destination is a terminal, and bold and the 16 base colors
// render everywhere a terminal exists.
var profile = termenv.ANSI

// separator is the dim gray "---" document divider printed before each
// highlighted event. ANSI color 8 (bright black) is the terminal's own
// dim shade, so the divider recedes on dark and light themes alike.
var separator = profile.String("---").Foreground(profile.Color("8")).String()

// Highlight bolds the key-and-colon span of YAML mapping lines,
// leaving values in the terminal's default foreground. List items and
// comments pass through untouched. This is terminal-native styling:
// only attributes (bold), never a color theme, so the result is
// readable on dark, light, and solarized terminals alike.
func Highlight(yamlText string) string {
	var output strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(yamlText, "\n"), "\n") {
		output.WriteString(highlightLine(line))
		output.WriteByte('\n')
	}
	return output.String()
}

func highlightLine(line string) string {
	trimmed := trimIndent(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "#") {
		return line
	}

	// A mapping line is "key: value" or a bare "key:" opening a
	// nested block. colonEnd is the index just past the colon.
	colonEnd := -1
	if position := strings.Index(trimmed, ": "); position >= 0 {
		colonEnd = position + 1 + (len(line) - len(trimmed))
	} else if strings.HasSuffix(line, ":") {
		colonEnd = len(line)
	}
	if colonEnd < 0 {
		return line
	}

	return profile.String(line[:colonEnd]).Bold().String() + line[colonEnd:]
}
