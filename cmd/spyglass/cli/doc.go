// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements the spyglass command-tree framework: pflag
// flag parsing, help rendering, typo suggestions, and exit-code
// plumbing. Each subcommand declares a Command value with a Run
// function; the tree is assembled in cmd/spyglass/main.go.
package cli
