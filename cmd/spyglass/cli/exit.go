// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit code without printing an extra
// error line. Commands that have already written their own output
// (the subscriber reporting an unreachable socket, for instance)
// return an ExitError so main exits with the right code without a
// redundant "error:" message.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the exit code. main checks for this interface on
// returned errors to distinguish handled non-zero exits from
// unexpected errors to display.
func (e *ExitError) ExitCode() int {
	return e.Code
}
