// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// suggestCommand returns the closest subcommand name to input, or ""
// when nothing is close enough to be a plausible typo.
func suggestCommand(input string, commands []*Command) string {
	best := ""
	bestDistance := len(input)/2 + 1 // further than this is not a typo
	for _, command := range commands {
		distance := editDistance(input, command.Name)
		if distance < bestDistance {
			best = command.Name
			bestDistance = distance
		}
	}
	return best
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	previous := make([]int, len(b)+1)
	current := make([]int, len(b)+1)
	for j := range previous {
		previous[j] = j
	}

	for i := 1; i <= len(a); i++ {
		current[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current[j] = min(previous[j]+1, current[j-1]+1, previous[j-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(b)]
}
