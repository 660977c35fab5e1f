// Package utils holds small helpers shared across packages.
package utils

import "strings"

// SplitList splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty or whitespace-only input.
func SplitList(s string) []string {
	var result []string
	for _, v := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
