// Package strings normalizes caller-supplied string lists, such as the
// jurisdiction codes on governance metadata.
package strings

import (
	"strings"
)

// DedupeAndTrim trims whitespace, drops empties, and removes duplicates
// while preserving first-seen order. Comparison is case-sensitive since
// jurisdiction codes are case-significant.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
