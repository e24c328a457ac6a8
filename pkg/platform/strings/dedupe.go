// Package strings provides string set helpers.
package strings

import (
	"slices"
	"strings"
)

// Dedupe trims each value, applies normalize when non-nil, drops empties and
// keeps the first occurrence of each result. Order is preserved.
func Dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if normalize != nil {
			v = normalize(v)
		}
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// SortedSet is Dedupe followed by an ascending sort.
func SortedSet(values []string, normalize func(string) string) []string {
	out := Dedupe(values, normalize)
	slices.Sort(out)
	return out
}
