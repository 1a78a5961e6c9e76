// Package suite holds the built-in op validation cases and runs them
// concurrently. Every case builds its own graph, so cases share no state.
package suite

import (
	"path"
	"strings"

	"github.com/born-ml/samediff/internal/ops"
)

// Filter returns the cases matching any pattern. A pattern matches a case
// when it equals the case name or its kind name, or when it is a path.Match
// glob over the case name ("conv2d/*", "reduce_*"). No patterns keeps all.
func Filter(cases []Case, patterns ...string) []Case {
	if len(patterns) == 0 {
		return cases
	}
	var out []Case
	for _, c := range cases {
		for _, p := range patterns {
			if matches(c, strings.TrimSpace(p)) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func matches(c Case, pattern string) bool {
	if pattern == c.Name || pattern == c.Kind.String() {
		return true
	}
	ok, err := path.Match(pattern, c.Name)
	return err == nil && ok
}

// Internal reports whether kind only appears inside gradient graphs.
func Internal(kind ops.Kind) bool {
	return strings.HasSuffix(kind.String(), "_bp")
}

// Uncovered returns the user-facing kinds without a case.
func Uncovered(cases []Case) []ops.Kind {
	seen := make(map[ops.Kind]bool, len(cases))
	for _, c := range cases {
		seen[c.Kind] = true
	}
	var out []ops.Kind
	for _, k := range ops.Kinds() {
		if !Internal(k) && !seen[k] {
			out = append(out, k)
		}
	}
	return out
}
