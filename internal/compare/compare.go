// Package compare decides whether a program's output matches the expected output
// under a question's comparison settings.
package compare

import (
	"strings"
	"unicode"

	"github.com/Ashutoshbind15/dev-iterate-sub000/internal/types"
)

// Normalize applies the comparison settings to a single output, in order: trim,
// whitespace collapse, case folding.
func Normalize(output string, opts types.OutputComparison) string {
	if opts.TrimOutputs {
		output = strings.TrimSpace(output)
	}

	if opts.NormalizeWhitespace {
		output = collapseWhitespace(output)
	}

	if !opts.CaseSensitive {
		output = strings.ToLower(output)
	}

	return output
}

// Outputs reports whether actual matches expected once both are normalized
func Outputs(actual string, expected string, opts types.OutputComparison) bool {
	return Normalize(actual, opts) == Normalize(expected, opts)
}

// replaces every run of whitespace, newlines included, with one space
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inRun := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}

		inRun = false
		b.WriteRune(r)
	}

	return b.String()
}
