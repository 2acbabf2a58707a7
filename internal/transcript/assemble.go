// Package transcript assembles and normalizes recognized ASR segments.
package transcript

import (
	"regexp"
	"strings"
)

// noiseMarkerPattern matches recognizer annotations such as [BLANK_AUDIO],
// (music) or *coughs* that carry no spoken words.
var noiseMarkerPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// Assemble joins segments into one line. Noise markers are dropped, a
// segment identical to the previous one is skipped, and whitespace is
// collapsed.
func Assemble(segments []string) string {
	if len(segments) == 0 {
		return ""
	}

	parts := make([]string, 0, len(segments))
	previous := ""
	for _, segment := range segments {
		cleaned := Clean(segment)
		if cleaned == "" {
			continue
		}
		if strings.EqualFold(cleaned, previous) {
			continue
		}
		parts = append(parts, cleaned)
		previous = cleaned
	}
	return strings.Join(parts, " ")
}

// Clean strips noise markers from one segment and collapses whitespace.
func Clean(segment string) string {
	stripped := noiseMarkerPattern.ReplaceAllString(segment, " ")
	return strings.Join(strings.Fields(stripped), " ")
}
