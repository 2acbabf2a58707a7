// Package match implements the fuzzy and substring text matching used for
// wake detection and command resolution.
package match

import (
	"strings"

	"github.com/rbright/jarvis/internal/commands"
	"golang.org/x/text/cases"
)

// CommandFloor is the minimum fuzzy score accepted for a command match.
const CommandFloor = 0.45

// Wake is the matcher view of the wake configuration.
type Wake struct {
	Phrases   []string
	Threshold float64
}

// fold returns the caseless form of s. Casers carry state, so one is created
// per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Similarity returns 2*L/T where L is the longest common subsequence of the
// case-folded runes and T the total rune count. Two empty strings score 1.
func Similarity(a, b string) float64 {
	return similarityFolded([]rune(fold(a)), []rune(fold(b)))
}

func similarityFolded(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength computes the LCS length with a rolling row.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// IsWake reports whether text contains, or fuzzily resembles, a wake phrase.
func IsWake(text string, wake Wake) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	folded := fold(text)
	phrases := make([][]rune, 0, len(wake.Phrases))
	for _, phrase := range wake.Phrases {
		phrase = strings.TrimSpace(fold(phrase))
		if phrase == "" {
			continue
		}
		if strings.Contains(folded, phrase) {
			return true
		}
		phrases = append(phrases, []rune(phrase))
	}

	for _, token := range strings.Fields(folded) {
		tokenRunes := []rune(token)
		for _, phrase := range phrases {
			if similarityFolded(tokenRunes, phrase) >= wake.Threshold {
				return true
			}
		}
	}

	whole := []rune(folded)
	for _, phrase := range phrases {
		if similarityFolded(whole, phrase) >= wake.Threshold {
			return true
		}
	}
	return false
}

// Command resolves text against the table. Substring containment wins in
// table order; otherwise the best fuzzy trigger at or above CommandFloor
// is returned, ties going to the earlier trigger.
func Command(text string, table *commands.Table) (commands.Entry, bool) {
	text = strings.TrimSpace(text)
	if text == "" || table.Len() == 0 {
		return commands.Entry{}, false
	}

	folded := fold(text)
	entries := table.Entries()
	for _, entry := range entries {
		trigger := fold(strings.TrimSpace(entry.Trigger))
		if trigger != "" && strings.Contains(folded, trigger) {
			return entry, true
		}
	}

	var (
		best      commands.Entry
		bestScore = -1.0
	)
	textRunes := []rune(folded)
	for _, entry := range entries {
		score := similarityFolded(textRunes, []rune(fold(strings.TrimSpace(entry.Trigger))))
		if score > bestScore {
			best = entry
			bestScore = score
		}
	}
	if bestScore < CommandFloor {
		return commands.Entry{}, false
	}
	return best, true
}
