package match

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/stencil/internal/schema"
)

// anchorProbe tests whether a context anchor occurs in a text window. The
// snippet is tried as a regex first (compiled under the pattern's flags);
// snippets that do not compile are used as literal substrings.
type anchorProbe struct {
	re      *regexp.Regexp
	literal string
}

func newAnchorProbe(snippet string, flags []schema.Flag) *anchorProbe {
	if snippet == "" {
		return nil
	}
	if re, err := regexp.Compile(schema.InlineFlags(flags) + snippet); err == nil {
		return &anchorProbe{re: re}
	}
	return &anchorProbe{literal: snippet}
}

func (a *anchorProbe) hits(window string) bool {
	if a.re != nil {
		return a.re.MatchString(window)
	}
	return strings.Contains(window, a.literal)
}

// scoreCandidates assigns each candidate an anchor score: +1 when the window
// immediately preceding the match satisfies the before-anchor, +1 when the
// trailing window satisfies the after-anchor. Candidates satisfying both
// rank highest, then one, then neither.
func scoreCandidates(cands []Candidate, text string, before, after *anchorProbe, window int) {
	for i := range cands {
		score := 0
		if before != nil && before.hits(precedingWindow(text, cands[i].Start, window)) {
			score++
		}
		if after != nil && after.hits(trailingWindow(text, cands[i].End, window)) {
			score++
		}
		cands[i].Score = score
	}
}

func precedingWindow(text string, pos, window int) string {
	lo := pos - window
	if lo < 0 {
		lo = 0
	}
	return text[lo:pos]
}

func trailingWindow(text string, pos, window int) string {
	hi := pos + window
	if hi > len(text) {
		hi = len(text)
	}
	return text[pos:hi]
}

// anchorCount returns how many anchors the pattern supplies (0..2).
func anchorCount(p *schema.Pattern) int {
	n := 0
	if p.ContextBefore != "" {
		n++
	}
	if p.ContextAfter != "" {
		n++
	}
	return n
}
