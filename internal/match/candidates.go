package match

import "regexp"

// Candidate is one occurrence of a pattern in the target document: the
// captured value, its span, and the anchor score assigned during selection.
type Candidate struct {
	Value      string `json:"value"`
	Start      int    `json:"start"` // full match span
	End        int    `json:"end"`
	ValueStart int    `json:"value_start"` // first capture group span
	ValueEnd   int    `json:"value_end"`
	Score      int    `json:"-"`
}

// collectCandidates runs the compiled pattern over the document text and
// returns every non-overlapping match in document order. Generation is kept
// separate from anchor scoring so each stage is independently testable.
func collectCandidates(re *regexp.Regexp, text string) []Candidate {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	cands := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		c := Candidate{Start: m[0], End: m[1]}
		if len(m) >= 4 && m[2] >= 0 && m[3] >= 0 {
			c.ValueStart, c.ValueEnd = m[2], m[3]
			c.Value = text[m[2]:m[3]]
		} else {
			c.ValueStart, c.ValueEnd = m[0], m[0]
		}
		cands = append(cands, c)
	}
	return cands
}
