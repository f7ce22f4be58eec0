package pattern

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FuzzyMatch matches when the normalized Levenshtein similarity of any
// token in the input to Target is >= Threshold (spec §3/§4.1).
type FuzzyMatch struct {
	Target    string
	Threshold float64

	target string // lowercased
}

// NewFuzzyMatch compiles a FuzzyMatch pattern.
func NewFuzzyMatch(target string, threshold float64) *FuzzyMatch {
	return &FuzzyMatch{Target: target, Threshold: threshold, target: strings.ToLower(target)}
}

func (f *FuzzyMatch) Kind() string { return "fuzzy" }

func (f *FuzzyMatch) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		best := 0.0
		var bestTok string
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			sim := similarity(tok, f.target)
			if sim > best {
				best = sim
				bestTok = tok
			}
		}
		if best >= f.Threshold {
			return Result{Matched: true, Confidence: best, Spans: []Span{{Text: bestTok}}}
		}
		return Result{Matched: false, Confidence: best}
	})
}

// similarity computes 1 - distance/max(len(a),len(b)), the normalized
// Levenshtein similarity ratio spec §4.1 defines for FuzzyMatch.
func similarity(a, b string) float64 {
	maxLen := len([]rune(a))
	if bl := len([]rune(b)); bl > maxLen {
		maxLen = bl
	}
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(d)/float64(maxLen)
}
