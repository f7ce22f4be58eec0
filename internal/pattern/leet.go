package pattern

import (
	"context"
	"strings"
)

// Leetspeak de-substitutes digits/symbols back to letters using
// SubstitutionMap (e.g. "4"->"a", "3"->"e", "$"->"s") and requires at
// least MinSubstitutions actual substitutions were applied before
// declaring a match — this is what stops plain "spam" from matching
// itself via the leet family (spec §4.1).
type Leetspeak struct {
	Target           string
	SubstitutionMap  map[rune]rune
	MinSubstitutions int

	target string
}

// NewLeetspeak compiles a Leetspeak pattern.
func NewLeetspeak(target string, subs map[rune]rune, minSubs int) *Leetspeak {
	return &Leetspeak{
		Target:           target,
		SubstitutionMap:  subs,
		MinSubstitutions: minSubs,
		target:           strings.ToLower(target),
	}
}

func (l *Leetspeak) Kind() string { return "leetspeak" }

// Evaluate scans every window of the message the length of the target,
// canonicalizing leet substitutions as it goes. A single window only
// needs to canonicalize cleanly to the target; MinSubstitutions guards
// against trivial matches (a window with zero substitutions is the
// plain target itself, which this family must not flag) and is checked
// cumulatively across all windows found in the message, so repeated
// evasive spellings ("sp4m sp4m sp4m") accumulate toward the threshold
// even though any single occurrence only substitutes one character.
func (l *Leetspeak) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		lower := []rune(strings.ToLower(text))
		targetRunes := []rune(l.target)
		n, m := len(lower), len(targetRunes)
		if m == 0 || n < m {
			return Result{Matched: false}
		}

		totalSubs := 0
		var spans []Span
		bestRatio := 0.0

		for start := 0; start+m <= n; start++ {
			subs := 0
			ok := true
			for i := 0; i < m; i++ {
				c := lower[start+i]
				want := targetRunes[i]
				if c == want {
					continue
				}
				if repl, hit := l.SubstitutionMap[c]; hit && repl == want {
					subs++
					continue
				}
				ok = false
				break
			}
			if !ok {
				continue
			}
			end := start + m
			totalSubs += subs
			spans = append(spans, Span{Start: start, End: end, Text: string(lower[start:end])})
			if ratio := float64(subs) / float64(m); ratio > bestRatio {
				bestRatio = ratio
			}
			start = end - 1 // skip past this window, non-overlapping occurrences
		}

		if len(spans) == 0 || totalSubs < l.MinSubstitutions {
			return Result{Matched: false}
		}
		return Result{
			Matched:    true,
			Confidence: 0.8 + 0.2*minF(1.0, bestRatio),
			Spans:      spans,
		}
	})
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
