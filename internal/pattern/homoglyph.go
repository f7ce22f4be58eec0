package pattern

import (
	"context"
	"strings"
)

// Homoglyph matches when, after transliterating confusable characters
// to their plain-Latin equivalent, the input contains Target
// case-insensitively — the dedicated confusables-table family
// distinguished from the broader UnicodeNormalized family (spec §3).
type Homoglyph struct {
	Target string

	target string
}

// NewHomoglyph compiles a Homoglyph pattern.
func NewHomoglyph(target string) *Homoglyph {
	return &Homoglyph{Target: target, target: strings.ToLower(target)}
}

func (h *Homoglyph) Kind() string { return "homoglyph" }

func (h *Homoglyph) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		transliterated := strings.ToLower(foldConfusables(text))
		idx := strings.Index(transliterated, h.target)
		if idx < 0 {
			return Result{Matched: false}
		}
		return Result{
			Matched:    true,
			Confidence: 1.0,
			Spans:      []Span{{Start: idx, End: idx + len(h.target), Text: transliterated[idx : idx+len(h.target)]}},
		}
	})
}
