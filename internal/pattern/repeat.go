package pattern

import (
	"context"
	"strings"
)

// RepeatedCharCompression collapses runs of >=2 identical runes to a
// single instance, then compares literally to Target (spec §3) — this
// defeats "heeeey free moneyyyy" style stretching without the cost of a
// full fuzzy match.
type RepeatedCharCompression struct {
	Target string

	target string
}

// NewRepeatedCharCompression compiles a RepeatedCharCompression pattern.
func NewRepeatedCharCompression(target string) *RepeatedCharCompression {
	return &RepeatedCharCompression{Target: target, target: strings.ToLower(target)}
}

func (r *RepeatedCharCompression) Kind() string { return "repeated_char_compression" }

func (r *RepeatedCharCompression) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		compressed := compressRuns(strings.ToLower(text))
		idx := strings.Index(compressed, r.target)
		if idx < 0 {
			return Result{Matched: false}
		}
		return Result{
			Matched:    true,
			Confidence: 1.0,
			Spans:      []Span{{Text: compressed[idx : idx+len(r.target)]}},
		}
	})
}

// compressRuns collapses any run of >=2 identical runes down to one.
func compressRuns(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	out := make([]rune, 0, len(runes))
	out = append(out, runes[0])
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			continue
		}
		out = append(out, runes[i])
	}
	return string(out)
}
