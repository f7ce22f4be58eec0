package pattern

import (
	"context"
	"strings"
	"unicode"
)

// ZalgoText is structural, not target-based (spec §3): it flags text
// whose ratio of Unicode combining marks to base characters reaches
// CombiningRatioThreshold, provided the text is at least MinLength runes
// long. The cleaned (marks-stripped) form is emitted as a Span for
// downstream reuse.
type ZalgoText struct {
	CombiningRatioThreshold float64
	MinLength               int
}

// NewZalgoText compiles a ZalgoText pattern.
func NewZalgoText(ratio float64, minLength int) *ZalgoText {
	return &ZalgoText{CombiningRatioThreshold: ratio, MinLength: minLength}
}

func (z *ZalgoText) Kind() string { return "zalgo" }

func (z *ZalgoText) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		runes := []rune(text)
		if len(runes) < z.MinLength {
			return Result{Matched: false}
		}

		var marks, base int
		var cleaned strings.Builder
		for _, r := range runes {
			if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) || unicode.Is(unicode.Mc, r) {
				marks++
				continue
			}
			base++
			cleaned.WriteRune(r)
		}
		if base == 0 {
			return Result{Matched: false}
		}
		ratio := float64(marks) / float64(base)
		if ratio < z.CombiningRatioThreshold {
			return Result{Matched: false, Confidence: ratio}
		}
		return Result{
			Matched:    true,
			Confidence: minF(1.0, ratio),
			Spans:      []Span{{Text: cleaned.String()}},
		}
	})
}
