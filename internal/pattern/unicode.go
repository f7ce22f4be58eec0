package pattern

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnicodeNormalized folds compatibility-equivalent forms (NFKD),
// optionally strips combining diacritics, optionally folds common
// confusables, and then compares the result to Target — either
// literally or, if FuzzyThreshold > 0, via the same similarity ratio
// FuzzyMatch uses. DetectScriptMixing additionally flags any alpha run
// that contains more than one Unicode script (spec §4.1).
type UnicodeNormalized struct {
	Target             string
	FoldDiacritics     bool
	DetectHomoglyphs   bool
	DetectScriptMixing bool
	FuzzyThreshold     float64 // 0 = literal compare

	target     string
	stripMarks transform.Transformer
}

// NewUnicodeNormalized compiles a UnicodeNormalized pattern.
func NewUnicodeNormalized(target string, foldDiacritics, detectHomoglyphs, detectScriptMixing bool, fuzzyThreshold float64) *UnicodeNormalized {
	return &UnicodeNormalized{
		Target:             target,
		FoldDiacritics:     foldDiacritics,
		DetectHomoglyphs:   detectHomoglyphs,
		DetectScriptMixing: detectScriptMixing,
		FuzzyThreshold:     fuzzyThreshold,
		target:             strings.ToLower(target),
		stripMarks:         runes.Remove(runes.In(unicode.Mn)),
	}
}

func (u *UnicodeNormalized) Kind() string { return "unicode_normalized" }

func (u *UnicodeNormalized) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		folded := u.fold(text)

		if u.DetectScriptMixing && hasScriptMixing(text) {
			return Result{Matched: true, Confidence: 0.85, Spans: []Span{{Text: folded}}}
		}

		if u.FuzzyThreshold > 0 {
			best := 0.0
			for _, tok := range strings.Fields(folded) {
				if sim := similarity(tok, u.target); sim > best {
					best = sim
				}
			}
			if best >= u.FuzzyThreshold {
				return Result{Matched: true, Confidence: best, Spans: []Span{{Text: folded}}}
			}
			return Result{Matched: false, Confidence: best}
		}

		if strings.Contains(folded, u.target) {
			return Result{Matched: true, Confidence: 1.0, Spans: []Span{{Text: folded}}}
		}
		return Result{Matched: false}
	})
}

// fold applies NFKD decomposition, optional diacritic stripping, and
// optional confusables folding, returning a lowercase comparable form.
func (u *UnicodeNormalized) fold(text string) string {
	decomposed := norm.NFKD.String(text)
	if u.FoldDiacritics {
		if stripped, _, err := transform.String(u.stripMarks, decomposed); err == nil {
			decomposed = stripped
		}
	}
	if u.DetectHomoglyphs {
		decomposed = foldConfusables(decomposed)
	}
	return strings.ToLower(decomposed)
}

// hasScriptMixing reports whether a single maximal run of letters in
// text contains characters from more than one Unicode script (e.g.
// Latin 'a' next to Cyrillic 'а' within one run).
func hasScriptMixing(text string) bool {
	scripts := map[string]bool{}
	flush := func() bool {
		mixed := len(scripts) > 1
		for k := range scripts {
			delete(scripts, k)
		}
		return mixed
	}
	for _, r := range text {
		if !unicode.IsLetter(r) {
			if flush() {
				return true
			}
			continue
		}
		scripts[scriptOf(r)] = true
	}
	return flush()
}

// scriptOf returns a coarse script label for r, checked against the
// small set of scripts relevant to impersonation-style evasion.
func scriptOf(r rune) string {
	switch {
	case unicode.Is(unicode.Cyrillic, r):
		return "cyrillic"
	case unicode.Is(unicode.Greek, r):
		return "greek"
	case unicode.Is(unicode.Latin, r):
		return "latin"
	case unicode.Is(unicode.Armenian, r):
		return "armenian"
	case unicode.Is(unicode.Han, r):
		return "han"
	default:
		return "other"
	}
}
