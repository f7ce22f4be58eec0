package pattern

import (
	"context"
	"fmt"
	"time"

	"github.com/notarikon-nz/notabot/internal/ierr"
)

// Spec is the on-disk (YAML-decoded) description of one pattern entry,
// as it appears inside patterns.yaml / filters.yaml (spec §6). Exactly
// one of the family-specific fields is meaningful per Family value; the
// rest are zero. Compile turns a Spec into a compiled Pattern once, at
// ConfigSnapshot build time (spec §4.1).
type Spec struct {
	Family string `yaml:"family"`

	// Literal / Wildcard / Regex / Homoglyph / RepeatedCharCompression / Phonetic
	Target        string `yaml:"target,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty"`
	WholeWord     bool   `yaml:"whole_words_only,omitempty"`
	Glob          string `yaml:"glob,omitempty"`
	RegexFlags    string `yaml:"flags,omitempty"`

	// FuzzyMatch
	Threshold float64 `yaml:"threshold,omitempty"`

	// Leetspeak
	SubstitutionMap  map[string]string `yaml:"substitution_map,omitempty"`
	MinSubstitutions int               `yaml:"min_substitutions,omitempty"`

	// UnicodeNormalized
	FoldDiacritics     bool `yaml:"fold_diacritics,omitempty"`
	DetectHomoglyphs   bool `yaml:"detect_homoglyphs,omitempty"`
	DetectScriptMixing bool `yaml:"detect_script_mixing,omitempty"`

	// ZalgoText
	CombiningRatioThreshold float64 `yaml:"combining_ratio_threshold,omitempty"`
	MinLength               int     `yaml:"min_length,omitempty"`

	// EncodedContent
	Encodings    []string `yaml:"encodings,omitempty"`
	InnerTargets []string `yaml:"inner_targets,omitempty"`

	// Weight scales this pattern's confidence within its owning filter
	// (spec §4.1 "overall confidence is the max pattern confidence ×
	// pattern weight"). Defaults to 1.0.
	Weight float64 `yaml:"weight,omitempty"`
}

// Weighted pairs a compiled Pattern with its filter-level weight.
type Weighted struct {
	Pattern Pattern
	Weight  float64
}

// Compile turns a Spec into a compiled, ready-to-evaluate Weighted
// pattern. Any malformed spec (bad regex, bad glob, zero target where
// required) surfaces as ierr.ErrPatternCompile so ConfigSnapshot build
// can reject the whole filter set and keep the previous snapshot.
func Compile(s Spec) (Weighted, error) {
	weight := s.Weight
	if weight == 0 {
		weight = 1.0
	}

	p, err := compileFamily(s)
	if err != nil {
		return Weighted{}, fmt.Errorf("%w: family %q: %v", ierr.ErrPatternCompile, s.Family, err)
	}
	return Weighted{Pattern: p, Weight: weight}, nil
}

func compileFamily(s Spec) (Pattern, error) {
	switch s.Family {
	case "literal", "regex", "fuzzy_match", "leetspeak", "homoglyph", "repeated_char_compression", "phonetic":
		if s.Target == "" {
			return nil, fmt.Errorf("family %q requires a target", s.Family)
		}
	case "wildcard":
		if s.Glob == "" {
			return nil, fmt.Errorf("family %q requires a glob", s.Family)
		}
	}

	switch s.Family {
	case "literal":
		return NewLiteral(s.Target, s.CaseSensitive, s.WholeWord), nil
	case "wildcard":
		return NewWildcard(s.Glob, s.CaseSensitive)
	case "regex":
		return NewRegex(s.Target, s.RegexFlags)
	case "fuzzy_match":
		return NewFuzzyMatch(s.Target, s.Threshold), nil
	case "leetspeak":
		subs := make(map[rune]rune, len(s.SubstitutionMap))
		for k, v := range s.SubstitutionMap {
			if len(k) == 0 || len(v) == 0 {
				continue
			}
			subs[[]rune(k)[0]] = []rune(v)[0]
		}
		return NewLeetspeak(s.Target, subs, s.MinSubstitutions), nil
	case "unicode_normalized":
		return NewUnicodeNormalized(s.Target, s.FoldDiacritics, s.DetectHomoglyphs, s.DetectScriptMixing, s.Threshold), nil
	case "homoglyph":
		return NewHomoglyph(s.Target), nil
	case "repeated_char_compression":
		return NewRepeatedCharCompression(s.Target), nil
	case "zalgo_text":
		return NewZalgoText(s.CombiningRatioThreshold, s.MinLength), nil
	case "encoded_content":
		encs := make([]Encoding, 0, len(s.Encodings))
		for _, e := range s.Encodings {
			encs = append(encs, Encoding(e))
		}
		return NewEncodedContent(encs, s.InnerTargets, s.Threshold > 0, s.Threshold), nil
	case "phonetic":
		return NewPhonetic(s.Target), nil
	default:
		return nil, fmt.Errorf("unknown pattern family %q", s.Family)
	}
}

// EvaluateBudgeted runs p.Evaluate under a deadline of budget, so a
// single pathological pattern can never blow the filter's per-pattern
// soft budget or the message's hard budget (spec §4.1/§4.2). A deadline
// overrun is reported as a non-match with CostMS=BudgetExceeded rather
// than propagating an error out of the engine (spec's failure
// semantics: pattern errors never throw out of the engine).
func EvaluateBudgeted(ctx context.Context, w Weighted, text string, budget time.Duration) Result {
	bctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- w.Pattern.Evaluate(bctx, text)
	}()

	select {
	case r := <-done:
		return r
	case <-bctx.Done():
		return Result{Matched: false, CostMS: BudgetExceeded}
	}
}
