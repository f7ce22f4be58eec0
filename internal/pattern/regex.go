package pattern

import (
	"context"
	"regexp"
)

// Regex wraps a precompiled regular expression. Go's regexp package is
// RE2-based and therefore already linear-time in input length (spec §9's
// "regex engine with linear-time guarantees"), but evaluation against
// pathological inputs (very long messages) can still exceed the
// per-filter budget, so Evaluate still honors ctx's deadline by racing
// the match on a goroutine and treating a ctx timeout as a non-match.
type Regex struct {
	Source string
	re     *regexp.Regexp
}

// NewRegex compiles pattern with the supplied flags string (a Go regexp
// flag group, e.g. "(?i)"). A compile error is reported to the caller
// (ierr.ErrPatternCompile) so ConfigSnapshot build can reject it.
func NewRegex(source, flags string) (*Regex, error) {
	re, err := regexp.Compile(flags + source)
	if err != nil {
		return nil, err
	}
	return &Regex{Source: source, re: re}, nil
}

func (r *Regex) Kind() string { return "regex" }

func (r *Regex) Evaluate(ctx context.Context, text string) Result {
	type outcome struct {
		loc []int
	}
	done := make(chan outcome, 1)
	start := nowMS()
	go func() {
		done <- outcome{loc: r.re.FindStringIndex(text)}
	}()

	select {
	case o := <-done:
		if o.loc == nil {
			return Result{Matched: false, CostMS: nowMS() - start}
		}
		return Result{
			Matched:    true,
			Confidence: 1.0,
			Spans:      []Span{{Start: o.loc[0], End: o.loc[1], Text: text[o.loc[0]:o.loc[1]]}},
			CostMS:     nowMS() - start,
		}
	case <-ctx.Done():
		return Result{Matched: false, CostMS: BudgetExceeded}
	}
}
