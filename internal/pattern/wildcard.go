package pattern

import (
	"context"
	"regexp"
	"strings"
)

// Wildcard matches a glob with `*` (any run) and `?` (single char).
// Per spec §4.1, if the glob has no leading/trailing `*` the match is
// anchored at both ends.
type Wildcard struct {
	Glob          string
	CaseSensitive bool

	re *regexp.Regexp
}

// NewWildcard compiles a glob into an anchored-as-needed regexp.
func NewWildcard(glob string, caseSensitive bool) (*Wildcard, error) {
	anchoredStart := !strings.HasPrefix(glob, "*")
	anchoredEnd := !strings.HasSuffix(glob, "*")

	var sb strings.Builder
	if anchoredStart {
		sb.WriteByte('^')
	}
	for _, r := range glob {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if anchoredEnd {
		sb.WriteByte('$')
	}

	flags := ""
	if !caseSensitive {
		flags = "(?i)"
	}
	re, err := regexp.Compile(flags + sb.String())
	if err != nil {
		return nil, err
	}
	return &Wildcard{Glob: glob, CaseSensitive: caseSensitive, re: re}, nil
}

func (w *Wildcard) Kind() string { return "wildcard" }

func (w *Wildcard) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		loc := w.re.FindStringIndex(text)
		if loc == nil {
			return Result{Matched: false}
		}
		return Result{
			Matched:    true,
			Confidence: 1.0,
			Spans:      []Span{{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]}},
		}
	})
}
