package pattern

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Encoding identifies one of the four supported transport encodings for
// EncodedContent (spec §3).
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingURL    Encoding = "url"
	EncodingHex    Encoding = "hex"
	EncodingROT13  Encoding = "rot13"
)

// EncodedContent decodes substrings that look like one of Encodings and
// sub-scans the decoded bytes (as UTF-8, if valid) against InnerTargets
// using literal/fuzzy comparison (spec §4.1). Confidence is the best
// inner-scan confidence scaled by 0.95 to reflect the extra decode hop.
type EncodedContent struct {
	Encodings     []Encoding
	InnerTargets  []string
	FuzzyInner    bool
	FuzzyThresh   float64

	lowerTargets []string
}

// NewEncodedContent compiles an EncodedContent pattern.
func NewEncodedContent(encodings []Encoding, innerTargets []string, fuzzyInner bool, fuzzyThresh float64) *EncodedContent {
	lower := make([]string, len(innerTargets))
	for i, t := range innerTargets {
		lower[i] = strings.ToLower(t)
	}
	return &EncodedContent{
		Encodings:    encodings,
		InnerTargets: innerTargets,
		FuzzyInner:   fuzzyInner,
		FuzzyThresh:  fuzzyThresh,
		lowerTargets: lower,
	}
}

func (e *EncodedContent) Kind() string { return "encoded_content" }

var (
	base64Run = regexp.MustCompile(`[A-Za-z0-9+/_=-]{8,}`)
	hexRun    = regexp.MustCompile(`(?:[0-9A-Fa-f]{2}){4,}`)
	urlRun    = regexp.MustCompile(`%[0-9A-Fa-f]{2}(?:[^%\s]|%[0-9A-Fa-f]{2}){5,}`)
)

func (e *EncodedContent) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		best := 0.0
		var bestSpan string
		for _, enc := range e.Encodings {
			for _, candidate := range e.candidates(enc, text) {
				decoded, ok := e.decode(enc, candidate)
				if !ok || !utf8.ValidString(decoded) {
					continue
				}
				conf := e.scanInner(decoded)
				if conf > best {
					best = conf
					bestSpan = candidate
				}
			}
		}
		if best <= 0 {
			return Result{Matched: false}
		}
		scaled := best * 0.95
		return Result{Matched: true, Confidence: scaled, Spans: []Span{{Text: bestSpan}}}
	})
}

// candidates returns substrings of text at least 8 chars long that
// plausibly belong to enc's alphabet.
func (e *EncodedContent) candidates(enc Encoding, text string) []string {
	switch enc {
	case EncodingBase64:
		return base64Run.FindAllString(text, -1)
	case EncodingHex:
		return hexRun.FindAllString(text, -1)
	case EncodingURL:
		return urlRun.FindAllString(text, -1)
	case EncodingROT13:
		// ROT13 has no distinguishing alphabet; treat any alphabetic
		// run of length >= 8 as a candidate.
		return rot13Runs(text)
	default:
		return nil
	}
}

func rot13Runs(text string) []string {
	re := regexp.MustCompile(`[A-Za-z]{8,}`)
	return re.FindAllString(text, -1)
}

func (e *EncodedContent) decode(enc Encoding, candidate string) (string, bool) {
	switch enc {
	case EncodingBase64:
		for _, enc64 := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
			if b, err := enc64.DecodeString(candidate); err == nil {
				return string(b), true
			}
		}
		return "", false
	case EncodingHex:
		b, err := hex.DecodeString(candidate)
		if err != nil {
			return "", false
		}
		return string(b), true
	case EncodingURL:
		s, err := url.QueryUnescape(candidate)
		if err != nil {
			return "", false
		}
		return s, true
	case EncodingROT13:
		return rot13(candidate), true
	default:
		return "", false
	}
}

func rot13(s string) string {
	rotate := func(r rune, base rune) rune {
		return (r-base+13)%26 + base
	}
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(rotate(r, 'a'))
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(rotate(r, 'A'))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// scanInner sub-scans decoded text against InnerTargets using a literal
// substring check, or a fuzzy token-similarity check when FuzzyInner.
func (e *EncodedContent) scanInner(decoded string) float64 {
	lower := strings.ToLower(decoded)
	best := 0.0
	for _, target := range e.lowerTargets {
		if strings.Contains(lower, target) {
			return 1.0
		}
		if e.FuzzyInner {
			for _, tok := range strings.Fields(lower) {
				if sim := similarity(tok, target); sim > best && sim >= e.FuzzyThresh {
					best = sim
				}
			}
		}
	}
	return best
}
