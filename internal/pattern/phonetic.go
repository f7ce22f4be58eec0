package pattern

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
)

// phoneticFuzzyMinScore is the minimum sahilm/fuzzy subsequence score,
// relative to Target's length, accepted as a near-miss once no token
// shares Target's exact Soundex code.
const phoneticFuzzyMinScore = 0.6

// Phonetic matches when any token's Soundex code equals Target's
// Soundex code (spec §3's "Soundex/Metaphone-class equivalence"), or,
// failing that, when sahilm/fuzzy's subsequence ranking finds a token
// close enough to Target to be a likely phonetic near-miss (e.g. a
// dropped or transposed vowel Soundex itself doesn't absorb).
type Phonetic struct {
	Target string

	code string
}

// NewPhonetic compiles a Phonetic pattern.
func NewPhonetic(target string) *Phonetic {
	return &Phonetic{Target: target, code: soundex(target)}
}

func (p *Phonetic) Kind() string { return "phonetic" }

func (p *Phonetic) Evaluate(_ context.Context, text string) Result {
	return timed(func() Result {
		tokens := strings.Fields(text)
		for _, tok := range tokens {
			if p.code != "" && soundex(tok) == p.code {
				return Result{Matched: true, Confidence: 1.0, Spans: []Span{{Text: tok}}}
			}
		}

		if p.Target == "" || len(tokens) == 0 {
			return Result{Matched: false}
		}
		matches := fuzzy.Find(p.Target, tokens)
		if len(matches) == 0 {
			return Result{Matched: false}
		}
		best := matches[0]
		confidence := float64(best.Score) / float64(2*len(p.Target))
		if confidence > 1 {
			confidence = 1
		}
		if confidence < phoneticFuzzyMinScore {
			return Result{Matched: false}
		}
		return Result{Matched: true, Confidence: confidence, Spans: []Span{{Text: best.Str}}}
	})
}

// soundexCodes maps letters to their Soundex digit class.
var soundexCodes = map[byte]byte{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// soundex computes the classic 4-character Soundex code (one letter +
// three digits) for word.
func soundex(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}
	var letters []byte
	for i := 0; i < len(word); i++ {
		if word[i] >= 'a' && word[i] <= 'z' {
			letters = append(letters, word[i])
		}
	}
	if len(letters) == 0 {
		return ""
	}

	var code strings.Builder
	code.WriteByte(upper(letters[0]))

	lastDigit := soundexCodes[letters[0]]
	for i := 1; i < len(letters) && code.Len() < 4; i++ {
		d, ok := soundexCodes[letters[i]]
		if !ok {
			lastDigit = 0
			continue
		}
		if d != lastDigit {
			code.WriteByte(d)
		}
		lastDigit = d
	}
	for code.Len() < 4 {
		code.WriteByte('0')
	}
	return code.String()
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
