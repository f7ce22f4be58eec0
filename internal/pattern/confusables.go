package pattern

import "strings"

// confusables maps commonly-abused lookalike runes (Cyrillic, Greek,
// fullwidth Latin, and a handful of mathematical-alphanumeric forms) to
// their plain-ASCII Latin equivalent. No repository in the retrieval
// pack ships a Unicode confusables table — golang.org/x/text stops at
// norm/width/idna — so this is a curated hand-built table rather than
// an import; kept intentionally small and reviewable rather than the
// full ~6000-entry Unicode "confusablesSummary.txt".
var confusables = map[rune]rune{
	// Cyrillic lookalikes
	'а': 'a', 'А': 'a',
	'е': 'e', 'Е': 'e',
	'о': 'o', 'О': 'o',
	'р': 'p', 'Р': 'p',
	'с': 'c', 'С': 'c',
	'у': 'y', 'У': 'y',
	'х': 'x', 'Х': 'x',
	'і': 'i', 'І': 'i',
	'ѕ': 's',
	'ј': 'j',
	'к': 'k',
	'м': 'm',
	'н': 'h',
	'т': 't',
	'в': 'b',
	'г': 'r',
	// Greek lookalikes
	'α': 'a', 'Α': 'a',
	'β': 'b', 'Β': 'b',
	'ο': 'o', 'Ο': 'o',
	'ρ': 'p', 'Ρ': 'p',
	'ν': 'v', 'Ν': 'n',
	'υ': 'u',
	'κ': 'k',
	'ι': 'i',
	'ε': 'e',
	// Fullwidth Latin
	'ａ': 'a', 'ｂ': 'b', 'ｃ': 'c', 'ｄ': 'd', 'ｅ': 'e', 'ｆ': 'f', 'ｇ': 'g',
	'ｈ': 'h', 'ｉ': 'i', 'ｊ': 'j', 'ｋ': 'k', 'ｌ': 'l', 'ｍ': 'm', 'ｎ': 'n',
	'ｏ': 'o', 'ｐ': 'p', 'ｑ': 'q', 'ｒ': 'r', 'ｓ': 's', 'ｔ': 't', 'ｕ': 'u',
	'ｖ': 'v', 'ｗ': 'w', 'ｘ': 'x', 'ｙ': 'y', 'ｚ': 'z',
	// Mathematical alphanumeric (bold/script "a"-like forms commonly pasted)
	'𝐚': 'a', '𝐛': 'b', '𝐢': 'i', '𝐧': 'n',
}

// foldConfusables transliterates every rune with a known confusable
// mapping to its plain-Latin equivalent, leaving everything else as-is.
func foldConfusables(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if repl, ok := confusables[r]; ok {
			sb.WriteRune(repl)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
