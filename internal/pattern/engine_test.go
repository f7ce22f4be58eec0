package pattern

import (
	"context"
	"testing"
)

func TestLiteral_WholeWord(t *testing.T) {
	l := NewLiteral("spam", false, true)
	if r := l.Evaluate(context.Background(), "this is spam"); !r.Matched {
		t.Fatalf("expected match, got %+v", r)
	}
	if r := l.Evaluate(context.Background(), "spamalot"); r.Matched {
		t.Fatalf("expected no match on partial word, got %+v", r)
	}
}

func TestWildcard_Anchoring(t *testing.T) {
	w, err := NewWildcard("free*money", true)
	if err != nil {
		t.Fatal(err)
	}
	if r := w.Evaluate(context.Background(), "free guaranteed money"); !r.Matched {
		t.Fatalf("expected match, got %+v", r)
	}
	if r := w.Evaluate(context.Background(), "some free guaranteed money here"); r.Matched {
		t.Fatalf("expected no match due to anchoring, got %+v", r)
	}
}

func TestFuzzyMatch_Threshold(t *testing.T) {
	f := NewFuzzyMatch("spam", 0.7)
	r := f.Evaluate(context.Background(), "this is spsm content")
	if !r.Matched {
		t.Fatalf("expected fuzzy match, got %+v", r)
	}
	if r.Confidence < 0.7 {
		t.Fatalf("expected confidence >= 0.7, got %v", r.Confidence)
	}
}

func TestLeetspeak_MinSubstitutions(t *testing.T) {
	subs := map[rune]rune{'4': 'a', '3': 'e', '$': 's'}
	l := NewLeetspeak("spam", subs, 2)

	// Plain text must not match via this family (zero substitutions).
	if r := l.Evaluate(context.Background(), "spam spam spam"); r.Matched {
		t.Fatalf("expected no match on plain text, got %+v", r)
	}

	// S2: "sp4m sp4m sp4m" accumulates 3 single-char substitutions.
	r := l.Evaluate(context.Background(), "sp4m sp4m sp4m")
	if !r.Matched {
		t.Fatalf("expected match, got %+v", r)
	}
	if r.Confidence < 0.8 {
		t.Fatalf("expected confidence >= 0.8, got %v", r.Confidence)
	}
}

func TestHomoglyph_CyrillicA(t *testing.T) {
	h := NewHomoglyph("admin")
	r := h.Evaluate(context.Background(), "I am the аdmin here") // Cyrillic а
	if !r.Matched {
		t.Fatalf("expected homoglyph match, got %+v", r)
	}
}

func TestUnicodeNormalized_FoldDiacritics(t *testing.T) {
	u := NewUnicodeNormalized("cafe", true, false, false, 0)
	r := u.Evaluate(context.Background(), "café")
	if !r.Matched {
		t.Fatalf("expected match after diacritic folding, got %+v", r)
	}
}

func TestUnicodeNormalized_ScriptMixing(t *testing.T) {
	u := NewUnicodeNormalized("", false, false, true, 0)
	r := u.Evaluate(context.Background(), "аdmin") // Cyrillic а + Latin dmin in one run
	if !r.Matched {
		t.Fatalf("expected script-mixing match, got %+v", r)
	}
}

func TestRepeatedCharCompression(t *testing.T) {
	r := NewRepeatedCharCompression("spam")
	res := r.Evaluate(context.Background(), "sppppaaaammm")
	if !res.Matched {
		t.Fatalf("expected match after compression, got %+v", res)
	}
}

func TestZalgoText(t *testing.T) {
	z := NewZalgoText(0.5, 3)
	zalgo := "h̶̷e̶̷l̶̷l̶̷o̶̷"
	r := z.Evaluate(context.Background(), zalgo)
	if !r.Matched {
		t.Fatalf("expected zalgo match, got %+v", r)
	}
	if r := z.Evaluate(context.Background(), "hello"); r.Matched {
		t.Fatalf("expected no match on clean text, got %+v", r)
	}
}

func TestEncodedContent_Base64(t *testing.T) {
	e := NewEncodedContent([]Encoding{EncodingBase64}, []string{"free money"}, false, 0)
	// base64("check out this free money offer")
	encoded := "Y2hlY2sgb3V0IHRoaXMgZnJlZSBtb25leSBvZmZlcg=="
	r := e.Evaluate(context.Background(), "click here: "+encoded)
	if !r.Matched {
		t.Fatalf("expected decoded inner match, got %+v", r)
	}
	if r.Confidence > 0.95 {
		t.Fatalf("expected confidence scaled by 0.95, got %v", r.Confidence)
	}
}

func TestEncodedContent_ROT13(t *testing.T) {
	e := NewEncodedContent([]Encoding{EncodingROT13}, []string{"freemoney"}, false, 0)
	r := e.Evaluate(context.Background(), "serrzbarl is the code") // rot13("freemoney")
	if !r.Matched {
		t.Fatalf("expected rot13 decode match, got %+v", r)
	}
}

func TestPhonetic_Soundex(t *testing.T) {
	p := NewPhonetic("robert")
	r := p.Evaluate(context.Background(), "hey rupert how are you")
	if !r.Matched {
		t.Fatalf("expected phonetic match (robert/rupert share R163), got %+v", r)
	}
}

func TestCompile_UnknownFamily(t *testing.T) {
	if _, err := Compile(Spec{Family: "nonsense"}); err == nil {
		t.Fatal("expected compile error for unknown family")
	}
}

func TestCompile_Literal(t *testing.T) {
	w, err := Compile(Spec{Family: "literal", Target: "spam", Weight: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if w.Weight != 0.5 {
		t.Fatalf("expected weight 0.5, got %v", w.Weight)
	}
	r := w.Pattern.Evaluate(context.Background(), "spam")
	if !r.Matched {
		t.Fatalf("expected match, got %+v", r)
	}
}
