package twitch

import "testing"

func TestParseTags(t *testing.T) {
	raw := `badges=subscriber/12,moderator/1;display-name=Some\sUser;mod=1;id=abc123`
	tags := parseTags(raw)

	if tags["mod"] != "1" {
		t.Fatalf("expected mod=1, got %q", tags["mod"])
	}
	if tags["id"] != "abc123" {
		t.Fatalf("expected id=abc123, got %q", tags["id"])
	}
	if tags["display-name"] != "Some User" {
		t.Fatalf("expected escaped space to unescape, got %q", tags["display-name"])
	}
}

func TestParseTags_EmptyValue(t *testing.T) {
	tags := parseTags("flag;other=value")
	if v, ok := tags["flag"]; !ok || v != "" {
		t.Fatalf("expected flag present with empty value, got %q (ok=%v)", v, ok)
	}
}

func TestBadgesOf(t *testing.T) {
	tags := map[string]string{"badges": "subscriber/12,moderator/1,broadcaster/1"}
	badges := badgesOf(tags)

	for _, want := range []string{"subscriber", "moderator", "broadcaster"} {
		if !badges[want] {
			t.Fatalf("expected badge %q to be set, got %+v", want, badges)
		}
	}
}

func TestBadgesOf_Empty(t *testing.T) {
	badges := badgesOf(map[string]string{})
	if len(badges) != 0 {
		t.Fatalf("expected no badges, got %+v", badges)
	}
}
