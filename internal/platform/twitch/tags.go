package twitch

import "strings"

// parseTags parses an IRCv3 tag prefix (the part between leading '@'
// and the following space) into a key/value map. Twitch escapes
// semicolons and spaces inside values per IRCv3 3.2 tag escaping;
// escape sequences beyond the common set Twitch actually emits are left
// as-is since Twitch never sends them.
func parseTags(raw string) map[string]string {
	tags := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		if pair == "" {
			continue
		}
		k, v, found := strings.Cut(pair, "=")
		if !found {
			tags[k] = ""
			continue
		}
		tags[k] = unescapeTag(v)
	}
	return tags
}

func unescapeTag(v string) string {
	replacer := strings.NewReplacer(`\s`, " ", `\:`, ";", `\\`, `\`, `\r`, "\r", `\n`, "\n")
	return replacer.Replace(v)
}

// badgesOf splits the "badges" tag ("subscriber/12,moderator/1") into a
// set of badge names, discarding version numbers.
func badgesOf(tags map[string]string) map[string]bool {
	out := make(map[string]bool)
	raw, ok := tags["badges"]
	if !ok || raw == "" {
		return out
	}
	for _, b := range strings.Split(raw, ",") {
		name, _, _ := strings.Cut(b, "/")
		if name != "" {
			out[name] = true
		}
	}
	return out
}
