// Package extract pulls candidate time expressions out of raw Discord
// message text.
package extract

import (
	"regexp"
	"strings"
)

// Token is one candidate time expression, with the offset of its opening
// bracket in the stripped text.
type Token struct {
	Text   string
	Offset int
}

var (
	// Discord entity syntax: user/role/channel mentions, custom and
	// animated emoji, and already-rendered time tags. All of these share
	// the <...> shape with genuine time candidates and must be removed
	// before scanning.
	markupRe = regexp.MustCompile(`<(@[!&]?|#)[0-9]{17,20}>|<a?:[A-Za-z0-9_.]{2,32}:[0-9]{17,20}>|<t:-?[0-9]{1,17}(:[a-zA-Z])?>`)

	// Anything bracket-delimited with at least two characters inside.
	markerRe = regexp.MustCompile(`<[^>][^>]+>`)
)

// Candidates returns the ordered, bracket-stripped candidate substrings of
// content. Platform markup is removed first and URL-like candidates are
// discarded. Empty input yields an empty result.
func Candidates(content string) []Token {
	if content == "" {
		return nil
	}
	stripped := markupRe.ReplaceAllString(content, "")

	var tokens []Token
	for _, loc := range markerRe.FindAllStringIndex(stripped, -1) {
		inner := stripped[loc[0]+1 : loc[1]-1]
		if isLink(inner) {
			continue
		}
		tokens = append(tokens, Token{Text: inner, Offset: loc[0]})
	}
	return tokens
}

func isLink(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http") || strings.Contains(s, "://")
}
