package story

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultEndToken marks the final part of a story.
const DefaultEndToken = "END"

// DefaultBoilerplate lists the prompts models append between parts, in the
// quote styles they are known to use.
var DefaultBoilerplate = []string{
	"Type 'Continue' to receive the next part.",
	"Type “Continue” to receive the next part.",
	"Type Continue to receive the next part.",
	"Type ‘Continue’ to receive the next part.",
	"Type \"Continue\" to receive the next part.",
}

// Clean removes every standalone occurrence of token and each boilerplate
// phrase from reply, and reports whether the token was present. Inside the
// text the token only counts when it is not part of a longer word, so
// "WEEKEND away" is left alone. At the end of the reply it always counts,
// so "ever afterEND" and "the end.END" both lose their marker.
func Clean(reply, token string, boilerplate []string) (string, bool) {
	text, found := stripToken(reply, token)
	for _, b := range boilerplate {
		if b != "" {
			text = strings.ReplaceAll(text, b, "")
		}
	}
	return strings.TrimSpace(text), found
}

func stripToken(s, token string) (string, bool) {
	if token == "" {
		return s, false
	}

	var (
		sb    strings.Builder
		found bool
		i     int
	)
	for {
		idx := strings.Index(s[i:], token)
		if idx < 0 {
			sb.WriteString(s[i:])
			break
		}
		start := i + idx
		end := start + len(token)
		if isWordBoundary(s, start, end) || atEnd(s[end:]) {
			sb.WriteString(s[i:start])
			found = true
		} else {
			sb.WriteString(s[i:end])
		}
		i = end
	}
	return sb.String(), found
}

func isWordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

// atEnd reports whether rest holds nothing but spacing and punctuation.
func atEnd(rest string) bool {
	return strings.TrimFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) == ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
