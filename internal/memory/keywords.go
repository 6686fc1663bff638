package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractKeywords strips every character that is not a letter, digit or
// space, splits on whitespace, keeps tokens of at least minLen characters
// and returns the first limit of them in their original order.
func ExtractKeywords(message string, limit, minLen int) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, message)

	var keywords []string
	for _, tok := range strings.Fields(cleaned) {
		if len(keywords) >= limit {
			break
		}
		if utf8.RuneCountInString(tok) >= minLen {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}
