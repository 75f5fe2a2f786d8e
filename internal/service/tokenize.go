package service

import (
	"strings"
	"unicode"
)

// tokenize lowercases text, deletes punctuation and splits on whitespace,
// so "semi-furnished" becomes the single token "semifurnished".
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}
