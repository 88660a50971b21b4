// Package wordcount splits transcript text into words the way speaking-rate
// metrics count them: maximal runs of letters, digits and underscores.
package wordcount

import (
	"strings"
	"unicode"
)

// Tokens returns the words of text in order. "don't" counts as two words.
func Tokens(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
