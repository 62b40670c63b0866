// Package tokenizer splits text into word tokens for the search engine.
// A token is a maximal run of alphanumeric runes: letters, any numeric rune
// (digits, superscripts, fractions, Roman numerals) and the combining marks
// Unicode classes as alphabetic, such as Indic vowel signs. Every other rune
// is a separator. No case folding happens here, callers normalise first.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
)

// Tokens returns a lazy sequence of the alphanumeric runs in text, in
// left-to-right order. Empty runs are never yielded.
func Tokens(text string) iter.Seq[string] {
	return strings.FieldsFuncSeq(text, isSeparator)
}

// Tokenize returns every token of text as a slice. The result is empty (but
// non-nil) when text contains no word runes.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, isSeparator)
	if words == nil {
		return []string{}
	}
	return words
}

// IsWordRune reports whether r belongs inside a token.
func IsWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Other_Alphabetic, r)
}

func isSeparator(r rune) bool {
	return !IsWordRune(r)
}
