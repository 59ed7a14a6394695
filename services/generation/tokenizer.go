package generation

import (
	"strings"
	"unicode"
)

// Tokenizer measures and truncates text in a model's token unit.
type Tokenizer interface {
	Count(text string) int
	// Truncate returns the longest prefix of text holding at most max
	// tokens, cut at a token boundary.
	Truncate(text string, max int) string
}

// WhitespaceTokenizer treats whitespace-separated words as tokens. It is an
// approximation for backends that do not expose their tokenizer.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

func (WhitespaceTokenizer) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if !inWord {
			if n == max {
				return strings.TrimRightFunc(text[:i], unicode.IsSpace)
			}
			n++
			inWord = true
		}
	}
	return text
}
