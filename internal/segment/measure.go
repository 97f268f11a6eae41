package segment

import (
	"strings"
	"unicode/utf8"
)

// Measure reports the size of a piece of text in budget units.
type Measure func(text string) int

// Chars counts runes. It is the default measure.
func Chars(text string) int {
	return utf8.RuneCountInString(text)
}

// Tokens estimates model tokens from the word count. Exact tokenization is
// not needed to stay inside a context budget.
func Tokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 0.75 words per token for English text.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// MeasureByName returns the measure for "chars" or "tokens".
func MeasureByName(name string) (Measure, bool) {
	switch strings.ToLower(name) {
	case "", "chars", "characters":
		return Chars, true
	case "tokens":
		return Tokens, true
	}
	return nil, false
}
