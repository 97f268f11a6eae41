package segment

import (
	"strings"
	"unicode"

	"github.com/dgallion1/narrator/internal/lang"
)

// Splitter breaks an over-budget sentence on conjunction and punctuation
// breakpoints, packing words greedily up to the budget.
type Splitter struct {
	markers   []string
	spaceless bool
	measure   Measure
}

// NewSplitter returns a Splitter using the breakpoint table for l.
func NewSplitter(l lang.Language, measure Measure) *Splitter {
	if measure == nil {
		measure = Chars
	}
	return &Splitter{
		markers:   markersFor(l),
		spaceless: l.Spaceless(),
		measure:   measure,
	}
}

// Split returns the pieces of text in order. Pieces never split a word, so
// a piece exceeds budget only when it is a single word longer than the
// budget; callers escalate those.
func (s *Splitter) Split(text string, budget int) []string {
	sep := s.sep()
	var out []string
	emit := func(piece string) {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}

	current := ""
	for _, word := range s.words(text) {
		// Retry the word against the remainder after each cut.
		for {
			if current == "" {
				current = strings.TrimLeftFunc(word, unicode.IsSpace)
				break
			}
			if s.measure(current+sep+word) <= budget {
				current += sep + word
				break
			}
			if left, rest, ok := s.cut(current); ok {
				emit(left)
				current = rest
				continue
			}
			emit(current)
			current = strings.TrimLeftFunc(word, unicode.IsSpace)
			break
		}
	}
	emit(current)
	return out
}

// cut splits chunk at the last occurrence of the first marker present, in
// priority order. The marker stays on the left.
func (s *Splitter) cut(chunk string) (left, rest string, ok bool) {
	for _, m := range s.markers {
		idx := strings.LastIndex(chunk, m)
		if idx < 0 {
			continue
		}
		left = strings.TrimRightFunc(chunk[:idx+len(m)], unicode.IsSpace)
		rest = strings.TrimLeftFunc(chunk[idx+len(m):], unicode.IsSpace)
		if left == "" {
			continue
		}
		return left, rest, true
	}
	return "", "", false
}

func (s *Splitter) sep() string {
	if s.spaceless {
		return ""
	}
	return " "
}

// words tokenizes text into packing atoms: whitespace-delimited words, or
// single runes for scripts written without spaces.
func (s *Splitter) words(text string) []string {
	if !s.spaceless {
		return strings.Fields(text)
	}
	var atoms []string
	for _, r := range strings.TrimSpace(text) {
		atoms = append(atoms, string(r))
	}
	return atoms
}
