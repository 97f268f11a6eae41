package segment

import (
	"context"
	"strings"
)

// ModelSplitter asks a language model to split text the breakpoint rules
// could not bring under budget. Implementations return the pieces in order;
// they must not add, drop or rewrite words.
type ModelSplitter interface {
	SplitWithModel(ctx context.Context, text string, budget int, language string) ([]string, error)
}

// DefaultMaxDepth bounds nested model-assisted splits. Pieces still over
// budget at this depth are accepted as forced.
const DefaultMaxDepth = 2

// sameText reports whether pieces hold exactly the characters of text in
// order, ignoring whitespace. A model may cut inside a word that alone
// exceeds the budget.
func sameText(pieces []string, text string) bool {
	return stripSpace(strings.Join(pieces, "")) == stripSpace(text)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func cleanPieces(pieces []string) []string {
	out := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
