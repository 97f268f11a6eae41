package segment

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/narrator/internal/lang"
)

// sentenceRules are the boundary rules for one language family.
type sentenceRules struct {
	terminators   string          // runes that may end a sentence
	needSpace     bool            // a boundary must be followed by whitespace
	abbreviations map[string]bool // lowercase, without the final period
}

var (
	closers = "\"'”’»)]}」』）"

	latinTerminators = ".!?…؟।"
	cjkTerminators   = "。！？!?…．"
)

var abbreviations = map[string][]string{
	"en": {"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "vs", "e.g", "i.e", "fig", "vol", "approx", "inc", "ltd", "co", "mt", "u.s", "a.m", "p.m", "dept", "gen", "gov", "sgt", "capt", "col", "lt"},
	"de": {"z.b", "bzw", "ca", "dr", "prof", "nr", "str", "evtl", "ggf", "d.h", "u.a", "vgl", "hr", "fr", "s"},
	"fr": {"m", "mme", "mlle", "dr", "p.ex", "cf", "av", "bd", "st", "ste"},
	"es": {"sr", "sra", "srta", "dr", "dra", "ud", "uds", "p.ej", "pág", "núm", "av", "lic"},
	"it": {"sig", "sig.ra", "dott", "prof", "p.es", "pag", "avv", "ing"},
	"pt": {"sr", "sra", "dr", "dra", "prof", "p.ex", "pág", "av"},
	"nl": {"dhr", "mevr", "dr", "prof", "bijv", "o.a", "d.w.z", "nr", "blz"},
	"tr": {"dr", "prof", "doç", "örn", "sn", "av", "yrd"},
	"ru": {"г", "гг", "т.е", "т.д", "т.п", "др", "им", "ул", "проф", "стр"},
	"pl": {"dr", "prof", "np", "tzn", "ul", "nr", "mgr", "inż"},
	"cs": {"dr", "prof", "např", "tzv", "č", "ing", "mgr", "str"},
	"hu": {"dr", "pl", "ifj", "id", "kb", "ún"},
}

var rulesCache = func() map[string]sentenceRules {
	m := make(map[string]sentenceRules, len(abbreviations))
	for base, list := range abbreviations {
		set := make(map[string]bool, len(list))
		for _, a := range list {
			set[a] = true
		}
		m[base] = sentenceRules{terminators: latinTerminators, needSpace: true, abbreviations: set}
	}
	return m
}()

var (
	genericRules = sentenceRules{terminators: latinTerminators, needSpace: true}
	cjkRules     = sentenceRules{terminators: cjkTerminators}
)

// rulesFor picks the rules for l. Languages without a dedicated entry fall
// back to the generic Latin-script rules.
func rulesFor(l lang.Language) sentenceRules {
	if l.Spaceless() {
		return cjkRules
	}
	if r, ok := rulesCache[l.Base]; ok {
		return r
	}
	return genericRules
}

// Tokenize splits a paragraph into sentences for the given language. The
// returned sequence can be ranged over any number of times.
func Tokenize(paragraph, language string) (iter.Seq[string], error) {
	l, err := lang.Resolve(language)
	if err != nil {
		return nil, err
	}
	return sentences(paragraph, rulesFor(l)), nil
}

func sentences(paragraph string, rules sentenceRules) iter.Seq[string] {
	return func(yield func(string) bool) {
		rest := paragraph
		for {
			rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
			if rest == "" {
				return
			}
			end := rules.nextBoundary(rest)
			if !yield(strings.TrimRightFunc(rest[:end], unicode.IsSpace)) {
				return
			}
			rest = rest[end:]
		}
	}
}

// nextBoundary returns the byte offset just past the first sentence in s,
// or len(s) when s holds a single sentence.
func (r sentenceRules) nextBoundary(s string) int {
	for i := 0; i < len(s); {
		c, size := utf8.DecodeRuneInString(s[i:])
		if !strings.ContainsRune(r.terminators, c) {
			i += size
			continue
		}
		// Swallow runs like "?!" or "..." and any closing quotes.
		end := i + size
		for end < len(s) {
			n, nsize := utf8.DecodeRuneInString(s[end:])
			if !strings.ContainsRune(r.terminators, n) && !strings.ContainsRune(closers, n) {
				break
			}
			end += nsize
		}
		if end >= len(s) {
			return len(s)
		}
		if r.isBoundary(s, i, c, end) {
			return end
		}
		i = end
	}
	return len(s)
}

func (r sentenceRules) isBoundary(s string, at int, term rune, end int) bool {
	next, _ := utf8.DecodeRuneInString(s[end:])
	if r.needSpace && !unicode.IsSpace(next) {
		return false
	}
	if term != '.' && term != '…' {
		return true
	}
	if !r.needSpace {
		return true
	}

	// A sentence does not continue in lowercase.
	following := strings.TrimLeftFunc(s[end:], unicode.IsSpace)
	if f, _ := utf8.DecodeRuneInString(following); unicode.IsLower(f) {
		return false
	}
	if term == '…' || strings.HasPrefix(s[at:], "..") {
		return true
	}

	word := lastWord(s[:at])
	if word == "" {
		return true
	}
	// Initials such as "J. Smith".
	if utf8.RuneCountInString(word) == 1 {
		w, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(w) {
			return false
		}
	}
	return !r.abbreviations[strings.ToLower(word)]
}

// lastWord returns the trailing word of s, keeping inner periods so that
// "e.g" and "z.B" survive.
func lastWord(s string) string {
	start := strings.LastIndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("\"'(“‘«[", r)
	})
	if start < 0 {
		return s
	}
	_, size := utf8.DecodeRuneInString(s[start:])
	return s[start+size:]
}
