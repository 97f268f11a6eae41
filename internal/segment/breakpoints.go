package segment

import "github.com/dgallion1/narrator/internal/lang"

// conjunctions lists clause-joining words per base language, highest
// priority first. Each marker carries its surrounding spaces so it only
// matches whole words.
var conjunctions = map[string][]string{
	"en": {" and ", " but ", " or ", " because ", " so ", " yet ", " while ", " although ", " which ", " that "},
	"de": {" und ", " aber ", " oder ", " weil ", " denn ", " sondern ", " während ", " obwohl ", " dass "},
	"fr": {" et ", " mais ", " ou ", " car ", " donc ", " parce que ", " puisque ", " tandis que ", " qui ", " que "},
	"es": {" y ", " pero ", " o ", " porque ", " pues ", " aunque ", " mientras ", " sino ", " que "},
	"it": {" e ", " ma ", " o ", " perché ", " però ", " mentre ", " sebbene ", " che "},
	"pt": {" e ", " mas ", " ou ", " porque ", " pois ", " embora ", " enquanto ", " que "},
	"nl": {" en ", " maar ", " of ", " want ", " omdat ", " terwijl ", " hoewel ", " dat "},
	"tr": {" ve ", " ama ", " fakat ", " veya ", " ya da ", " çünkü ", " ancak ", " ki "},
	"ru": {" и ", " но ", " или ", " а ", " потому что ", " однако ", " хотя ", " что "},
	"pl": {" i ", " ale ", " lub ", " albo ", " ponieważ ", " jednak ", " chociaż ", " że "},
	"cs": {" a ", " ale ", " nebo ", " protože ", " však ", " ačkoli ", " že "},
	"hu": {" és ", " de ", " vagy ", " mert ", " hanem ", " pedig ", " hogy "},
	"ar": {" لكن ", " أو ", " لأن ", " ثم "},
	"ko": {" 그리고 ", " 하지만 ", " 그러나 ", " 또는 ", " 그래서 "},
}

var (
	latinPunctuation = []string{", ", "; ", ": ", " - ", "، "}
	cjkPunctuation   = []string{"，", "；", "：", "、", ", ", "; ", ": "}
)

// markersFor returns the breakpoint markers for l in priority order:
// language conjunctions first, then generic punctuation.
func markersFor(l lang.Language) []string {
	if l.Spaceless() {
		return cjkPunctuation
	}
	var out []string
	out = append(out, conjunctions[l.Base]...)
	out = append(out, latinPunctuation...)
	return out
}
