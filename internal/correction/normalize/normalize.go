// Package normalize applies the deterministic casing and punctuation pass
// that runs after the rewrite step. [Normalizer.Normalize] is idempotent.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/lingobot/internal/lexicon"
)

type casing struct {
	re        *regexp.Regexp
	canonical string
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	lexicon *lexicon.Lexicon
	casings []casing
}

// New compiles the whitelist of lx into whole-word, case-insensitive
// patterns. A nil lexicon is treated as the embedded default.
func New(lx *lexicon.Lexicon) *Normalizer {
	if lx == nil {
		lx = lexicon.Default()
	}
	keys := lx.Keys()
	n := &Normalizer{lexicon: lx, casings: make([]casing, 0, len(keys))}
	for _, k := range keys {
		canonical, _ := lx.Canonical(k)
		n.casings = append(n.casings, casing{
			re:        regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
			canonical: canonical,
		})
	}
	return n
}

// Normalize trims text and then, in order:
//
//  1. rewrites every whitelisted word to its canonical casing;
//  2. for multi-word text, capitalises the first word (unless it is
//     whitelisted) and lowercases every later stopword;
//  3. uppercases the first rune;
//  4. appends "." unless the text already ends in . ! or ?.
//
// Empty or whitespace-only input yields "".
func (n *Normalizer) Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	for _, c := range n.casings {
		text = c.re.ReplaceAllLiteralString(text, c.canonical)
	}

	if words := strings.Fields(text); len(words) > 1 {
		if !n.lexicon.IsWhitelisted(words[0]) {
			words[0] = capitalize(words[0])
		}
		for i := 1; i < len(words); i++ {
			if n.lexicon.IsStopword(words[i]) {
				words[i] = strings.ToLower(words[i])
			}
		}
		text = strings.Join(words, " ")
	}

	first, size := utf8.DecodeRuneInString(text)
	if !unicode.IsUpper(first) {
		text = string(unicode.ToUpper(first)) + text[size:]
	}

	last, _ := utf8.DecodeLastRuneInString(text)
	if last != '.' && last != '!' && last != '?' {
		text += "."
	}
	return text
}

// capitalize uppercases the first rune of word and lowercases the rest.
func capitalize(word string) string {
	first, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
}
