// Package spellguard applies a word-level [speller.Speller] to a whole
// utterance while protecting tokens a dictionary would wrongly "fix": words
// on the lexicon whitelist, capitalised words (names, sentence starts) and
// anything that is not purely alphabetic.
package spellguard

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/lingobot/internal/lexicon"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
)

// Guard wraps a [speller.Speller]. It is safe for concurrent use when the
// wrapped speller is.
type Guard struct {
	speller speller.Speller
	lexicon *lexicon.Lexicon
}

// New returns a Guard. A nil lexicon is treated as the embedded default.
func New(s speller.Speller, lx *lexicon.Lexicon) *Guard {
	if lx == nil {
		lx = lexicon.Default()
	}
	return &Guard{speller: s, lexicon: lx}
}

// Correct splits text on whitespace, corrects each eligible token and
// rejoins the tokens with single spaces. Speller failures keep the original
// token and are logged at debug level; Correct never fails.
func (g *Guard) Correct(ctx context.Context, text string) string {
	tokens := strings.Fields(text)
	for i, tok := range tokens {
		if !g.eligible(tok) {
			continue
		}
		lower := strings.ToLower(tok)
		suggestion, ok, err := g.speller.Correct(ctx, lower)
		if err != nil {
			observe.Logger(ctx).Debug("spellguard: speller failed, keeping token",
				"token", tok, "err", err)
			continue
		}
		if ok && suggestion != "" && suggestion != tok {
			tokens[i] = suggestion
		}
	}
	return strings.Join(tokens, " ")
}

func (g *Guard) eligible(tok string) bool {
	if g.lexicon.IsWhitelisted(strings.ToLower(tok)) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(tok)
	if unicode.IsUpper(first) {
		return false
	}
	return isAlpha(tok)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
