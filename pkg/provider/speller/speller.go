// Package speller defines the interface for single-word spelling suggestion.
//
// A [Speller] is queried with one lowercase alphabetic word at a time and
// returns its single best guess. Callers decide which tokens are eligible;
// the Speller never sees punctuation, digits or capitalized words.
//
// Implementations must be safe for concurrent use.
package speller

import "context"

// Speller suggests the most likely correct spelling for a word.
type Speller interface {
	// Correct returns the best suggestion for word. ok is false when the word
	// is already known or no candidate lies within the implementation's edit
	// distance. When ok is true, suggestion differs from word.
	Correct(ctx context.Context, word string) (suggestion string, ok bool, err error)
}
