// Package mock provides a test double for the speller.Speller interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/speller"
)

// Speller is a mock implementation of speller.Speller backed by a fixed
// suggestion table.
type Speller struct {
	mu sync.Mutex

	// Suggestions maps a lowercase word to its correction.
	Suggestions map[string]string

	// Errs maps a word to an injected error.
	Errs map[string]error

	// Calls records every queried word in order.
	Calls []string
}

// Correct records the call and looks word up in Suggestions.
func (s *Speller) Correct(_ context.Context, word string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, word)

	if err, ok := s.Errs[word]; ok {
		return word, false, err
	}
	if sugg, ok := s.Suggestions[word]; ok && sugg != word {
		return sugg, true, nil
	}
	return word, false, nil
}

// CallCount returns the number of Correct calls. Thread-safe.
func (s *Speller) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

var _ speller.Speller = (*Speller)(nil)
