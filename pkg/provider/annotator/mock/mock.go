// Package mock provides a test double for the annotator.Annotator interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/annotator"
)

// Annotator is a mock implementation of annotator.Annotator.
//
// Docs maps exact input text to the Doc returned for it. Texts without an
// entry yield Default, or an empty Doc when Default is nil.
type Annotator struct {
	mu sync.Mutex

	// Docs holds canned annotations keyed by input text.
	Docs map[string]*annotator.Doc

	// Default is returned for texts missing from Docs.
	Default *annotator.Doc

	// Errs maps input text to an injected error.
	Errs map[string]error

	// Err, if non-nil, is returned for every call not covered by Errs.
	Err error

	// Calls records the text of every Annotate invocation in order.
	Calls []string
}

// Annotate records the call and returns the configured Doc or error.
func (a *Annotator) Annotate(_ context.Context, text string) (*annotator.Doc, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, text)

	if err, ok := a.Errs[text]; ok {
		return nil, err
	}
	if a.Err != nil {
		return nil, a.Err
	}
	if d, ok := a.Docs[text]; ok {
		return d, nil
	}
	if a.Default != nil {
		return a.Default, nil
	}
	return &annotator.Doc{}, nil
}

// CallCount returns the number of Annotate calls. Thread-safe.
func (a *Annotator) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Calls)
}

var _ annotator.Annotator = (*Annotator)(nil)
