package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/annotator"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	"github.com/MrWong99/lingobot/pkg/provider/llm"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	annotator map[string]func(ProviderEntry) (annotator.Annotator, error)
	speller   map[string]func(ProviderEntry) (speller.Speller, error)
	llm       map[string]func(ProviderEntry) (llm.Provider, error)
	sentiment map[string]func(ProviderEntry) (classifier.SentimentClassifier, error)
	emotion   map[string]func(ProviderEntry) (classifier.EmotionClassifier, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		annotator: make(map[string]func(ProviderEntry) (annotator.Annotator, error)),
		speller:   make(map[string]func(ProviderEntry) (speller.Speller, error)),
		llm:       make(map[string]func(ProviderEntry) (llm.Provider, error)),
		sentiment: make(map[string]func(ProviderEntry) (classifier.SentimentClassifier, error)),
		emotion:   make(map[string]func(ProviderEntry) (classifier.EmotionClassifier, error)),
	}
}

// RegisterAnnotator registers an annotator factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAnnotator(name string, factory func(ProviderEntry) (annotator.Annotator, error)) {
	register(r, r.annotator, name, factory)
}

// RegisterSpeller registers a speller factory under name.
func (r *Registry) RegisterSpeller(name string, factory func(ProviderEntry) (speller.Speller, error)) {
	register(r, r.speller, name, factory)
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	register(r, r.llm, name, factory)
}

// RegisterSentiment registers a sentiment classifier factory under name.
func (r *Registry) RegisterSentiment(name string, factory func(ProviderEntry) (classifier.SentimentClassifier, error)) {
	register(r, r.sentiment, name, factory)
}

// RegisterEmotion registers an emotion classifier factory under name.
func (r *Registry) RegisterEmotion(name string, factory func(ProviderEntry) (classifier.EmotionClassifier, error)) {
	register(r, r.emotion, name, factory)
}

// CreateAnnotator instantiates the annotator registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateAnnotator(entry ProviderEntry) (annotator.Annotator, error) {
	return create(r, r.annotator, "annotator", entry)
}

// CreateSpeller instantiates the speller registered under entry.Name.
func (r *Registry) CreateSpeller(entry ProviderEntry) (speller.Speller, error) {
	return create(r, r.speller, "speller", entry)
}

// CreateLLM instantiates the LLM provider registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSentiment instantiates the sentiment classifier registered under entry.Name.
func (r *Registry) CreateSentiment(entry ProviderEntry) (classifier.SentimentClassifier, error) {
	return create(r, r.sentiment, "sentiment", entry)
}

// CreateEmotion instantiates the emotion classifier registered under entry.Name.
func (r *Registry) CreateEmotion(entry ProviderEntry) (classifier.EmotionClassifier, error) {
	return create(r, r.emotion, "emotion", entry)
}

// Names returns the registered provider names of kind in sorted order. Kind
// is one of the keys of [ValidProviderNames].
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case "annotator":
		return slices.Sorted(maps.Keys(r.annotator))
	case "speller":
		return slices.Sorted(maps.Keys(r.speller))
	case "llm":
		return slices.Sorted(maps.Keys(r.llm))
	case "sentiment":
		return slices.Sorted(maps.Keys(r.sentiment))
	case "emotion":
		return slices.Sorted(maps.Keys(r.emotion))
	}
	return nil
}

func register[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), name string, factory func(ProviderEntry) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m[name] = factory
}

func create[T any](r *Registry, m map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := m[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
