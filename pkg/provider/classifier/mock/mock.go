// Package mock provides test doubles for the classifier interfaces.
package mock

import (
	"context"
	"maps"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/classifier"
)

// Classifier is a mock implementation of both classifier interfaces.
type Classifier struct {
	mu sync.Mutex

	// SentimentResult is returned by Sentiment.
	SentimentResult classifier.Sentiment

	// SentimentErr, if non-nil, is returned by Sentiment.
	SentimentErr error

	// EmotionsResult is returned (as a copy) by Emotions.
	EmotionsResult map[string]float64

	// EmotionsErr, if non-nil, is returned by Emotions.
	EmotionsErr error

	// SentimentCalls and EmotionsCalls record the text of every call.
	SentimentCalls []string
	EmotionsCalls  []string
}

// Sentiment records the call and returns SentimentResult, SentimentErr.
func (c *Classifier) Sentiment(_ context.Context, text string) (classifier.Sentiment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SentimentCalls = append(c.SentimentCalls, text)
	return c.SentimentResult, c.SentimentErr
}

// Emotions records the call and returns a copy of EmotionsResult.
func (c *Classifier) Emotions(_ context.Context, text string) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EmotionsCalls = append(c.EmotionsCalls, text)
	if c.EmotionsErr != nil {
		return nil, c.EmotionsErr
	}
	return maps.Clone(c.EmotionsResult), nil
}

// CallCount returns the total number of classifier calls. Thread-safe.
func (c *Classifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.SentimentCalls) + len(c.EmotionsCalls)
}

var (
	_ classifier.SentimentClassifier = (*Classifier)(nil)
	_ classifier.EmotionClassifier   = (*Classifier)(nil)
)
