// Package llmclassify implements sentiment and emotion classification with
// an [llm.Provider] that is prompted to answer in JSON.
package llmclassify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	"github.com/MrWong99/lingobot/pkg/provider/llm"
)

var (
	_ classifier.SentimentClassifier = (*Classifier)(nil)
	_ classifier.EmotionClassifier   = (*Classifier)(nil)
)

const (
	maxOutputTokens = 256
)

var sentimentPrompt = `Classify the overall sentiment of the user's text.

Respond with ONLY a JSON object (no markdown, no prose):
{"label": "POSITIVE" | "NEGATIVE" | "NEUTRAL", "score": <confidence between 0.0 and 1.0>}`

var emotionPrompt = `Score how strongly the user's text expresses each of these emotions: ` +
	strings.Join(classifier.EmotionLabels, ", ") + `.

Respond with ONLY a JSON object mapping every emotion to a score between 0.0 and 1.0
(no markdown, no prose), for example:
{"anger": 0.01, "disgust": 0.0, "fear": 0.02, "joy": 0.9, "neutral": 0.05, "sadness": 0.01, "surprise": 0.01}`

// Classifier asks an LLM for sentiment and emotion scores.
// It is safe for concurrent use.
type Classifier struct {
	llm llm.Provider
}

// New returns a Classifier backed by provider.
func New(provider llm.Provider) *Classifier {
	return &Classifier{llm: provider}
}

// Sentiment implements [classifier.SentimentClassifier].
func (c *Classifier) Sentiment(ctx context.Context, text string) (classifier.Sentiment, error) {
	var out classifier.Sentiment
	if err := c.ask(ctx, sentimentPrompt, text, &out); err != nil {
		return classifier.Sentiment{}, err
	}
	out.Label = strings.ToUpper(strings.TrimSpace(out.Label))
	switch out.Label {
	case classifier.LabelPositive, classifier.LabelNegative, classifier.LabelNeutral:
	default:
		return classifier.Sentiment{}, fmt.Errorf("llmclassify: unknown sentiment label %q", out.Label)
	}
	out.Score = clamp01(out.Score)
	return out, nil
}

// Emotions implements [classifier.EmotionClassifier]. Labels outside
// [classifier.EmotionLabels] are dropped and missing ones are set to 0.
func (c *Classifier) Emotions(ctx context.Context, text string) (map[string]float64, error) {
	var raw map[string]float64
	if err := c.ask(ctx, emotionPrompt, text, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(classifier.EmotionLabels))
	for _, l := range classifier.EmotionLabels {
		out[l] = clamp01(raw[l])
	}
	return out, nil
}

func (c *Classifier) ask(ctx context.Context, prompt, text string, into any) error {
	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages:     []llm.Message{{Role: "user", Content: text}},
		MaxTokens:    maxOutputTokens,
	})
	if err != nil {
		return fmt.Errorf("llmclassify: complete: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("llmclassify: nil response")
	}
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), into); err != nil {
		return fmt.Errorf("llmclassify: parse response: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
