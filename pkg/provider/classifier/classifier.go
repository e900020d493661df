// Package classifier defines the sentiment and emotion classification
// interfaces.
//
// Classifiers run on the user's original input and are purely informative:
// their output is attached to the analysis result and never influences
// correction.
//
// Implementations must be safe for concurrent use.
package classifier

import "context"

// Sentiment labels produced by the built-in classifiers.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
	LabelNeutral  = "NEUTRAL"
)

// Emotion labels produced by the built-in classifiers.
var EmotionLabels = []string{"anger", "disgust", "fear", "joy", "neutral", "sadness", "surprise"}

// Sentiment is a polarity label with its confidence.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// IsZero reports whether s carries no classification.
func (s Sentiment) IsZero() bool {
	return s.Label == ""
}

// SentimentClassifier assigns a polarity to a text.
type SentimentClassifier interface {
	Sentiment(ctx context.Context, text string) (Sentiment, error)
}

// EmotionClassifier scores a text against a set of emotion labels. The
// returned map holds one entry per label the implementation knows about.
type EmotionClassifier interface {
	Emotions(ctx context.Context, text string) (map[string]float64, error)
}
