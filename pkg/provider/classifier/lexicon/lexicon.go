// Package lexicon implements lexicon-based sentiment and emotion
// classifiers for English text.
//
// Words are lowercased and stripped of surrounding punctuation, then looked
// up in embedded word lists. A negator ("not", "never", "no", "don't", ...)
// within the previous three words flips a word's sentiment score. The
// aggregate sentiment is the mean of the scored words; emotions are the
// normalized hit counts per label, with the remaining mass assigned to
// "neutral".
//
// Both classifiers are read-only after construction and safe for
// concurrent use.
package lexicon

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/MrWong99/lingobot/pkg/provider/classifier"
)

var (
	_ classifier.SentimentClassifier = (*Classifier)(nil)
	_ classifier.EmotionClassifier   = (*Classifier)(nil)
)

//go:embed sentiment.tsv
var sentimentTSV string

//go:embed emotion.tsv
var emotionTSV string

const negationWindow = 3

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "nothing": {}, "nobody": {},
	"don't": {}, "doesn't": {}, "didn't": {}, "isn't": {}, "aren't": {},
	"wasn't": {}, "can't": {}, "won't": {}, "dont": {}, "cannot": {},
}

// Classifier scores text against embedded sentiment and emotion word lists.
type Classifier struct {
	scores   map[string]float64
	emotions map[string]string
}

// New parses the embedded word lists.
func New() (*Classifier, error) {
	scores, err := parseScores(sentimentTSV)
	if err != nil {
		return nil, err
	}
	emotions, err := parseEmotions(emotionTSV)
	if err != nil {
		return nil, err
	}
	return &Classifier{scores: scores, emotions: emotions}, nil
}

// Sentiment implements [classifier.SentimentClassifier].
func (c *Classifier) Sentiment(ctx context.Context, text string) (classifier.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return classifier.Sentiment{}, err
	}

	words := tokenize(text)
	var sum float64
	var scored int
	for i, w := range words {
		s, ok := c.scores[w]
		if !ok {
			continue
		}
		if negated(words, i) {
			s = -s
		}
		sum += s
		scored++
	}

	if scored == 0 || sum == 0 {
		return classifier.Sentiment{Label: classifier.LabelNeutral, Score: 1}, nil
	}
	avg := sum / float64(scored)
	label := classifier.LabelPositive
	if avg < 0 {
		label = classifier.LabelNegative
	}
	return classifier.Sentiment{Label: label, Score: 0.5 + math.Abs(avg)/2}, nil
}

// Emotions implements [classifier.EmotionClassifier]. Every label in
// [classifier.EmotionLabels] is present in the result and the scores sum
// to 1.
func (c *Classifier) Emotions(ctx context.Context, text string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(classifier.EmotionLabels))
	for _, l := range classifier.EmotionLabels {
		out[l] = 0
	}

	words := tokenize(text)
	hits := 0
	for _, w := range words {
		if label, ok := c.emotions[w]; ok {
			out[label]++
			hits++
		}
	}

	// One pseudo-count of neutral keeps single-hit texts from reading as certain.
	out["neutral"]++
	total := float64(hits + 1)
	for l, v := range out {
		out[l] = v / total
	}
	return out, nil
}

func negated(words []string, i int) bool {
	for j := max(0, i-negationWindow); j < i; j++ {
		if _, ok := negators[words[j]]; ok {
			return true
		}
	}
	return false
}

// tokenize lowercases text and trims punctuation from each whitespace token,
// keeping inner apostrophes.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && r != '\''
		})
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseScores(raw string) (map[string]float64, error) {
	m := make(map[string]float64, 128)
	err := eachRow(raw, func(line int, key, value string) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < -1 || v > 1 {
			return fmt.Errorf("lexicon: sentiment line %d: invalid score %q", line, value)
		}
		m[key] = v
		return nil
	})
	return m, err
}

func parseEmotions(raw string) (map[string]string, error) {
	known := make(map[string]struct{}, len(classifier.EmotionLabels))
	for _, l := range classifier.EmotionLabels {
		known[l] = struct{}{}
	}
	m := make(map[string]string, 64)
	err := eachRow(raw, func(line int, key, value string) error {
		if _, ok := known[value]; !ok {
			return fmt.Errorf("lexicon: emotion line %d: unknown label %q", line, value)
		}
		m[key] = value
		return nil
	})
	return m, err
}

// eachRow calls fn for every "key<TAB>value" line, skipping blanks and
// comments.
func eachRow(raw string, fn func(line int, key, value string) error) error {
	sc := bufio.NewScanner(strings.NewReader(raw))
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("lexicon: line %d: expected tab-separated pair", n)
		}
		if err := fn(n, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return sc.Err()
}
