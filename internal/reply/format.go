// Package reply turns correction results into the chat reply shown to the
// user and owns the request boundary shared by every surface (HTTP,
// websocket, MCP and CLI).
package reply

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/correction/rules"
	"github.com/MrWong99/lingobot/internal/observe"
)

// Canned replies.
const (
	EmptyPrompt = "⚠️ Please type something to analyze."
	errorPrefix = "⚠️ Error: "
)

// Marker returns the emoji prefix used for a feedback severity.
func Marker(s rules.Severity) string {
	switch s {
	case rules.SeverityCritical:
		return "❗"
	case rules.SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// Emotion is one label and score, used for ordered rendering.
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SortedEmotions orders emotions by descending score, then label.
func SortedEmotions(m map[string]float64) []Emotion {
	out := make([]Emotion, 0, len(m))
	for _, label := range slices.Sorted(maps.Keys(m)) {
		out = append(out, Emotion{Label: label, Score: m[label]})
	}
	slices.SortStableFunc(out, func(a, b Emotion) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Format renders res as markdown. Sentiment, emotion and feedback sections
// are omitted when empty.
func Format(res *correction.Result) string {
	var b strings.Builder

	b.WriteString("🔍 **Changes (Diff):**\n")
	b.WriteString(res.Diff)
	b.WriteString("\n\n📝 **Corrected:** ")
	b.WriteString(res.Final)
	b.WriteString("\n🔤 **Spellcheck:** ")
	b.WriteString(res.Spellchecked)

	if !res.Sentiment.IsZero() {
		fmt.Fprintf(&b, "\n🙂 **Sentiment:** %s (score: %.2f)", res.Sentiment.Label, res.Sentiment.Score)
	}
	if len(res.Emotions) > 0 {
		parts := make([]string, 0, len(res.Emotions))
		for _, e := range SortedEmotions(res.Emotions) {
			parts = append(parts, fmt.Sprintf("%s (%.2f)", e.Label, e.Score))
		}
		b.WriteString("\n🎭 **Emotions:** ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if len(res.Feedback) > 0 {
		b.WriteString("\n\n📌 **Feedback:**")
		for _, f := range res.Feedback {
			fmt.Fprintf(&b, "\n   %s %s", Marker(f.Severity), f.Message)
		}
	}
	return b.String()
}

// stageNames maps pipeline stages to the wording shown to users.
var stageNames = map[string]string{
	observe.StageSpellcheck: "spell checking",
	observe.StageRules:      "grammar analysis",
	observe.StageRewrite:    "rewriting",
	observe.StageNormalize:  "normalization",
	observe.StageDiff:       "diffing",
	observe.StageClassify:   "classification",
}

// ErrorMessage returns a stable, user-facing description of err. It names
// the failing stage but never includes provider details such as addresses
// or upstream error bodies; those belong in the logs.
func ErrorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "the analysis timed out, please try again."
	}
	var se *correction.StageError
	if errors.As(err, &se) {
		if name, ok := stageNames[se.Stage]; ok {
			return name + " is unavailable right now, please try again later."
		}
	}
	return "the analysis failed, please try again later."
}

// FormatError renders err as a user-facing reply.
func FormatError(err error) string {
	return errorPrefix + ErrorMessage(err)
}
