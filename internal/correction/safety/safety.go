// Package safety decides whether a model-generated rewrite may replace the
// rule-corrected text. The checks are conservative: a rewrite that changes
// too much, drops a whitelisted word or swaps too many words in place is
// rejected in favour of the original.
package safety

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/MrWong99/lingobot/internal/lexicon"
)

const (
	defaultMinSimilarity       = 0.75
	defaultMaxSubstitutionRate = 0.4
)

// Rejection reasons reported by [Filter.Evaluate].
const (
	ReasonSimilarity   = "similarity"
	ReasonWhitelist    = "whitelist"
	ReasonSubstitution = "substitution"
)

// Verdict is the outcome of evaluating one candidate.
type Verdict struct {
	// Accepted is true when the candidate may replace the original.
	Accepted bool

	// Reason names the failed check when Accepted is false.
	Reason string

	// Similarity is the token-level sequence similarity in [0, 1].
	Similarity float64

	// Substitutions is the number of position-aligned token differences.
	Substitutions int
}

// Option is a functional option for configuring a [Filter].
type Option func(*Filter)

// WithMinSimilarity sets the similarity below which a candidate is rejected.
// Default: 0.75.
func WithMinSimilarity(v float64) Option {
	return func(f *Filter) {
		f.minSimilarity = v
	}
}

// WithMaxSubstitutionRate sets the share of original tokens that may be
// substituted in place before a candidate is rejected. Default: 0.4.
func WithMaxSubstitutionRate(v float64) Option {
	return func(f *Filter) {
		f.maxSubstitutionRate = v
	}
}

// Filter is stateless after construction and safe for concurrent use.
type Filter struct {
	lexicon             *lexicon.Lexicon
	minSimilarity       float64
	maxSubstitutionRate float64
}

// New returns a Filter that protects the whitelist of lx. A nil lexicon is
// treated as the embedded default.
func New(lx *lexicon.Lexicon, opts ...Option) *Filter {
	if lx == nil {
		lx = lexicon.Default()
	}
	f := &Filter{
		lexicon:             lx,
		minSimilarity:       defaultMinSimilarity,
		maxSubstitutionRate: defaultMaxSubstitutionRate,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Apply returns candidate when it passes every check and original otherwise.
func (f *Filter) Apply(original, candidate string) string {
	if f.Evaluate(original, candidate).Accepted {
		return candidate
	}
	return original
}

// Evaluate runs the checks over lowercase whitespace tokens and stops at the
// first failure.
func (f *Filter) Evaluate(original, candidate string) Verdict {
	orig := strings.Fields(strings.ToLower(original))
	cand := strings.Fields(strings.ToLower(candidate))

	v := Verdict{Similarity: difflib.NewMatcher(orig, cand).Ratio()}
	if v.Similarity < f.minSimilarity {
		v.Reason = ReasonSimilarity
		return v
	}

	candSet := make(map[string]struct{}, len(cand))
	for _, t := range cand {
		candSet[t] = struct{}{}
	}
	for _, t := range orig {
		if !f.lexicon.IsWhitelisted(t) {
			continue
		}
		if _, ok := candSet[t]; !ok {
			v.Reason = ReasonWhitelist
			return v
		}
	}

	for i := range min(len(orig), len(cand)) {
		if orig[i] != cand[i] {
			v.Substitutions++
		}
	}
	if float64(v.Substitutions) > float64(len(orig))*f.maxSubstitutionRate {
		v.Reason = ReasonSubstitution
		return v
	}

	v.Accepted = true
	return v
}
