// Package correction wires the correction stages into a single pipeline.
//
// A [Pipeline] turns one user utterance into a [Result]:
//
//  1. spellcheck ([spellguard.Guard]): dictionary corrections that respect
//     the lexicon whitelist;
//  2. rule engine ([rules.Engine]): annotation-driven grammar checks that
//     emit feedback and a few deterministic edits;
//  3. rewrite (optional [rewriter.Rewriter]): a model-generated rewrite,
//     accepted only when [safety.Filter] agrees; any failure falls through
//     to the rule engine's text;
//  4. normalize ([normalize.Normalizer]): whitelist casing, stopword casing,
//     leading capital and terminal punctuation;
//  5. diff ([diffreport]): a word diff of the original input against the
//     final text.
//
// Sentiment and emotion classifiers run sequentially on the original input
// once the correction is complete. They are informative only; a classifier
// failure is logged and leaves the corresponding fields empty.
//
// A Pipeline holds no per-request state and is safe for concurrent use when
// its collaborators are.
package correction

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/lingobot/internal/correction/diffreport"
	"github.com/MrWong99/lingobot/internal/correction/normalize"
	"github.com/MrWong99/lingobot/internal/correction/rules"
	"github.com/MrWong99/lingobot/internal/correction/safety"
	"github.com/MrWong99/lingobot/internal/correction/spellguard"
	"github.com/MrWong99/lingobot/internal/lexicon"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/pkg/provider/annotator"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	"github.com/MrWong99/lingobot/pkg/provider/rewriter"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
)

const defaultRewriteTimeout = 20 * time.Second

// Result is the outcome of one [Pipeline.Analyze] call.
type Result struct {
	// Original is the input exactly as passed to Analyze.
	Original string `json:"original"`

	// Spellchecked is the output of the spellcheck stage.
	Spellchecked string `json:"spellchecked"`

	// Final is the fully corrected text.
	Final string `json:"final"`

	// Feedback lists the rule engine findings in emission order. Never nil.
	Feedback []rules.Feedback `json:"feedback"`

	// Diff is the markdown word diff of Original against Final, or
	// [diffreport.NoChanges].
	Diff string `json:"diff"`

	// Segments is the structured form of Diff.
	Segments []diffreport.Segment `json:"segments"`

	// RewriteOutcome is one of the observe.Rewrite* constants.
	RewriteOutcome string `json:"rewrite_outcome"`

	// Sentiment is zero when no sentiment classifier is configured or it
	// failed.
	Sentiment classifier.Sentiment `json:"sentiment"`

	// Emotions maps emotion labels to scores. Nil when no emotion
	// classifier is configured or it failed.
	Emotions map[string]float64 `json:"emotions,omitempty"`
}

// StageError reports the pipeline stage that failed a request. Its message
// keeps the underlying error for logs; callers facing end users should show
// only Stage.
type StageError struct {
	// Stage is one of the observe.Stage* constants.
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return "correction: " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithLexicon sets the lexicon shared by the spellcheck, safety and
// normalize stages. Default: [lexicon.Default].
func WithLexicon(lx *lexicon.Lexicon) Option {
	return func(p *Pipeline) {
		p.lexicon = lx
	}
}

// WithRewriter enables the rewrite stage. When nil (the default) the stage
// is skipped.
func WithRewriter(r rewriter.Rewriter) Option {
	return func(p *Pipeline) {
		p.rewriter = r
	}
}

// WithRewriteTimeout bounds a single rewrite call. Default: 20s.
func WithRewriteTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.rewriteTimeout = d
	}
}

// WithFilterOptions configures the rewrite safety filter.
func WithFilterOptions(opts ...safety.Option) Option {
	return func(p *Pipeline) {
		p.filterOpts = append(p.filterOpts, opts...)
	}
}

// WithRuleOptions configures the rule engine.
func WithRuleOptions(opts ...rules.Option) Option {
	return func(p *Pipeline) {
		p.ruleOpts = append(p.ruleOpts, opts...)
	}
}

// WithSentimentClassifier attaches a sentiment classifier.
func WithSentimentClassifier(c classifier.SentimentClassifier) Option {
	return func(p *Pipeline) {
		p.sentiment = c
	}
}

// WithEmotionClassifier attaches an emotion classifier.
func WithEmotionClassifier(c classifier.EmotionClassifier) Option {
	return func(p *Pipeline) {
		p.emotion = c
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline runs the correction stages in order.
type Pipeline struct {
	lexicon        *lexicon.Lexicon
	rewriter       rewriter.Rewriter
	rewriteTimeout time.Duration
	filterOpts     []safety.Option
	ruleOpts       []rules.Option
	sentiment      classifier.SentimentClassifier
	emotion        classifier.EmotionClassifier
	metrics        *observe.Metrics

	speller    *spellguard.Guard
	rules      *rules.Engine
	filter     *safety.Filter
	normalizer *normalize.Normalizer
}

// New builds a Pipeline around the two mandatory collaborators.
func New(a annotator.Annotator, s speller.Speller, opts ...Option) (*Pipeline, error) {
	if a == nil {
		return nil, errors.New("correction: annotator is required")
	}
	if s == nil {
		return nil, errors.New("correction: speller is required")
	}
	p := &Pipeline{rewriteTimeout: defaultRewriteTimeout}
	for _, o := range opts {
		o(p)
	}
	if p.lexicon == nil {
		p.lexicon = lexicon.Default()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.rewriteTimeout <= 0 {
		p.rewriteTimeout = defaultRewriteTimeout
	}

	p.speller = spellguard.New(s, p.lexicon)
	p.rules = rules.New(a, p.ruleOpts...)
	p.filter = safety.New(p.lexicon, p.filterOpts...)
	p.normalizer = normalize.New(p.lexicon)
	return p, nil
}

// Analyze runs the full pipeline on text. Only a rule engine failure is
// returned as an error; every other degraded stage is absorbed.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "correction.Analyze")
	start := time.Now()

	res := &Result{Original: text}

	t := time.Now()
	res.Spellchecked = p.speller.Correct(ctx, text)
	p.metrics.RecordStage(ctx, observe.StageSpellcheck, time.Since(t))

	t = time.Now()
	ruled, feedback, err := p.rules.Apply(ctx, res.Spellchecked)
	p.metrics.RecordStage(ctx, observe.StageRules, time.Since(t))
	if err != nil {
		err = &StageError{Stage: observe.StageRules, Err: err}
		observe.EndSpan(span, err)
		return nil, err
	}
	if feedback == nil {
		feedback = []rules.Feedback{}
	}
	res.Feedback = feedback
	for _, f := range feedback {
		p.metrics.RecordFeedback(ctx, string(f.Severity))
	}

	t = time.Now()
	rewritten, outcome := p.rewrite(ctx, ruled)
	res.RewriteOutcome = outcome
	p.metrics.RecordStage(ctx, observe.StageRewrite, time.Since(t))
	p.metrics.RecordRewrite(ctx, outcome)

	t = time.Now()
	res.Final = p.normalizer.Normalize(rewritten)
	p.metrics.RecordStage(ctx, observe.StageNormalize, time.Since(t))

	t = time.Now()
	res.Diff = diffreport.Report(text, res.Final)
	res.Segments = diffreport.Segments(text, res.Final)
	p.metrics.RecordStage(ctx, observe.StageDiff, time.Since(t))

	t = time.Now()
	p.classify(ctx, res)
	p.metrics.RecordStage(ctx, observe.StageClassify, time.Since(t))

	p.metrics.RecordStage(ctx, observe.StageTotal, time.Since(start))
	observe.EndSpan(span, nil,
		attribute.Int("feedback.count", len(res.Feedback)),
		attribute.String("rewrite.outcome", outcome),
	)
	return res, nil
}

// rewrite returns the text to normalize and the rewrite outcome.
func (p *Pipeline) rewrite(ctx context.Context, text string) (string, string) {
	if p.rewriter == nil {
		return text, observe.RewriteSkipped
	}

	ctx, span := observe.StartSpan(ctx, "correction.rewrite")
	rctx, cancel := context.WithTimeout(ctx, p.rewriteTimeout)
	defer cancel()

	res := p.rewriter.Rewrite(rctx, text)
	if !res.OK() {
		err := res.Err
		if err == nil {
			err = rewriter.ErrEmptyCandidate
		}
		observe.Logger(ctx).Warn("correction: rewrite failed, keeping rule output", "err", err)
		observe.EndSpan(span, err, attribute.String("outcome", observe.RewriteFailed))
		return text, observe.RewriteFailed
	}

	v := p.filter.Evaluate(text, res.Candidate)
	if !v.Accepted {
		observe.Logger(ctx).Debug("correction: rewrite rejected",
			"reason", v.Reason,
			"similarity", v.Similarity,
			"substitutions", v.Substitutions,
		)
		observe.EndSpan(span, nil,
			attribute.String("outcome", observe.RewriteRejected),
			attribute.String("reason", v.Reason),
		)
		return text, observe.RewriteRejected
	}
	observe.EndSpan(span, nil, attribute.String("outcome", observe.RewriteAccepted))
	return res.Candidate, observe.RewriteAccepted
}

// classify runs the configured classifiers on the original input, one after
// the other.
func (p *Pipeline) classify(ctx context.Context, res *Result) {
	if p.sentiment != nil {
		s, err := p.sentiment.Sentiment(ctx, res.Original)
		if err != nil {
			observe.Logger(ctx).Warn("correction: sentiment classification failed", "err", err)
		} else {
			res.Sentiment = s
		}
	}
	if p.emotion != nil {
		e, err := p.emotion.Emotions(ctx, res.Original)
		if err != nil {
			observe.Logger(ctx).Warn("correction: emotion classification failed", "err", err)
		} else {
			res.Emotions = e
		}
	}
}
