// Package rules implements the annotation-driven grammar rule engine.
//
// [Engine.Apply] annotates its input exactly once and then runs a fixed,
// ordered list of independent checks. Checks append [Feedback] and may edit
// a working copy of the text with plain substring replacement; annotations
// are never recomputed after an edit, so edits are best effort and not
// position-aware.
//
// Checks, in emission order:
//
//  1. missing subject (no nsubj token)
//  2. missing verb (no VERB token)
//  3. subject-verb agreement
//  4. missing article before a bare noun argument
//  5. double negation
//  6. inconsistent verb tense
//  7. plural/singular pronoun mix
//  8. homophone hints
//  9. "its" contraction rewrite and comma hint
//  10. terminal punctuation
//  11. run-on sentence
//  12. leading capital
//  13. passive voice
//  14. list parallelism
package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/lingobot/pkg/provider/annotator"
)

const defaultRunOnWords = 20

var (
	doubleNegRe   = regexp.MustCompile(`\b(?:no|not|never)\b.*\b(?:no|not|never)\b`)
	itsRe         = regexp.MustCompile(`(?i)\bits\b`)
	itsCommaRe    = regexp.MustCompile(`\bit'?s\b`)
	sentenceEndRe = regexp.MustCompile(`[.!?]`)
	listSplitRe   = regexp.MustCompile(`(?i)(?:,|\s+(?:and|or)\s+)`)
)

// homophone pairs a commonly confused word with its suggestion.
type homophone struct {
	word    string
	re      *regexp.Regexp
	suggest string
}

var homophones = func() []homophone {
	table := []struct{ word, suggest string }{
		{"their", "they're/there"},
		{"your", "you're"},
		{"its", "it's"},
		{"then", "than"},
		{"affect", "effect"},
	}
	out := make([]homophone, len(table))
	for i, h := range table {
		out[i] = homophone{
			word:    h.word,
			re:      regexp.MustCompile(`\b` + regexp.QuoteMeta(h.word) + `\b`),
			suggest: h.suggest,
		}
	}
	return out
}()

// singularPronouns are treated like NN/NNP subjects by the agreement check.
var singularPronouns = map[string]struct{}{"he": {}, "she": {}, "it": {}}

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithRunOnWords sets the word count above which an unpunctuated input is
// reported as a run-on sentence. Default: 20.
func WithRunOnWords(n int) Option {
	return func(e *Engine) {
		e.runOnWords = n
	}
}

// Engine runs the grammar checks. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	annotator  annotator.Annotator
	runOnWords int
}

// New returns an Engine that annotates text with a.
func New(a annotator.Annotator, opts ...Option) *Engine {
	e := &Engine{
		annotator:  a,
		runOnWords: defaultRunOnWords,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// state is the per-call working set shared by the checks.
type state struct {
	original string
	lower    string
	working  string
	doc      *annotator.Doc
	feedback []Feedback
}

func (s *state) emit(sev Severity, format string, args ...any) {
	s.feedback = append(s.feedback, Feedback{Severity: sev, Message: fmt.Sprintf(format, args...)})
}

// Apply annotates text once, runs every check and returns the trimmed
// working text together with the feedback in emission order. Only a failure
// of the main annotation pass is returned as an error.
func (e *Engine) Apply(ctx context.Context, text string) (string, []Feedback, error) {
	doc, err := e.annotator.Annotate(ctx, text)
	if err != nil {
		return text, nil, fmt.Errorf("rules: annotate: %w", err)
	}
	if doc == nil {
		return text, nil, errors.New("rules: annotate: annotator returned no document")
	}

	s := &state{
		original: text,
		lower:    strings.ToLower(text),
		working:  text,
		doc:      doc,
	}

	checkStructure(s)
	checkAgreement(s)
	checkArticles(s)
	checkDoubleNegation(s)
	checkTense(s)
	checkPronouns(s)
	checkHomophones(s)
	checkContraction(s)
	checkPunctuation(s)
	e.checkRunOn(s)
	checkCapitalization(s)
	checkPassive(s)
	e.checkParallelism(ctx, s)

	return strings.TrimSpace(s.working), s.feedback, nil
}

func checkStructure(s *state) {
	hasSubject := slices.ContainsFunc(s.doc.Tokens, func(t annotator.Token) bool { return t.Dep == "nsubj" })
	hasVerb := slices.ContainsFunc(s.doc.Tokens, func(t annotator.Token) bool { return t.POS == "VERB" })
	if !hasSubject {
		s.emit(SeverityCritical, "Sentence may be missing a subject.")
	}
	if !hasVerb {
		s.emit(SeverityCritical, "Sentence may be missing a verb.")
	}
}

func checkAgreement(s *state) {
	for i, tok := range s.doc.Tokens {
		if tok.Dep != "nsubj" {
			continue
		}
		head, ok := s.doc.HeadOf(i)
		if !ok || head.POS != "VERB" {
			continue
		}
		if isSingularSubject(tok) && (head.Tag == "VBP" || head.Tag == "VB") {
			s.emit(SeverityWarning, "Subject-verb agreement issue: singular subject with plural/base verb.")
			s.working = strings.ReplaceAll(s.working, head.Text, head.Text+"s")
		}
		if tok.Tag == "NNS" && head.Tag == "VBZ" {
			s.emit(SeverityWarning, "Subject-verb agreement issue: plural subject with singular verb.")
			if head.Lemma != "" {
				s.working = strings.ReplaceAll(s.working, head.Text, head.Lemma)
			}
		}
	}
}

func isSingularSubject(t annotator.Token) bool {
	switch t.Tag {
	case "NN", "NNP":
		return true
	case "PRP":
		_, ok := singularPronouns[strings.ToLower(t.Text)]
		return ok
	}
	return false
}

func checkArticles(s *state) {
	for i, tok := range s.doc.Tokens {
		if tok.POS != "NOUN" {
			continue
		}
		switch tok.Dep {
		case "dobj", "pobj", "nsubj":
		default:
			continue
		}
		hasDet := slices.ContainsFunc(s.doc.Children(i), func(c int) bool {
			return s.doc.Tokens[c].Dep == "det"
		})
		if !hasDet {
			s.emit(SeverityInfo, "Missing article before '%s'.", tok.Text)
		}
	}
}

func checkDoubleNegation(s *state) {
	if doubleNegRe.MatchString(s.lower) {
		s.emit(SeverityCritical, "Double negative detected: check the intended meaning.")
	}
}

func checkTense(s *state) {
	var tags []string
	for _, t := range s.doc.Tokens {
		if t.POS == "VERB" {
			tags = append(tags, t.Tag)
		}
	}
	distinct := slices.Compact(slices.Sorted(slices.Values(tags)))
	if len(distinct) <= 1 {
		return
	}
	past := slices.ContainsFunc(tags, func(t string) bool { return strings.HasPrefix(t, "VBD") })
	present := slices.ContainsFunc(tags, func(t string) bool {
		return strings.HasPrefix(t, "VBZ") || strings.HasPrefix(t, "VBP")
	})
	if past && present {
		s.emit(SeverityWarning, "Inconsistent verb tense: consider aligning tense.")
	}
}

// checkPronouns is a raw substring test, so "they" also satisfies the
// singular side through its "he".
func checkPronouns(s *state) {
	plural := strings.Contains(s.lower, "they") || strings.Contains(s.lower, "them")
	singular := strings.Contains(s.lower, "he") || strings.Contains(s.lower, "she")
	if plural && singular {
		s.emit(SeverityCritical, "Pronoun-antecedent agreement issue: mismatch in subject/pronoun.")
	}
}

func checkHomophones(s *state) {
	for _, h := range homophones {
		if h.re.MatchString(s.lower) {
			s.emit(SeverityWarning, "Check if '%s' is correct; maybe you meant '%s'.", h.word, h.suggest)
		}
	}
}

func checkContraction(s *state) {
	if itsRe.MatchString(s.working) {
		s.working = itsRe.ReplaceAllLiteralString(s.working, "it's")
		s.emit(SeverityWarning, "Replaced 'its' with 'it's' (contraction).")
	}
	if itsCommaRe.MatchString(strings.ToLower(s.working)) {
		s.emit(SeverityInfo, "Consider adding a comma before 'it's' for readability.")
	}
}

func checkPunctuation(s *state) {
	if s.working == "" {
		return
	}
	last, _ := utf8.DecodeLastRuneInString(s.working)
	if !isTerminal(last) {
		s.emit(SeverityInfo, "Sentence should end with punctuation.")
		s.working += "."
	}
}

func (e *Engine) checkRunOn(s *state) {
	if !sentenceEndRe.MatchString(s.original) && len(strings.Fields(s.original)) > e.runOnWords {
		s.emit(SeverityWarning, "Possible run-on sentence: consider splitting.")
	}
}

func checkCapitalization(s *state) {
	if s.working == "" {
		return
	}
	first, size := utf8.DecodeRuneInString(s.working)
	if !unicode.IsUpper(first) {
		s.emit(SeverityInfo, "Sentence should start with a capital letter.")
		s.working = string(unicode.ToUpper(first)) + s.working[size:]
	}
}

func checkPassive(s *state) {
	for _, t := range s.doc.Tokens {
		if t.Dep == "auxpass" {
			s.emit(SeverityWarning, "Passive voice detected: consider rewriting in active voice.")
		}
	}
}

// checkParallelism splits a list-like input into items, annotates each and
// compares the part of speech of the first token. Any failure becomes
// warning feedback.
func (e *Engine) checkParallelism(ctx context.Context, s *state) {
	if !strings.Contains(s.original, ",") && !strings.Contains(s.lower, " and ") && !strings.Contains(s.lower, " or ") {
		return
	}

	var items []string
	for _, part := range listSplitRe.Split(s.original, -1) {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) < 2 {
		return
	}

	forms := make(map[string]struct{}, len(items))
	for _, item := range items {
		doc, err := e.annotator.Annotate(ctx, item)
		if err != nil {
			s.emit(SeverityWarning, "Could not check parallelism: %v", err)
			return
		}
		if doc != nil && len(doc.Tokens) > 0 {
			forms[doc.Tokens[0].POS] = struct{}{}
		}
	}
	if len(forms) > 1 {
		s.emit(SeverityWarning, "Possible parallelism issue in list/series.")
	}
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
