// Package lexicon holds the word lists that steer deterministic casing:
// a whitelist mapping lowercase words to their canonical spelling and a
// stopword set.
//
// A [Lexicon] is immutable after loading and safe for concurrent use.
package lexicon

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is wrapped by every error describing an invalid lexicon
// document.
var ErrMalformed = errors.New("lexicon: malformed")

//go:embed default.yaml
var defaultYAML []byte

// Lexicon is the whitelist and stopword set used by the speller guard and
// the normalizer.
type Lexicon struct {
	whitelist map[string]string
	keys      []string
	stopwords map[string]struct{}
}

// document is the on-disk shape. Nodes are kept raw so the kind of each
// section can be checked before decoding.
type document struct {
	Whitelist yaml.Node `yaml:"whitelist"`
	Stopwords yaml.Node `yaml:"stopwords"`
}

// Default returns the embedded lexicon.
func Default() *Lexicon {
	lx, err := Parse(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("lexicon: embedded default is invalid: %v", err))
	}
	return lx
}

// Load reads a lexicon YAML file. An empty path returns [Default].
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	lx, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon: parse %q: %w", path, err)
	}
	return lx, nil
}

// Parse decodes and validates a lexicon document. The whitelist must be a
// mapping with lowercase keys and non-empty values; stopwords must be a
// sequence of lowercase strings. Either section may be omitted.
func Parse(r io.Reader) (*Lexicon, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrMalformed, err)
	}

	whitelist, err := decodeWhitelist(&doc.Whitelist)
	if err != nil {
		return nil, err
	}
	stopwords, err := decodeStopwords(&doc.Stopwords)
	if err != nil {
		return nil, err
	}
	return New(whitelist, stopwords)
}

// New builds a Lexicon from in-memory lists, applying the same validation
// as [Parse].
func New(whitelist map[string]string, stopwords []string) (*Lexicon, error) {
	var errs []error
	lx := &Lexicon{
		whitelist: make(map[string]string, len(whitelist)),
		stopwords: make(map[string]struct{}, len(stopwords)),
	}
	for k, v := range whitelist {
		switch {
		case k == "" || strings.ContainsFunc(k, isSpace):
			errs = append(errs, fmt.Errorf("%w: whitelist key %q must be a single word", ErrMalformed, k))
		case k != strings.ToLower(k):
			errs = append(errs, fmt.Errorf("%w: whitelist key %q must be lowercase", ErrMalformed, k))
		case !strings.EqualFold(k, v):
			errs = append(errs, fmt.Errorf("%w: whitelist value %q must differ from key %q only in case", ErrMalformed, v, k))
		default:
			lx.whitelist[k] = v
		}
	}
	for _, w := range stopwords {
		if w == "" || w != strings.ToLower(w) || strings.ContainsFunc(w, isSpace) {
			errs = append(errs, fmt.Errorf("%w: stopword %q must be a single lowercase word", ErrMalformed, w))
			continue
		}
		lx.stopwords[w] = struct{}{}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	lx.keys = slices.Sorted(maps.Keys(lx.whitelist))
	return lx, nil
}

func decodeWhitelist(n *yaml.Node) (map[string]string, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: whitelist must be a mapping (line %d)", ErrMalformed, n.Line)
	}
	var m map[string]string
	if err := n.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: whitelist: %w", ErrMalformed, err)
	}
	return m, nil
}

func decodeStopwords(n *yaml.Node) ([]string, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: stopwords must be a sequence (line %d)", ErrMalformed, n.Line)
	}
	var s []string
	if err := n.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: stopwords: %w", ErrMalformed, err)
	}
	return s, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// IsWhitelisted reports whether the lowercase form of word is a whitelist key.
func (lx *Lexicon) IsWhitelisted(word string) bool {
	_, ok := lx.whitelist[strings.ToLower(word)]
	return ok
}

// Canonical returns the canonical spelling for word, if whitelisted.
func (lx *Lexicon) Canonical(word string) (string, bool) {
	v, ok := lx.whitelist[strings.ToLower(word)]
	return v, ok
}

// Keys returns the whitelist keys in sorted order. The slice is shared and
// must not be modified.
func (lx *Lexicon) Keys() []string {
	return lx.keys
}

// IsStopword reports whether the lowercase form of word is a stopword.
func (lx *Lexicon) IsStopword(word string) bool {
	_, ok := lx.stopwords[strings.ToLower(word)]
	return ok
}

// Size returns the number of whitelist entries and stopwords.
func (lx *Lexicon) Size() (whitelist, stopwords int) {
	return len(lx.whitelist), len(lx.stopwords)
}
