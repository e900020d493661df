// Package symspell implements [speller.Speller] with the Symmetric Delete
// spelling correction algorithm over an English word frequency list.
//
// Candidates are generated from a precomputed delete index, verified with
// Damerau-Levenshtein distance and ranked by distance, then by Double
// Metaphone agreement with the input, then by corpus frequency.
//
// The default frequency list is embedded; a custom one can be loaded with
// [WithDictionary]. The file format is one "word frequency" pair per line,
// separated by the last space.
package symspell

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/lingobot/pkg/provider/speller"
)

var _ speller.Speller = (*Speller)(nil)

const (
	defaultMaxDistance = 2
	maxSupportedDist   = 3
	prefixLength       = 7
	maxWordBytes       = 64
	deletesPerWord     = 8
)

//go:embed freq.txt
var defaultFreq []byte

// Suggestion is a ranked spelling candidate.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int64
	Phonetic  bool
}

type config struct {
	dictionary  string
	maxDistance int
}

// Option is a functional option for [New].
type Option func(*config)

// WithDictionary loads the frequency list from path instead of the embedded
// default. An empty path keeps the default.
func WithDictionary(path string) Option {
	return func(c *config) {
		c.dictionary = path
	}
}

// WithMaxDistance sets the maximum edit distance considered for suggestions.
// Values outside [1, 3] are clamped. Default: 2.
func WithMaxDistance(n int) Option {
	return func(c *config) {
		c.maxDistance = min(max(n, 1), maxSupportedDist)
	}
}

// Speller is a SymSpell index. It is read-only after construction and safe
// for concurrent use.
type Speller struct {
	maxDistance int
	words       map[string]int64
	wordList    []string
	deletes     map[uint32][]uint32
	maxWordLen  int
}

// New builds a Speller from the configured frequency list.
func New(opts ...Option) (*Speller, error) {
	cfg := config{maxDistance: defaultMaxDistance}
	for _, o := range opts {
		o(&cfg)
	}

	var r io.Reader = bytes.NewReader(defaultFreq)
	if cfg.dictionary != "" {
		f, err := os.Open(cfg.dictionary)
		if err != nil {
			return nil, fmt.Errorf("symspell: open dictionary: %w", err)
		}
		defer f.Close()
		r = f
	}

	s := &Speller{
		maxDistance: cfg.maxDistance,
		words:       make(map[string]int64),
		deletes:     make(map[uint32][]uint32),
	}
	if err := s.load(r); err != nil {
		return nil, err
	}
	if len(s.wordList) == 0 {
		return nil, fmt.Errorf("symspell: dictionary contains no words")
	}
	return s, nil
}

func (s *Speller) load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sp := strings.LastIndexByte(line, ' ')
		if sp <= 0 {
			return fmt.Errorf("symspell: line %d: expected \"word frequency\"", lineNo)
		}
		word := strings.ToLower(line[:sp])
		freq, err := strconv.ParseInt(line[sp+1:], 10, 64)
		if err != nil || freq < 0 {
			return fmt.Errorf("symspell: line %d: invalid frequency %q", lineNo, line[sp+1:])
		}
		s.add(word, freq)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("symspell: read dictionary: %w", err)
	}
	return nil
}

func (s *Speller) add(word string, freq int64) {
	if _, dup := s.words[word]; dup {
		s.words[word] += freq
		return
	}
	s.words[word] = freq
	idx := uint32(len(s.wordList)) //nolint:gosec // dictionary size is bounded well below uint32 max
	s.wordList = append(s.wordList, word)
	s.maxWordLen = max(s.maxWordLen, utf8.RuneCountInString(word))

	prefix := truncateToRunes(word, prefixLength)
	for _, del := range append(generateDeletes(prefix, s.maxDistance), prefix) {
		h := fnvHash(del)
		s.deletes[h] = append(s.deletes[h], idx)
	}
}

// Known reports whether word is in the dictionary.
func (s *Speller) Known(word string) bool {
	_, ok := s.words[strings.ToLower(word)]
	return ok
}

// Correct implements [speller.Speller].
func (s *Speller) Correct(ctx context.Context, word string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return word, false, err
	}
	lower := strings.ToLower(word)
	if lower == "" || len(lower) > maxWordBytes || s.Known(lower) {
		return word, false, nil
	}
	sugg := s.Lookup(lower)
	if len(sugg) == 0 || sugg[0].Term == lower {
		return word, false, nil
	}
	return sugg[0].Term, true, nil
}

// Lookup returns the candidates within the configured edit distance of
// input, best first. An exact dictionary hit is returned alone with
// distance 0.
func (s *Speller) Lookup(input string) []Suggestion {
	input = strings.ToLower(input)
	if input == "" {
		return nil
	}
	if freq, ok := s.words[input]; ok {
		return []Suggestion{{Term: input, Frequency: freq, Phonetic: true}}
	}

	inputLen := utf8.RuneCountInString(input)
	if inputLen-s.maxDistance > s.maxWordLen {
		return nil
	}

	primary, secondary := matchr.DoubleMetaphone(input)
	prefix := truncateToRunes(input, prefixLength)
	seen := make(map[uint32]struct{})
	var results []Suggestion

	for _, del := range append(generateDeletes(prefix, s.maxDistance), prefix) {
		for _, idx := range s.deletes[fnvHash(del)] {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}

			candidate := s.wordList[idx]
			if abs(inputLen-utf8.RuneCountInString(candidate)) > s.maxDistance {
				continue
			}
			dist := matchr.DamerauLevenshtein(input, candidate)
			if dist > s.maxDistance {
				continue
			}
			cp, cs := matchr.DoubleMetaphone(candidate)
			results = append(results, Suggestion{
				Term:      candidate,
				Distance:  dist,
				Frequency: s.words[candidate],
				Phonetic:  codesOverlap(primary, secondary, cp, cs),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Phonetic != b.Phonetic {
			return a.Phonetic
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Term < b.Term
	})
	return results
}

func codesOverlap(p1, s1, p2, s2 string) bool {
	for _, a := range []string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || a == s2 {
			return true
		}
	}
	return false
}

// generateDeletes returns all unique strings obtainable by deleting 1 to dist
// runes from s. The original string itself is not included.
func generateDeletes(s string, dist int) []string {
	if dist == 0 || s == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var results []string
	frontier := []string{s}
	for depth := 0; depth < dist; depth++ {
		var next []string
		for _, w := range frontier {
			r := []rune(w)
			for i := range r {
				del := string(r[:i]) + string(r[i+1:])
				if _, ok := seen[del]; ok {
					continue
				}
				seen[del] = struct{}{}
				results = append(results, del)
				next = append(next, del)
			}
		}
		frontier = next
	}
	return results
}

func truncateToRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func fnvHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
