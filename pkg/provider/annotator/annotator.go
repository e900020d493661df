// Package annotator defines the interface for part-of-speech and dependency
// annotation of a single utterance.
//
// An [Annotator] turns raw text into a [Doc]: an ordered list of [Token]
// values carrying the coarse universal POS, the fine Penn Treebank tag, the
// dependency label, the lemma and the index of the syntactic head token.
// The head table is an index table, never a pointer graph; the root token
// points at itself.
//
// Implementations must be safe for concurrent use.
package annotator

import "context"

// Token is one annotated token of a [Doc].
type Token struct {
	// Text is the surface form as it appeared in the input.
	Text string `json:"text"`

	// Lemma is the dictionary form (e.g., "like" for "likes").
	Lemma string `json:"lemma"`

	// POS is the coarse universal part of speech (e.g., "NOUN", "VERB").
	POS string `json:"pos"`

	// Tag is the fine-grained Penn Treebank tag (e.g., "NNS", "VBZ").
	Tag string `json:"tag"`

	// Dep is the dependency label (e.g., "nsubj", "dobj", "auxpass").
	Dep string `json:"dep"`

	// Head is the index of the syntactic head within the owning Doc.
	// The root token's Head equals its own index.
	Head int `json:"head"`
}

// Doc is the annotation of one text.
type Doc struct {
	Tokens []Token `json:"tokens"`
}

// HeadOf returns the head token of the token at index i. ok is false when i
// or its head index is out of range.
func (d *Doc) HeadOf(i int) (Token, bool) {
	if i < 0 || i >= len(d.Tokens) {
		return Token{}, false
	}
	h := d.Tokens[i].Head
	if h < 0 || h >= len(d.Tokens) {
		return Token{}, false
	}
	return d.Tokens[h], true
}

// Children returns the indices of all tokens whose head is i, excluding i
// itself.
func (d *Doc) Children(i int) []int {
	var out []int
	for j, t := range d.Tokens {
		if j != i && t.Head == i {
			out = append(out, j)
		}
	}
	return out
}

// Annotator produces token annotations for a text.
type Annotator interface {
	// Annotate tokenizes and annotates text. An empty text yields an empty
	// Doc and a nil error.
	Annotate(ctx context.Context, text string) (*Doc, error)
}
