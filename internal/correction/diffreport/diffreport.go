// Package diffreport renders a word-level diff between the user's input and
// the corrected text as markdown: deleted words are struck through and
// inserted words are bold.
package diffreport

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// NoChanges is returned by [Report] when both texts are equal after
// trimming.
const NoChanges = "No corrections made ✅"

// Kind classifies a [Segment].
type Kind string

// Segment kinds.
const (
	Equal  Kind = "equal"
	Insert Kind = "insert"
	Delete Kind = "delete"
)

// Segment is one token of the aligned diff.
type Segment struct {
	Kind  Kind   `json:"kind"`
	Token string `json:"token"`
}

// Segments aligns the whitespace tokens of before and after and returns one
// segment per token in order. Within a replaced block all deletions precede
// all insertions.
func Segments(before, after string) []Segment {
	a := strings.Fields(before)
	b := strings.Fields(after)

	var out []Segment
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, tok := range a[op.I1:op.I2] {
				out = append(out, Segment{Kind: Equal, Token: tok})
			}
		case 'd', 'r', 'i':
			for _, tok := range a[op.I1:op.I2] {
				out = append(out, Segment{Kind: Delete, Token: tok})
			}
			for _, tok := range b[op.J1:op.J2] {
				out = append(out, Segment{Kind: Insert, Token: tok})
			}
		}
	}
	return out
}

// Report returns the markdown diff of before and after, or [NoChanges].
func Report(before, after string) string {
	if strings.TrimSpace(before) == strings.TrimSpace(after) {
		return NoChanges
	}
	segs := Segments(before, after)
	parts := make([]string, len(segs))
	for i, s := range segs {
		switch s.Kind {
		case Delete:
			parts[i] = "~~" + s.Token + "~~"
		case Insert:
			parts[i] = "**" + s.Token + "**"
		default:
			parts[i] = s.Token
		}
	}
	return strings.Join(parts, " ")
}

// Before reconstructs the token sequence of the original text.
func Before(segs []Segment) []string {
	return collect(segs, Insert)
}

// After reconstructs the token sequence of the corrected text.
func After(segs []Segment) []string {
	return collect(segs, Delete)
}

func collect(segs []Segment, skip Kind) []string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s.Kind != skip {
			out = append(out, s.Token)
		}
	}
	return out
}
