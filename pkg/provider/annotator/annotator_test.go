package annotator

import (
	"slices"
	"testing"
)

func sampleDoc() *Doc {
	// "The cat eats fish"
	return &Doc{Tokens: []Token{
		{Text: "The", POS: "DET", Dep: "det", Head: 1},
		{Text: "cat", POS: "NOUN", Dep: "nsubj", Head: 2},
		{Text: "eats", POS: "VERB", Dep: "ROOT", Head: 2},
		{Text: "fish", POS: "NOUN", Dep: "dobj", Head: 2},
	}}
}

func TestDoc_Children(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	tests := []struct {
		idx  int
		want []int
	}{
		{idx: 0, want: nil},
		{idx: 1, want: []int{0}},
		{idx: 2, want: []int{1, 3}},
		{idx: 3, want: nil},
	}
	for _, tt := range tests {
		if got := d.Children(tt.idx); !slices.Equal(got, tt.want) {
			t.Errorf("Children(%d) = %v, want %v", tt.idx, got, tt.want)
		}
	}
}

func TestDoc_HeadOf(t *testing.T) {
	t.Parallel()

	d := sampleDoc()
	h, ok := d.HeadOf(1)
	if !ok || h.Text != "eats" {
		t.Errorf("HeadOf(1) = %q, %v; want eats, true", h.Text, ok)
	}
	if h, ok := d.HeadOf(2); !ok || h.Text != "eats" {
		t.Errorf("root HeadOf(2) = %q, %v; want itself", h.Text, ok)
	}
	if _, ok := d.HeadOf(9); ok {
		t.Error("HeadOf out of range should report false")
	}

	bad := &Doc{Tokens: []Token{{Text: "x", Head: 5}}}
	if _, ok := bad.HeadOf(0); ok {
		t.Error("HeadOf with dangling head should report false")
	}
}
