package symspell

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mustNew(t *testing.T, opts ...Option) *Speller {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCorrect_EmbeddedDictionary(t *testing.T) {
	t.Parallel()

	s := mustNew(t)
	tests := []struct {
		word   string
		want   string
		wantOK bool
	}{
		{word: "eigther", want: "either", wantOK: true},
		{word: "dont", want: "don't", wantOK: true},
		{word: "aples", want: "apples", wantOK: true},
		{word: "grammer", want: "grammar", wantOK: true},
		{word: "apples", want: "apples", wantOK: false},
		{word: "either", want: "either", wantOK: false},
		{word: "zzzzzzzz", want: "zzzzzzzz", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			got, ok, err := s.Correct(context.Background(), tt.word)
			if err != nil {
				t.Fatalf("Correct: %v", err)
			}
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Correct(%q) = %q, %v; want %q, %v", tt.word, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCorrect_CancelledContext(t *testing.T) {
	t.Parallel()

	s := mustNew(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := s.Correct(ctx, "eigther"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestLookup_RankingPrefersDistanceThenFrequency(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "freq.txt")
	data := "# test dictionary\ncat 100\ncar 500\ncart 900\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	s := mustNew(t, WithDictionary(path), WithMaxDistance(1))
	got := s.Lookup("cas")
	if len(got) != 2 {
		t.Fatalf("Lookup(cas) returned %d suggestions, want 2: %+v", len(got), got)
	}
	for _, sg := range got {
		if sg.Distance != 1 {
			t.Errorf("suggestion %q has distance %d, want 1", sg.Term, sg.Distance)
		}
	}
	if got[0].Term != "car" && got[0].Term != "cat" {
		t.Errorf("best suggestion = %q", got[0].Term)
	}

	exact := s.Lookup("cart")
	if len(exact) != 1 || exact[0].Distance != 0 {
		t.Errorf("exact lookup = %+v", exact)
	}
}

func TestNew_DictionaryErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		data string
	}{
		{name: "missing frequency", data: "word\n"},
		{name: "bad frequency", data: "word abc\n"},
		{name: "negative frequency", data: "word -4\n"},
		{name: "empty", data: "\n# only comments\n"},
	}
	for i, tt := range tests {
		path := filepath.Join(dir, tt.name+".txt")
		if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := New(WithDictionary(path)); err == nil {
			t.Errorf("case %d (%s): expected error", i, tt.name)
		}
	}

	if _, err := New(WithDictionary(filepath.Join(dir, "absent.txt"))); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGenerateDeletes(t *testing.T) {
	t.Parallel()

	got := generateDeletes("abc", 1)
	want := map[string]bool{"bc": true, "ac": true, "ab": true}
	if len(got) != len(want) {
		t.Fatalf("generateDeletes(abc,1) = %v", got)
	}
	for _, d := range got {
		if !want[d] {
			t.Errorf("unexpected delete %q", d)
		}
	}
	if n := len(generateDeletes("abc", 2)); n != 6 {
		t.Errorf("generateDeletes(abc,2) returned %d variants, want 6", n)
	}
}

func TestWithMaxDistance_Clamps(t *testing.T) {
	t.Parallel()

	var c config
	WithMaxDistance(9)(&c)
	if c.maxDistance != maxSupportedDist {
		t.Errorf("maxDistance = %d, want %d", c.maxDistance, maxSupportedDist)
	}
	WithMaxDistance(0)(&c)
	if c.maxDistance != 1 {
		t.Errorf("maxDistance = %d, want 1", c.maxDistance)
	}
}
