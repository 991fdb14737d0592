package search

import (
	"strings"
	"testing"
	"time"
)

func TestDigestEmpty(t *testing.T) {
	if got := Digest(nil); got != NoResultsDigest {
		t.Errorf("Digest(nil) = %q, want %q", got, NoResultsDigest)
	}
}

func TestDigestFormatsResults(t *testing.T) {
	results := []Result{
		{
			Title:   "Rough Monday",
			Date:    time.Date(2025, 5, 12, 8, 30, 0, 0, time.UTC),
			Snippet: "Felt overwhelmed by the sprint deadline.",
			Score:   0.91,
		},
		{
			Title:   "Better Tuesday",
			Date:    time.Date(2025, 5, 13, 21, 0, 0, 0, time.UTC),
			Snippet: "Finished the big task, went for a long walk.",
			Score:   0.84,
		},
	}

	got := Digest(results)
	want := "Related past journal entries:\n" +
		"1. [2025-05-12] Rough Monday: Felt overwhelmed by the sprint deadline.\n" +
		"2. [2025-05-13] Better Tuesday: Finished the big task, went for a long walk."
	if got != want {
		t.Errorf("Digest() = %q, want %q", got, want)
	}
}

func TestDigestTruncatesLongSnippets(t *testing.T) {
	long := strings.Repeat("a very long reflection ", 30)
	results := []Result{{
		Title:   "Long entry",
		Date:    time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Snippet: long,
	}}

	got := Digest(results)
	if !strings.Contains(got, "...") {
		t.Error("long snippet was not truncated")
	}
	if len(got) > maxSnippetLen+100 {
		t.Errorf("digest length %d exceeds the snippet bound", len(got))
	}
}
