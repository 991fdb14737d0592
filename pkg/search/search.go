// Package search retrieves journal entries related to what the user is
// talking about, via embedding similarity.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NoResultsDigest is returned to the model when nothing relevant was
// found, so it answers from the conversation instead of hallucinating
// past entries.
const NoResultsDigest = "No related journal entries were found."

// Result is one matched journal entry.
type Result struct {
	EntryID string
	Title   string
	Date    time.Time
	Snippet string
	Score   float32
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher finds entries similar to a query for one user.
type Searcher interface {
	Search(ctx context.Context, userID, query string, limit int) ([]Result, error)
}

// IndexedEntry is the slice of a journal entry that gets embedded.
type IndexedEntry struct {
	EntryID   string
	UserID    string
	Title     string
	Content   string
	CreatedAt time.Time
}

// Indexer adds new journal entries to the similarity index.
type Indexer interface {
	Index(ctx context.Context, entry IndexedEntry) error
}

// maxSnippetLen bounds how much of each entry is quoted back into the
// model context.
const maxSnippetLen = 300

// Digest renders search results as prompt text for the model.
func Digest(results []Result) string {
	if len(results) == 0 {
		return NoResultsDigest
	}

	var b strings.Builder
	b.WriteString("Related past journal entries:\n")
	for i, r := range results {
		snippet := r.Snippet
		if len(snippet) > maxSnippetLen {
			snippet = strings.ToValidUTF8(snippet[:maxSnippetLen], "") + "..."
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, r.Date.Format("2006-01-02"), r.Title, snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
