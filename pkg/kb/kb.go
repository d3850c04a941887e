// Package kb is the IT knowledge base searched by the knowledge_base_search
// action.
//
// Articles are loaded from markdown and YAML files, chunked into passages
// and scored by a fusion of vector similarity and keyword overlap. Passage
// embeddings are cached in a kv.Store keyed by content hash, so rebuilding
// the index over unchanged articles makes no embedding calls.
//
//	idx := kb.NewIndex(kb.IndexConfig{Store: store, Embedder: e, Vec: vecstore.NewMemory()})
//	stats, err := idx.Add(ctx, articles...)
//	results, err := idx.Search(ctx, "bitlocker recovery", 3)
package kb

import (
	"context"
	"fmt"
	"strings"
)

// Searcher ranks passages for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}

// Result is a scored passage.
type Result struct {
	Passage Passage
	Score   float64
}

// Format renders results as a numbered list with titles, the way the
// knowledge_base_search action returns them to the model.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No knowledge base articles matched the query."
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n%s", i+1, r.Passage.Title, r.Passage.Text)
	}
	return b.String()
}
