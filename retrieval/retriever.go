// Package retrieval turns a user intent into a candidate set via similarity search.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"canteenadvisor"
)

// DefaultResults is the number of final results a caller usually asks for.
const DefaultResults = 20

// Retriever wraps a similarity-search capability over the catalog.
type Retriever struct {
	searcher canteenadvisor.Searcher
}

func NewRetriever(searcher canteenadvisor.Searcher) *Retriever {
	return &Retriever{searcher: searcher}
}

// Retrieve returns up to 2*n candidates so later filtering has headroom.
// A non-positive n falls back to DefaultResults.
func (r *Retriever) Retrieve(ctx context.Context, intent canteenadvisor.UserIntent, n int) ([]canteenadvisor.FoodItem, error) {
	if n <= 0 {
		n = DefaultResults
	}
	query := BuildQuery(intent)
	slog.Debug("RETRIEVER: searching", "query", query, "limit", n*2)

	items, err := r.searcher.Search(ctx, query, n*2)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", canteenadvisor.ErrRetrievalUnavailable, err)
	}
	if items == nil {
		items = []canteenadvisor.FoodItem{}
	}
	if len(items) > n*2 {
		items = items[:n*2]
	}
	return items, nil
}
