package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"canteenadvisor"
	"canteenadvisor/advisor"
	"canteenadvisor/retrieval"
)

const defaultSearchLimit = 10

// CatalogSearch returns filtered and ranked candidates without calling a model.
type CatalogSearch struct {
	retriever advisor.CandidateRetriever
	filter    advisor.Filterer
	ranker    advisor.Ranker
}

func NewCatalogSearch(r advisor.CandidateRetriever) *CatalogSearch {
	return &CatalogSearch{retriever: r, filter: advisor.ConstraintFilter{}, ranker: advisor.GoalRanker{}}
}

func (t *CatalogSearch) Name() string  { return "catalog_search" }
func (t *CatalogSearch) Title() string { return "Search canteen dishes" }
func (t *CatalogSearch) Description() string {
	return "Searches the canteen catalog for dishes matching a meal slot and preferences, drops dishes that break allergies, dislikes or canteen choices, and ranks the rest by fitness goal."
}

func (t *CatalogSearch) InputSchema() *jsonschema.Schema {
	minLimit := 1.0
	return intentSchema(map[string]*jsonschema.Schema{
		"limit": {Type: "integer", Minimum: &minLimit, Description: "Maximum dishes to return."},
	})
}

func (t *CatalogSearch) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query": {Type: "string"},
			"items": {Type: "array", Items: foodItemSchema()},
		},
		Required: []string{"query", "items"},
	}
}

func (t *CatalogSearch) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	in, err := decodeIntent(input)
	if err != nil {
		return nil, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	candidates, err := t.retriever.Retrieve(ctx, in.UserIntent, limit)
	if err != nil {
		return nil, err
	}
	ranked := t.ranker.Rank(t.filter.Filter(candidates, in.UserIntent), in.UserIntent)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []canteenadvisor.FoodItem{}
	}

	return toMap(struct {
		Query string                    `json:"query"`
		Items []canteenadvisor.FoodItem `json:"items"`
	}{Query: retrieval.BuildQuery(in.UserIntent), Items: ranked})
}
