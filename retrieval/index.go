package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"canteenadvisor"
)

// Index is an in-memory similarity index over a catalog snapshot.
// It is read-only after Build and safe for concurrent Search calls.
type Index struct {
	embedder Embedder
	items    []canteenadvisor.FoodItem
	vectors  [][]float32
	tracer   trace.Tracer
}

func NewIndex(embedder Embedder) *Index {
	return &Index{
		embedder: embedder,
		tracer:   otel.Tracer(canteenadvisor.TracerNameRetriever),
	}
}

// Build embeds every item's document text. It must be called once before Search.
func (x *Index) Build(ctx context.Context, items []canteenadvisor.FoodItem) error {
	docs := make([]string, len(items))
	for i, it := range items {
		docs[i] = Document(it)
	}

	var vectors [][]float32
	if len(docs) > 0 {
		var err error
		vectors, err = x.embedder.Embed(ctx, docs)
		if err != nil {
			return fmt.Errorf("failed to embed catalog: %w", err)
		}
		if len(vectors) != len(docs) {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
		}
	}

	x.items = items
	x.vectors = vectors
	slog.Info("INDEX: built", "items", len(items))
	return nil
}

// Len returns the number of indexed items.
func (x *Index) Len() int { return len(x.items) }

// Search returns up to n items ordered by cosine similarity to the query.
// Ties keep catalog order.
func (x *Index) Search(ctx context.Context, query string, n int) ([]canteenadvisor.FoodItem, error) {
	ctx, span := x.tracer.Start(ctx, "index.search")
	defer span.End()
	span.SetAttributes(attribute.Int("search.limit", n), attribute.Int("index.size", len(x.items)))

	if n <= 0 || len(x.items) == 0 {
		return []canteenadvisor.FoodItem{}, nil
	}

	qv, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(qv))
	}

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(x.items))
	for i, v := range x.vectors {
		ranked[i] = scored{idx: i, score: cosine(qv[0], v)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]canteenadvisor.FoodItem, n)
	for i := 0; i < n; i++ {
		out[i] = x.items[ranked[i].idx]
	}
	span.SetAttributes(attribute.Int("search.results", n))
	return out, nil
}

// Document is the text embedded for an item.
func Document(it canteenadvisor.FoodItem) string {
	var b strings.Builder
	b.WriteString(it.Name)
	for _, s := range []string{it.Category, it.Canteen, it.Description} {
		if s != "" {
			b.WriteString(" ")
			b.WriteString(s)
		}
	}
	for _, group := range [][]string{it.Tags, it.Ingredients} {
		if len(group) > 0 {
			b.WriteString(" ")
			b.WriteString(strings.Join(group, " "))
		}
	}
	for _, m := range it.AvailableMeals {
		b.WriteString(" ")
		b.WriteString(string(m))
	}
	return b.String()
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
