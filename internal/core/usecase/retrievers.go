package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

const defaultTopK = 5

// VectorRetriever embeds the query and searches one vector collection.
type VectorRetriever struct {
	embedder   ports.Embedder
	store      ports.VectorStore
	collection string
	limit      int
}

func NewVectorRetriever(embedder ports.Embedder, store ports.VectorStore, collection string, limit int) *VectorRetriever {
	if limit <= 0 {
		limit = defaultTopK
	}
	return &VectorRetriever{
		embedder:   embedder,
		store:      store,
		collection: collection,
		limit:      limit,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	fragments, err := r.store.Search(ctx, r.collection, queryVector, r.limit)
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}
	return fragments, nil
}

// FullTextRetriever runs lexical search over one category's fragments.
type FullTextRetriever struct {
	store    ports.FragmentStore
	category string
	limit    int
}

func NewFullTextRetriever(store ports.FragmentStore, category string, limit int) *FullTextRetriever {
	if limit <= 0 {
		limit = defaultTopK
	}
	return &FullTextRetriever{
		store:    store,
		category: NormalizeCategory(category),
		limit:    limit,
	}
}

func (r *FullTextRetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	fragments, err := r.store.SearchFullText(ctx, r.category, query, r.limit)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	return fragments, nil
}

// GraphRetriever returns knowledge-graph triplets of its category matching
// the query.
type GraphRetriever struct {
	store    ports.GraphStore
	category string
	limit    int
}

func NewGraphRetriever(store ports.GraphStore, category string, limit int) *GraphRetriever {
	if limit <= 0 {
		limit = defaultTopK
	}
	return &GraphRetriever{store: store, category: category, limit: limit}
}

func (r *GraphRetriever) Retrieve(ctx context.Context, query string) ([]domain.Fragment, error) {
	fragments, err := r.store.SearchTriplets(ctx, r.category, query, r.limit)
	if err != nil {
		return nil, fmt.Errorf("graph search: %w", err)
	}
	return fragments, nil
}
