package ports

import (
	"context"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// QueryService is the inbound contract for rewrite-retrieve-read queries.
type QueryService interface {
	Query(ctx context.Context, text string) (*domain.QueryResult, error)
}

// CategoryLister exposes the categories the service can route to.
type CategoryLister interface {
	Categories() []domain.Category
}

// DocumentIngestor is the inbound contract for loading documents into a
// category's stores.
type DocumentIngestor interface {
	IngestFile(ctx context.Context, category, key string) (*domain.Document, error)
}
