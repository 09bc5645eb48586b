package usecase

import (
	"errors"
	"fmt"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

// RetrieverRegistry maps category names to retrievers. It is immutable once
// built and safe for concurrent Route calls.
type RetrieverRegistry struct {
	retrievers map[string]ports.Retriever
}

// NewRetrieverRegistry copies entries, normalizing the category keys.
func NewRetrieverRegistry(entries map[string]ports.Retriever) (*RetrieverRegistry, error) {
	retrievers := make(map[string]ports.Retriever, len(entries))
	for name, retriever := range entries {
		key := NormalizeCategory(name)
		if key == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build retriever registry", errors.New("empty category name"))
		}
		if retriever == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build retriever registry", fmt.Errorf("nil retriever for %s", key))
		}
		if _, exists := retrievers[key]; exists {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build retriever registry", fmt.Errorf("duplicate category %s", key))
		}
		retrievers[key] = retriever
	}
	return &RetrieverRegistry{retrievers: retrievers}, nil
}

// Route returns the retriever registered under category. There is no
// fallback category.
func (r *RetrieverRegistry) Route(category string) (ports.Retriever, error) {
	retriever, ok := r.retrievers[NormalizeCategory(category)]
	if !ok {
		return nil, &domain.UnknownCategoryError{Category: category}
	}
	return retriever, nil
}

func (r *RetrieverRegistry) Len() int {
	return len(r.retrievers)
}
