package neo4j

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/infrastructure/resilience"
)

func classifyNeo4jError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if neo4j.IsRetryable(err) {
		return resilience.Transient()
	}
	return resilience.Permanent(true)
}

func wrapRetrievalError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if classifyNeo4jError(err).Retryable {
		err = domain.WrapError(domain.ErrTemporary, "neo4j search triplets", err)
	}
	return domain.WrapError(domain.ErrRetrieval, "neo4j search triplets", err)
}
