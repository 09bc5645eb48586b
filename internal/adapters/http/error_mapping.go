package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

// statusClientClosedRequest is the nginx convention for requests the client
// abandoned before a response was produced.
const statusClientClosedRequest = 499

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrCancelled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrDecompositionFormat),
		domain.IsKind(err, domain.ErrCompletion),
		domain.IsKind(err, domain.ErrRetrieval):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrCancelled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrDecompositionFormat):
		return "decomposition_format"
	case domain.IsKind(err, domain.ErrCompletion):
		return "completion"
	case domain.IsKind(err, domain.ErrRetrieval):
		return "retrieval"
	default:
		return ""
	}
}
