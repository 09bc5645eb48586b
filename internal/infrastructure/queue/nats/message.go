package nats

import (
	"context"
	"errors"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
)

type queryRequest struct {
	RequestID string `json:"request_id,omitempty"`
	// CallID is unique per call and keys cancellation messages.
	CallID string `json:"call_id,omitempty"`
	Query  string `json:"query"`
	// DeadlineUnixMs is the caller's context deadline, 0 when it has none.
	DeadlineUnixMs int64 `json:"deadline_unix_ms,omitempty"`
}

type queryError struct {
	// Kind is the primary kind, used for worker metrics.
	Kind string `json:"kind"`
	// Kinds lists every kind the worker error matched.
	Kinds   []string `json:"kinds,omitempty"`
	Message string   `json:"message"`
}

type queryReply struct {
	Result *domain.QueryResult `json:"result,omitempty"`
	Error  *queryError         `json:"error,omitempty"`
}

// errorKinds lists the sentinels that survive the wire, most specific first.
var errorKinds = []struct {
	name string
	err  error
}{
	{"cancelled", domain.ErrCancelled},
	{"timeout", context.DeadlineExceeded},
	{"invalid_input", domain.ErrInvalidInput},
	{"decomposition_format", domain.ErrDecompositionFormat},
	{"unknown_category", domain.ErrUnknownCategory},
	{"temporary", domain.ErrTemporary},
	{"retrieval", domain.ErrRetrieval},
	{"completion", domain.ErrCompletion},
}

func encodeError(err error) *queryError {
	out := &queryError{Kind: "internal", Message: err.Error()}
	for _, kind := range errorKinds {
		if !errors.Is(err, kind.err) {
			continue
		}
		if len(out.Kinds) == 0 {
			out.Kind = kind.name
		}
		out.Kinds = append(out.Kinds, kind.name)
	}
	return out
}

// remoteError carries a worker failure back to the caller with its
// original kinds.
type remoteError struct {
	kinds   []error
	message string
}

func (e *remoteError) Error() string {
	return "worker: " + e.message
}

func (e *remoteError) Unwrap() []error {
	return e.kinds
}

func decodeError(qe *queryError) error {
	names := qe.Kinds
	if len(names) == 0 {
		names = []string{qe.Kind}
	}
	out := &remoteError{message: qe.Message}
	for _, name := range names {
		for _, kind := range errorKinds {
			if kind.name == name {
				out.kinds = append(out.kinds, kind.err)
				break
			}
		}
	}
	return out
}
