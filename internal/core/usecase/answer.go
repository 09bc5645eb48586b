package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
)

const fragmentSeparator = "\n\n"

type SubQuestionAnswerer struct {
	completion ports.TextCompletion
	tracer     ports.TraceSink
	observer   ports.QueryObserver
}

// NewSubQuestionAnswerer builds an answerer. tracer is only called when it is
// non-nil, which is how verbose mode is switched on.
func NewSubQuestionAnswerer(completion ports.TextCompletion, tracer ports.TraceSink, observer ports.QueryObserver) *SubQuestionAnswerer {
	return &SubQuestionAnswerer{
		completion: completion,
		tracer:     tracer,
		observer:   observer,
	}
}

func (a *SubQuestionAnswerer) Answer(ctx context.Context, sq domain.SubQuestion, retriever ports.Retriever) (domain.SubAnswer, error) {
	fragments, err := retriever.Retrieve(ctx, sq.Text)
	if err != nil {
		return domain.SubAnswer{}, wrapRetrievalError(sq.Category, err)
	}
	if a.observer != nil {
		a.observer.ObserveRetrieval(sq.Category, len(fragments))
	}

	contextText := joinFragments(fragments)
	a.trace(ctx, domain.TraceRecord{
		Stage:    domain.TraceStageRetrieve,
		Category: sq.Category,
		Question: sq.Text,
		Context:  contextText,
	})

	raw, err := a.completion.Complete(ctx, buildSubQuestionPrompt(sq.Text, contextText))
	if err != nil {
		return domain.SubAnswer{}, wrapCompletionError("answer sub-question "+sq.Category, err)
	}
	a.trace(ctx, domain.TraceRecord{
		Stage:    domain.TraceStageAnswer,
		Category: sq.Category,
		Question: sq.Text,
		Answer:   raw,
	})

	return domain.SubAnswer{
		SubQuestion: sq,
		Answer:      strings.TrimSpace(raw),
		Fragments:   fragments,
	}, nil
}

func (a *SubQuestionAnswerer) trace(ctx context.Context, record domain.TraceRecord) {
	if a.tracer == nil {
		return
	}
	a.tracer.Trace(ctx, record)
}

func joinFragments(fragments []domain.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		parts = append(parts, fragment.Content)
	}
	return strings.Join(parts, fragmentSeparator)
}

func wrapRetrievalError(category string, err error) error {
	operation := "retrieve " + category
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.ContextError(operation, err)
	}
	if domain.IsKind(err, domain.ErrRetrieval) {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return domain.WrapError(domain.ErrRetrieval, operation, err)
}
